package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	// scryptN is the CPU/memory cost parameter for scrypt key derivation (2^15).
	scryptN = 32768

	// scryptR is the block size parameter for scrypt key derivation.
	scryptR = 8

	// scryptP is the parallelization parameter for scrypt key derivation.
	scryptP = 1

	// keyLen is the derived key length in bytes (AES-256).
	keyLen = 32

	// saltLen is the length of the random per-value salt.
	saltLen = 16

	sealPrefix = "v1"
	sealInfo   = "momo-credentials api key"
)

// ErrWrongPassphrase is returned when a sealed value cannot be opened,
// either because the passphrase differs or the value was tampered with.
var ErrWrongPassphrase = errors.New("cannot open sealed value: wrong passphrase or corrupted data")

// Sealer encrypts API keys before they are written to a store. Each value
// gets its own random salt, so the same key sealed twice differs.
//
// Sealed format: v1$hex(salt)$hex([12-byte nonce][ciphertext+tag])
type Sealer struct {
	passphrase []byte
	cost       int
}

// NewSealer creates a Sealer from a passphrase. The passphrase is
// normalized to NFKC so visually identical input derives the same key.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}

	return &Sealer{
		passphrase: []byte(norm.NFKC.String(passphrase)),
		cost:       scryptN,
	}, nil
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(sealPrefix))

	return sealPrefix + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(ciphertext), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	parts := strings.Split(sealed, "$")
	if len(parts) != 3 || parts[0] != sealPrefix {
		return "", fmt.Errorf("unrecognised sealed value format")
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decoding salt: %w", err)
	}

	data, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(data))
	}

	plaintext, err := gcm.Open(nil, data[:gcm.NonceSize()], data[gcm.NonceSize():], []byte(sealPrefix))
	if err != nil {
		return "", ErrWrongPassphrase
	}

	return string(plaintext), nil
}

// aead derives the AES-GCM cipher for one salt: scrypt stretches the
// passphrase, HKDF binds the result to this use.
func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	master, err := scrypt.Key(s.passphrase, salt, s.cost, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	defer zeroKey(master)

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("expanding key: %w", err)
	}
	defer zeroKey(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return gcm, nil
}

// zeroKey overwrites key material once it is no longer needed.
func zeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
