package state

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/alexjbarnes/momo-credentials/momo"
	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.momo-credentials/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the credential database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var credentialsBucket = []byte("credentials")

// State wraps a bbolt database holding one credential record per
// integration.
type State struct {
	db     *bolt.DB
	sealer *Sealer
	now    func() time.Time
}

// LoadAt opens the credential database at path, creating it and its
// directory if they do not exist. A nil sealer stores API keys in the
// clear.
func LoadAt(path string, sealer *Sealer) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(credentialsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db, sealer: sealer, now: time.Now}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Credentials returns the store for one integration.
func (s *State) Credentials(integration string) *BoltStore {
	return &BoltStore{state: s, key: []byte(integration)}
}

// Integrations lists every integration with stored credentials.
func (s *State) Integrations() ([]string, error) {
	var names []string

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)

	return names, nil
}

// Forget removes the stored credentials of an integration. The API user
// itself stays registered with MoMo.
func (s *State) Forget(integration string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(credentialsBucket).Delete([]byte(integration))
	})
}

// BoltStore is the momo.CredentialStore of a single integration.
type BoltStore struct {
	state *State
	key   []byte
}

var _ momo.CredentialStore = (*BoltStore)(nil)

// Load returns the stored credentials, or nil if there are none.
func (b *BoltStore) Load(_ context.Context) (*momo.Credentials, error) {
	var data []byte

	err := b.state.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(credentialsBucket).Get(b.key)
		if v != nil {
			// bbolt values are only valid inside the transaction.
			data = append([]byte(nil), v...)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if data == nil {
		return nil, nil
	}

	return decodeRecord(data, b.state.sealer)
}

// Save persists creds. It fails with ErrCredentialsExist if the
// integration already has a record.
func (b *BoltStore) Save(_ context.Context, creds momo.Credentials) error {
	data, err := encodeRecord(creds, b.state.sealer, b.state.now())
	if err != nil {
		return err
	}

	return b.state.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(credentialsBucket)
		if bucket.Get(b.key) != nil {
			return fmt.Errorf("%w: %s", ErrCredentialsExist, b.key)
		}

		return bucket.Put(b.key, data)
	})
}
