package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/google/uuid"
)

var (
	// ErrCredentialsExist is returned by Save when the integration already
	// has credentials. Stored pairs are never replaced silently; Forget
	// them first.
	ErrCredentialsExist = errors.New("credentials already stored for integration")

	// ErrSealed is returned when a sealed record is read without a Sealer.
	ErrSealed = errors.New("stored api key is sealed; CREDENTIAL_PASSPHRASE is required")
)

// credentialRecord is the persisted form of momo.Credentials. The
// subscription key is configuration and is not stored.
type credentialRecord struct {
	ReferenceID string    `json:"reference_id"`
	APIKey      string    `json:"api_key"`
	Sealed      bool      `json:"sealed,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func encodeRecord(creds momo.Credentials, sealer *Sealer, now time.Time) ([]byte, error) {
	if creds.User.ReferenceID == uuid.Nil {
		return nil, errors.New("credentials have no reference id")
	}

	if creds.Key.Value == "" {
		return nil, errors.New("credentials have no api key")
	}

	if creds.Key.ReferenceID != uuid.Nil && creds.Key.ReferenceID != creds.User.ReferenceID {
		return nil, fmt.Errorf("api key belongs to %s, not %s", creds.Key.ReferenceID, creds.User.ReferenceID)
	}

	rec := credentialRecord{
		ReferenceID: creds.User.ReferenceID.String(),
		APIKey:      creds.Key.Value,
		CreatedAt:   now.UTC(),
	}

	if sealer != nil {
		sealed, err := sealer.Seal(creds.Key.Value)
		if err != nil {
			return nil, fmt.Errorf("sealing api key: %w", err)
		}

		rec.APIKey = sealed
		rec.Sealed = true
	}

	return json.Marshal(rec)
}

func decodeRecord(data []byte, sealer *Sealer) (*momo.Credentials, error) {
	var rec credentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding credential record: %w", err)
	}

	ref, err := uuid.Parse(rec.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("parsing stored reference id: %w", err)
	}

	key := rec.APIKey

	if rec.Sealed {
		if sealer == nil {
			return nil, ErrSealed
		}

		key, err = sealer.Open(rec.APIKey)
		if err != nil {
			return nil, err
		}
	}

	return &momo.Credentials{
		User: momo.APIUser{ReferenceID: ref},
		Key:  momo.APIKey{Value: key, ReferenceID: ref},
	}, nil
}
