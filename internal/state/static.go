package state

import (
	"context"
	"errors"

	"github.com/alexjbarnes/momo-credentials/momo"
)

// ErrReadOnly is returned by Static.Save.
var ErrReadOnly = errors.New("static credential store is read-only")

// Static serves credentials issued out of band, typically by the partner
// portal for production environments where API users cannot be created
// through the API.
type Static struct {
	creds momo.Credentials
}

var _ momo.CredentialStore = (*Static)(nil)

// NewStatic returns a store that always loads creds.
func NewStatic(creds momo.Credentials) *Static {
	return &Static{creds: creds}
}

// Load returns a copy of the pinned credentials.
func (s *Static) Load(_ context.Context) (*momo.Credentials, error) {
	c := s.creds
	return &c, nil
}

// Save always fails.
func (s *Static) Save(_ context.Context, _ momo.Credentials) error {
	return ErrReadOnly
}
