// Package momo manages MTN MoMo API credentials: the permanent API user
// and API key, and the short-lived bearer tokens issued from them.
package momo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTokenTTL is used only when a token response carries no
// expires_in at all. A ttl the server does report always wins.
const DefaultTokenTTL = 3600 * time.Second

// Product selects which MoMo product's token endpoint is used.
type Product string

const (
	ProductCollection   Product = "collection"
	ProductDisbursement Product = "disbursement"
	ProductRemittance   Product = "remittance"
)

// Validate rejects products the API has no token endpoint for.
func (p Product) Validate() error {
	switch p {
	case ProductCollection, ProductDisbursement, ProductRemittance:
		return nil
	}

	return fmt.Errorf("invalid product %q: must be collection, disbursement or remittance", string(p))
}

// APIUser identifies the integration to the MoMo authority.
type APIUser struct {
	ReferenceID     uuid.UUID
	SubscriptionKey string
}

// APIKey is the long-lived secret paired with an APIUser.
type APIKey struct {
	Value       string
	ReferenceID uuid.UUID
}

// String hides the key value so it never ends up in logs.
func (k APIKey) String() string {
	return "APIKey(" + k.ReferenceID.String() + ")"
}

// Credentials is the persisted APIUser/APIKey pair.
type Credentials struct {
	User APIUser
	Key  APIKey
}

// BearerToken is a short-lived access token and its expiry.
type BearerToken struct {
	Value     string
	IssuedAt  time.Time
	TTL       time.Duration
	ExpiresAt time.Time
}

// newBearerToken derives ExpiresAt from the ttl reported at issuance.
func newBearerToken(value string, issuedAt time.Time, ttl time.Duration) BearerToken {
	return BearerToken{
		Value:     value,
		IssuedAt:  issuedAt,
		TTL:       ttl,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

// ValidAt reports whether the token can still be used at now, keeping
// margin in reserve before the real expiry.
func (t BearerToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Value != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// String hides the token value.
func (t BearerToken) String() string {
	return "BearerToken(expires " + t.ExpiresAt.Format(time.RFC3339) + ")"
}

// TokenGrant is the raw result of a token request.
type TokenGrant struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// APIUserInfo is returned from GET /v1_0/apiuser/{referenceId}.
type APIUserInfo struct {
	ProviderCallbackHost string `json:"providerCallbackHost"`
	TargetEnvironment    string `json:"targetEnvironment"`
}

// createAPIUserRequest is the payload for POST /v1_0/apiuser.
type createAPIUserRequest struct {
	ProviderCallbackHost string `json:"providerCallbackHost"`
}

// createAPIKeyResponse is returned from POST /v1_0/apiuser/{id}/apikey.
type createAPIKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// TokenState is the lifecycle position of the cached token.
type TokenState string

const (
	TokenAbsent  TokenState = "absent"
	TokenValid   TokenState = "valid"
	TokenExpired TokenState = "expired"
)

// Status is a point-in-time view of the manager's token. It never
// carries the token value.
type Status struct {
	Integration string        `json:"integration"`
	State       TokenState    `json:"state"`
	IssuedAt    time.Time     `json:"issued_at,omitzero"`
	ExpiresAt   time.Time     `json:"expires_at,omitzero"`
	Remaining   time.Duration `json:"remaining"`
}
