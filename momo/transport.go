package momo

import (
	"context"
	"fmt"
	"net/http"
)

// TokenSource hands out bearer tokens and accepts reports of rejected
// ones. *Manager implements it.
type TokenSource interface {
	GetToken(ctx context.Context) (BearerToken, error)
	InvalidateTokenIf(value string) bool
}

var _ TokenSource = (*Manager)(nil)

// Transport is an http.RoundTripper for MoMo product endpoints. It adds
// the bearer token, subscription key and target environment headers, and
// invalidates the token the API answered 401 to so the next request gets
// a fresh one. The rejected response is returned as is.
type Transport struct {
	Source            TokenSource
	SubscriptionKey   string
	TargetEnvironment string

	// Base defaults to http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.Source.GetToken(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}

		return nil, fmt.Errorf("getting bearer token: %w", err)
	}

	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token.Value)

	if t.TargetEnvironment != "" {
		r.Header.Set(headerTargetEnv, t.TargetEnvironment)
	}

	if t.SubscriptionKey != "" && r.Header.Get(headerSubscriptionKey) == "" {
		r.Header.Set(headerSubscriptionKey, t.SubscriptionKey)
	}

	resp, err := t.base().RoundTrip(r)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.Source.InvalidateTokenIf(token.Value)
	}

	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}

	return http.DefaultTransport
}
