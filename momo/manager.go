package momo

//go:generate mockgen -source=manager.go -destination=mock_momo_test.go -package=momo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	// defaultIssueTimeout bounds a single issuance flight. The flight is
	// detached from the caller that started it, so it needs its own limit.
	defaultIssueTimeout = 30 * time.Second

	// maxReferenceAttempts caps how many fresh reference ids are tried
	// when the authority reports the id as already registered.
	maxReferenceAttempts = 3

	// maxTokenTTL is the longest lifetime accepted from the authority.
	// Sandbox tokens live for an hour.
	maxTokenTTL = 366 * 24 * time.Hour
)

// AuthClient is the remote authority: API user and key provisioning plus
// token issuance. Implementations must not retry on their own.
type AuthClient interface {
	CreateAPIUser(ctx context.Context, referenceID uuid.UUID, subscriptionKey string) error
	CreateAPIKey(ctx context.Context, referenceID uuid.UUID, subscriptionKey string) (APIKey, error)
	IssueToken(ctx context.Context, user APIUser, key APIKey) (TokenGrant, error)
}

// CredentialStore persists the APIUser/APIKey pair for one integration.
// Load returns nil, nil when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds Credentials) error
}

// Observer is notified of lifecycle events. All methods must be cheap and
// safe for concurrent use.
type Observer interface {
	CacheHit(integration string)
	CacheMiss(integration string)
	TokenIssued(integration string, token BearerToken)
	TokenFailed(integration string, err error)
	CredentialsProvisioned(integration string, err error)
	TokenInvalidated(integration string)
}

type nopObserver struct{}

func (nopObserver) CacheHit(string)                      {}
func (nopObserver) CacheMiss(string)                     {}
func (nopObserver) TokenIssued(string, BearerToken)      {}
func (nopObserver) TokenFailed(string, error)            {}
func (nopObserver) CredentialsProvisioned(string, error) {}
func (nopObserver) TokenInvalidated(string)              {}

// ManagerConfig holds the dependencies of a Manager.
type ManagerConfig struct {
	// Integration names this manager in logs and metrics.
	Integration     string
	SubscriptionKey string
	Client          AuthClient
	Store           CredentialStore

	// SafetyMargin is how long before the real expiry a cached token
	// stops being handed out.
	SafetyMargin time.Duration

	// IssueTimeout bounds a single issuance flight. Defaults to 30s.
	IssueTimeout time.Duration

	Observer Observer

	// Now and NewReferenceID are overridable for tests.
	Now            func() time.Time
	NewReferenceID func() uuid.UUID
}

// Manager owns the credential lifecycle of one integration: it makes sure
// an API user and key exist and hands out bearer tokens, issuing a new one
// only when the cached token has expired or was invalidated.
//
// Concurrent GetToken calls that miss the cache share a single issuance.
type Manager struct {
	logger          *slog.Logger
	integration     string
	subscriptionKey string
	client          AuthClient
	store           CredentialStore
	margin          time.Duration
	issueTimeout    time.Duration
	observer        Observer
	now             func() time.Time
	newReferenceID  func() uuid.UUID

	cache  TokenCache
	flight singleflight.Group

	// generation is bumped by InvalidateToken. A flight only populates the
	// cache if the generation it started under is still current.
	generation atomic.Uint64

	// issueMu allows one token request on the wire at a time. Flights of
	// different generations can overlap, the requests they make cannot.
	issueMu sync.Mutex

	// credSem serializes EnsureCredentials while still honouring ctx.
	credSem chan struct{}
}

// NewManager builds a Manager. Client, Store and SubscriptionKey are required.
func NewManager(cfg ManagerConfig, logger *slog.Logger) (*Manager, error) {
	if cfg.Client == nil {
		return nil, errors.New("auth client is required")
	}

	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}

	if cfg.SubscriptionKey == "" {
		return nil, errors.New("subscription key is required")
	}

	if cfg.SafetyMargin < 0 {
		return nil, fmt.Errorf("safety margin must not be negative, got %s", cfg.SafetyMargin)
	}

	if cfg.Integration == "" {
		cfg.Integration = "default"
	}

	if cfg.IssueTimeout <= 0 {
		cfg.IssueTimeout = defaultIssueTimeout
	}

	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.NewReferenceID == nil {
		cfg.NewReferenceID = uuid.New
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Manager{
		logger:          logger.With(slog.String("integration", cfg.Integration)),
		integration:     cfg.Integration,
		subscriptionKey: cfg.SubscriptionKey,
		client:          cfg.Client,
		store:           cfg.Store,
		margin:          cfg.SafetyMargin,
		issueTimeout:    cfg.IssueTimeout,
		observer:        cfg.Observer,
		now:             cfg.Now,
		newReferenceID:  cfg.NewReferenceID,
		credSem:         make(chan struct{}, 1),
	}, nil
}

// Integration returns the name this manager was configured with.
func (m *Manager) Integration() string {
	return m.integration
}

// EnsureCredentials returns the stored API user and key, provisioning
// them through the auth client when the store is empty. Failures are
// reported as *ProvisioningError and are not retried.
//
// The subscription key is configuration, not stored state: the returned
// APIUser always carries the key this manager was built with.
func (m *Manager) EnsureCredentials(ctx context.Context) (Credentials, error) {
	select {
	case m.credSem <- struct{}{}:
	case <-ctx.Done():
		return Credentials{}, &ProvisioningError{Step: "waiting for provisioning", Err: ctx.Err()}
	}
	defer func() { <-m.credSem }()

	stored, err := m.store.Load(ctx)
	if err != nil {
		return Credentials{}, &ProvisioningError{Step: "loading stored credentials", Err: err}
	}

	if stored != nil {
		creds := *stored
		creds.User.SubscriptionKey = m.subscriptionKey

		return creds, nil
	}

	m.logger.Info("no stored credentials, provisioning api user")

	creds, err := m.provision(ctx)
	m.observer.CredentialsProvisioned(m.integration, err)

	if err != nil {
		m.logger.Warn("provisioning failed", slog.String("error", err.Error()))
		return Credentials{}, err
	}

	m.logger.Info("credentials provisioned", slog.String("reference_id", creds.User.ReferenceID.String()))

	return creds, nil
}

func (m *Manager) provision(ctx context.Context) (Credentials, error) {
	var referenceID uuid.UUID

	for attempt := 1; ; attempt++ {
		referenceID = m.newReferenceID()

		err := m.client.CreateAPIUser(ctx, referenceID, m.subscriptionKey)
		if err == nil {
			break
		}

		// A conflict means the id is taken, not that the request failed,
		// so a fresh id is drawn rather than resending the same call.
		if errors.Is(err, ErrReferenceIDConflict) && attempt < maxReferenceAttempts {
			m.logger.Warn("reference id already registered, drawing a new one",
				slog.String("reference_id", referenceID.String()),
				slog.Int("attempt", attempt),
			)

			continue
		}

		return Credentials{}, &ProvisioningError{Step: "creating api user", Err: err}
	}

	key, err := m.client.CreateAPIKey(ctx, referenceID, m.subscriptionKey)
	if err != nil {
		return Credentials{}, &ProvisioningError{Step: "creating api key", Err: err}
	}

	key.ReferenceID = referenceID

	creds := Credentials{
		User: APIUser{ReferenceID: referenceID, SubscriptionKey: m.subscriptionKey},
		Key:  key,
	}

	if err := m.store.Save(ctx, creds); err != nil {
		return Credentials{}, &ProvisioningError{Step: "saving credentials", Err: err}
	}

	return creds, nil
}

// GetToken returns a bearer token that is valid now. A cached token is
// reused until SafetyMargin before its expiry; after that the first caller
// starts an issuance and every concurrent caller waits for the same one.
//
// If ctx ends while waiting, GetToken returns a *TokenError wrapping
// ctx.Err() and the issuance carries on for the other waiters.
func (m *Manager) GetToken(ctx context.Context) (BearerToken, error) {
	if t, ok := m.cachedToken(m.now()); ok {
		m.observer.CacheHit(m.integration)
		return t, nil
	}

	m.observer.CacheMiss(m.integration)

	gen := m.generation.Load()
	flightCtx := context.WithoutCancel(ctx)

	ch := m.flight.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return m.refresh(flightCtx, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return BearerToken{}, res.Err
		}

		return m.checkFresh(res.Val.(BearerToken))
	case <-ctx.Done():
		return BearerToken{}, &TokenError{Err: ctx.Err()}
	}
}

// cachedToken returns the cached token if it is still usable at now.
func (m *Manager) cachedToken(now time.Time) (BearerToken, bool) {
	t, ok := m.cache.Get()
	if !ok || !t.ValidAt(now, m.margin) {
		return BearerToken{}, false
	}

	return t, true
}

// refresh runs inside the single flight for generation gen.
func (m *Manager) refresh(ctx context.Context, gen uint64) (BearerToken, error) {
	// A flight from before an invalidation may still be waiting on its
	// response. Its token is never cached, but this flight waits for it to
	// finish before sending another request. The holder is bounded by its
	// own issue timeout.
	m.issueMu.Lock()
	defer m.issueMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.issueTimeout)
	defer cancel()

	// Another flight may have finished between this caller's cache miss
	// and now.
	if t, ok := m.cachedToken(m.now()); ok {
		return t, nil
	}

	token, err := m.issue(ctx)
	if err != nil {
		return BearerToken{}, m.issueFailed(gen, err)
	}

	if m.generation.Load() != gen {
		m.logger.Debug("token invalidated during issuance, not caching")
	} else {
		m.cache.Set(token)
	}

	m.observer.TokenIssued(m.integration, token)
	m.logger.Info("token issued",
		slog.Duration("ttl", token.TTL),
		slog.Time("expires_at", token.ExpiresAt),
	)

	return token, nil
}

func (m *Manager) issueFailed(gen uint64, err error) error {
	if m.generation.Load() == gen {
		m.cache.Clear()
	}

	m.observer.TokenFailed(m.integration, err)
	m.logger.Warn("token issuance failed", slog.String("error", err.Error()))

	return err
}

func (m *Manager) issue(ctx context.Context) (BearerToken, error) {
	creds, err := m.EnsureCredentials(ctx)
	if err != nil {
		return BearerToken{}, &TokenError{Err: err}
	}

	// Taken before the request so network latency eats into the token's
	// lifetime instead of extending it.
	issuedAt := m.now()

	grant, err := m.client.IssueToken(ctx, creds.User, creds.Key)
	if err != nil {
		return BearerToken{}, &TokenError{Err: err}
	}

	if grant.ExpiresIn <= 0 || int64(grant.ExpiresIn) > int64(maxTokenTTL/time.Second) {
		return BearerToken{}, &TokenError{Err: fmt.Errorf("%w: got %d seconds", ErrInvalidTTL, grant.ExpiresIn)}
	}

	return newBearerToken(grant.AccessToken, issuedAt, time.Duration(grant.ExpiresIn)*time.Second), nil
}

// checkFresh refuses to hand out a token whose expiry has passed.
func (m *Manager) checkFresh(t BearerToken) (BearerToken, error) {
	now := m.now()
	if !now.Before(t.ExpiresAt) {
		m.logger.Error("refusing to return expired token", slog.Time("expires_at", t.ExpiresAt))
		return BearerToken{}, &StaleTokenError{ExpiresAt: t.ExpiresAt, Now: now}
	}

	return t, nil
}

// InvalidateToken drops the cached token so the next GetToken issues a
// new one. Call it when the API rejects a token that looked valid.
func (m *Manager) InvalidateToken() {
	m.generation.Add(1)
	m.cache.Clear()
	m.observer.TokenInvalidated(m.integration)
	m.logger.Info("token invalidated")
}

// InvalidateTokenIf drops the cached token only if it is the one with the
// given value, and reports whether it did. Use it when a request made with
// that token was rejected: a late rejection of an older token leaves a
// newer one in place.
func (m *Manager) InvalidateTokenIf(value string) bool {
	if !m.cache.ClearIf(value) {
		return false
	}

	m.observer.TokenInvalidated(m.integration)
	m.logger.Info("rejected token invalidated")

	return true
}

// Status reports the state of the cached token.
func (m *Manager) Status() Status {
	st := Status{Integration: m.integration, State: TokenAbsent}

	t, ok := m.cache.Get()
	if !ok {
		return st
	}

	now := m.now()
	st.IssuedAt = t.IssuedAt
	st.ExpiresAt = t.ExpiresAt

	if now.Before(t.ExpiresAt) {
		st.State = TokenValid
		st.Remaining = t.ExpiresAt.Sub(now)
	} else {
		st.State = TokenExpired
	}

	return st
}
