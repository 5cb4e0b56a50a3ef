package e2e_test

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexjbarnes/momo-credentials/internal/metrics"
	"github.com/alexjbarnes/momo-credentials/internal/server"
	"github.com/alexjbarnes/momo-credentials/internal/state"
	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testSubKey      = "e2e-subscription-key"
	testIntegration = "e2e"
)

// fakeMoMo is an in-memory stand-in for the MoMo sandbox: API user and
// key provisioning, token issuance and one product endpoint that checks
// bearer tokens.
type fakeMoMo struct {
	URL string

	mu      sync.Mutex
	users   map[string]string // reference id -> api key ("" until created)
	tokens  map[string]bool   // issued and not revoked
	ttl     int
	gate    chan struct{} // when set, token requests block until it closes
	counter atomic.Int64

	CreateUserCalls atomic.Int64
	CreateKeyCalls  atomic.Int64
	TokenCalls      atomic.Int64
	ProductCalls    atomic.Int64
}

func newFakeMoMo(t *testing.T) *fakeMoMo {
	t.Helper()

	f := &fakeMoMo{
		users:  make(map[string]string),
		tokens: make(map[string]bool),
		ttl:    3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1_0/apiuser", f.createUser)
	mux.HandleFunc("POST /v1_0/apiuser/{ref}/apikey", f.createKey)
	mux.HandleFunc("GET /v1_0/apiuser/{ref}", f.getUser)
	mux.HandleFunc("POST /collection/token/", f.issueToken)
	mux.HandleFunc("GET /collection/v1_0/account/balance", f.balance)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	f.URL = ts.URL

	return f
}

func (f *fakeMoMo) checkSubKey(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Ocp-Apim-Subscription-Key") != testSubKey {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"statusCode": 401,
			"message":    "Access denied due to invalid subscription key.",
		})

		return false
	}

	return true
}

func (f *fakeMoMo) createUser(w http.ResponseWriter, r *http.Request) {
	f.CreateUserCalls.Add(1)

	if !f.checkSubKey(w, r) {
		return
	}

	ref, err := uuid.Parse(r.Header.Get("X-Reference-Id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "INVALID_REFERENCE_ID"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[ref.String()]; ok {
		writeJSON(w, http.StatusConflict, map[string]string{
			"code":    "RESOURCE_ALREADY_EXIST",
			"message": "Duplicated reference id. Creation of resource failed.",
		})

		return
	}

	f.users[ref.String()] = ""
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeMoMo) createKey(w http.ResponseWriter, r *http.Request) {
	f.CreateKeyCalls.Add(1)

	if !f.checkSubKey(w, r) {
		return
	}

	ref := r.PathValue("ref")

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[ref]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND"})
		return
	}

	key := randomHex(16)
	f.users[ref] = key
	writeJSON(w, http.StatusCreated, map[string]string{"apiKey": key})
}

func (f *fakeMoMo) getUser(w http.ResponseWriter, r *http.Request) {
	if !f.checkSubKey(w, r) {
		return
	}

	f.mu.Lock()
	_, ok := f.users[r.PathValue("ref")]
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"providerCallbackHost": "webhook.site",
		"targetEnvironment":    "sandbox",
	})
}

func (f *fakeMoMo) issueToken(w http.ResponseWriter, r *http.Request) {
	f.TokenCalls.Add(1)

	if !f.checkSubKey(w, r) {
		return
	}

	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	user, pass, ok := r.BasicAuth()

	f.mu.Lock()
	defer f.mu.Unlock()

	if key, known := f.users[user]; !ok || !known || key == "" || key != pass {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_failed"})
		return
	}

	token := "tok-" + strconv.FormatInt(f.counter.Add(1), 10)
	f.tokens[token] = true

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "access_token",
		"expires_in":   f.ttl,
	})
}

func (f *fakeMoMo) balance(w http.ResponseWriter, r *http.Request) {
	f.ProductCalls.Add(1)

	if !f.checkSubKey(w, r) {
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	valid := f.tokens[token]
	f.mu.Unlock()

	if !valid || r.Header.Get("X-Target-Environment") != "sandbox" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"availableBalance": "1000", "currency": "EUR"})
}

// revokeAll makes every issued token unacceptable to product endpoints.
func (f *fakeMoMo) revokeAll() {
	f.mu.Lock()
	f.tokens = make(map[string]bool)
	f.mu.Unlock()
}

// holdTokens blocks token requests until the returned func is called.
func (f *fakeMoMo) holdTokens() (release func()) {
	gate := make(chan struct{})

	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	return func() { close(gate) }
}

func (f *fakeMoMo) setTTL(seconds int) {
	f.mu.Lock()
	f.ttl = seconds
	f.mu.Unlock()
}

func (f *fakeMoMo) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.users)
}

// clock is a manually advanced time source shared by a stack.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stack is one process worth of wiring: client, store, manager, metrics
// and the status server.
type stack struct {
	Manager   *momo.Manager
	Registry  *prometheus.Registry
	StatusURL string
	Clock     *clock
	fake      *fakeMoMo
}

type stackOptions struct {
	store           momo.CredentialStore
	subscriptionKey string
}

func newStack(t *testing.T, fake *fakeMoMo, opts stackOptions) *stack {
	t.Helper()

	client, err := momo.NewClient(momo.ClientConfig{
		BaseURL:      fake.URL,
		Product:      momo.ProductCollection,
		CallbackHost: "webhook.site",
	})
	require.NoError(t, err)

	if opts.store == nil {
		db, err := state.LoadAt(filepath.Join(t.TempDir(), "credentials.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		opts.store = db.Credentials(testIntegration)
	}

	if opts.subscriptionKey == "" {
		opts.subscriptionKey = testSubKey
	}

	clk := &clock{now: time.Now()}
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.DiscardHandler)

	manager, err := momo.NewManager(momo.ManagerConfig{
		Integration:     testIntegration,
		SubscriptionKey: opts.subscriptionKey,
		Client:          client,
		Store:           opts.store,
		Observer:        metrics.New(reg),
		Now:             clk.Now,
	}, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(server.NewMux(server.MuxConfig{
		Managers: []server.StatusReporter{manager},
		Gatherer: reg,
		Logger:   logger,
	}))
	t.Cleanup(ts.Close)

	return &stack{
		Manager:   manager,
		Registry:  reg,
		StatusURL: ts.URL,
		Clock:     clk,
		fake:      fake,
	}
}

// productClient returns an HTTP client that authenticates through the
// stack's manager.
func (s *stack) productClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &momo.Transport{
			Source:            s.Manager,
			SubscriptionKey:   testSubKey,
			TargetEnvironment: "sandbox",
		},
	}
}

func (s *stack) getBalance(t *testing.T) int {
	t.Helper()

	resp, err := s.productClient().Get(s.fake.URL + "/collection/v1_0/account/balance")
	require.NoError(t, err)
	resp.Body.Close()

	return resp.StatusCode
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)

	return hex.EncodeToString(b)
}
