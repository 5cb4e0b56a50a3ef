package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
)

// SandboxBaseURL is the MoMo developer sandbox.
const SandboxBaseURL = "https://sandbox.momodeveloper.mtn.com"

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// httpClientTimeout is the timeout for the default HTTP client used
	// when no custom client is provided.
	httpClientTimeout = 30 * time.Second

	// maxAPIResponseBytes caps response body reads. Auth responses are
	// small JSON payloads.
	maxAPIResponseBytes = 64 * 1024

	headerSubscriptionKey = "Ocp-Apim-Subscription-Key"
	headerReferenceID     = "X-Reference-Id"
	headerTargetEnv       = "X-Target-Environment"
)

// ClientConfig configures the MoMo auth client.
type ClientConfig struct {
	// BaseURL defaults to the sandbox.
	BaseURL string
	// Product selects the token endpoint.
	Product Product
	// CallbackHost is sent as providerCallbackHost when creating API users.
	CallbackHost string
	// HTTPClient defaults to a pooled client with a 30-second timeout and
	// a same-host redirect policy.
	HTTPClient *http.Client
}

// Client talks to the MoMo provisioning and token endpoints. It is the
// HTTP implementation of AuthClient and never retries.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	product      Product
	callbackHost string
}

var _ AuthClient = (*Client)(nil)

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so the subscription key header is
// never forwarded to another domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewClient creates an auth client. The product must be one the API
// issues tokens for.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Product == "" {
		cfg.Product = ProductCollection
	}

	if err := cfg.Product.Validate(); err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = httpClientTimeout
		httpClient.CheckRedirect = sameHostRedirectPolicy
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = SandboxBaseURL
	}

	return &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		product:      cfg.Product,
		callbackHost: cfg.CallbackHost,
	}, nil
}

// Product returns the product whose token endpoint this client uses.
func (c *Client) Product() Product {
	return c.product
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			clean = append(clean, '?')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return string(clean)
}

// apiRequest describes one call to the MoMo API.
type apiRequest struct {
	method     string
	endpoint   string
	header     http.Header
	body       any
	basicUser  string
	basicPass  string
	wantStatus int
}

// do sends the request and returns the response body when the status
// matches wantStatus. Anything else becomes an *APIError.
func (c *Client) do(ctx context.Context, ar apiRequest) ([]byte, error) {
	var reader io.Reader

	if ar.body != nil {
		payload, err := json.Marshal(ar.body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, ar.method, c.baseURL+ar.endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, vs := range ar.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if ar.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if ar.basicUser != "" {
		req.SetBasicAuth(ar.basicUser, ar.basicPass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("sending request to %s: %w", ar.endpoint, err)
		// Network errors (timeouts, connection refused, DNS failures)
		// are transient by nature.
		return nil, &TransientError{Err: wrapped}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", ar.endpoint, err)
	}

	if resp.StatusCode != ar.wantStatus {
		apiErr := parseAPIError(ar.endpoint, resp.StatusCode, respBody)
		if isTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Err: apiErr}
		}

		return nil, apiErr
	}

	return respBody, nil
}

// parseAPIError extracts the error code and message from a MoMo error
// body. The provisioning endpoints use {"code","message"} while the
// token endpoint uses {"error","error_description"}.
func parseAPIError(endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{Endpoint: endpoint, Status: status}

	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "code", "error", "message", "error_description", "msg")
		apiErr.Code = firstNonEmpty(res[0].String(), res[1].String())
		apiErr.Message = firstNonEmpty(res[2].String(), res[3].String(), res[4].String())
	}

	if apiErr.Message == "" {
		apiErr.Message = sanitizeResponseBody(body)
	}

	return apiErr
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

// isTransientStatus returns true for HTTP status codes that indicate a
// temporary server-side problem worth retrying. 500 is left out because
// the token endpoint answers a bad user/key pair with it.
func isTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

func subscriptionHeader(key string) http.Header {
	h := http.Header{}
	h.Set(headerSubscriptionKey, key)

	return h
}

// CreateAPIUser registers referenceID as an API user. Only the sandbox
// allows this; production users come from the partner portal.
func (c *Client) CreateAPIUser(ctx context.Context, referenceID uuid.UUID, subscriptionKey string) error {
	header := subscriptionHeader(subscriptionKey)
	header.Set(headerReferenceID, referenceID.String())

	_, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		endpoint:   "/v1_0/apiuser",
		header:     header,
		body:       createAPIUserRequest{ProviderCallbackHost: c.callbackHost},
		wantStatus: http.StatusCreated,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return fmt.Errorf("creating api user %s: %w: %w", referenceID, ErrReferenceIDConflict, err)
		}

		return fmt.Errorf("creating api user %s: %w", referenceID, err)
	}

	return nil
}

// CreateAPIKey generates the API key for an existing API user.
func (c *Client) CreateAPIKey(ctx context.Context, referenceID uuid.UUID, subscriptionKey string) (APIKey, error) {
	endpoint := "/v1_0/apiuser/" + referenceID.String() + "/apikey"

	body, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		endpoint:   endpoint,
		header:     subscriptionHeader(subscriptionKey),
		wantStatus: http.StatusCreated,
	})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return APIKey{}, fmt.Errorf("creating api key: %w: %w", ErrAPIUserNotFound, err)
		}

		return APIKey{}, fmt.Errorf("creating api key: %w", err)
	}

	var resp createAPIKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return APIKey{}, fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	if resp.APIKey == "" {
		return APIKey{}, fmt.Errorf("creating api key: response from %s has no apiKey", endpoint)
	}

	return APIKey{Value: resp.APIKey, ReferenceID: referenceID}, nil
}

// IssueToken requests a bearer token for the configured product using
// HTTP Basic auth with the API user and key. A response without
// expires_in gets DefaultTokenTTL; a reported ttl is passed through as is.
func (c *Client) IssueToken(ctx context.Context, user APIUser, key APIKey) (TokenGrant, error) {
	endpoint := "/" + string(c.product) + "/token/"

	body, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		endpoint:   endpoint,
		header:     subscriptionHeader(user.SubscriptionKey),
		basicUser:  user.ReferenceID.String(),
		basicPass:  key.Value,
		wantStatus: http.StatusOK,
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Code == "login_failed") {
			return TokenGrant{}, fmt.Errorf("issuing %s token: %w: %w", c.product, ErrInvalidCredentials, err)
		}

		return TokenGrant{}, fmt.Errorf("issuing %s token: %w", c.product, err)
	}

	if !gjson.ValidBytes(body) {
		return TokenGrant{}, fmt.Errorf("decoding response from %s: invalid JSON: %s", endpoint, sanitizeResponseBody(body))
	}

	res := gjson.GetManyBytes(body, "access_token", "token_type", "expires_in")

	grant := TokenGrant{
		AccessToken: res[0].String(),
		TokenType:   res[1].String(),
		ExpiresIn:   int(DefaultTokenTTL.Seconds()),
	}

	if res[2].Exists() {
		grant.ExpiresIn = int(res[2].Int())
	}

	if grant.AccessToken == "" {
		return TokenGrant{}, fmt.Errorf("issuing %s token: response has no access_token", c.product)
	}

	return grant, nil
}

// GetAPIUser looks up a registered API user.
func (c *Client) GetAPIUser(ctx context.Context, referenceID uuid.UUID, subscriptionKey string) (*APIUserInfo, error) {
	endpoint := "/v1_0/apiuser/" + referenceID.String()

	body, err := c.do(ctx, apiRequest{
		method:     http.MethodGet,
		endpoint:   endpoint,
		header:     subscriptionHeader(subscriptionKey),
		wantStatus: http.StatusOK,
	})
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("getting api user: %w: %w", ErrAPIUserNotFound, err)
		}

		return nil, fmt.Errorf("getting api user: %w", err)
	}

	var info APIUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding response from %s: %w", endpoint, err)
	}

	return &info, nil
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
