// Package swanapi is the authenticated request primitive for the Swan orchestrator API.
//
// All endpoints are paths below a single base URL. Responses use the envelope
//
//	{"status": "success", "message": "...", "data": ...}
//
// and Request decodes `data` into the caller's value.
package swanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwt"
	log "github.com/sirupsen/logrus"

	"github.com/swanchain/go-swan-sdk/pkg/metrics"
	"github.com/swanchain/go-swan-sdk/pkg/swanerr"
	"github.com/swanchain/go-swan-sdk/pkg/telemetry"
	"github.com/swanchain/go-swan-sdk/pkg/version"
)

const (
	DefaultBaseURL = "https://orchestrator-api.swanchain.io"

	PathLoginWithAPIKey  = "/login_by_api_key"
	PathMachines         = "/cp/machines"
	PathSpaceDeployment  = "/v1/space_deployment"
	PathDeploymentInfo   = "/v1/space_deployment/"
	PathProviderPayments = "/provider/payments"
	PathTerminateTask    = "/terminate_task"

	StatusSuccess = "success"
	StatusFailed  = "failed"

	// Renew the session this long before the token actually expires.
	expirySkew = 30 * time.Second
)

// Requester is the primitive every orchestrator-facing component consumes.
//
// GET params are sent as the query string, anything else as a JSON body.
// The `data` member of the response envelope is decoded into out, unless out is nil.
type Requester interface {
	Request(ctx context.Context, method, path string, params, out any) error
}

var _ Requester = &Client{}

// APIError is a failure reported by the remote service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(msg) == 0 {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Code) > 0 {
		return fmt.Sprintf("%s %s: %d (error_code=%s): %s", e.Method, e.Path, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

type envelope struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	Data         json.RawMessage `json:"data"`
	ErrorCode    json.RawMessage `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

// Client talks to the orchestrator. It holds one session token and is not safe
// for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	token      string
	expiry     time.Time
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.setToken(token)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Token() string {
	return c.token
}

// SessionExpiry is the expiry claimed by the session token. Zero when unknown.
func (c *Client) SessionExpiry() time.Time {
	return c.expiry
}

// Login exchanges the API key for a session token.
func (c *Client) Login(ctx context.Context) error {
	if len(c.apiKey) == 0 {
		return swanerr.Errorf(swanerr.KindAuth, "API key required")
	}

	var token string
	params := map[string]string{"api_key": c.apiKey}
	err := c.do(ctx, http.MethodPost, PathLoginWithAPIKey, params, &token, false)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindAuth, fmt.Errorf("login: %w", err))
	}
	if len(token) == 0 {
		return swanerr.Errorf(swanerr.KindAuth, "login: no session token in response")
	}

	c.setToken(token)
	log.Infof("Logged in to Swan orchestrator at %s", c.baseURL)
	if !c.expiry.IsZero() {
		log.Debugf("Session valid until %s", c.expiry.Local())
	}

	return nil
}

func (c *Client) Request(ctx context.Context, method, path string, params, out any) error {
	err := c.ensureSession(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, params, out, true)
}

func (c *Client) ensureSession(ctx context.Context) error {
	if len(c.token) > 0 && !c.expired() {
		return nil
	}
	if len(c.apiKey) == 0 {
		if len(c.token) > 0 {
			return swanerr.Errorf(swanerr.KindAuth, "session token expired at %s and no API key to renew it", c.expiry)
		}
		return swanerr.Errorf(swanerr.KindAuth, "API key or session token required")
	}
	if len(c.token) > 0 {
		log.Infof("Session token expired; logging in again")
	}
	return c.Login(ctx)
}

func (c *Client) expired() bool {
	if c.expiry.IsZero() {
		return false
	}
	return !c.now().Add(expirySkew).Before(c.expiry)
}

func (c *Client) setToken(token string) {
	c.token = token
	c.expiry = tokenExpiry(token)
}

// Session tokens are JWTs signed by the orchestrator. The signature cannot be
// checked client side; only the expiry is of interest. Opaque tokens never expire.
func tokenExpiry(token string) time.Time {
	parsed, err := jwt.Parse([]byte(token), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return time.Time{}
	}
	return parsed.Expiration()
}

func (c *Client) do(ctx context.Context, method, path string, params, out any, authenticated bool) error {
	req, err := c.newRequest(ctx, method, path, params)
	if err != nil {
		return swanerr.ErrorWrap(swanerr.KindInternal, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("User-Agent", "go-swan-sdk/"+version.Version())
	req.Header.Set("Accept", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	telemetry.InjectHeaders(ctx, req.Header)

	logger := log.WithFields(log.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})
	logger.Debugf("Sending request")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequest(method, EndpointLabel(path), 0, time.Since(started))
		if ctx.Err() != nil {
			return swanerr.Errorf(swanerr.KindTimeout, "%s %s: %w", method, path, ctx.Err())
		}
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	metrics.APIRequest(method, EndpointLabel(path), resp.StatusCode, time.Since(started))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: read response: %w", method, path, err)
	}

	logger.WithField("status", resp.StatusCode).Debugf("Received response")

	return DecodeResponse(method, path, resp.StatusCode, body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params any) (*http.Request, error) {
	target := c.baseURL + path

	if method == http.MethodGet || method == http.MethodDelete {
		query, err := queryValues(params)
		if err != nil {
			return nil, err
		}
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, method, target, nil)
	}

	var body io.Reader
	if params != nil {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal request payload: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func queryValues(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	case map[string]string:
		values := url.Values{}
		for key, val := range p {
			values.Set(key, val)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported query parameter type %T", params)
	}
}

// DecodeResponse maps an HTTP response in the Swan envelope format onto out or a
// classified error. Services sharing the envelope reuse it.
func DecodeResponse(method, path string, statusCode int, body []byte, out any) error {
	env := &envelope{}
	decodeErr := json.Unmarshal(body, env)

	if statusCode < 200 || statusCode > 299 {
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: statusCode,
		}
		if decodeErr == nil {
			apiErr.Code = errorCode(env.ErrorCode)
			apiErr.Message = firstNonEmpty(env.ErrorMessage, env.Message)
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return swanerr.ErrorWrap(statusKind(statusCode), apiErr)
	}

	if decodeErr != nil {
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: decode response: %w", method, path, decodeErr)
	}

	if strings.EqualFold(env.Status, StatusFailed) || strings.EqualFold(env.Status, "error") {
		return swanerr.ErrorWrap(swanerr.KindTransport, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: statusCode,
			Code:       errorCode(env.ErrorCode),
			Message:    firstNonEmpty(env.ErrorMessage, env.Message),
		})
	}

	if out == nil {
		return nil
	}

	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Data...)
		return nil
	}

	if len(env.Data) == 0 {
		return nil
	}

	err := json.Unmarshal(env.Data, out)
	if err != nil {
		return swanerr.Errorf(swanerr.KindTransport, "%s %s: decode response data: %w", method, path, err)
	}

	return nil
}

func statusKind(statusCode int) swanerr.Kind {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return swanerr.KindAuth
	case http.StatusNotFound:
		return swanerr.KindNotFound
	default:
		return swanerr.KindTransport
	}
}

// error_code is a number in some responses and a string in others.
func errorCode(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return ""
}

// EndpointLabel replaces UUID path segments so per-task paths share one metric series.
func EndpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if err := uuid.Validate(segment); err == nil && len(segment) > 0 {
			segments[i] = "{uuid}"
		}
	}
	return strings.Join(segments, "/")
}

// IsAPIError reports whether err carries a failure reported by the remote service.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
