package client

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

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

const (
	RequestIDHeader = "X-Request-Id"

	defaultRetries   = 2
	defaultRetryBase = 200 * time.Millisecond
	maxResponseBytes = 1 << 20
)

// HTTPClient implements Client over JSON/HTTP.
type HTTPClient struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	sessionTTL time.Duration
	cacheTTL   time.Duration
	retries    uint64
	retryBase  time.Duration
	now        Clock
	log        logging.Logger
}

type Option func(*HTTPClient)

func WithHTTPClient(c *http.Client) Option       { return func(h *HTTPClient) { h.http = c } }
func WithRequestTimeout(d time.Duration) Option  { return func(h *HTTPClient) { h.timeout = d } }
func WithPairingTimeout(d time.Duration) Option  { return func(h *HTTPClient) { h.sessionTTL = d } }
func WithDefaultCacheTTL(d time.Duration) Option { return func(h *HTTPClient) { h.cacheTTL = d } }
func WithLogger(l logging.Logger) Option         { return func(h *HTTPClient) { h.log = l } }
func WithClock(c Clock) Option                   { return func(h *HTTPClient) { h.now = c } }

// WithRetry sets how many times a 5xx answer is retried and the first
// backoff step. Zero retries disables retrying.
func WithRetry(retries uint64, base time.Duration) Option {
	return func(h *HTTPClient) {
		h.retries = retries
		h.retryBase = base
	}
}

// NewHTTPClient returns a client rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid guardian url %q", baseURL)
	}

	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{},
		timeout:    common.DefaultRequestTimeout,
		sessionTTL: common.DefaultPairingTimeout,
		cacheTTL:   common.DefaultCacheTTL,
		retries:    defaultRetries,
		retryBase:  defaultRetryBase,
		now:        time.Now,
		log:        logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *HTTPClient) InitPairing(ctx context.Context, t models.Transport, deviceName, deviceToken string) (*models.PairingSession, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown transport %q", t)
	}

	var resp InitPairingResponseBody
	body := InitPairingBody{DeviceName: deviceName, DeviceToken: deviceToken}
	if err := c.do(ctx, http.MethodPost, "/pair/"+string(t)+"/init", body, &resp); err != nil {
		return nil, err
	}
	return resp.toSession(t, c.now(), c.sessionTTL)
}

func (c *HTTPClient) PairingStatus(ctx context.Context, t models.Transport, sessionID string) (*PairingUpdate, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown transport %q", t)
	}

	var resp PairingStatusResponseBody
	path := "/pair/" + string(t) + "/status/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toUpdate()
}

func (c *HTTPClient) Check(ctx context.Context, req CheckRequest) (*CheckOutcome, error) {
	var resp CheckResponseBody
	if err := c.do(ctx, http.MethodPost, "/check", newCheckRequestBody(req), &resp); err != nil {
		return nil, err
	}
	return resp.toOutcome(req.ChildID, c.now(), c.cacheTTL)
}

func (c *HTTPClient) CreateRequest(ctx context.Context, req TimeRequest) (string, error) {
	body := CreateRequestBody{
		UserID:    req.Credentials.UserID,
		PairID:    req.Credentials.PairID,
		PairToken: req.Credentials.PairToken,
		ChildID:   req.ChildID,
		Activity:  string(req.Activity),
		Seconds:   req.Seconds,
		Reason:    req.Reason,
	}

	var resp CreateRequestResponseBody
	if err := c.do(ctx, http.MethodPost, "/request/createRequest", body, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == nil || *resp.RequestID == "" {
		return "", malformed("create request: missing requestId")
	}
	return *resp.RequestID, nil
}

// do sends one logical call. 5xx answers are retried with exponential
// backoff; everything else returns on the first attempt.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	reqID := uuid.NewString()
	log := c.log.With("request_id", reqID, "method", method, "path", redactPath(path))

	var backoff retry.Backoff = retry.NewExponential(c.retryBase)
	backoff = retry.WithMaxRetries(c.retries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.once(ctx, method, path, reqID, payload, out)
		if err == nil {
			return nil
		}
		if retryable(err) {
			log.Warn(ctx, "guardian call failed, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})

	switch {
	case err == nil:
		log.Debug(ctx, "guardian call ok", "attempts", attempt)
	case errors.Is(err, common.ErrMalformedResponse):
		log.Error(ctx, "guardian sent a malformed response", "error", err)
	case errors.Is(err, common.ErrUnauthorized):
		log.Warn(ctx, "guardian rejected credentials")
	default:
		log.Info(ctx, "guardian call failed", "error", err)
	}
	return err
}

func (c *HTTPClient) once(ctx context.Context, method, path, reqID string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return mapTransportError(ctx, err)
	}

	if err := mapStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return malformed("decode %s", redactPath(path))
	}
	return nil
}

func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case code >= 500 || code == http.StatusTooManyRequests:
		return fmt.Errorf("http %d: %w", code, common.ErrServer)
	default:
		// Non-2xx other than 401 is transient but not worth retrying.
		return fmt.Errorf("http %d: %w", code, errNonRetryable)
	}
}

// errNonRetryable is a transient server error that do does not retry.
var errNonRetryable = &nonRetryable{}

type nonRetryable struct{}

func (*nonRetryable) Error() string { return "unexpected status" }

func (*nonRetryable) Is(target error) bool { return target == common.ErrServer }

func retryable(err error) bool {
	return errors.Is(err, common.ErrServer) &&
		!errors.Is(err, common.ErrMalformedResponse) &&
		!errors.Is(err, errNonRetryable)
}

func mapTransportError(ctx context.Context, err error) error {
	// Caller cancellation is not a connectivity verdict.
	if ctxErr := context.Cause(ctx); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", common.ErrNetworkUnavailable, err)
}

// redactPath keeps session ids out of logs.
func redactPath(p string) string {
	if i := strings.Index(p, "/status/"); i >= 0 {
		return p[:i] + "/status/:sessionId"
	}
	return p
}
