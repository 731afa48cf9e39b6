// Package kis implements the Korea Investment & Securities open-API client.
// One client per user account: token state is per-credential and is never
// shared across users.
package kis

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
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
)

const (
	// tokenExpiryMargin refreshes the access token this long before the
	// broker would reject it.
	tokenExpiryMargin = 5 * time.Minute

	defaultTimeout  = 10 * time.Second
	defaultMinDelay = 120 * time.Millisecond
)

// APIError is a non-2xx broker response or a broker-level error code inside
// a 200 body.
type APIError struct {
	Status  int
	Code    string // broker msg_cd, e.g. "EGW00123"
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kis api error: status %d code %s: %s", e.Status, e.Code, e.Message)
}

// Transient reports whether the failure is worth one immediate retry:
// rate-limit pushback and server-side errors are; other 4xx are permanent.
func (e *APIError) Transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500 ||
		e.Code == "EGW00201" // per-second rate limit exceeded
}

// IsPermanent reports whether err is a broker rejection that must lock the
// user out for the day rather than be retried.
func IsPermanent(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Transient()
	}
	return false
}

// Config carries one account's connection settings.
type Config struct {
	BaseURL    string
	AppKey     string
	AppSecret  string
	AccountNo  string // 10 digits: 8-digit CANO + 2-digit product code
	IsPaper    bool   // paper accounts use the virtual TR-ID family
	Timeout    time.Duration
	MinDelay   time.Duration // spacing between requests
	MaxRetries int           // transient retries per call
}

// Client talks to the KIS REST API. All requests run through a pacing gate
// so the per-second rate limit is respected without queueing machinery.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	lastReq  time.Time
}

// NewClient builds a client for one account's credentials.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, errors.New("kis client needs base URL, app key and app secret")
	}
	if len(cfg.AccountNo) != 10 {
		return nil, fmt.Errorf("kis account number must be 10 digits, got %d", len(cfg.AccountNo))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = defaultMinDelay
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "kis").Logger(),
	}, nil
}

func (c *Client) cano() string    { return c.cfg.AccountNo[:8] }
func (c *Client) acntPrd() string { return c.cfg.AccountNo[8:] }

// trID picks the live or virtual transaction id.
func (c *Client) trID(live, virtual string) string {
	if c.cfg.IsPaper {
		return virtual
	}
	return live
}

// pace blocks until MinDelay has passed since the previous request.
func (c *Client) pace() {
	c.mu.Lock()
	wait := c.cfg.MinDelay - time.Since(c.lastReq)
	c.lastReq = time.Now().Add(wait)
	c.mu.Unlock()
	if wait > 0 {
		time.Sleep(wait)
	}
}

// ensureToken returns a valid access token, refreshing when it is near
// expiry. Token issuance is not paced: it happens at most once per day.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.token != "" && time.Until(c.tokenExp) > tokenExpiryMargin {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.cfg.AppKey,
		"appsecret":  c.cfg.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/oauth2/tokenP", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", &APIError{Status: resp.StatusCode, Message: "empty access token"}
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	c.mu.Unlock()

	c.log.Info().Time("expires", c.tokenExp).Msg("access token refreshed")
	return tr.AccessToken, nil
}

// call performs one API request with auth headers, pacing and transient
// retry. out, when non-nil, receives the decoded body.
func (c *Client) call(ctx context.Context, method, path, trID string, query url.Values, payload any, out any) error {
	attempts := c.cfg.MaxRetries + 1
	if attempts < 2 {
		attempts = 2 // one immediate retry on transient failures
	}
	bo := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 2 * time.Second, Jitter: true}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			time.Sleep(bo.Duration())
		}
		lastErr = c.doOnce(ctx, method, path, trID, query, payload, out)
		if lastErr == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && !apiErr.Transient() {
			return lastErr
		}
		c.log.Warn().Err(lastErr).Str("path", path).Int("attempt", i+1).Msg("kis call failed, retrying")
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path, trID string, query url.Values, payload any, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	c.pace()

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+token)
	req.Header.Set("appkey", c.cfg.AppKey)
	req.Header.Set("appsecret", c.cfg.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := c.http.Do(req)
	if err != nil {
		// Treat transport failures as transient; the retry loop decides.
		return &APIError{Status: http.StatusServiceUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var envelope struct {
			Code    string `json:"msg_cd"`
			Message string `json:"msg1"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Code != "" {
			apiErr.Code = envelope.Code
			apiErr.Message = strings.TrimSpace(envelope.Message)
		}
		return apiErr
	}

	// Broker-level failures ride a 200 with rt_cd != "0".
	var envelope struct {
		RtCd string `json:"rt_cd"`
		Code string `json:"msg_cd"`
		Msg  string `json:"msg1"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.RtCd != "" && envelope.RtCd != "0" {
		return &APIError{Status: resp.StatusCode, Code: envelope.Code, Message: strings.TrimSpace(envelope.Msg)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
