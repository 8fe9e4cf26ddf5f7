package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/ratelimit"
)

// Client is a cookie-authenticated client for the Twitter REST API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
	limiter    ratelimit.Limiter
}

// NewClient creates a client for cfg. A nil limiter disables pacing.
func NewClient(cfg *config.TwitterConfig, limiter ratelimit.Limiter, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		headers: map[string]string{
			"User-Agent":                cfg.UserAgent,
			"Accept":                    "application/json",
			"Accept-Language":           "en-US,en;q=0.9",
			"x-twitter-active-user":     "yes",
			"x-twitter-client-language": "en",
		},
		baseURL: baseURL,
		logger:  log,
		limiter: limiter,
	}
	if cfg.BearerToken != "" {
		c.SetHeader("Authorization", "Bearer "+cfg.BearerToken)
	}
	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetCredentials installs the session cookies. The ct0 cookie doubles as
// the CSRF token header.
func (c *Client) SetCredentials(authToken, csrfToken, userAgent string) {
	c.SetHeader("Cookie", fmt.Sprintf("auth_token=%s; ct0=%s", authToken, csrfToken))
	c.SetHeader("x-csrf-token", csrfToken)
	c.SetHeader("x-twitter-auth-type", "OAuth2Session")
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
}

// GetJSON performs a paced GET against path and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.Wrap(errs.KindUnexpected, err, "rate limiter")
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errs.Wrap(errs.KindUnexpected, err, "failed to create request")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"path":     path,
			"error":    err.Error(),
			"duration": duration,
		})
		return errs.Wrap(errs.KindUnexpected, err, "network error")
	}
	defer resp.Body.Close()

	logger.LogRequest(c.logger, req.Method, path, resp.StatusCode, duration)

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindUnexpected, err, "failed to read response body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         path,
			"error":        err.Error(),
			"body_preview": preview,
		})
		e := errs.Wrap(errs.KindUnexpected, err, "failed to parse JSON")
		e.Code = resp.StatusCode
		return e
	}
	return nil
}

// apiErrorBody is the error envelope returned by the REST API
type apiErrorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// checkResponseStatus classifies a non-2xx response. The request itself was
// already logged by LogRequest.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	kind := errs.FromStatus(resp.StatusCode)
	e := &errs.Error{
		Kind:    kind,
		Code:    resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}

	var body apiErrorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(raw, &body) == nil && len(body.Errors) > 0 && body.Errors[0].Message != "" {
		e.Message = body.Errors[0].Message
	}
	if kind == errs.KindRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}

	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
