// Package jibble is a client for the Jibble time-attendance API.
package jibble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultTokenURL     = "https://identity.prod.jibble.io/connect/token"
	DefaultAPIURL       = "https://time-attendance.prod.jibble.io"
	DefaultWorkspaceURL = "https://workspace.prod.jibble.io"

	endpointTimesheets = "TimesheetsSummary"
	endpointPeople     = "People"

	maxBodyInError = 512
)

var tracer = otel.Tracer("github.com/jacksonlee411/attendance-sync/pkg/jibble")

type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIURL       string
	WorkspaceURL string
	Timeout      time.Duration
	MaxRetries   int
	// RateLimit uses the limiter's formatted rate, e.g. "10-S".
	RateLimit  string
	BaseDelay  time.Duration
	MaxBackoff time.Duration
	MaxJitter  time.Duration

	HTTPClient *http.Client
	TokenStore TokenStore
	Logger     *logrus.Logger
}

func (c *Config) applyDefaults() {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.WorkspaceURL == "" {
		c.WorkspaceURL = DefaultWorkspaceURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.MaxJitter == 0 {
		c.MaxJitter = c.BaseDelay / 2
	} else if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
}

type Client struct {
	apiURL       *url.URL
	workspaceURL *url.URL
	httpClient   *http.Client
	tokens       *TokenSource
	limiter      *limiter.Limiter
	cfg          Config
	log          *logrus.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewClient(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("jibble: client id and secret are required")
	}
	apiURL, err := parseBaseURL(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	workspaceURL, err := parseBaseURL(cfg.WorkspaceURL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	var lim *limiter.Limiter
	if strings.TrimSpace(cfg.RateLimit) != "" {
		rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
		if err != nil {
			return nil, gerrors.Wrap(err, "jibble: rate limit")
		}
		lim = limiter.New(memory.NewStore(), rate)
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	fetch := func(ctx context.Context) (*oauth2.Token, error) {
		return cc.Token(context.WithValue(ctx, oauth2.HTTPClient, httpClient))
	}

	return &Client{
		apiURL:       apiURL,
		workspaceURL: workspaceURL,
		httpClient:   httpClient,
		tokens:       NewTokenSource(fetch, cfg.TokenStore, cfg.Logger),
		limiter:      lim,
		cfg:          cfg,
		log:          cfg.Logger,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("jibble: invalid base url %q", raw)
	}
	return u, nil
}

type TimesheetQuery struct {
	PersonID string
	From     time.Time
	To       time.Time
	// Filter is passed through as the OData $filter expression.
	Filter string
}

// FetchTimesheets returns the daily summaries of one person over [From, To].
func (c *Client) FetchTimesheets(ctx context.Context, q TimesheetQuery) ([]TimesheetSummary, error) {
	ctx, span := tracer.Start(ctx, "jibble.FetchTimesheets",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("jibble.person_id", q.PersonID),
			attribute.String("jibble.from", q.From.Format(dateLayout)),
			attribute.String("jibble.to", q.To.Format(dateLayout)),
		),
	)
	defer span.End()

	params := url.Values{}
	params.Set("period", "Custom")
	params.Set("date", q.From.Format(dateLayout))
	params.Set("endDate", q.To.Format(dateLayout))
	params.Set("personId", q.PersonID)
	if f := strings.TrimSpace(q.Filter); f != "" {
		params.Set("$filter", f)
	}

	var out list[TimesheetSummary]
	if err := c.getJSON(ctx, c.apiURL, "/v1/TimesheetsSummary", endpointTimesheets, params, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("jibble.entries", len(out.Value)))
	return out.Value, nil
}

// ListPeople returns the workspace directory.
func (c *Client) ListPeople(ctx context.Context) ([]Person, error) {
	ctx, span := tracer.Start(ctx, "jibble.ListPeople", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var out list[Person]
	if err := c.getJSON(ctx, c.workspaceURL, "/v1/People", endpointPeople, nil, &out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out.Value, nil
}

func (c *Client) getJSON(ctx context.Context, base *url.URL, path, endpoint string, query url.Values, out any) error {
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	body, err := c.do(ctx, u.String(), endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

// do performs a GET with throttling and retries. Transport errors, 429 and
// 5xx are retried with exponential backoff; one 401 triggers a token refresh.
func (c *Client) do(ctx context.Context, rawURL, endpoint string) ([]byte, error) {
	refreshed := false
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retryDelay(attempt, lastErr)); err != nil {
				return nil, err
			}
		}

		body, status, header, err := c.once(ctx, rawURL, endpoint)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case status == http.StatusUnauthorized && !refreshed:
			refreshed = true
			c.tokens.Invalidate(ctx)
			attempt--
			continue
		case status >= 200 && status < 300:
			return body, nil
		case retryableStatus(status):
			lastErr = &retryableError{status: &StatusError{Endpoint: endpoint, StatusCode: status, Body: truncate(body)}, header: header}
		default:
			return nil, &StatusError{Endpoint: endpoint, StatusCode: status, Body: truncate(body)}
		}

		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  attempt + 1,
			}).WithError(lastErr).Warn("jibble request failed")
		}
	}

	var re *retryableError
	if errors.As(lastErr, &re) {
		return nil, re.status
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, rawURL, endpoint string) ([]byte, int, http.Header, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, 0, nil, err
	}
	tok, err := c.tokens.TokenContext(ctx)
	if err != nil {
		return nil, 0, nil, gerrors.Wrap(err, "jibble: obtain token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, nil, gerrors.Wrap(err, "jibble: build request")
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)
	propagation.TraceContext{}.Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return nil, 0, nil, gerrors.Wrap(err, "jibble: http do")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	requestDuration.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, resp.StatusCode, resp.Header, gerrors.Wrap(err, "jibble: read body")
	}
	return body, resp.StatusCode, resp.Header, nil
}

// throttle blocks until the local rate limiter admits a request.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	for {
		lc, err := c.limiter.Get(ctx, "jibble")
		if err != nil {
			return gerrors.Wrap(err, "jibble: rate limiter")
		}
		if !lc.Reached {
			return nil
		}
		wait := time.Until(time.Unix(lc.Reset, 0))
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	var re *retryableError
	if errors.As(lastErr, &re) {
		if d, ok := retryAfter(re.header, c.cfg.MaxBackoff); ok {
			return d
		}
	}
	c.randMu.Lock()
	j := jitter(c.rand, c.cfg.MaxJitter)
	c.randMu.Unlock()
	return backoff(attempt, c.cfg.BaseDelay, c.cfg.MaxBackoff) + j
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retryableError struct {
	status *StatusError
	header http.Header
}

func (e *retryableError) Error() string { return e.status.Error() }
func (e *retryableError) Unwrap() error { return e.status }

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxBodyInError {
		return s[:maxBodyInError] + "..."
	}
	return s
}
