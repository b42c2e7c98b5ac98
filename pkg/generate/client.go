package generate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/errors"
	"github.com/Liggi/ai-learning-assistant-sub003/pkg/httputil"
)

const (
	followUpPath = "/follow-up"
	initialPath  = "/initial"

	// maxBackoff caps the wait between attempts unless the service asks
	// for longer.
	maxBackoff = 30 * time.Second
)

// Client calls a generation service over HTTP.
//
// The service accepts POST {endpoint}/follow-up with a [FollowUpRequest] and
// POST {endpoint}/initial with an [InitialRequest], and answers with a
// [Content] JSON body. Transient failures (network errors, 429, 5xx) are
// retried with exponential backoff.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	attempts int
	backoff  time.Duration
	logger   *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.backoff = backoff
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for the service at endpoint. A non-empty apiKey
// is sent as a bearer token. timeout bounds each HTTP attempt; zero means no
// timeout.
func NewClient(endpoint, apiKey string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	if err := errors.ValidateURL(endpoint); err != nil {
		return nil, err
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		attempts: 3,
		backoff:  time.Second,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate requests a follow-up Article.
func (c *Client) Generate(ctx context.Context, req FollowUpRequest) (Content, error) {
	return c.call(ctx, followUpPath, req)
}

// GenerateInitial requests the root Article of a subject.
func (c *Client) GenerateInitial(ctx context.Context, req InitialRequest) (Content, error) {
	return c.call(ctx, initialPath, req)
}

func (c *Client) call(ctx context.Context, path string, req any) (Content, error) {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}

	policy := httputil.Policy{
		Attempts:   c.attempts,
		Backoff:    c.backoff,
		MaxBackoff: maxBackoff,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			c.logger.Debug("retrying generation request", "path", path, "attempt", attempt+1, "wait", wait, "error", err)
		},
	}

	var out Content
	err := httputil.Retry(ctx, policy, func() error {
		out = Content{}
		return httputil.PostJSON(ctx, c.http, c.endpoint+path, header, req, &out)
	})
	if err != nil {
		return Content{}, errors.Wrap(errors.ErrCodeGeneration, err, "generation service %s", path)
	}

	out = out.normalize()
	if out.Content == "" {
		return Content{}, errors.New(errors.ErrCodeGeneration, "generation service %s returned empty content", path)
	}
	return out, nil
}

var _ Generator = (*Client)(nil)
