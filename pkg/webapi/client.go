package webapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// DefaultBaseURL is the root every method name is appended to.
const DefaultBaseURL = "https://www.slack.com/api/"

// Doer is the part of *http.Client the caller needs.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

type Client struct {
	token   string
	baseURL string
	http    Doer
	log     logrus.FieldLogger
}

type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL. A trailing slash is added if missing.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u == "" {
			return
		}
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		c.baseURL = u
	}
}

func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Web API client bound to token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     logrus.WithField("component", "webapi"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string   { return c.token }
func (c *Client) BaseURL() string { return c.baseURL }

// Call performs one authenticated call of the named method. A response with
// "ok": false, or a rate-limited response, comes back as *APIError.
func (c *Client) Call(ctx context.Context, method string, params url.Values) (*Response, error) {
	if params == nil {
		params = url.Values{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errors.Wrapf(err, "webapi: build %s request", method)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.WithField("method", method).Debug("calling web api")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "webapi: %s", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "webapi: read %s response", method)
	}

	out := &Response{
		Method:     method,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Data:       map[string]any{},
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// the body is usually {"ok":false,"error":"ratelimited"}, but not always JSON
		_ = json.Unmarshal(body, &out.Data)
		return nil, &APIError{Message: "The request to the Slack API was rate limited.", Response: out}
	}

	if err := json.Unmarshal(body, &out.Data); err != nil {
		return nil, errors.Wrapf(err, "webapi: decode %s response (status %d)", method, resp.StatusCode)
	}
	if !out.OK() {
		return nil, &APIError{Message: "The request to the Slack API failed.", Response: out}
	}
	return out, nil
}

// ========================= RTM bootstrap =========================

func (c *Client) RTMConnect(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "rtm.connect", nil)
}

func (c *Client) RTMStart(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "rtm.start", nil)
}

// Slack returns a slack-go client sharing this client's token, base URL and
// HTTP transport. Use it for everything beyond the RTM bootstrap.
func (c *Client) Slack() *slack.Client {
	return slack.New(c.token,
		slack.OptionAPIURL(c.baseURL),
		slack.OptionHTTPClient(c.http),
	)
}
