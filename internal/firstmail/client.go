// Package firstmail buys mailboxes from the Firstmail market API and
// reads their messages. The API surface drifts between releases, so
// every operation probes a ladder of endpoint and parameter shapes.
package firstmail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/resilience"
	"github.com/VaynZXC/tanki/internal/trace"
)

const (
	// DefaultBaseURL is the v1 API host.
	DefaultBaseURL = "https://api.firstmail.ltd/v1"

	// PermanentMailbox is the market type for non-expiring mailboxes.
	PermanentMailbox = 3

	userAgent = "tanki/1.0"
)

var (
	buyPaths = []string{"/market/buy/mail", "/lk/get/email"}

	messagePaths = []string{
		"/market/get/message",
		"/imap/get/message",
		"/imap/get/message/one",
		"/imap/message/one",
		"/imap/messages/last",
	}
)

// Mailbox is one purchased account. Left is the remaining pool size
// when the API reports it, -1 otherwise.
type Mailbox struct {
	Email    string
	Password string
	Left     int
}

// Message is one fetched mail with the content fields the API may
// populate.
type Message struct {
	Subject string
	HTML    string
	Text    string
	Body    string
}

// Config for the market client. ProxyURL uses the vendor's
// host:port:user:pass form.
type Config struct {
	BaseURL  string
	APIKey   string
	ProxyURL string
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Client talks to the Firstmail API. A circuit breaker fails fast
// when the endpoint is down instead of grinding through the ladder.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.Breaker
}

func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New(errors.Config, "firstmail api key is empty")
	}

	transport := &http.Transport{
		// never route API traffic through system proxies
		Proxy: nil,
	}
	if cfg.ProxyURL != "" {
		u, err := parseProxy(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		breaker: resilience.NewBreaker(resilience.MailAPIConfig()),
	}, nil
}

// parseProxy converts host:port:user:pass into an authenticated URL.
func parseProxy(raw string) (*url.URL, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 {
		return nil, errors.Newf(errors.Config, "proxy %q is not host:port:user:pass", raw)
	}
	return &url.URL{
		Scheme: "http",
		Host:   parts[0] + ":" + parts[1],
		User:   url.UserPassword(parts[2], parts[3]),
	}, nil
}

// BuyMailbox purchases one mailbox, retrying transient failures with
// the mail backoff schedule.
func (c *Client) BuyMailbox(ctx context.Context, mailboxType int) (*Mailbox, error) {
	var mb *Mailbox
	err := resilience.Retry(ctx, resilience.MailRetryConfig(), func() error {
		var err error
		mb, err = c.buyOnce(ctx, mailboxType)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mb, nil
}

func (c *Client) buyOnce(ctx context.Context, mailboxType int) (*Mailbox, error) {
	log := trace.Logger(ctx)
	var lastErr error
	for _, path := range buyPaths {
		for _, method := range []string{http.MethodPost, http.MethodGet} {
			var mb *Mailbox
			err := c.breaker.Execute(func() error {
				var err error
				mb, err = c.tryBuy(ctx, method, path, mailboxType)
				return err
			})
			if err == nil && mb != nil {
				return mb, nil
			}
			if err != nil {
				log.Debug("buy attempt failed", "method", method, "path", path, "error", err)
				lastErr = err
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New(errors.Transient, "no endpoint returned credentials")
	}
	return nil, lastErr
}

func (c *Client) tryBuy(ctx context.Context, method, path string, mailboxType int) (*Mailbox, error) {
	q := url.Values{"type": {strconv.Itoa(mailboxType)}}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.BaseURL, "/")+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "build buy request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "firstmail request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "read firstmail response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.Transient, "firstmail HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, errors.Transient, "decode firstmail response")
	}
	mb, ok := parseMailbox(data)
	if !ok {
		return nil, errors.Newf(errors.Transient, "no credentials in response: %s", truncate(body, 200))
	}
	return mb, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
}

// parseMailbox extracts credentials from either the split-field shape
// or the combined "login" field using : or | as a separator.
func parseMailbox(data map[string]any) (*Mailbox, bool) {
	email := stringField(data, "email", "mail")
	password := stringField(data, "password", "pass")

	if email == "" || password == "" {
		login := stringField(data, "login", "Login", "user")
		for _, sep := range []string{":", "|"} {
			if e, p, found := strings.Cut(login, sep); found {
				if email == "" {
					email = e
				}
				if password == "" {
					password = p
				}
				break
			}
		}
	}
	if email == "" || password == "" {
		return nil, false
	}

	left := -1
	switch v := data["left"].(type) {
	case float64:
		left = int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			left = n
		}
	}
	return &Mailbox{Email: email, Password: password, Left: left}, true
}

func stringField(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := data[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

// LastMessage fetches the newest message for a mailbox, walking the
// market and IMAP endpoints with every parameter shape the API has
// been seen to accept.
func (c *Client) LastMessage(ctx context.Context, email, password string) (*Message, error) {
	log := trace.Logger(ctx)
	local, domain, _ := strings.Cut(email, "@")

	var lastErr error
	for _, path := range messagePaths {
		for _, params := range messageParams(path, email, local, domain, password) {
			var msg *Message
			err := c.breaker.Execute(func() error {
				var err error
				msg, err = c.tryMessage(ctx, path, params)
				return err
			})
			if err == nil && msg != nil {
				return msg, nil
			}
			if err != nil {
				log.Debug("message attempt failed", "path", path, "error", err)
				lastErr = err
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New(errors.Transient, "no message content in any response")
	}
	return nil, lastErr
}

func messageParams(path, email, local, domain, password string) []url.Values {
	withPass := func(v url.Values) url.Values {
		if password != "" {
			v.Set("password", password)
		}
		return v
	}

	var out []url.Values
	if strings.Contains(path, "/market/") {
		out = append(out, withPass(url.Values{"username": {email}}))
		if local != "" && domain != "" {
			out = append(out, withPass(url.Values{"username": {local}, "domain": {domain}}))
			out = append(out, withPass(url.Values{"login": {local}, "domain": {domain}}))
		}
		return out
	}
	out = append(out, withPass(url.Values{"email": {email}}))
	out = append(out, withPass(url.Values{"username": {email}}))
	if local != "" && domain != "" {
		out = append(out, withPass(url.Values{"username": {local}, "domain": {domain}}))
	}
	return out
}

func (c *Client) tryMessage(ctx context.Context, path string, params url.Values) (*Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.BaseURL, "/")+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "build message request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "firstmail request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.Transient, "read firstmail response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.Transient, "firstmail HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, errors.Transient, "decode firstmail response")
	}
	if msg, ok := parseMessage(data); ok {
		return msg, nil
	}
	return nil, nil
}

var contentKeys = []string{"html", "message", "text", "body", "subject"}

// parseMessage pulls message content from the root object, one nested
// envelope, or the first element of a messages/items array.
func parseMessage(data map[string]any) (*Message, bool) {
	if m, ok := messageFrom(data); ok {
		return m, true
	}
	for _, k := range []string{"data", "result", "payload"} {
		if nested, ok := data[k].(map[string]any); ok {
			if m, ok := messageFrom(nested); ok {
				return m, true
			}
		}
	}
	for _, k := range []string{"messages", "items"} {
		list, ok := data[k].([]any)
		if !ok {
			continue
		}
		for _, item := range list {
			if obj, ok := item.(map[string]any); ok {
				if m, ok := messageFrom(obj); ok {
					return m, true
				}
			}
		}
	}
	return nil, false
}

func messageFrom(data map[string]any) (*Message, bool) {
	hasContent := false
	for _, k := range contentKeys {
		if s, ok := data[k].(string); ok && strings.TrimSpace(s) != "" {
			hasContent = true
			break
		}
	}
	if !hasContent {
		if flag, ok := data["has_message"].(bool); !ok || !flag {
			return nil, false
		}
	}

	msg := &Message{
		Subject: stringField(data, "subject"),
		HTML:    stringField(data, "html"),
		Text:    stringField(data, "text", "message"),
	}
	msg.Body = msg.HTML
	if msg.Body == "" {
		msg.Body = msg.Text
	}
	if msg.Body == "" {
		msg.Body = stringField(data, "body")
	}
	return msg, true
}

// DrainResult reports one purchased mailbox to the caller.
type DrainResult func(Mailbox) error

// DrainAll buys mailboxes in parallel until the pool is exhausted: a
// duplicate email or a zero "left" counter stops all workers.
func (c *Client) DrainAll(ctx context.Context, mailboxType, workers int, sink DrainResult) (int, error) {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	log := trace.Logger(ctx)

	var (
		mu     sync.Mutex
		seen   = map[string]bool{}
		bought int
		first  error
	)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				mb, err := c.BuyMailbox(ctx, mailboxType)
				if err != nil {
					log.Warn("drain worker stopping", "error", err)
					return
				}
				mu.Lock()
				if seen[mb.Email] {
					// a repeat means the pool is spent
					mu.Unlock()
					cancel()
					return
				}
				seen[mb.Email] = true
				if err := sink(*mb); err != nil {
					if first == nil {
						first = err
					}
					mu.Unlock()
					cancel()
					return
				}
				bought++
				empty := mb.Left == 0
				mu.Unlock()
				if empty {
					cancel()
					return
				}
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return bought, first
}
