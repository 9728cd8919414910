// Package honeybadger reports application errors to the Honeybadger
// error-tracking service.
//
// Create a *honeybadger.Client from a Config:
//
//	cfg, err := honeybadger.NewConfig("<<YOUR API KEY HERE>>",
//		honeybadger.WithEnv("production"),
//	)
//	if err != nil {
//		panic(err)
//	}
//	client, err := honeybadger.New(cfg)
//	if err != nil {
//		panic(err)
//	}
//
// Config can also be read from the environment with LoadConfig (see the
// HONEYBADGER_* variables documented on Config).
//
// After creating the client, report any error that appears in your
// application:
//
//	result, err := client.Notify(ctx, err,
//		honeybadger.WithContext(map[string]any{"user_id": "42"}),
//	)
//
// Notify converts the value into a structured notice (class, message,
// backtrace, cause chain) and POSTs it to the collector in exactly one
// attempt; there is no queue and no automatic retry. Failures are
// classified: IsRejected means the collector refused the payload, while
// IsTransient and IsTimeout mean delivery is in doubt and retrying the same
// notice may succeed.
//
// NotifyAsync reports in the background without blocking the caller, bounded
// by Config.Concurrency; call Flush before shutdown to wait for in-flight
// deliveries. Handler wraps an http.Handler so panics are reported with
// request data, and Monitor does the same for plain goroutines:
//
//	defer client.Monitor()
package honeybadger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"

	"github.com/fussybeaver/honeybadger-go/notice"
)

// Version is the library version reported in the notifier section of every
// notice and in the User-Agent header.
const Version = "0.2.0"

const (
	notifierName = "honeybadger-go"
	notifierURL  = "https://github.com/fussybeaver/honeybadger-go"
	noticesPath  = "/v1/notices"
)

// Client reports errors to a single collector endpoint. It is safe for
// concurrent use and is normally created once per process.
type Client struct {
	config     *Config
	http       *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *slog.Logger
	clock      Clock
	sem        *semaphore.Weighted
	userAgent  string
	noticesURL string
}

// Option customizes a Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The supplied client's
// redirect policy is kept as-is; the default client never follows redirects
// so that 3xx responses surface as rejections.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger used for delivery outcomes and
// dropped notices. The default logger discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock overrides the time source used for notice timestamps.
func WithClock(clk Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// New creates a Client from a validated Config.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, newError(ErrCodeBuildInvalidConfig, "config is nil", nil)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     cfg,
		http:       defaultHTTPClient(),
		logger:     slog.New(slog.DiscardHandler),
		clock:      RealClock{},
		sem:        semaphore.NewWeighted(int64(cfg.Concurrency)),
		userAgent:  fmt.Sprintf("HB-go %s; %s/%s", Version, runtime.GOOS, runtime.GOARCH),
		noticesURL: strings.TrimSuffix(cfg.Endpoint, "/") + noticesPath,
	}
	for _, opt := range opts {
		opt(c)
	}
	if cfg.CircuitBreaker {
		c.breaker = newBreaker()
	}
	return c, nil
}

// defaultHTTPClient returns the client used when none is injected. Deadlines
// come from the per-attempt context, and redirects are surfaced rather than
// followed.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// noticeParams accumulates per-notice options before the notice is built.
type noticeParams struct {
	request     notice.Request
	tags        []string
	fingerprint string
}

// NoticeOption attaches per-call data to a notice.
type NoticeOption func(*noticeParams)

// WithContext merges caller-supplied key/value context into the notice's
// request section. Later options win key conflicts.
func WithContext(m map[string]any) NoticeOption {
	return func(p *noticeParams) {
		if p.request.Context == nil {
			p.request.Context = make(map[string]any, len(m))
		}
		for k, v := range m {
			p.request.Context[k] = v
		}
	}
}

// WithParams attaches request parameters, collapsing single-valued keys.
func WithParams(values url.Values) NoticeOption {
	return func(p *noticeParams) {
		if params := collapseValues(values); params != nil {
			p.request.Params = params
		}
	}
}

// WithSession attaches session data to the notice's request section.
func WithSession(m map[string]any) NoticeOption {
	return func(p *noticeParams) {
		if p.request.Session == nil {
			p.request.Session = make(map[string]any, len(m))
		}
		for k, v := range m {
			p.request.Session[k] = v
		}
	}
}

// WithCGIData attaches CGI-style variables to the notice's request section.
func WithCGIData(m map[string]string) NoticeOption {
	return func(p *noticeParams) {
		if p.request.CGIData == nil {
			p.request.CGIData = make(map[string]string, len(m))
		}
		for k, v := range m {
			p.request.CGIData[k] = v
		}
	}
}

// WithRequest derives url, params, and CGI-style header data from an HTTP
// request. Sensitive headers (Authorization, Cookie, X-Api-Key) are
// redacted.
func WithRequest(r *http.Request) NoticeOption {
	return func(p *noticeParams) {
		if r == nil {
			return
		}
		info := extractRequestInfo(r)
		p.request.URL = info.URL
		if len(info.Params) > 0 {
			p.request.Params = info.Params
		}
		if len(info.CGIData) > 0 {
			p.request.CGIData = info.CGIData
		}
		if info.Component != "" && p.request.Component == "" {
			p.request.Component = info.Component
		}
	}
}

// WithTags attaches tags to the reported error.
func WithTags(tags ...string) NoticeOption {
	return func(p *noticeParams) {
		p.tags = append(p.tags, tags...)
	}
}

// WithFingerprint overrides the collector's grouping for this notice.
func WithFingerprint(fp string) NoticeOption {
	return func(p *noticeParams) { p.fingerprint = fp }
}

// WithComponent sets the request component (controller) name.
func WithComponent(component string) NoticeOption {
	return func(p *noticeParams) { p.request.Component = component }
}

// WithAction sets the request action name.
func WithAction(action string) NoticeOption {
	return func(p *noticeParams) { p.request.Action = action }
}

// NewNotice builds the complete wire payload for v without sending it. The
// error adapter accepts any Go error, a string, or an arbitrary panic value;
// see notice.NewError for the conversion rules.
//
// Building is deterministic for identical inputs apart from the timestamp
// and pid stamped into the server section. It fails only when the configured
// API key is empty; missing error capabilities (no cause chain, no stack)
// are normal and never an error.
func (c *Client) NewNotice(v any, opts ...NoticeOption) (*notice.Notice, error) {
	apiKey := c.config.APIKey.Unmask()
	if apiKey == "" {
		return nil, newError(ErrCodeBuildMissingAPIKey, "API key is required", nil)
	}

	var p noticeParams
	for _, opt := range opts {
		opt(&p)
	}

	e := notice.NewError(v)
	if len(p.tags) > 0 {
		e.Tags = append(e.Tags, p.tags...)
	}
	if p.fingerprint != "" {
		e.Fingerprint = p.fingerprint
	}

	n := &notice.Notice{
		APIKey: apiKey,
		Notifier: notice.Notifier{
			Name:    notifierName,
			URL:     notifierURL,
			Version: Version,
		},
		Error: e,
		Server: notice.Server{
			ProjectRoot:     c.config.Root,
			EnvironmentName: c.config.Env,
			Hostname:        c.config.Hostname,
			Time:            c.clock.Now().Unix(),
			PID:             os.Getpid(),
		},
	}

	req := p.request
	if c.config.IncludeEnv && len(req.CGIData) == 0 {
		req.CGIData = environCGIData()
	}
	if !req.IsEmpty() {
		n.Request = &req
	} else if c.config.SendEmptyRequest {
		n.Request = &notice.Request{}
	}
	return n, nil
}

// Notify builds a notice for v and delivers it in one attempt, blocking
// until the collector responds or the configured timeout elapses.
func (c *Client) Notify(ctx context.Context, v any, opts ...NoticeOption) (*NotifyResult, error) {
	n, err := c.NewNotice(v, opts...)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, n)
}

// NotifyAsync reports v on a background goroutine and returns immediately.
// At most Config.Concurrency deliveries run at once; when all slots are
// busy the notice is dropped with a warning log. Build and delivery
// failures are logged, never returned.
func (c *Client) NotifyAsync(v any, opts ...NoticeOption) {
	n, err := c.NewNotice(v, opts...)
	if err != nil {
		c.logger.Warn("notice build failed", "error", err.Error())
		return
	}
	if !c.sem.TryAcquire(1) {
		c.logger.Warn("notice dropped",
			"reason", "concurrency limit reached",
			"class", n.Error.Class,
		)
		return
	}
	go func() {
		defer c.sem.Release(1)
		_, _ = c.Send(context.Background(), n)
	}()
}

// Flush waits for background deliveries started by NotifyAsync to finish,
// or until ctx is done. It is intended for shutdown; notices submitted
// while a flush is waiting may be dropped.
func (c *Client) Flush(ctx context.Context) error {
	all := int64(c.config.Concurrency)
	if err := c.sem.Acquire(ctx, all); err != nil {
		return newError(ErrCodeCanceled, "flush interrupted", err)
	}
	c.sem.Release(all)
	return nil
}

// Monitor reports a panic in the current goroutine and panics again. Use it
// in a defer at the top of goroutines whose crashes should be reported:
//
//	go func() {
//		defer client.Monitor()
//		work()
//	}()
//
// The report is delivered synchronously since the process is usually about
// to die.
func (c *Client) Monitor(opts ...NoticeOption) {
	rvr := recover()
	if rvr == nil {
		return
	}
	if n, err := c.NewNotice(notice.FromPanic(rvr), opts...); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		_, _ = c.Send(ctx, n)
		cancel()
	}
	panic(rvr)
}

// environCGIData renders the process environment as cgi_data.
func environCGIData() map[string]string {
	env := os.Environ()
	out := make(map[string]string, len(env))
	for _, kv := range env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}
