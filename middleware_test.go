package honeybadger

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fussybeaver/honeybadger-go/notice"
)

// --- Handler ---

func TestHandler_ReportsPanic(t *testing.T) {
	var got notice.Notice
	var requests atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode notice: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"mw-1"}`))
	}))
	defer collector.Close()

	c := newTestClient(t, collector.URL)
	h := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	req := httptest.NewRequest(http.MethodGet, "/search?q=badgers", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("User-Agent", "integration-test")

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		h.ServeHTTP(httptest.NewRecorder(), req)
	}()
	if recovered != "handler exploded" {
		t.Fatalf("expected the panic to propagate, recovered %v", recovered)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", requests.Load())
	}

	if got.Error.Class != "panic" {
		t.Errorf("error class = %q, want %q", got.Error.Class, "panic")
	}
	if got.Error.Message != "handler exploded" {
		t.Errorf("error message = %q", got.Error.Message)
	}
	if len(got.Error.Backtrace) == 0 {
		t.Error("expected a captured backtrace")
	}
	if got.Request == nil {
		t.Fatal("expected a request section")
	}
	if got.Request.URL != "http://example.com/search?q=badgers" {
		t.Errorf("request url = %q", got.Request.URL)
	}
	if got.Request.Params["q"] != "badgers" {
		t.Errorf("request params = %v", got.Request.Params)
	}
	if got.Request.CGIData["REQUEST_METHOD"] != "GET" {
		t.Errorf("REQUEST_METHOD = %q", got.Request.CGIData["REQUEST_METHOD"])
	}
	if got.Request.CGIData["HTTP_USER_AGENT"] != "integration-test" {
		t.Errorf("HTTP_USER_AGENT = %q", got.Request.CGIData["HTTP_USER_AGENT"])
	}
	if got.Request.CGIData["HTTP_AUTHORIZATION"] != redactedHeaderValue {
		t.Errorf("HTTP_AUTHORIZATION = %q, want redacted", got.Request.CGIData["HTTP_AUTHORIZATION"])
	}
}

func TestHandler_IgnoresAbortHandler(t *testing.T) {
	var requests atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer collector.Close()

	c := newTestClient(t, collector.URL)
	h := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	if recovered != http.ErrAbortHandler {
		t.Fatalf("expected ErrAbortHandler to propagate unchanged, recovered %v", recovered)
	}

	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("ErrAbortHandler must not be reported, got %d deliveries", got)
	}
}

func TestHandler_PassesThroughWithoutPanic(t *testing.T) {
	var requests atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer collector.Close()

	c := newTestClient(t, collector.URL)
	h := c.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("expected no delivery, got %d", got)
	}
}

func TestHandler_ChiRoutePattern(t *testing.T) {
	var got notice.Notice
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode notice: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer collector.Close()

	c := newTestClient(t, collector.URL)

	router := chi.NewRouter()
	router.Use(c.Handler)
	router.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		panic("user lookup failed")
	})

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))
	}()
	if recovered == nil {
		t.Fatal("expected the panic to propagate through the router")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}

	if got.Request == nil {
		t.Fatal("expected a request section")
	}
	if got.Request.Component != "/users/{id}" {
		t.Errorf("component = %q, want the matched route pattern", got.Request.Component)
	}
	if got.Request.URL != "http://example.com/users/42" {
		t.Errorf("request url = %q", got.Request.URL)
	}
}

// --- Request Extraction ---

func TestExtractRequestInfo_WithoutRouter(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	info := extractRequestInfo(r)

	if info.Component != "" {
		t.Errorf("Component = %q, want empty outside a router", info.Component)
	}
	if info.URL != "http://example.com/health" {
		t.Errorf("URL = %q", info.URL)
	}
}

func TestRequestURL(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/a?b=c", nil)
	if got := requestURL(plain); got != "http://example.com/a?b=c" {
		t.Errorf("requestURL = %q", got)
	}

	secure := httptest.NewRequest(http.MethodGet, "/a", nil)
	secure.TLS = &tls.ConnectionState{}
	if got := requestURL(secure); got != "https://example.com/a" {
		t.Errorf("requestURL with TLS = %q", got)
	}
}

func TestCollapseValues(t *testing.T) {
	if got := collapseValues(nil); got != nil {
		t.Errorf("collapseValues(nil) = %v, want nil", got)
	}
	if got := collapseValues(url.Values{}); got != nil {
		t.Errorf("collapseValues(empty) = %v, want nil", got)
	}

	got := collapseValues(url.Values{
		"q":      {"badgers"},
		"filter": {"recent", "mine"},
	})
	if got["q"] != "badgers" {
		t.Errorf("q = %v, want the collapsed string", got["q"])
	}
	if !reflect.DeepEqual(got["filter"], []string{"recent", "mine"}) {
		t.Errorf("filter = %v, want the full slice", got["filter"])
	}
}

func TestCGIData(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("User-Agent", "test-agent")
	r.Header.Set("Content-Type", "application/json")
	r.Header.Add("Accept", "application/json")
	r.Header.Add("Accept", "text/plain")
	r.Header.Set("Authorization", "Bearer token")
	r.Header.Set("Proxy-Authorization", "Basic abc")
	r.Header.Set("Cookie", "session=xyz")
	r.Header.Set("X-Api-Key", "hbp_live_secret")

	got := cgiData(r)

	if got["REQUEST_METHOD"] != "POST" {
		t.Errorf("REQUEST_METHOD = %q", got["REQUEST_METHOD"])
	}
	if got["REMOTE_ADDR"] == "" {
		t.Error("expected REMOTE_ADDR to be set")
	}
	if got["HTTP_USER_AGENT"] != "test-agent" {
		t.Errorf("HTTP_USER_AGENT = %q", got["HTTP_USER_AGENT"])
	}
	if got["HTTP_CONTENT_TYPE"] != "application/json" {
		t.Errorf("HTTP_CONTENT_TYPE = %q", got["HTTP_CONTENT_TYPE"])
	}
	if got["HTTP_ACCEPT"] != "application/json, text/plain" {
		t.Errorf("multi-valued header = %q, want comma join", got["HTTP_ACCEPT"])
	}

	for _, key := range []string{"HTTP_AUTHORIZATION", "HTTP_PROXY_AUTHORIZATION", "HTTP_COOKIE", "HTTP_X_API_KEY"} {
		if got[key] != redactedHeaderValue {
			t.Errorf("%s = %q, want redacted", key, got[key])
		}
	}
}
