package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsbunch/dnsbunch/checker"
	"github.com/dnsbunch/dnsbunch/config"
)

// fakeAnalyzer returns canned reports and counts invocations.
type fakeAnalyzer struct {
	calls atomic.Int64
	delay time.Duration
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, domain string, checks []string) (*checker.Report, error) {
	f.calls.Add(1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if domain == "" || strings.Contains(domain, "..") {
		return nil, fmt.Errorf("%w: %q", checker.ErrInvalidDomain, domain)
	}

	report := &checker.Report{
		Domain:    domain,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    "completed",
		Checks:    checker.NewOrderedChecks(),
	}

	return report, nil
}

func testAPI(t *testing.T) (*API, *fakeAnalyzer, *httptest.Server) {
	t.Helper()

	cfg := config.New()
	cfg.CORSOrigins = []string{"http://localhost:3000"}

	analyzer := new(fakeAnalyzer)
	a := New(cfg, analyzer)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return a, analyzer, srv
}

func fetchToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	resp, err := http.Get(srv.URL + "/api/csrf-token")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["token"])

	return body["token"]
}

func postCheck(t *testing.T, srv *httptest.Server, token, payload string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/check", strings.NewReader(payload))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	return resp
}

func TestHealth(t *testing.T) {
	_, _, srv := testAPI(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCheckFlow(t *testing.T) {
	_, analyzer, srv := testAPI(t)

	token := fetchToken(t, srv)

	resp := postCheck(t, srv, token, `{"domain":"example.com"}`)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report checker.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "example.com", report.Domain)
	assert.Equal(t, int64(1), analyzer.calls.Load())
}

func TestCheckRequiresCSRF(t *testing.T) {
	_, analyzer, srv := testAPI(t)

	resp := postCheck(t, srv, "", `{"domain":"example.com"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, analyzer.calls.Load())

	resp = postCheck(t, srv, "bogus-token", `{"domain":"example.com"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckInvalidDomain(t *testing.T) {
	_, _, srv := testAPI(t)

	token := fetchToken(t, srv)

	resp := postCheck(t, srv, token, `{"domain":"bad..domain"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckMalformedBody(t *testing.T) {
	_, _, srv := testAPI(t)

	token := fetchToken(t, srv)

	resp := postCheck(t, srv, token, `{"domain": `)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	_, _, srv := testAPI(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/check", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), "X-CSRF-Token")
}

func TestCORSDisallowedOrigin(t *testing.T) {
	_, _, srv := testAPI(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, srv := testAPI(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLimiterStore(t *testing.T) {
	s := newLimiterStore(3)

	for i := 0; i < 3; i++ {
		assert.True(t, s.allow("203.0.113.7"), i)
	}
	assert.False(t, s.allow("203.0.113.7"))

	// Another client has its own budget.
	assert.True(t, s.allow("203.0.113.8"))

	// Zero disables limiting.
	open := newLimiterStore(0)
	for i := 0; i < 100; i++ {
		assert.True(t, open.allow("203.0.113.7"))
	}
}

func TestCSRFStoreExpiry(t *testing.T) {
	s := newCSRFStore(30 * time.Millisecond)

	token := s.Issue()
	assert.True(t, s.Validate(token))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, s.Validate(token))

	assert.False(t, s.Validate(""))
	assert.False(t, s.Validate("never-issued"))
}

func TestCollapseKey(t *testing.T) {
	assert.Equal(t, collapseKey("example.com", nil), collapseKey("EXAMPLE.com", nil))
	assert.Equal(t, collapseKey("example.com", []string{"ns"}), collapseKey("example.com", []string{"NS"}))
	assert.NotEqual(t, collapseKey("example.com", nil), collapseKey("example.org", nil))
	assert.NotEqual(t, collapseKey("example.com", []string{"ns"}), collapseKey("example.com", []string{"soa"}))
}

// blockingAnalyzer holds the analysis until released and records whether
// its context outlived the client.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
	ctxErr  error
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, domain string, checks []string) (*checker.Report, error) {
	close(b.started)
	<-b.release
	b.ctxErr = ctx.Err()

	return &checker.Report{Domain: domain, Checks: checker.NewOrderedChecks()}, nil
}

func TestCheckDetachedFromClient(t *testing.T) {
	cfg := config.New()
	analyzer := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	a := New(cfg, analyzer)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/check", strings.NewReader(`{"domain":"example.com"}`))
	req = req.WithContext(reqCtx)
	req.Header.Set("X-CSRF-Token", a.csrf.Issue())

	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Handler().ServeHTTP(w, req)
	}()

	// The client hangs up mid-analysis, the shared run keeps going.
	<-analyzer.started
	cancelReq()
	close(analyzer.release)
	<-done

	assert.NoError(t, analyzer.ctxErr)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunShutdown(t *testing.T) {
	cfg := config.New()
	cfg.Bind = "127.0.0.1:0"

	a := New(cfg, new(fakeAnalyzer))

	ctx, cancel := context.WithCancel(context.Background())
	a.Run(ctx)
	cancel()

	time.Sleep(50 * time.Millisecond)
}
