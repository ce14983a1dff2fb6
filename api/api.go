// Package api exposes the analyzer over HTTP. A single POST endpoint
// runs checks, supported by a CSRF token handshake for browser clients,
// per-client rate limiting, CORS and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dnsbunch/dnsbunch/checker"
	"github.com/dnsbunch/dnsbunch/config"
)

// maxBodySize bounds a check request body.
const maxBodySize = 4 << 10

// Analyzer runs checks against a domain. Satisfied by *checker.Checker.
type Analyzer interface {
	Analyze(ctx context.Context, domain string, checks []string) (*checker.Report, error)
}

// Json is the generic response shape.
type Json map[string]any

// API is the HTTP front of the analyzer.
type API struct {
	cfg      *config.Config
	analyzer Analyzer

	csrf   *csrfStore
	limits *limiterStore
	group  singleflight.Group
	mux    *http.ServeMux

	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// New returns an API bound to cfg and the given analyzer.
func New(cfg *config.Config, analyzer Analyzer) *API {
	a := &API{
		cfg:      cfg,
		analyzer: analyzer,
		csrf:     newCSRFStore(cfg.CSRFTokenTTL.Duration),
		limits:   newLimiterStore(cfg.ClientRateLimit),
		mux:      http.NewServeMux(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dnsbunch_http_requests_total",
				Help: "How many HTTP requests processed",
			},
			[]string{"path", "code"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dnsbunch_analysis_duration_seconds",
				Help:    "Wall time of a full analysis",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
	}

	_ = prometheus.Register(a.requests)
	_ = prometheus.Register(a.duration)

	a.mux.HandleFunc("GET /{$}", a.health)
	a.mux.HandleFunc("GET /api/csrf-token", a.csrfToken)
	a.mux.HandleFunc("POST /api/check", a.check)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the full middleware chain, exported for tests.
func (a *API) Handler() http.Handler {
	return a.recoverer(a.cors(a.ratelimit(a.mux)))
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, Json{
		"status":  "ok",
		"version": a.cfg.ServerVersion(),
	})
}

func (a *API) csrfToken(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, r, http.StatusOK, Json{"token": a.csrf.Issue()})
}

// checkRequest is the POST /api/check body.
type checkRequest struct {
	Domain string   `json:"domain"`
	Checks []string `json:"checks,omitempty"`
}

func (a *API) check(w http.ResponseWriter, r *http.Request) {
	if !a.csrf.Validate(r.Header.Get("X-CSRF-Token")) {
		a.writeJSON(w, r, http.StatusForbidden, Json{"error": "missing or expired csrf token", "code": http.StatusForbidden})
		return
	}

	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		a.writeJSON(w, r, http.StatusBadRequest, Json{"error": "malformed request body", "code": http.StatusBadRequest})
		return
	}

	// Identical concurrent requests share one analysis run. The run is
	// detached from the request context, a collapsed caller hanging up
	// must not cancel the analysis for the others.
	key := collapseKey(req.Domain, req.Checks)

	start := time.Now()

	result, err, _ := a.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ReportTimeout.Duration)
		defer cancel()

		return a.analyzer.Analyze(ctx, req.Domain, req.Checks)
	})

	if err != nil {
		if errors.Is(err, checker.ErrInvalidDomain) {
			a.writeJSON(w, r, http.StatusBadRequest, Json{"error": err.Error(), "code": http.StatusBadRequest})
			return
		}

		zlog.Error("Analysis failed", "domain", req.Domain, "error", err.Error())
		a.writeJSON(w, r, http.StatusInternalServerError, Json{"error": "analysis failed", "code": http.StatusInternalServerError})
		return
	}

	a.duration.Observe(time.Since(start).Seconds())

	a.writeJSON(w, r, http.StatusOK, result)
}

func (a *API) writeJSON(w http.ResponseWriter, r *http.Request, code int, data any) {
	buf, err := json.Marshal(data)
	if err != nil {
		zlog.Error("Response marshal failed", "path", r.URL.Path, "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(buf)

	a.requests.With(prometheus.Labels{
		"path": r.URL.Path,
		"code": strconv.Itoa(code),
	}).Inc()
}

// collapseKey hashes domain plus requested checks into a singleflight
// key.
func collapseKey(domain string, checks []string) string {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToLower(domain))
	for _, name := range checks {
		_, _ = h.WriteString("|")
		_, _ = h.WriteString(strings.ToLower(name))
	}

	return strconv.FormatUint(h.Sum64(), 16)
}

// Run starts the server and shuts it down when ctx is cancelled.
func (a *API) Run(ctx context.Context) {
	if a.cfg.Bind == "" {
		return
	}

	srv := &http.Server{
		Addr:    a.cfg.Bind,
		Handler: a.Handler(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Error("Start API server failed", "error", err.Error())
		}
	}()

	zlog.Info("API server listening...", "addr", a.cfg.Bind)

	go func() {
		<-ctx.Done()

		zlog.Info("API server stopping...", "addr", a.cfg.Bind)

		apiCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(apiCtx); err != nil {
			zlog.Error("Shutdown API server failed", "error", err.Error())
		}
	}()
}
