// Package checker implements the DNS health analysis engine. Given a
// registered domain it probes the public DNS hierarchy and produces a
// structured report on delegation, authority records, mail setup,
// security posture and zone transfer exposure.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dnsbunch/dnsbunch/config"
	"github.com/dnsbunch/dnsbunch/resolver"
	"github.com/dnsbunch/dnsbunch/tld"
	"github.com/dnsbunch/dnsbunch/util"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidDomain rejects malformed input before any check runs. It is
// the only error Analyze returns.
var ErrInvalidDomain = errors.New("invalid domain name")

// checkOrder is the canonical declaration order. Reports always list
// checks in this order, never in completion order.
var checkOrder = []string{
	"ns", "soa", "a", "aaaa", "mx", "spf", "txt", "cname", "ptr",
	"caa", "dmarc", "dkim", "glue", "dnssec", "axfr", "wildcard",
	"www", "domain_status",
}

type checkFunc func(*analysis, context.Context) *CheckResult

var checkFuncs = map[string]checkFunc{
	"ns":            (*analysis).checkNS,
	"soa":           (*analysis).checkSOA,
	"a":             (*analysis).checkA,
	"aaaa":          (*analysis).checkAAAA,
	"mx":            (*analysis).checkMX,
	"spf":           (*analysis).checkSPF,
	"txt":           (*analysis).checkTXT,
	"cname":         (*analysis).checkCNAME,
	"ptr":           (*analysis).checkPTR,
	"caa":           (*analysis).checkCAA,
	"dmarc":         (*analysis).checkDMARC,
	"dkim":          (*analysis).checkDKIM,
	"glue":          (*analysis).checkGlue,
	"dnssec":        (*analysis).checkDNSSEC,
	"axfr":          (*analysis).checkAXFR,
	"wildcard":      (*analysis).checkWildcard,
	"www":           (*analysis).checkWWW,
	"domain_status": (*analysis).checkDomainStatus,
}

// KnownChecks returns the canonical check names in run order.
func KnownChecks() []string {
	out := make([]string, len(checkOrder))
	copy(out, checkOrder)
	return out
}

// Checker is the analysis engine. It holds no per-request state and is
// safe for concurrent Analyze calls, instances share only the resolver
// and the immutable TLD registry.
type Checker struct {
	cfg      *config.Config
	res      *resolver.Resolver
	registry *tld.Registry
}

// New returns a checker using cfg for timeouts and upstreams and the
// given TLD registry for parent delegation probes.
func New(cfg *config.Config, registry *tld.Registry) *Checker {
	return &Checker{
		cfg:      cfg,
		res:      resolver.New(cfg.Upstreams, cfg.QueryTimeout.Duration),
		registry: registry,
	}
}

// Analyze runs the requested checks against domain and returns the
// report. An empty check list means all checks. Unknown check names are
// silently dropped. Only invalid input returns an error, every other
// failure is folded into the report.
func (c *Checker) Analyze(ctx context.Context, domain string, checks []string) (*Report, error) {
	domain = util.NormalizeDomain(domain)
	if !util.ValidDomain(domain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}

	requested, subset := selectChecks(checks)

	timeout := c.cfg.ReportTimeout.Duration
	if subset {
		timeout = c.cfg.SubsetTimeout.Duration
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	zlog.Info("Analysis started", "domain", domain, "checks", len(requested))

	a := &analysis{c: c, domain: domain}

	results := make([]*CheckResult, len(requested))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.MaxConcurrency)

	for i, name := range requested {
		g.Go(func() error {
			results[i] = a.runCheck(ctx, name)
			return nil
		})
	}

	_ = g.Wait()

	report := &Report{
		Domain:    domain,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    "completed",
		Checks:    NewOrderedChecks(),
	}

	for i, name := range requested {
		report.Checks.Set(name, results[i])

		report.Summary.Total++
		switch results[i].Status {
		case StatusPass:
			report.Summary.Passed++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		case StatusInfo:
			report.Summary.Info++
		}
	}

	zlog.Info("Analysis completed", "domain", domain,
		"total", report.Summary.Total, "errors", report.Summary.Errors,
		"warnings", report.Summary.Warnings)

	return report, nil
}

// runCheck executes one checker with its own deadline, converting a
// panic into an error result so other checks continue.
func (a *analysis) runCheck(ctx context.Context, name string) (res *CheckResult) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			zlog.Error("Check panicked", "domain", a.domain, "check", name, "recover", rec)
			res = errorResult("%s check failed: %v", name, rec)
		}

		zlog.Debug("Check completed", "domain", a.domain, "check", name,
			"status", string(res.Status), "elapsed", time.Since(start).String())
	}()

	cctx, cancel := context.WithTimeout(ctx, a.c.cfg.CheckTimeout.Duration)
	defer cancel()

	res = checkFuncs[name](a, cctx)
	if res == nil {
		res = errorResult("%s check returned no result", name)
	}

	if res.Issues == nil {
		res.Issues = []string{}
	}

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		res.addIssue("Check deadline exceeded, results may be partial")
	}

	return res
}

// selectChecks validates the requested set against the canonical list,
// keeping declaration order. The bool reports whether a proper subset
// was requested.
func selectChecks(checks []string) ([]string, bool) {
	if len(checks) == 0 {
		return KnownChecks(), false
	}

	want := make(map[string]bool, len(checks))
	for _, name := range checks {
		name = util.NormalizeDomain(name)
		if name == "all" {
			return KnownChecks(), false
		}
		want[name] = true
	}

	var out []string
	for _, name := range checkOrder {
		if want[name] {
			out = append(out, name)
		}
	}

	return out, len(out) < len(checkOrder)
}
