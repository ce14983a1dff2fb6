package checker

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dnsbunch/dnsbunch/resolver"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// analysis carries the request-scoped state shared between checkers.
// Prerequisite results (NS for glue/axfr, MX for ptr) are computed once
// and reused whether or not the prerequisite check was requested, the
// top level report still only contains requested checks.
type analysis struct {
	c      *Checker
	domain string

	nsOnce sync.Once
	ns     *nsData

	mxOnce sync.Once
	mx     *mxData

	wcOnce sync.Once
	wc     *wildcardData
}

// nsData is the shared nameserver picture of the domain.
type nsData struct {
	parent   *delegation
	domainNS []NSRecord
	merged   []NSRecord
	badClass []string
	err      error
}

// mxData is the shared mail exchange set, sorted by priority.
type mxData struct {
	records []MXRecord
	err     error
}

// wildcardData is the result of probing a random nonexistent subdomain.
type wildcardData struct {
	label string
	addrs []string
}

// nameservers runs the parent delegation probe and the recursive NS
// lookup once per request.
func (a *analysis) nameservers(ctx context.Context) *nsData {
	a.nsOnce.Do(func() {
		a.ns = a.lookupNameservers(ctx)
	})

	return a.ns
}

func (a *analysis) lookupNameservers(ctx context.Context) *nsData {
	data := &nsData{parent: a.parentDelegation(ctx)}

	rrs, err := a.c.res.Lookup(ctx, a.domain, dns.TypeNS)
	if err != nil {
		data.err = err
	}

	for _, rr := range rrs {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}

		if ns.Hdr.Class != dns.ClassINET {
			data.badClass = append(data.badClass, trimDot(ns.Ns))
		}

		data.domainNS = append(data.domainNS, NSRecord{
			Host:   trimDot(ns.Ns),
			TTL:    ns.Hdr.Ttl,
			Source: "domain",
		})
	}

	sort.Slice(data.domainNS, func(i, j int) bool {
		return data.domainNS[i].Host < data.domainNS[j].Host
	})

	a.resolveNSAddrs(ctx, data.domainNS)

	// Union with parent records listed first, a host appearing at both
	// sources keeps source parent.
	seen := make(map[string]bool)
	for _, rec := range data.parent.Records {
		if seen[rec.Host] {
			continue
		}
		seen[rec.Host] = true
		data.merged = append(data.merged, rec)
	}
	for _, rec := range data.domainNS {
		if seen[rec.Host] {
			continue
		}
		seen[rec.Host] = true
		data.merged = append(data.merged, rec)
	}

	return data
}

// resolveNSAddrs enriches nameserver records with their addresses,
// fanning out with the configured concurrency bound.
func (a *analysis) resolveNSAddrs(ctx context.Context, records []NSRecord) {
	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for i := range records {
		g.Go(func() error {
			records[i].IPs = a.lookupAddrs(ctx, records[i].Host)
			return nil
		})
	}

	_ = g.Wait()
}

// mailExchanges fetches and resolves the MX set once per request.
func (a *analysis) mailExchanges(ctx context.Context) *mxData {
	a.mxOnce.Do(func() {
		a.mx = a.lookupMailExchanges(ctx)
	})

	return a.mx
}

func (a *analysis) lookupMailExchanges(ctx context.Context) *mxData {
	data := new(mxData)

	rrs, err := a.c.res.Lookup(ctx, a.domain, dns.TypeMX)
	if err != nil {
		data.err = err
		return data
	}

	for _, rr := range rrs {
		mx, ok := rr.(*dns.MX)
		if !ok {
			continue
		}

		data.records = append(data.records, MXRecord{
			Host:     trimDot(mx.Mx),
			Priority: mx.Preference,
		})
	}

	// Ascending priority, stable so equal priorities keep answer order.
	sort.SliceStable(data.records, func(i, j int) bool {
		return data.records[i].Priority < data.records[j].Priority
	})

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for i := range data.records {
		g.Go(func() error {
			data.records[i].IPs = a.lookupAddrs(ctx, data.records[i].Host)
			return nil
		})
	}

	_ = g.Wait()

	return data
}

// wildcardProbe queries a deliberately random nonexistent subdomain for
// A and AAAA, shared between the wildcard and domain status checks.
func (a *analysis) wildcardProbe(ctx context.Context) *wildcardData {
	a.wcOnce.Do(func() {
		a.wc = &wildcardData{label: randomLabel() + "." + a.domain}

		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			addrs, err := a.c.res.LookupAddrs(ctx, a.wc.label, qtype)
			if err != nil {
				continue
			}
			a.wc.addrs = append(a.wc.addrs, addrs...)
		}
	})

	return a.wc
}

// lookupAddrs resolves both address families for a host, tolerating
// per-family failures.
func (a *analysis) lookupAddrs(ctx context.Context, host string) []RecordAddr {
	var out []RecordAddr

	if addrs, err := a.c.res.LookupAddrs(ctx, host, dns.TypeA); err == nil {
		for _, addr := range addrs {
			out = append(out, RecordAddr{Kind: "v4", Address: addr})
		}
	}

	if addrs, err := a.c.res.LookupAddrs(ctx, host, dns.TypeAAAA); err == nil {
		for _, addr := range addrs {
			out = append(out, RecordAddr{Kind: "v6", Address: addr})
		}
	}

	return out
}

// directed sends a query straight to an authoritative server IP using
// the configured query port.
func (a *analysis) directed(ctx context.Context, ip, qname string, qtype uint16, recursive bool) (*dns.Msg, error) {
	server := ip
	if _, _, err := net.SplitHostPort(ip); err != nil {
		server = net.JoinHostPort(ip, strconv.Itoa(a.c.cfg.QueryPort))
	}

	return a.c.res.QueryAt(ctx, server, qname, qtype, recursive)
}

// lookupIssue renders a lookup failure as a report issue.
func lookupIssue(what string, err error) string {
	switch resolver.KindOf(err) {
	case resolver.KindNXDomain:
		return what + " lookup failed: NXDOMAIN, the name does not exist"
	case resolver.KindNoData:
		return "No " + what + " records found"
	case resolver.KindTimeout:
		return what + " lookup timed out"
	case resolver.KindServfail:
		return what + " lookup failed with SERVFAIL"
	case resolver.KindRefused:
		return what + " lookup was refused"
	}

	return what + " lookup failed: " + err.Error()
}

func equalFold(a, b string) bool {
	return strings.EqualFold(trimDot(a), trimDot(b))
}
