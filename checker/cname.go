package checker

import (
	"context"
	"fmt"
	"sync"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// Common service labels probed for CNAMEs.
var cnameLabels = []string{"www", "mail", "ftp", "blog", "shop"}

// checkCNAME probes well known subdomains for aliases and rejects a
// CNAME at the apex, which RFC 2181 forbids next to SOA and NS.
func (a *analysis) checkCNAME(ctx context.Context) *CheckResult {
	res := newResult()

	entries := make(map[string]*CNAMEEntry)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, label := range cnameLabels {
		name := label + "." + a.domain

		g.Go(func() error {
			entry := a.cnameEntry(ctx, name)
			if entry == nil {
				return nil
			}

			mu.Lock()
			entries[label] = entry
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	res.Records = entries
	res.Count = len(entries)

	// Probe label order, not map order, keeps the issue list stable.
	for _, label := range cnameLabels {
		entry, ok := entries[label]
		if !ok || entry.Resolves {
			continue
		}
		res.demote(StatusWarning)
		res.addIssue("CNAME %s.%s points at %s which does not resolve", label, a.domain, entry.Target)
	}

	// Apex CNAME
	if apex := a.cnameEntry(ctx, a.domain); apex != nil {
		res.Status = StatusError
		res.addIssue("The domain apex is a CNAME to %s, forbidden by RFC 1912 as it conflicts with SOA and NS", apex.Target)
		res.addCheck(SubCheck{
			Name:    "apex_cname",
			Status:  StatusError,
			Message: "CNAME found at the zone apex",
			Records: apex,
		})
	}

	res.addCheck(SubCheck{
		Name:    "subdomain_cnames",
		Status:  StatusPass,
		Message: fmt.Sprintf("Found CNAME records on %d of %d probed subdomains", len(entries), len(cnameLabels)),
		Records: entries,
	})

	return res
}

// cnameEntry returns the alias at a name, nil when the name is not a
// CNAME.
func (a *analysis) cnameEntry(ctx context.Context, name string) *CNAMEEntry {
	rrs, err := a.c.res.Lookup(ctx, name, dns.TypeCNAME)
	if err != nil {
		return nil
	}

	for _, rr := range rrs {
		cname, ok := rr.(*dns.CNAME)
		if !ok || !equalFold(cname.Hdr.Name, name) {
			continue
		}

		entry := &CNAMEEntry{Target: trimDot(cname.Target), Status: StatusPass, Issues: []string{}}

		addrs := a.lookupAddrs(ctx, entry.Target)
		entry.Resolves = len(addrs) > 0
		if !entry.Resolves {
			entry.Status = StatusWarning
			entry.Issues = append(entry.Issues, "Target does not resolve to any address")
		}

		return entry
	}

	return nil
}
