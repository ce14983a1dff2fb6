package checker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// checkPTR reverse-resolves every mail exchange address and compares
// the PTR name against the exchange host. Entries carry their own
// status, the check itself never goes past warning since delivery
// works without matching reverse records at many receivers.
func (a *analysis) checkPTR(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.mailExchanges(ctx)
	if data.err != nil || len(data.records) == 0 {
		res.Status = StatusInfo
		res.addIssue("No MX records to reverse check")
		return res
	}

	var entries []PTRRecord
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, mx := range data.records {
		for _, addr := range v4Addrs(mx.IPs) {
			g.Go(func() error {
				entry := PTRRecord{IP: addr, MXHost: mx.Host, Status: StatusPass, Issues: []string{}}

				names, err := a.c.res.ReverseLookup(ctx, addr)
				switch {
				case err != nil || len(names) == 0:
					entry.Status = StatusError
					entry.Issues = append(entry.Issues, "No PTR record found")
				default:
					entry.PTR = trimDot(names[0])
					for _, name := range names {
						if equalFold(name, mx.Host) {
							entry.MatchesMX = true
							entry.PTR = trimDot(name)
							break
						}
					}
					if !entry.MatchesMX {
						entry.Status = StatusWarning
						entry.Issues = append(entry.Issues,
							fmt.Sprintf("PTR %s does not match MX host %s", entry.PTR, mx.Host))
					}
				}

				mu.Lock()
				entries = append(entries, entry)
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].MXHost != entries[j].MXHost {
			return entries[i].MXHost < entries[j].MXHost
		}
		return entries[i].IP < entries[j].IP
	})

	res.Records = entries
	res.Count = len(entries)

	if len(entries) == 0 {
		res.Status = StatusInfo
		res.addIssue("MX targets have no IPv4 addresses to reverse check")
		return res
	}

	for _, entry := range entries {
		if entry.Status == StatusPass {
			continue
		}

		// Missing or mismatched reverse records degrade deliverability
		// but do not break DNS, cap the check at warning.
		res.demote(StatusWarning)
		for _, issue := range entry.Issues {
			res.addIssue("%s: %s", entry.IP, issue)
		}
	}

	return res
}
