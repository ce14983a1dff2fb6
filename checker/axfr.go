package checker

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// checkAXFR attempts a zone transfer against every nameserver. Any
// server handing out the zone leaks the full record inventory.
func (a *analysis) checkAXFR(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.nameservers(ctx)

	type attempt struct {
		Host    string `json:"host"`
		IP      string `json:"ip"`
		Allowed bool   `json:"allowed"`
		Records int    `json:"records,omitempty"`
	}

	var attempts []attempt
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, rec := range data.merged {
		for _, ip := range v4Addrs(rec.IPs) {
			g.Go(func() error {
				server := ip
				if _, _, err := net.SplitHostPort(ip); err != nil {
					server = net.JoinHostPort(ip, strconv.Itoa(a.c.cfg.QueryPort))
				}

				rrs, err := a.c.res.Transfer(ctx, server, a.domain)

				mu.Lock()
				attempts = append(attempts, attempt{
					Host:    rec.Host,
					IP:      ip,
					Allowed: err == nil,
					Records: len(rrs),
				})
				mu.Unlock()
				return nil
			})
		}
	}

	_ = g.Wait()

	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].Host != attempts[j].Host {
			return attempts[i].Host < attempts[j].Host
		}
		return attempts[i].IP < attempts[j].IP
	})

	res.Records = attempts
	res.Count = len(attempts)

	if len(attempts) == 0 {
		res.Status = StatusInfo
		res.addIssue("No nameserver addresses available to test zone transfers")
		return res
	}

	var open []string
	for _, at := range attempts {
		if at.Allowed {
			open = append(open, fmt.Sprintf("%s (%s)", at.Host, at.IP))
		}
	}

	if len(open) > 0 {
		res.Status = StatusError
		for _, server := range open {
			res.addIssue("Nameserver %s allows zone transfers to anyone, the full zone contents are public", server)
		}
		return res
	}

	res.addCheck(SubCheck{
		Name:    "axfr_refused",
		Status:  StatusPass,
		Message: fmt.Sprintf("All %d nameserver addresses refuse zone transfers", len(attempts)),
	})

	return res
}
