package checker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dnsbunch/dnsbunch/util"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// RFC 1912 derived sanity ranges for SOA timers, in seconds.
const (
	soaRefreshMin = 3600
	soaRefreshMax = 86400
	soaRetryMin   = 1800
	soaRetryMax   = 7200
	soaExpireMin  = 604800
	soaExpireMax  = 2419200
	soaMinimumMin = 300
	soaMinimumMax = 86400
)

// checkSOA validates the SOA record fields and verifies every
// nameserver serves the same serial.
func (a *analysis) checkSOA(ctx context.Context) *CheckResult {
	res := newResult()

	rrs, err := a.c.res.Lookup(ctx, a.domain, dns.TypeSOA)
	if err != nil {
		res.Status = StatusError
		res.addIssue("%s", lookupIssue("SOA", err))
		return res
	}

	var soa *dns.SOA
	for _, rr := range rrs {
		if s, ok := rr.(*dns.SOA); ok {
			soa = s
			break
		}
	}

	if soa == nil {
		res.Status = StatusError
		res.addIssue("No SOA record found for the domain")
		return res
	}

	rec := soaFromRR(soa)
	res.Record = rec

	res.addCheck(SubCheck{
		Name:    "soa_record",
		Status:  StatusPass,
		Message: fmt.Sprintf("SOA record found, primary nameserver %s", rec.MName),
		Records: rec,
	})

	res.addCheck(subSOAMName(rec))
	res.addCheck(subSOATimer("refresh", rec.Refresh, soaRefreshMin, soaRefreshMax))
	res.addCheck(subSOARetry(rec))
	res.addCheck(subSOAExpire(rec))
	res.addCheck(subSOATimer("minimum", rec.Minimum, soaMinimumMin, soaMinimumMax))
	res.addCheck(a.subSerialAgreement(ctx))

	for _, sc := range res.Checks {
		if sc.Status != StatusPass && sc.Status != StatusInfo && sc.Message != "" {
			res.addIssue("%s", sc.Message)
		}
	}

	return res
}

// subSOAMName checks the primary nameserver field is a usable hostname.
func subSOAMName(rec SOARecord) SubCheck {
	sc := SubCheck{Name: "soa_mname_valid", Status: StatusPass}

	if !util.ValidHostname(rec.MName) {
		sc.Status = StatusError
		sc.Message = fmt.Sprintf("SOA primary nameserver %q is not a valid hostname", rec.MName)
		return sc
	}

	sc.Message = fmt.Sprintf("SOA primary nameserver %s is a valid hostname", rec.MName)
	return sc
}

// subSOATimer warns when a timer falls outside its recommended range.
func subSOATimer(field string, value, min, max uint32) SubCheck {
	sc := SubCheck{Name: "soa_" + field, Status: StatusPass, Records: value}

	switch {
	case value < min:
		sc.Status = StatusWarning
		sc.Message = fmt.Sprintf("SOA %s %d is below the recommended minimum of %d seconds", field, value, min)
	case value > max:
		sc.Status = StatusWarning
		sc.Message = fmt.Sprintf("SOA %s %d exceeds the recommended maximum of %d seconds", field, value, max)
	default:
		sc.Message = fmt.Sprintf("SOA %s of %d seconds is within the recommended range", field, value)
	}

	return sc
}

// subSOARetry folds the range check with retry < refresh.
func subSOARetry(rec SOARecord) SubCheck {
	sc := subSOATimer("retry", rec.Retry, soaRetryMin, soaRetryMax)

	if sc.Status == StatusPass && rec.Retry >= rec.Refresh {
		sc.Status = StatusWarning
		sc.Message = fmt.Sprintf("SOA retry %d should be lower than refresh %d", rec.Retry, rec.Refresh)
	}

	return sc
}

// subSOAExpire folds the range check with expire > refresh.
func subSOAExpire(rec SOARecord) SubCheck {
	sc := subSOATimer("expire", rec.Expire, soaExpireMin, soaExpireMax)

	if sc.Status == StatusPass && rec.Expire <= rec.Refresh {
		sc.Status = StatusWarning
		sc.Message = fmt.Sprintf("SOA expire %d should be higher than refresh %d", rec.Expire, rec.Refresh)
	}

	return sc
}

// subSerialAgreement queries every nameserver for the SOA serial. A
// disagreeing serial means zone transfers are lagging or broken.
func (a *analysis) subSerialAgreement(ctx context.Context) SubCheck {
	sc := SubCheck{Name: "soa_serial_agreement", Status: StatusPass}

	data := a.nameservers(ctx)

	serials := make(map[string]uint32)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, rec := range data.merged {
		addrs := v4Addrs(rec.IPs)
		if len(addrs) == 0 {
			continue
		}

		g.Go(func() error {
			resp, err := a.directed(ctx, addrs[0], a.domain, dns.TypeSOA, false)
			if err != nil {
				return nil
			}

			for _, rr := range append(resp.Answer, resp.Ns...) {
				if soa, ok := rr.(*dns.SOA); ok {
					mu.Lock()
					serials[rec.Host] = soa.Serial
					mu.Unlock()
					return nil
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	sc.Records = serials

	if len(serials) == 0 {
		sc.Status = StatusInfo
		sc.Message = "No nameserver answered a direct SOA query, serial agreement not verified"
		return sc
	}

	distinct := make(map[uint32][]string)
	for host, serial := range serials {
		distinct[serial] = append(distinct[serial], host)
	}

	if len(distinct) > 1 {
		var parts []string
		for serial, hosts := range distinct {
			sort.Strings(hosts)
			parts = append(parts, fmt.Sprintf("%d (%s)", serial, strings.Join(hosts, ", ")))
		}
		sort.Strings(parts)

		sc.Status = StatusError
		sc.Message = "Nameservers disagree on the SOA serial: " + strings.Join(parts, "; ")
		return sc
	}

	for serial := range distinct {
		sc.Message = fmt.Sprintf("All %d queried nameservers agree on serial %d", len(serials), serial)
	}

	return sc
}
