package checker

import (
	"context"
	"fmt"

	"github.com/dnsbunch/dnsbunch/resolver"
	"github.com/miekg/dns"
)

// checkA expects address records at the zone apex and on the www label.
// A domain without them is unusual but not broken, so absence is a
// warning.
func (a *analysis) checkA(ctx context.Context) *CheckResult {
	res := newResult()

	addrs, err := a.c.res.LookupAddrs(ctx, a.domain, dns.TypeA)
	if err != nil && !resolver.IsNegative(err) {
		res.Status = StatusError
		res.addIssue("%s", lookupIssue("A", err))
		return res
	}

	records := make([]RecordAddr, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, RecordAddr{Kind: "v4", Address: addr})
	}

	res.Records = records
	res.Count = len(records)

	apex := SubCheck{Name: "a_records", Status: StatusPass, Records: records}
	if len(records) == 0 {
		apex.Status = StatusWarning
		apex.Message = "No A records found at the domain apex"
		res.demote(StatusWarning)
		res.addIssue("%s", apex.Message)
	} else {
		apex.Message = fmt.Sprintf("Found %d A records", len(records))
	}
	res.addCheck(apex)

	for _, addr := range addrs {
		if isPrivateAddr(addr) {
			res.demote(StatusWarning)
			res.addIssue("A record points at private or reserved address %s", addr)
		}
	}

	www := a.subWWWAddrs(ctx, dns.TypeA)
	res.addCheck(www)
	if www.Status == StatusWarning {
		res.demote(StatusWarning)
		res.addIssue("%s", www.Message)
	}

	return res
}

// checkAAAA treats IPv6 as optional, absence at the apex or on www is
// informational only.
func (a *analysis) checkAAAA(ctx context.Context) *CheckResult {
	res := newResult()

	addrs, err := a.c.res.LookupAddrs(ctx, a.domain, dns.TypeAAAA)
	if err != nil && !resolver.IsNegative(err) {
		res.Status = StatusError
		res.addIssue("%s", lookupIssue("AAAA", err))
		return res
	}

	records := make([]RecordAddr, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, RecordAddr{Kind: "v6", Address: addr})
	}

	res.Records = records
	res.Count = len(records)

	apex := SubCheck{Name: "aaaa_records", Status: StatusPass, Records: records}
	if len(records) == 0 {
		apex.Status = StatusInfo
		apex.Message = "No AAAA records found, the domain is not reachable over IPv6"
		res.Status = StatusInfo
		res.addIssue("%s", apex.Message)
	} else {
		apex.Message = fmt.Sprintf("Found %d AAAA records", len(records))
	}
	res.addCheck(apex)

	for _, addr := range addrs {
		if isPrivateAddr(addr) {
			res.demote(StatusWarning)
			res.addIssue("AAAA record points at private or reserved address %s", addr)
		}
	}

	res.addCheck(a.subWWWAddrs(ctx, dns.TypeAAAA))

	return res
}

// subWWWAddrs probes the www label, almost every web domain is expected
// to serve it over IPv4. Missing IPv6 on www stays informational.
func (a *analysis) subWWWAddrs(ctx context.Context, qtype uint16) SubCheck {
	name, kind := "www_a_records", "A"
	if qtype == dns.TypeAAAA {
		name, kind = "www_aaaa_records", "AAAA"
	}

	sc := SubCheck{Name: name, Status: StatusPass}

	addrs, err := a.c.res.LookupAddrs(ctx, "www."+a.domain, qtype)
	if err != nil || len(addrs) == 0 {
		if qtype == dns.TypeA {
			sc.Status = StatusWarning
			sc.Message = "No A record for www subdomain"
		} else {
			sc.Status = StatusInfo
			sc.Message = "No AAAA record for www subdomain"
		}
		return sc
	}

	sc.Message = fmt.Sprintf("www resolves to %d %s records", len(addrs), kind)
	sc.Records = addrs

	return sc
}
