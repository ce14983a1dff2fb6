package checker

import (
	"context"
	"fmt"

	"github.com/dnsbunch/dnsbunch/util"
	"github.com/miekg/dns"
)

// checkDNSSEC inspects the signing chain: DS at the parent, DNSKEY and
// RRSIG at the zone. An unsigned zone is a warning, a broken chain an
// error.
func (a *analysis) checkDNSSEC(ctx context.Context) *CheckResult {
	res := newResult()

	dsRecords := a.parentDS(ctx)

	sc := SubCheck{Name: "ds_records", Status: StatusPass, Records: dsRecords}
	if len(dsRecords) > 0 {
		sc.Message = fmt.Sprintf("Found %d DS records at the parent", len(dsRecords))
	} else {
		sc.Status = StatusInfo
		sc.Message = "No DS records at the parent"
	}
	res.addCheck(sc)

	var keys []GenericRecord
	var signed bool

	resp, err := a.c.res.LookupSecure(ctx, a.domain, dns.TypeDNSKEY)
	if err == nil {
		for _, rr := range resp.Answer {
			switch rr.(type) {
			case *dns.DNSKEY:
				keys = append(keys, GenericRecord{Type: "DNSKEY", Rdata: rr.String()})
			case *dns.RRSIG:
				signed = true
			}
		}
	}

	sc = SubCheck{Name: "dnskey_records", Status: StatusPass, Records: keys}
	if len(keys) > 0 {
		sc.Message = fmt.Sprintf("Found %d DNSKEY records", len(keys))
	} else {
		sc.Status = StatusInfo
		sc.Message = "No DNSKEY records found"
	}
	res.addCheck(sc)

	sc = SubCheck{Name: "rrsig_present", Status: StatusPass}
	if signed {
		sc.Message = "DNSKEY answers carry RRSIG signatures"
	} else {
		sc.Status = StatusInfo
		sc.Message = "No RRSIG signatures found"
	}
	res.addCheck(sc)

	switch {
	case len(dsRecords) > 0 && len(keys) > 0:
		res.Status = StatusPass
	case len(dsRecords) > 0 && len(keys) == 0:
		res.Status = StatusError
		res.addIssue("DS records exist at the parent but the zone serves no DNSKEY, validation fails")
	case len(dsRecords) == 0 && len(keys) > 0:
		res.Status = StatusWarning
		res.addIssue("The zone publishes DNSKEY records but the parent has no DS, the chain of trust is incomplete")
	default:
		res.Status = StatusWarning
		res.addIssue("DNSSEC is not enabled for this domain")
	}

	return res
}

// parentDS asks a TLD authority for the domain's DS records, which
// only the parent can serve.
func (a *analysis) parentDS(ctx context.Context) []GenericRecord {
	label := util.TLD(a.domain)

	_, ip, err := a.c.registry.PickAuthority(label)
	if err != nil {
		return nil
	}

	resp, err := a.directed(ctx, ip, a.domain, dns.TypeDS, false)
	if err != nil {
		return nil
	}

	var out []GenericRecord
	for _, rr := range append(resp.Answer, resp.Ns...) {
		if ds, ok := rr.(*dns.DS); ok && equalFold(ds.Hdr.Name, a.domain) {
			out = append(out, GenericRecord{Type: "DS", Rdata: ds.String()})
		}
	}

	return out
}
