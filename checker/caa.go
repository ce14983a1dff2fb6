package checker

import (
	"context"
	"fmt"

	"github.com/dnsbunch/dnsbunch/resolver"
	"github.com/miekg/dns"
)

// checkCAA looks for certification authority authorizations. Without
// them every CA may issue for the domain, which is worth flagging.
func (a *analysis) checkCAA(ctx context.Context) *CheckResult {
	res := newResult()

	rrs, err := a.c.res.Lookup(ctx, a.domain, dns.TypeCAA)
	if err != nil {
		if resolver.IsNegative(err) {
			res.Status = StatusWarning
			res.addIssue("No CAA records found, any certificate authority may issue for this domain")
		} else {
			res.Status = StatusError
			res.addIssue("%s", lookupIssue("CAA", err))
		}
		return res
	}

	var records []CAARecord
	for _, rr := range rrs {
		if caa, ok := rr.(*dns.CAA); ok {
			records = append(records, CAARecord{Flag: caa.Flag, Tag: caa.Tag, Value: caa.Value})
		}
	}

	res.Records = records
	res.Count = len(records)

	if len(records) == 0 {
		res.Status = StatusWarning
		res.addIssue("No CAA records found, any certificate authority may issue for this domain")
		return res
	}

	var issuers int
	for _, rec := range records {
		if rec.Tag == "issue" || rec.Tag == "issuewild" {
			issuers++
		}
	}

	sc := SubCheck{Name: "caa_records", Status: StatusPass, Records: records}
	if issuers == 0 {
		sc.Status = StatusWarning
		sc.Message = "CAA records exist but none carries an issue or issuewild tag"
	} else {
		sc.Message = fmt.Sprintf("Found %d CAA records restricting certificate issuance", len(records))
	}
	res.addCheck(sc)

	if sc.Status == StatusWarning {
		res.addIssue("%s", sc.Message)
	}

	return res
}
