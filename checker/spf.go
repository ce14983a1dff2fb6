package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dnsbunch/dnsbunch/resolver"
	"github.com/miekg/dns"
)

// maxSPFLookups is the RFC 7208 limit on DNS-querying mechanisms.
const maxSPFLookups = 10

// checkSPF inspects the sender policy: exactly one v=spf1 record,
// terminated by an all mechanism, staying under the lookup limit.
func (a *analysis) checkSPF(ctx context.Context) *CheckResult {
	res := newResult()

	txts, err := a.lookupTXT(ctx, a.domain)
	if err != nil && !resolver.IsNegative(err) {
		res.Status = StatusError
		res.addIssue("%s", lookupIssue("TXT", err))
		return res
	}

	var spf []string
	for _, txt := range txts {
		if isSPFRecord(txt) {
			spf = append(spf, txt)
		}
	}

	res.Records = spf
	res.Count = len(spf)

	switch len(spf) {
	case 0:
		res.Status = StatusInfo
		res.addIssue("No SPF record found, receivers cannot verify sending hosts")
		return res
	case 1:
		res.addCheck(SubCheck{Name: "spf_record", Status: StatusPass, Message: "Found one SPF record", Records: spf[0]})
	default:
		res.addCheck(SubCheck{
			Name:    "spf_record",
			Status:  StatusWarning,
			Message: fmt.Sprintf("Found %d SPF records, RFC 7208 permits exactly one", len(spf)),
			Records: spf,
		})
		res.addIssue("Multiple SPF records found, receivers treat this as a permanent error")
	}

	record := spf[0]

	res.addCheck(subSPFAll(record))

	lookups := countSPFLookups(record)
	res.DNSLookups = &lookups

	sc := SubCheck{Name: "spf_dns_lookups", Status: StatusPass, Records: lookups}
	if lookups > maxSPFLookups {
		sc.Status = StatusWarning
		sc.Message = fmt.Sprintf("SPF record needs %d DNS lookups, RFC 7208 allows at most %d", lookups, maxSPFLookups)
	} else {
		sc.Message = fmt.Sprintf("SPF record needs %d of %d allowed DNS lookups", lookups, maxSPFLookups)
	}
	res.addCheck(sc)

	if hasSPFMechanism(record, "ptr") {
		res.addCheck(SubCheck{
			Name:    "spf_ptr_mechanism",
			Status:  StatusWarning,
			Message: "SPF uses the ptr mechanism, deprecated by RFC 7208",
		})
	}

	for _, sc := range res.Checks {
		if sc.Status != StatusPass && sc.Status != StatusInfo && sc.Message != "" && !contains(res.Issues, sc.Message) {
			res.addIssue("%s", sc.Message)
		}
	}

	return res
}

// subSPFAll requires the record to end in an all mechanism, otherwise
// the policy silently defaults to neutral.
func subSPFAll(record string) SubCheck {
	sc := SubCheck{Name: "spf_all_mechanism", Status: StatusPass}

	terms := strings.Fields(record)
	if len(terms) == 0 {
		sc.Status = StatusWarning
		sc.Message = "SPF record is empty"
		return sc
	}

	last := strings.ToLower(terms[len(terms)-1])
	switch last {
	case "-all", "~all", "?all", "+all", "all":
		sc.Message = "SPF record is terminated by " + last
		if last == "+all" || last == "all" {
			sc.Status = StatusWarning
			sc.Message = "SPF record ends in " + last + ", which authorizes every host on the internet"
		}
	default:
		if strings.HasPrefix(last, "redirect=") {
			sc.Message = "SPF record delegates via " + last
		} else {
			sc.Status = StatusWarning
			sc.Message = "SPF record does not end with an all mechanism, the policy is incomplete"
		}
	}

	return sc
}

// isSPFRecord matches the RFC 7208 version tag, which must be the whole
// first term, so v=spf10 is not SPF.
func isSPFRecord(txt string) bool {
	s := strings.ToLower(strings.TrimSpace(txt))
	return s == "v=spf1" || strings.HasPrefix(s, "v=spf1 ")
}

// countSPFLookups counts the mechanisms that trigger a DNS query per
// RFC 7208 section 4.6.4.
func countSPFLookups(record string) int {
	count := 0

	for _, term := range strings.Fields(record) {
		term = strings.ToLower(strings.TrimLeft(term, "+-~?"))

		switch {
		case term == "a", term == "mx", term == "ptr":
			count++
		case strings.HasPrefix(term, "a:"),
			strings.HasPrefix(term, "mx:"),
			strings.HasPrefix(term, "ptr:"),
			strings.HasPrefix(term, "include:"),
			strings.HasPrefix(term, "exists:"),
			strings.HasPrefix(term, "redirect="):
			count++
		}
	}

	return count
}

// hasSPFMechanism reports whether the record uses the named mechanism.
func hasSPFMechanism(record, name string) bool {
	for _, term := range strings.Fields(record) {
		term = strings.ToLower(strings.TrimLeft(term, "+-~?"))
		if term == name || strings.HasPrefix(term, name+":") {
			return true
		}
	}
	return false
}

// lookupTXT fetches and joins the TXT strings at a name.
func (a *analysis) lookupTXT(ctx context.Context, name string) ([]string, error) {
	rrs, err := a.c.res.Lookup(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rr := range rrs {
		if txt, ok := rr.(*dns.TXT); ok {
			out = append(out, strings.Join(txt.Txt, ""))
		}
	}

	return out, nil
}
