package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dnsbunch/dnsbunch/resolver"
)

// checkTXT lists the apex TXT records and sorts them into rough
// categories so a reader can see what the zone publishes.
func (a *analysis) checkTXT(ctx context.Context) *CheckResult {
	res := newResult()

	txts, err := a.lookupTXT(ctx, a.domain)
	if err != nil {
		if resolver.IsNegative(err) {
			res.Status = StatusInfo
			res.addIssue("No TXT records found")
		} else {
			res.Status = StatusError
			res.addIssue("%s", lookupIssue("TXT", err))
		}
		return res
	}

	res.Records = txts
	res.Count = len(txts)

	if len(txts) == 0 {
		res.Status = StatusInfo
		res.addIssue("No TXT records found")
		return res
	}

	res.Categorized = categorizeTXT(txts)

	res.addCheck(SubCheck{
		Name:    "txt_records",
		Status:  StatusPass,
		Message: fmt.Sprintf("Found %d TXT records", len(txts)),
		Records: res.Categorized,
	})

	return res
}

// categorizeTXT buckets TXT strings by recognizable prefixes. Records
// that match nothing land in other.
func categorizeTXT(txts []string) map[string][]string {
	out := make(map[string][]string)

	for _, txt := range txts {
		lower := strings.ToLower(strings.TrimSpace(txt))

		switch {
		case strings.HasPrefix(lower, "v=spf1"):
			out["spf"] = append(out["spf"], txt)
		case strings.HasPrefix(lower, "v=dmarc1"):
			out["dmarc"] = append(out["dmarc"], txt)
		case strings.HasPrefix(lower, "v=dkim1"), strings.Contains(lower, "k=rsa"):
			out["dkim"] = append(out["dkim"], txt)
		case isVerificationTXT(lower):
			out["verification"] = append(out["verification"], txt)
		default:
			out["other"] = append(out["other"], txt)
		}
	}

	return out
}

// Site ownership proofs planted by common SaaS providers.
var verificationPrefixes = []string{
	"google-site-verification=",
	"ms=",
	"facebook-domain-verification=",
	"apple-domain-verification=",
	"stripe-verification=",
	"atlassian-domain-verification=",
	"docusign=",
	"_globalsign-domain-verification=",
	"keybase-site-verification=",
	"yandex-verification=",
}

func isVerificationTXT(lower string) bool {
	for _, prefix := range verificationPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
