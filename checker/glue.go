package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dnsbunch/dnsbunch/util"
)

// checkGlue verifies that in-bailiwick nameservers carry glue at the
// parent. Without it resolvers chase a circular dependency.
func (a *analysis) checkGlue(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.nameservers(ctx)

	sc := subGlue(SubCheck{Name: "glue_records"}, a.domain, data)
	res.addCheck(sc)

	res.Records = data.parent.glueRecords()
	res.Count = len(data.parent.glue)

	if sc.Status == StatusError {
		res.addIssue("%s", sc.Message)
	}

	return res
}

// subGlue is the shared glue evaluation, used by both the glue check
// and the NS sub-check battery.
func subGlue(sc SubCheck, domain string, data *nsData) SubCheck {
	sc.Status = StatusPass

	var inBailiwick, missing []string
	for _, rec := range data.parent.Records {
		if !util.InBailiwick(rec.Host, domain) {
			continue
		}

		inBailiwick = append(inBailiwick, rec.Host)
		if len(data.parent.glue[rec.Host]) == 0 {
			missing = append(missing, rec.Host)
		}
	}

	switch {
	case len(data.parent.Records) == 0:
		sc.Status = StatusInfo
		sc.Message = "No parent delegation available, glue cannot be evaluated"
	case len(inBailiwick) == 0:
		sc.Message = "No in-bailiwick nameservers, glue records are not required"
	case len(missing) > 0:
		sc.Status = StatusError
		sc.Message = "In-bailiwick nameservers without glue at the parent: " + strings.Join(missing, ", ")
		sc.Records = missing
	default:
		sc.Message = fmt.Sprintf("All %d in-bailiwick nameservers have glue at the parent", len(inBailiwick))
		sc.Records = inBailiwick
	}

	return sc
}

// glueRecords exposes the parent additional-section addresses in a
// serializable shape.
func (d *delegation) glueRecords() map[string][]RecordAddr {
	if len(d.glue) == 0 {
		return nil
	}
	return d.glue
}
