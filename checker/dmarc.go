package checker

import (
	"context"
	"strings"

	"github.com/dnsbunch/dnsbunch/resolver"
)

// checkDMARC reads the policy at _dmarc.<domain> and judges how much
// protection it actually provides.
func (a *analysis) checkDMARC(ctx context.Context) *CheckResult {
	res := newResult()

	txts, err := a.lookupTXT(ctx, "_dmarc."+a.domain)
	if err != nil && !resolver.IsNegative(err) {
		res.Status = StatusError
		res.addIssue("%s", lookupIssue("DMARC", err))
		return res
	}

	var record string
	for _, txt := range txts {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(txt)), "v=dmarc1") {
			record = txt
			break
		}
	}

	if record == "" {
		res.Status = StatusWarning
		res.addIssue("No DMARC record found at _dmarc.%s", a.domain)
		return res
	}

	res.Record = record

	tags := parseDMARC(record)

	switch tags["p"] {
	case "none":
		res.addCheck(SubCheck{
			Name:    "dmarc_policy",
			Status:  StatusWarning,
			Message: "DMARC policy is p=none, failures are only monitored, never acted on",
			Records: tags["p"],
		})
	case "quarantine", "reject":
		res.addCheck(SubCheck{
			Name:    "dmarc_policy",
			Status:  StatusPass,
			Message: "DMARC policy p=" + tags["p"] + " enforces authentication failures",
			Records: tags["p"],
		})
	default:
		res.addCheck(SubCheck{
			Name:    "dmarc_policy",
			Status:  StatusWarning,
			Message: "DMARC record is missing a valid p tag",
		})
	}

	if tags["rua"] == "" {
		res.addIssue("DMARC record has no rua tag, aggregate reports go nowhere")
		res.demote(StatusWarning)
	}

	for _, sc := range res.Checks {
		if sc.Status == StatusWarning && sc.Message != "" {
			res.addIssue("%s", sc.Message)
		}
	}

	return res
}

// parseDMARC splits a DMARC record into its tag=value pairs.
func parseDMARC(record string) map[string]string {
	tags := make(map[string]string)

	for _, part := range strings.Split(record, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, found := strings.Cut(part, "=")
		if !found {
			continue
		}

		tags[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	return tags
}
