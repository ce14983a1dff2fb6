package checker

import (
	"context"
	"math/rand"
	"strings"
)

const randomLabelLen = 16

// randomLabel builds a label no real zone plausibly contains, so a
// positive answer proves wildcard synthesis.
func randomLabel() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	var sb strings.Builder
	sb.WriteString("dnsbunch-")
	for i := 0; i < randomLabelLen; i++ {
		sb.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}

	return sb.String()
}

// checkWildcard queries a random nonexistent subdomain. Any address in
// the answer means the zone synthesizes records for arbitrary names.
func (a *analysis) checkWildcard(ctx context.Context) *CheckResult {
	res := newResult()

	wc := a.wildcardProbe(ctx)

	has := len(wc.addrs) > 0
	res.HasWildcard = &has

	if has {
		res.Status = StatusWarning
		res.Records = wc.addrs
		res.Count = len(wc.addrs)
		res.addIssue("The zone has a wildcard, random subdomain %s resolved to %s",
			wc.label, strings.Join(wc.addrs, ", "))
		return res
	}

	res.addCheck(SubCheck{
		Name:    "no_wildcard",
		Status:  StatusPass,
		Message: "Random subdomain " + wc.label + " does not resolve, no wildcard detected",
	})

	return res
}
