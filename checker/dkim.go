package checker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// dkimSelectors are the selectors worth probing blind. DKIM keys live
// under <selector>._domainkey and selectors are not enumerable, so the
// check can only try the names mail providers commonly use.
var dkimSelectors = []string{
	"default", "selector1", "selector2", "google", "k1",
	"s1", "s2", "dkim", "mail", "email",
	"smtp", "mx", "key1", "key2",
}

// checkDKIM probes the common selector names for published keys.
func (a *analysis) checkDKIM(ctx context.Context) *CheckResult {
	res := newResult()

	found := make(map[string]string)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, selector := range dkimSelectors {
		name := selector + "._domainkey." + a.domain

		g.Go(func() error {
			txts, err := a.lookupTXT(ctx, name)
			if err != nil {
				return nil
			}

			for _, txt := range txts {
				if isDKIMKey(txt) {
					mu.Lock()
					found[selector] = txt
					mu.Unlock()
					return nil
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	res.Records = found
	res.Count = len(found)

	if len(found) == 0 {
		res.Status = StatusInfo
		res.addIssue("No DKIM keys found under the common selectors, the domain may use a custom selector")
		return res
	}

	selectors := make([]string, 0, len(found))
	for selector := range found {
		selectors = append(selectors, selector)
	}
	sort.Strings(selectors)

	res.addCheck(SubCheck{
		Name:    "dkim_selectors",
		Status:  StatusPass,
		Message: fmt.Sprintf("Found DKIM keys for selectors: %s", strings.Join(selectors, ", ")),
		Records: selectors,
	})

	return res
}

// isDKIMKey recognizes a DKIM key record by its p or k tag.
func isDKIMKey(txt string) bool {
	lower := strings.ToLower(txt)
	for _, part := range strings.Split(lower, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "p=") || strings.HasPrefix(part, "k=") || strings.HasPrefix(part, "v=dkim1") {
			return true
		}
	}
	return false
}
