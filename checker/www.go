package checker

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// maxCNAMEDepth bounds alias chasing before a loop is declared.
const maxCNAMEDepth = 10

// checkWWW resolves www.<domain>, following CNAME chains, and judges
// the final addresses.
func (a *analysis) checkWWW(ctx context.Context) *CheckResult {
	res := newResult()

	name := "www." + a.domain

	chain := []string{name}
	current := name

	for len(chain) <= maxCNAMEDepth {
		rrs, err := a.c.res.Lookup(ctx, current, dns.TypeCNAME)
		if err != nil {
			break
		}

		var target string
		for _, rr := range rrs {
			if cname, ok := rr.(*dns.CNAME); ok && equalFold(cname.Hdr.Name, current) {
				target = trimDot(cname.Target)
				break
			}
		}

		if target == "" {
			break
		}

		for _, seen := range chain {
			if seen == target {
				res.Status = StatusError
				res.Records = chain
				res.addIssue("CNAME chain for %s loops back to %s", name, target)
				return res
			}
		}

		chain = append(chain, target)
		current = target
	}

	if len(chain) > maxCNAMEDepth {
		res.Status = StatusError
		res.Records = chain
		res.addIssue("CNAME chain for %s exceeds %d hops", name, maxCNAMEDepth)
		return res
	}

	addrs := a.lookupAddrs(ctx, current)

	res.Records = addrs
	res.Count = len(addrs)

	if len(addrs) == 0 {
		res.Status = StatusWarning
		res.addIssue("%s does not resolve to any address", name)
		return res
	}

	if len(chain) > 1 {
		res.addCheck(SubCheck{
			Name:    "cname_chain",
			Status:  StatusPass,
			Message: fmt.Sprintf("%s reaches %s through %d aliases", name, current, len(chain)-1),
			Records: chain,
		})
	}

	var flagged []string
	for _, addr := range addrs {
		if isPrivateAddr(addr.Address) || isDocAddr(addr.Address) {
			flagged = append(flagged, addr.Address)
		}
	}

	sc := SubCheck{Name: "www_addresses", Status: StatusPass, Records: addrs}
	if len(flagged) > 0 {
		sc.Status = StatusWarning
		sc.Message = "www resolves to non-routable addresses: " + strings.Join(flagged, ", ")
		res.addIssue("%s", sc.Message)
	} else {
		sc.Message = fmt.Sprintf("%s resolves to %d addresses", name, len(addrs))
	}
	res.addCheck(sc)

	return res
}
