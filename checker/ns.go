package checker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dnsbunch/dnsbunch/util"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const (
	// maxRecursionProbes bounds the open-recursion test.
	maxRecursionProbes = 3

	// maxResponseProbes bounds the per-server SOA responsiveness test.
	maxResponseProbes = 10

	// openRecursionProbeName is an unrelated third party name a proper
	// authoritative-only server must not answer.
	openRecursionProbeName = "google.com"
)

// checkNS verifies the delegation chain: parent NS set, domain NS set,
// their agreement, and a battery of per-server sub-checks.
func (a *analysis) checkNS(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.nameservers(ctx)

	res.Records = data.merged
	res.Count = len(data.merged)
	res.ParentDelegation = data.parent

	parentHosts := sortedHosts(data.parent.Records)
	domainHosts := sortedHosts(data.domainNS)

	// parent_delegation
	sc := SubCheck{Name: "parent_delegation", Status: data.parent.Status, Records: data.parent.Records}
	if len(data.parent.Records) > 0 {
		sc.Message = fmt.Sprintf("Parent server %s returned %d NS records", data.parent.TLDServer, len(data.parent.Records))
	} else {
		sc.Status = StatusError
		sc.Message = "No NS records obtained from the parent zone"
		res.Issues = append(res.Issues, data.parent.Issues...)
	}
	res.addCheck(sc)

	// domain_nameservers
	sc = SubCheck{Name: "domain_nameservers", Status: StatusPass, Records: data.domainNS}
	switch {
	case data.err != nil:
		sc.Status = StatusError
		sc.Message = lookupIssue("NS", data.err)
		res.addIssue("%s", sc.Message)
	case len(data.domainNS) == 0:
		sc.Status = StatusError
		sc.Message = "The domain returned no NS records"
		res.addIssue("%s", sc.Message)
	default:
		sc.Message = fmt.Sprintf("Found %d NS records at the domain nameservers", len(data.domainNS))
	}
	res.addCheck(sc)

	// comparison
	match := len(parentHosts) > 0 && slicesEqual(parentHosts, domainHosts)
	res.Comparisons = &NSComparison{Match: match, Parent: parentHosts, Domain: domainHosts}

	sc = SubCheck{Name: "comparison", Status: StatusPass, Records: res.Comparisons}
	if match {
		sc.Message = "Parent and domain NS records are in agreement"
	} else {
		sc.Status = StatusError
		sc.Message = "Parent and domain NS records do not match"
		res.addIssue("NS records at the parent and at the domain nameservers differ")
	}
	res.addCheck(sc)

	if !match {
		if missing := difference(parentHosts, domainHosts); len(missing) > 0 {
			res.addCheck(SubCheck{
				Name:    "missing_at_domain",
				Status:  StatusError,
				Message: "NS records listed at the parent but missing at the domain: " + strings.Join(missing, ", "),
				Records: missing,
			})
		}

		if missing := difference(domainHosts, parentHosts); len(missing) > 0 {
			res.addCheck(SubCheck{
				Name:    "missing_at_parent",
				Status:  StatusError,
				Message: "NS records listed at the domain but missing at the parent: " + strings.Join(missing, ", "),
				Records: missing,
			})
		}
	}

	res.addCheck(a.subOpenRecursion(ctx, data.merged))
	res.addCheck(subSameClass(data))
	res.addCheck(a.subServersRespond(ctx, data.merged))
	res.addCheck(subDifferentSubnets(data.merged))
	res.addCheck(subGlue(SubCheck{Name: "glue_for_ns_records"}, a.domain, data))
	res.addCheck(subValidNames(data.merged))
	res.addCheck(a.subPing(data.merged))
	res.addCheck(subMultiple(data.merged))

	for _, sc := range res.Checks {
		if sc.Status == StatusError && sc.Message != "" && !contains(res.Issues, sc.Message) {
			res.addIssue("%s", sc.Message)
		}
	}

	return res
}

// subOpenRecursion probes up to three nameservers with a non-recursive
// query for an unrelated name. A server answering it resolves for
// strangers.
func (a *analysis) subOpenRecursion(ctx context.Context, records []NSRecord) SubCheck {
	sc := SubCheck{Name: "recursive_queries", Status: StatusPass}

	var open []string
	var probed int
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, rec := range records {
		if probed >= maxRecursionProbes {
			break
		}

		addrs := v4Addrs(rec.IPs)
		if len(addrs) == 0 {
			continue
		}
		probed++

		g.Go(func() error {
			resp, err := a.directed(ctx, addrs[0], openRecursionProbeName, dns.TypeA, false)
			if err == nil && len(resp.Answer) > 0 {
				mu.Lock()
				open = append(open, rec.Host)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	switch {
	case probed == 0:
		sc.Status = StatusInfo
		sc.Message = "No nameserver addresses available to test for open recursion"
	case len(open) > 0:
		sort.Strings(open)
		sc.Status = StatusWarning
		sc.Message = "Nameservers answer queries for unrelated names (open recursion): " + strings.Join(open, ", ")
		sc.Records = open
	default:
		sc.Message = "Nameservers do not answer recursive queries for third parties"
	}

	return sc
}

// subSameClass verifies all NS rdata carries class IN.
func subSameClass(data *nsData) SubCheck {
	sc := SubCheck{Name: "same_class", Status: StatusPass, Message: "All NS records are class IN"}

	if len(data.badClass) > 0 {
		sc.Status = StatusError
		sc.Message = "NS records with a class other than IN: " + strings.Join(data.badClass, ", ")
		sc.Records = data.badClass
	}

	return sc
}

// subServersRespond asks every nameserver directly for the zone SOA.
func (a *analysis) subServersRespond(ctx context.Context, records []NSRecord) SubCheck {
	sc := SubCheck{Name: "dns_servers_responded", Status: StatusPass}

	type answer struct {
		Host      string `json:"host"`
		IP        string `json:"ip"`
		Responded bool   `json:"responded"`
	}

	var answers []answer
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	probed := 0
	for _, rec := range records {
		if probed >= maxResponseProbes {
			break
		}

		addrs := v4Addrs(rec.IPs)
		if len(addrs) == 0 {
			continue
		}
		probed++

		g.Go(func() error {
			resp, err := a.directed(ctx, addrs[0], a.domain, dns.TypeSOA, false)
			ok := err == nil && resp.Rcode == dns.RcodeSuccess

			mu.Lock()
			answers = append(answers, answer{Host: rec.Host, IP: addrs[0], Responded: ok})
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(answers, func(i, j int) bool { return answers[i].Host < answers[j].Host })
	sc.Records = answers

	var failed []string
	for _, ans := range answers {
		if !ans.Responded {
			failed = append(failed, ans.Host)
		}
	}

	switch {
	case len(answers) == 0:
		sc.Status = StatusError
		sc.Message = "No nameserver could be queried for the zone SOA"
	case len(failed) > 0:
		sc.Status = StatusError
		sc.Message = "Nameservers did not respond to direct SOA queries: " + strings.Join(failed, ", ")
	default:
		sc.Message = fmt.Sprintf("All %d queried nameservers responded", len(answers))
	}

	return sc
}

// subDifferentSubnets groups nameserver addresses by /24.
func subDifferentSubnets(records []NSRecord) SubCheck {
	sc := SubCheck{Name: "different_subnets", Status: StatusPass}

	subnets := make(map[string][]string)
	for _, rec := range records {
		for _, addr := range v4Addrs(rec.IPs) {
			key := util.SubnetKey(addr)
			if key != "" {
				subnets[key] = append(subnets[key], rec.Host)
			}
		}
	}

	sc.Records = subnets

	switch {
	case len(subnets) == 0:
		sc.Status = StatusWarning
		sc.Message = "No IPv4 addresses found for the nameservers"
	case len(subnets) == 1:
		sc.Status = StatusWarning
		sc.Message = "All nameservers share a single /24 subnet, a single network failure can take the domain down"
	default:
		sc.Message = fmt.Sprintf("Nameservers are spread over %d subnets", len(subnets))
	}

	return sc
}

// subValidNames checks RFC 1123 hostname syntax of every NS target.
func subValidNames(records []NSRecord) SubCheck {
	sc := SubCheck{Name: "name_of_nameservers_valid", Status: StatusPass, Message: "All nameserver names are valid hostnames"}

	var invalid []string
	for _, rec := range records {
		if !util.ValidHostname(rec.Host) {
			invalid = append(invalid, rec.Host)
		}
	}

	if len(invalid) > 0 {
		sc.Status = StatusError
		sc.Message = "Nameserver names violate hostname syntax: " + strings.Join(invalid, ", ")
		sc.Records = invalid
	}

	return sc
}

// subPing sends an ICMP echo to each nameserver. Firewalls commonly
// drop these, total silence is only advisory.
func (a *analysis) subPing(records []NSRecord) SubCheck {
	sc := SubCheck{Name: "is_ping_nameservers_work", Status: StatusPass}

	if !a.c.cfg.PingNameservers {
		sc.Status = StatusInfo
		sc.Message = "Ping probe disabled"
		return sc
	}

	var addrs []string
	for _, rec := range records {
		addrs = append(addrs, v4Addrs(rec.IPs)...)
	}
	addrs = util.Deduplicate(addrs)

	if len(addrs) == 0 {
		sc.Status = StatusInfo
		sc.Message = "No nameserver addresses to ping"
		return sc
	}

	var replied int
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, addr := range addrs {
		g.Go(func() error {
			if pingHost(addr) {
				mu.Lock()
				replied++
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if replied == 0 {
		sc.Status = StatusWarning
		sc.Message = "No nameserver replied to ping, ICMP may be filtered"
	} else {
		sc.Message = fmt.Sprintf("%d of %d nameserver addresses replied to ping", replied, len(addrs))
	}

	return sc
}

// subMultiple requires at least two nameservers per RFC 2182.
func subMultiple(records []NSRecord) SubCheck {
	sc := SubCheck{Name: "multiple_nameservers", Status: StatusPass, Records: len(records)}

	switch len(records) {
	case 0:
		sc.Status = StatusError
		sc.Message = "No nameservers found"
	case 1:
		sc.Status = StatusError
		sc.Message = "Only one nameserver found, RFC 2182 requires at least two"
	default:
		sc.Message = fmt.Sprintf("%d nameservers found", len(records))
	}

	return sc
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// difference returns elements of a missing from b.
func difference(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}

	var out []string
	for _, v := range a {
		if !set[v] {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
