package checker

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/dnsbunch/dnsbunch/util"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// checkMX validates the mail exchange set: presence, target syntax,
// CNAME-free targets, public addresses and priority hygiene.
func (a *analysis) checkMX(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.mailExchanges(ctx)
	if data.err != nil {
		res.Status = StatusWarning
		res.addIssue("%s", lookupIssue("MX", data.err))
		return res
	}

	res.Records = data.records
	res.Count = len(data.records)

	// mx_records
	sc := SubCheck{Name: "mx_records", Status: StatusPass, Records: data.records}
	if len(data.records) == 0 {
		sc.Status = StatusWarning
		sc.Message = "No MX records found, the domain cannot receive mail"
		res.addCheck(sc)
		res.addIssue("%s", sc.Message)
		return res
	}
	sc.Message = fmt.Sprintf("Found %d MX records", len(data.records))
	res.addCheck(sc)

	res.addCheck(subMXNames(data.records))
	res.addCheck(subMXCount(data.records))
	res.addCheck(a.subMXCNAME(ctx, data.records))
	res.addCheck(subMXPriorities(data.records))
	res.addCheck(subMXPublic(data.records))
	res.addCheck(subMXNotIP(data.records))
	res.addCheck(subMXResolvable(data.records))
	res.addCheck(subMXSharedAddrs(data.records))
	res.addCheck(a.subMXReverse(ctx, data.records))

	for _, sc := range res.Checks {
		if sc.Status != StatusPass && sc.Status != StatusInfo && sc.Message != "" {
			res.addIssue("%s", sc.Message)
		}
	}

	return res
}

// subMXNames validates target hostname syntax.
func subMXNames(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_name_validity", Status: StatusPass, Message: "All MX targets are valid hostnames"}

	var invalid []string
	for _, rec := range records {
		if !util.ValidHostname(rec.Host) {
			invalid = append(invalid, rec.Host)
		}
	}

	if len(invalid) > 0 {
		sc.Status = StatusError
		sc.Message = "MX targets with invalid hostname syntax: " + strings.Join(invalid, ", ")
		sc.Records = invalid
	}

	return sc
}

// subMXCount recommends at least two exchanges for redundancy.
func subMXCount(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_count", Status: StatusPass, Records: len(records)}

	if len(records) == 1 {
		sc.Status = StatusWarning
		sc.Message = "Only one MX record found, a single mail server is a single point of failure"
	} else {
		sc.Message = fmt.Sprintf("%d MX records provide redundancy", len(records))
	}

	return sc
}

// subMXCNAME flags MX targets that are aliases, RFC 2181 section 10.3
// forbids that.
func (a *analysis) subMXCNAME(ctx context.Context, records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_cname_check", Status: StatusPass, Message: "No MX target is a CNAME"}

	var aliased []string
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, rec := range records {
		g.Go(func() error {
			rrs, err := a.c.res.Lookup(ctx, rec.Host, dns.TypeCNAME)
			if err != nil {
				return nil
			}

			for _, rr := range rrs {
				if _, ok := rr.(*dns.CNAME); ok {
					mu.Lock()
					aliased = append(aliased, rec.Host)
					mu.Unlock()
					return nil
				}
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(aliased) > 0 {
		sort.Strings(aliased)
		sc.Status = StatusError
		sc.Message = "MX targets must not be CNAMEs (RFC 2181): " + strings.Join(aliased, ", ")
		sc.Records = aliased
	}

	return sc
}

// subMXPriorities flags duplicate preference values.
func subMXPriorities(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_duplicate_priorities", Status: StatusPass, Message: "All MX priorities are distinct"}

	byPrio := make(map[uint16][]string)
	for _, rec := range records {
		byPrio[rec.Priority] = append(byPrio[rec.Priority], rec.Host)
	}

	var dups []string
	for prio, hosts := range byPrio {
		if len(hosts) > 1 {
			sort.Strings(hosts)
			dups = append(dups, fmt.Sprintf("%d (%s)", prio, strings.Join(hosts, ", ")))
		}
	}

	if len(dups) > 0 {
		sort.Strings(dups)
		sc.Status = StatusWarning
		sc.Message = "MX records share a priority: " + strings.Join(dups, "; ")
		sc.Records = dups
	}

	return sc
}

// subMXPublic requires publicly routable mail server addresses.
func subMXPublic(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_ips_public", Status: StatusPass, Message: "All MX addresses are publicly routable"}

	var private []string
	for _, rec := range records {
		for _, addr := range rec.IPs {
			if isPrivateAddr(addr.Address) {
				private = append(private, rec.Host+" ("+addr.Address+")")
			}
		}
	}

	if len(private) > 0 {
		sc.Status = StatusError
		sc.Message = "MX targets resolve to private or reserved addresses: " + strings.Join(private, ", ")
		sc.Records = private
	}

	return sc
}

// subMXNotIP rejects address literals in the exchange field.
func subMXNotIP(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mx_is_not_ip", Status: StatusPass, Message: "No MX target is an IP address literal"}

	var literals []string
	for _, rec := range records {
		if net.ParseIP(rec.Host) != nil {
			literals = append(literals, rec.Host)
		}
	}

	if len(literals) > 0 {
		sc.Status = StatusError
		sc.Message = "MX targets must be hostnames, not IP addresses: " + strings.Join(literals, ", ")
		sc.Records = literals
	}

	return sc
}

// subMXResolvable requires every exchange to resolve to an address.
func subMXResolvable(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "mismatched_mx_a", Status: StatusPass, Message: "All MX targets resolve to addresses"}

	var unresolved []string
	for _, rec := range records {
		if len(rec.IPs) == 0 {
			unresolved = append(unresolved, rec.Host)
		}
	}

	if len(unresolved) > 0 {
		sc.Status = StatusError
		sc.Message = "MX targets without any address record: " + strings.Join(unresolved, ", ")
		sc.Records = unresolved
	}

	return sc
}

// subMXSharedAddrs warns when distinct exchanges land on one address,
// the apparent redundancy is fake.
func subMXSharedAddrs(records []MXRecord) SubCheck {
	sc := SubCheck{Name: "duplicate_mx_a", Status: StatusPass, Message: "MX targets use distinct addresses"}

	byAddr := make(map[string][]string)
	for _, rec := range records {
		for _, addr := range v4Addrs(rec.IPs) {
			byAddr[addr] = append(byAddr[addr], rec.Host)
		}
	}

	var shared []string
	for addr, hosts := range byAddr {
		hosts = util.Deduplicate(hosts)
		if len(hosts) > 1 {
			sort.Strings(hosts)
			shared = append(shared, addr+" ("+strings.Join(hosts, ", ")+")")
		}
	}

	if len(shared) > 0 {
		sort.Strings(shared)
		sc.Status = StatusWarning
		sc.Message = "Multiple MX targets share an address: " + strings.Join(shared, "; ")
		sc.Records = shared
	}

	return sc
}

// subMXReverse checks each mail server address has a PTR record. Many
// receivers reject mail from hosts without one.
func (a *analysis) subMXReverse(ctx context.Context, records []MXRecord) SubCheck {
	sc := SubCheck{Name: "reverse_mx_a", Status: StatusPass}

	var addrs []string
	for _, rec := range records {
		addrs = append(addrs, v4Addrs(rec.IPs)...)
	}
	addrs = util.Deduplicate(addrs)

	if len(addrs) == 0 {
		sc.Status = StatusInfo
		sc.Message = "No MX addresses to reverse check"
		return sc
	}

	var missing []string
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for _, addr := range addrs {
		g.Go(func() error {
			names, err := a.c.res.ReverseLookup(ctx, addr)
			if err != nil || len(names) == 0 {
				mu.Lock()
				missing = append(missing, addr)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	if len(missing) > 0 {
		sort.Strings(missing)
		sc.Status = StatusInfo
		sc.Message = "MX addresses without a PTR record: " + strings.Join(missing, ", ")
		sc.Records = missing
	} else {
		sc.Message = fmt.Sprintf("All %d MX addresses have PTR records", len(addrs))
	}

	return sc
}
