package checker

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dnsbunch/dnsbunch/util"
	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/errgroup"
)

// delegation is the NS picture the parent TLD authority serves for the
// domain, read from the authority section of a non-recursive query.
type delegation struct {
	TLDServer   string     `json:"tld_server,omitempty"`
	TLDServerIP string     `json:"tld_server_ip,omitempty"`
	TTL         uint32     `json:"ttl,omitempty"`
	Records     []NSRecord `json:"records"`
	Status      Status     `json:"status"`
	Issues      []string   `json:"issues,omitempty"`

	// glue keeps the additional-section addresses per host, the glue
	// checker validates in-bailiwick nameservers against it.
	glue map[string][]RecordAddr
}

func (d *delegation) issue(msg string) {
	d.Issues = append(d.Issues, msg)
}

// parentDelegation asks a TLD server of the domain's TLD for the NS
// delegation. On failure one other registry server is tried, total
// failure yields an error status with an empty record list.
func (a *analysis) parentDelegation(ctx context.Context) *delegation {
	d := &delegation{Status: StatusPass, glue: make(map[string][]RecordAddr)}

	label := util.TLD(a.domain)

	host, ip, err := a.c.registry.PickAuthority(label)
	if err != nil {
		d.Status = StatusError
		d.issue("TLD ." + label + " is not usable from the root zone registry: " + err.Error())
		return d
	}

	resp, err := a.directed(ctx, ip, a.domain, dns.TypeNS, false)
	if err != nil {
		zlog.Debug("Parent delegation query failed, trying another TLD server",
			"domain", a.domain, "server", host, "error", err.Error())

		host, ip, resp, err = a.fallbackAuthority(ctx, label, ip)
	}

	if err != nil {
		d.Status = StatusError
		d.issue("All queried ." + label + " TLD servers failed to answer: " + err.Error())
		return d
	}

	d.TLDServer = host
	d.TLDServerIP = ip

	// TLDs are not authoritative for the child, the delegation lives in
	// the authority section.
	section := resp.Ns
	if len(section) == 0 {
		section = resp.Answer
	}

	for _, rr := range section {
		ns, ok := rr.(*dns.NS)
		if !ok || !strings.EqualFold(trimDot(ns.Hdr.Name), a.domain) {
			continue
		}

		d.TTL = ns.Hdr.Ttl
		d.Records = append(d.Records, NSRecord{
			Host:   trimDot(ns.Ns),
			TTL:    ns.Hdr.Ttl,
			Source: "parent",
		})
	}

	for _, rr := range resp.Extra {
		switch glue := rr.(type) {
		case *dns.A:
			name := trimDot(glue.Hdr.Name)
			d.glue[name] = append(d.glue[name], RecordAddr{Kind: "v4", Address: glue.A.String()})
		case *dns.AAAA:
			name := trimDot(glue.Hdr.Name)
			d.glue[name] = append(d.glue[name], RecordAddr{Kind: "v6", Address: glue.AAAA.String()})
		}
	}

	if len(d.Records) == 0 {
		if resp.Rcode == dns.RcodeNameError {
			d.Status = StatusError
			d.issue("Parent server reports NXDOMAIN, the domain is not delegated")
		} else {
			d.Status = StatusError
			d.issue("No NS delegation found at the parent ." + label + " servers")
		}
		return d
	}

	sort.Slice(d.Records, func(i, j int) bool { return d.Records[i].Host < d.Records[j].Host })

	// Each target gets its addresses from parent glue when present,
	// otherwise through the recursive facade.
	g := new(errgroup.Group)
	g.SetLimit(a.c.cfg.MaxConcurrency)

	for i := range d.Records {
		g.Go(func() error {
			if addrs, ok := d.glue[d.Records[i].Host]; ok {
				d.Records[i].IPs = addrs
				return nil
			}
			d.Records[i].IPs = a.lookupAddrs(ctx, d.Records[i].Host)
			return nil
		})
	}

	_ = g.Wait()

	return d
}

// fallbackAuthority retries the delegation query against one other TLD
// server from the registry.
func (a *analysis) fallbackAuthority(ctx context.Context, label, failed string) (string, string, *dns.Msg, error) {
	for _, ns := range a.c.registry.Authorities(label) {
		if ns.IPv4 == failed {
			continue
		}

		resp, err := a.directed(ctx, ns.IPv4, a.domain, dns.TypeNS, false)
		if err != nil {
			return "", "", nil, err
		}

		return ns.Hostname, ns.IPv4, resp, nil
	}

	return "", "", nil, errNoFallback
}

var errNoFallback = errors.New("no other tld server available")
