package mock

import (
	"strings"
	"sync"

	"github.com/miekg/dns"
)

// Zone is a dns.Handler serving a static record set authoritatively.
// Names inside the origin without matching records answer NODATA, names
// outside the origin answer REFUSED unless OpenRecursive is set.
type Zone struct {
	// Origin is the zone apex, stored as fqdn.
	Origin string

	// NXDomain lists names (fqdn) answered with NXDOMAIN instead of NODATA.
	NXDomain []string

	// AllowTransfer makes AXFR requests succeed with the full record set.
	AllowTransfer bool

	// OpenRecursive answers queries outside the origin from the record
	// set instead of refusing them, imitating an open resolver.
	OpenRecursive bool

	// Authoritative controls the AA bit on in-zone answers.
	Authoritative bool

	mu          sync.RWMutex
	records     map[string]map[uint16][]dns.RR
	delegations map[string][]dns.RR
	glue        []dns.RR
}

// NewZone returns an empty authoritative zone for origin.
func NewZone(origin string) *Zone {
	return &Zone{
		Origin:        dns.Fqdn(strings.ToLower(origin)),
		Authoritative: true,
		records:       make(map[string]map[uint16][]dns.RR),
		delegations:   make(map[string][]dns.RR),
	}
}

// Add parses zone file lines and stores the records.
func (z *Zone) Add(lines ...string) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	for _, line := range lines {
		rr, err := dns.NewRR(line)
		if err != nil {
			return err
		}

		name := strings.ToLower(rr.Header().Name)
		if z.records[name] == nil {
			z.records[name] = make(map[uint16][]dns.RR)
		}
		z.records[name][rr.Header().Rrtype] = append(z.records[name][rr.Header().Rrtype], rr)
	}

	return nil
}

// Delegate registers a child zone cut. Queries at or below child are
// answered with the NS set in the authority section plus glue in the
// additional section, the way a TLD server delegates.
func (z *Zone) Delegate(child string, nsLines []string, glueLines []string) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	child = dns.Fqdn(strings.ToLower(child))

	for _, line := range nsLines {
		rr, err := dns.NewRR(line)
		if err != nil {
			return err
		}
		z.delegations[child] = append(z.delegations[child], rr)
	}

	for _, line := range glueLines {
		rr, err := dns.NewRR(line)
		if err != nil {
			return err
		}
		z.glue = append(z.glue, rr)
	}

	return nil
}

// ServeDNS implements dns.Handler.
func (z *Zone) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		return
	}

	q := req.Question[0]
	qname := strings.ToLower(q.Name)

	m := new(dns.Msg)
	m.SetReply(req)

	if q.Qtype == dns.TypeAXFR {
		z.serveTransfer(w, req)
		return
	}

	z.mu.RLock()
	defer z.mu.RUnlock()

	inZone := qname == z.Origin || strings.HasSuffix(qname, "."+z.Origin)

	if !inZone && !z.OpenRecursive {
		m.Rcode = dns.RcodeRefused
		_ = w.WriteMsg(m)
		return
	}

	// Zone cut below a delegation point.
	for child, nss := range z.delegations {
		if qname == child || strings.HasSuffix(qname, "."+child) {
			m.Authoritative = false
			m.Ns = nss
			m.Extra = append(m.Extra, z.glue...)
			_ = w.WriteMsg(m)
			return
		}
	}

	m.Authoritative = z.Authoritative && inZone
	m.RecursionAvailable = z.OpenRecursive

	for _, nx := range z.NXDomain {
		if qname == strings.ToLower(dns.Fqdn(nx)) {
			m.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(m)
			return
		}
	}

	byType := z.records[qname]
	if byType == nil {
		// Wildcard synthesis.
		if idx := strings.IndexByte(qname, '.'); idx >= 0 {
			byType = z.records["*."+qname[idx+1:]]
		}
	}

	if byType == nil {
		_ = w.WriteMsg(m)
		return
	}

	if rrs, ok := byType[q.Qtype]; ok {
		m.Answer = append(m.Answer, withName(rrs, q.Name)...)
	} else if cnames, ok := byType[dns.TypeCNAME]; ok && q.Qtype != dns.TypeCNAME {
		// Follow one CNAME hop like a real authoritative server.
		m.Answer = append(m.Answer, withName(cnames, q.Name)...)
		if target, ok := cnames[0].(*dns.CNAME); ok {
			if tt := z.records[strings.ToLower(target.Target)]; tt != nil {
				m.Answer = append(m.Answer, tt[q.Qtype]...)
			}
		}
	}

	_ = w.WriteMsg(m)
}

func (z *Zone) serveTransfer(w dns.ResponseWriter, req *dns.Msg) {
	if !z.AllowTransfer {
		m := new(dns.Msg)
		m.SetRcode(req, dns.RcodeRefused)
		_ = w.WriteMsg(m)
		return
	}

	z.mu.RLock()
	var records []dns.RR
	soa := z.records[z.Origin][dns.TypeSOA]
	records = append(records, soa...)
	for _, byType := range z.records {
		for qtype, rrs := range byType {
			if qtype == dns.TypeSOA {
				continue
			}
			records = append(records, rrs...)
		}
	}
	records = append(records, soa...)
	z.mu.RUnlock()

	tr := new(dns.Transfer)
	ch := make(chan *dns.Envelope, 1)
	ch <- &dns.Envelope{RR: records}
	close(ch)

	_ = tr.Out(w, req, ch)
}

// withName rewrites record owner names to match the query name so
// wildcard answers look synthesized.
func withName(rrs []dns.RR, name string) []dns.RR {
	out := make([]dns.RR, 0, len(rrs))
	for _, rr := range rrs {
		if strings.HasPrefix(rr.Header().Name, "*.") {
			cp := dns.Copy(rr)
			cp.Header().Name = name
			out = append(out, cp)
			continue
		}
		out = append(out, rr)
	}
	return out
}
