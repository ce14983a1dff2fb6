package checker

import (
	"sort"
	"strings"

	"github.com/miekg/dns"
)

// RecordAddr is one resolved address of a host.
type RecordAddr struct {
	Kind    string `json:"kind"` // v4 or v6
	Address string `json:"address"`
}

// NSRecord is a nameserver with its addresses and the section it was
// learned from.
type NSRecord struct {
	Host   string       `json:"host"`
	IPs    []RecordAddr `json:"ips"`
	TTL    uint32       `json:"ttl,omitempty"`
	Source string       `json:"source"` // parent or domain
}

// SOARecord mirrors the SOA rdata fields.
type SOARecord struct {
	MName   string `json:"mname"`
	RName   string `json:"rname"`
	Serial  uint32 `json:"serial"`
	Refresh uint32 `json:"refresh"`
	Retry   uint32 `json:"retry"`
	Expire  uint32 `json:"expire"`
	Minimum uint32 `json:"minimum"`
}

// MXRecord is one mail exchange with resolved addresses.
type MXRecord struct {
	Host     string       `json:"host"`
	Priority uint16       `json:"priority"`
	IPs      []RecordAddr `json:"ips"`
}

// PTRRecord is a reverse lookup outcome for one mail exchange address.
type PTRRecord struct {
	IP        string   `json:"ip"`
	MXHost    string   `json:"mx_host"`
	PTR       string   `json:"ptr"`
	MatchesMX bool     `json:"matches_mx"`
	Status    Status   `json:"status"`
	Issues    []string `json:"issues"`
}

// CNAMEEntry is a CNAME target and whether it resolves.
type CNAMEEntry struct {
	Target   string   `json:"target"`
	Resolves bool     `json:"resolves"`
	Status   Status   `json:"status"`
	Issues   []string `json:"issues,omitempty"`
}

// CAARecord is one certification authority authorization.
type CAARecord struct {
	Flag  uint8  `json:"flag"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// GenericRecord carries any other record type as presentation text.
type GenericRecord struct {
	Type  string `json:"type"`
	Rdata string `json:"rdata"`
}

func trimDot(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".")
}

func soaFromRR(soa *dns.SOA) SOARecord {
	return SOARecord{
		MName:   trimDot(soa.Ns),
		RName:   trimDot(soa.Mbox),
		Serial:  soa.Serial,
		Refresh: soa.Refresh,
		Retry:   soa.Retry,
		Expire:  soa.Expire,
		Minimum: soa.Minttl,
	}
}

// v4Addrs filters the IPv4 addresses out of a record address list.
func v4Addrs(addrs []RecordAddr) []string {
	var out []string
	for _, a := range addrs {
		if a.Kind == "v4" {
			out = append(out, a.Address)
		}
	}
	return out
}

// sortedHosts returns the sorted lowercase hosts of an NS record list.
func sortedHosts(records []NSRecord) []string {
	hosts := make([]string, 0, len(records))
	for _, r := range records {
		hosts = append(hosts, r.Host)
	}
	sort.Strings(hosts)
	return hosts
}
