// Package resolver wraps stub and directed DNS query primitives for the
// analyzer. Every operation takes a context, enforces a per-query timeout
// and returns errors as LookupError values.
package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"
)

const (
	// DefaultTimeout bounds a single DNS exchange.
	DefaultTimeout = 5 * time.Second

	// TransferTimeout bounds a zone transfer attempt.
	TransferTimeout = 5 * time.Second

	edns0size = 4096
)

// DefaultUpstreams are the recursive resolvers used when the config does
// not name any.
var DefaultUpstreams = []string{"8.8.8.8:53", "1.1.1.1:53"}

// Resolver issues recursive lookups through configured upstreams and
// directed queries to specific servers. Safe for concurrent use.
type Resolver struct {
	upstreams []string
	timeout   time.Duration
}

// New returns a resolver using the given upstream addresses (host:port).
// Empty upstreams fall back to DefaultUpstreams.
func New(upstreams []string, timeout time.Duration) *Resolver {
	if len(upstreams) == 0 {
		upstreams = DefaultUpstreams
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Resolver{upstreams: upstreams, timeout: timeout}
}

// Lookup performs a recursive lookup via the configured upstreams and
// returns the answer records of the requested type. CNAME chains in the
// answer are followed by the upstream, intermediate CNAMEs are skipped
// unless qtype is CNAME. On upstream failure a single retry against the
// next upstream is attempted.
func (r *Resolver) Lookup(ctx context.Context, qname string, qtype uint16) ([]dns.RR, error) {
	req := newReq(qname, qtype, true)

	var lastErr error

	for _, upstream := range r.upstreams {
		resp, err := r.exchange(ctx, upstream, req)
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			rrs := answersOfType(resp, qtype)
			if len(rrs) == 0 {
				return nil, newError(KindNoData, qname, qtype, nil)
			}
			return rrs, nil
		case dns.RcodeNameError:
			return nil, newError(KindNXDomain, qname, qtype, nil)
		case dns.RcodeRefused:
			lastErr = newError(KindRefused, qname, qtype, nil)
		default:
			lastErr = newError(KindServfail, qname, qtype, nil)
		}
	}

	return nil, lastErr
}

// LookupAddrs resolves a hostname to its IPv4 or IPv6 address strings.
func (r *Resolver) LookupAddrs(ctx context.Context, host string, qtype uint16) ([]string, error) {
	rrs, err := r.Lookup(ctx, host, qtype)
	if err != nil {
		return nil, err
	}

	var addrs []string
	for _, rr := range rrs {
		switch a := rr.(type) {
		case *dns.A:
			addrs = append(addrs, a.A.String())
		case *dns.AAAA:
			addrs = append(addrs, a.AAAA.String())
		}
	}

	return addrs, nil
}

// QueryAt sends a single query directly to server (ip or ip:port) and
// returns the full response message, including answer, authority and
// additional sections and the AA flag. The caller inspects the rcode,
// only transport failures return an error.
func (r *Resolver) QueryAt(ctx context.Context, server, qname string, qtype uint16, recursive bool) (*dns.Msg, error) {
	req := newReq(qname, qtype, recursive)

	return r.exchange(ctx, addrPort(server), req)
}

// LookupSecure performs a recursive lookup with the EDNS DO bit set and
// returns the full response, so callers can inspect signatures alongside
// the answer records.
func (r *Resolver) LookupSecure(ctx context.Context, qname string, qtype uint16) (*dns.Msg, error) {
	req := newReq(qname, qtype, true)
	req.SetEdns0(edns0size, true)

	var lastErr error

	for _, upstream := range r.upstreams {
		resp, err := r.exchange(ctx, upstream, req)
		if err != nil {
			lastErr = err
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// ReverseLookup resolves an IP address to its PTR names.
func (r *Resolver) ReverseLookup(ctx context.Context, ip string) ([]string, error) {
	reverse, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, newError(KindParse, ip, dns.TypePTR, err)
	}

	rrs, err := r.Lookup(ctx, reverse, dns.TypePTR)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, rr := range rrs {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, strings.TrimSuffix(ptr.Ptr, "."))
		}
	}

	return names, nil
}

// Transfer attempts an AXFR of zone against server over TCP. A successful
// transfer returns the zone records, servers that deny the transfer
// return a refused or network error.
func (r *Resolver) Transfer(ctx context.Context, server, zone string) ([]dns.RR, error) {
	req := new(dns.Msg)
	req.SetAxfr(dns.Fqdn(zone))

	t := &dns.Transfer{
		DialTimeout:  TransferTimeout,
		ReadTimeout:  TransferTimeout,
		WriteTimeout: TransferTimeout,
	}

	env, err := t.In(req, addrPort(server))
	if err != nil {
		return nil, newError(transportKind(err), zone, dns.TypeAXFR, err)
	}

	var records []dns.RR
	for e := range env {
		if e.Error != nil {
			return nil, newError(KindRefused, zone, dns.TypeAXFR, e.Error)
		}
		records = append(records, e.RR...)
	}

	if len(records) == 0 {
		return nil, newError(KindRefused, zone, dns.TypeAXFR, nil)
	}

	return records, nil
}

// exchange performs one UDP exchange with TCP fallback on truncation or
// socket error.
func (r *Resolver) exchange(ctx context.Context, server string, req *dns.Msg) (*dns.Msg, error) {
	qname := req.Question[0].Name
	qtype := req.Question[0].Qtype

	c := &dns.Client{Net: "udp", Timeout: r.timeout, UDPSize: edns0size}

	resp, _, err := c.ExchangeContext(ctx, req, server)
	if err == nil && !resp.Truncated {
		return resp, nil
	}

	if err != nil {
		zlog.Debug("UDP exchange failed, retrying over TCP",
			"server", server, "qname", qname, "error", err.Error())
	}

	c = &dns.Client{Net: "tcp", Timeout: r.timeout}

	resp, _, err = c.ExchangeContext(ctx, req, server)
	if err != nil {
		return nil, newError(transportKind(err), qname, qtype, err)
	}

	return resp, nil
}

func transportKind(err error) Kind {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

func newReq(qname string, qtype uint16, recursive bool) *dns.Msg {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(qname), qtype)
	req.RecursionDesired = recursive
	req.SetEdns0(edns0size, false)

	return req
}

func answersOfType(resp *dns.Msg, qtype uint16) []dns.RR {
	var rrs []dns.RR
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype == qtype {
			rrs = append(rrs, rr)
		}
	}
	return rrs
}

func addrPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}

	return net.JoinHostPort(server, "53")
}
