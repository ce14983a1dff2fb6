// Package util provides name and address helpers for the DNSBunch analyzer.
package util

import (
	"net"
	"strings"
)

const maxDomainLength = 253

// NormalizeDomain lowercases a domain and strips surrounding space and the
// trailing dot.
func NormalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

// ValidDomain reports whether domain is a well formed registered name
// per RFC 1035 label rules. The domain must be normalized first.
func ValidDomain(domain string) bool {
	if domain == "" || len(domain) > maxDomainLength {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}

	return true
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > 63 {
		return false
	}

	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}

	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}

	return true
}

// ValidHostname reports whether name is a valid RFC 1123 hostname.
// Underscores are rejected, nameserver names must be real hosts.
func ValidHostname(name string) bool {
	return ValidDomain(NormalizeDomain(name))
}

// TLD returns the last label of a normalized domain.
func TLD(domain string) string {
	idx := strings.LastIndexByte(domain, '.')
	if idx < 0 {
		return domain
	}
	return domain[idx+1:]
}

// InBailiwick reports whether host lies inside the zone of domain,
// such nameservers need glue in the parent zone.
func InBailiwick(host, domain string) bool {
	host = NormalizeDomain(host)
	domain = NormalizeDomain(domain)

	return host == domain || strings.HasSuffix(host, "."+domain)
}

// SubnetKey returns the /24 network of an IPv4 address, used to group
// nameserver addresses by subnet. Returns empty string for non-IPv4.
func SubnetKey(addr string) string {
	ip := net.ParseIP(addr)
	if ip == nil {
		return ""
	}

	v4 := ip.To4()
	if v4 == nil {
		return ""
	}

	return (&net.IPNet{IP: v4.Mask(net.CIDRMask(24, 32)), Mask: net.CIDRMask(24, 32)}).String()
}

// Deduplicate returns vals with duplicates removed, preserving first
// occurrence order.
func Deduplicate(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := vals[:0]

	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
