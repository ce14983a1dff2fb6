package checker

import (
	"net"

	"github.com/yl2chen/cidranger"
)

// Address range sets used to flag records pointing at non-routable or
// known parking space.
var (
	privateRanger cidranger.Ranger
	docRanger     cidranger.Ranger
	parkingRanger cidranger.Ranger
)

var privateCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

var docCIDRs = []string{
	"192.0.2.0/24",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"2001:db8::/32",
}

// Prefixes of well known domain parking operators.
var parkingCIDRs = []string{
	"69.46.86.0/24",
	"98.124.0.0/16",
}

func init() {
	privateRanger = buildRanger(privateCIDRs)
	docRanger = buildRanger(docCIDRs)
	parkingRanger = buildRanger(parkingCIDRs)
}

func buildRanger(cidrs []string) cidranger.Ranger {
	ranger := cidranger.NewPCTrieRanger()

	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("checker: bad builtin cidr " + cidr)
		}
		_ = ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet))
	}

	return ranger
}

func rangerContains(r cidranger.Ranger, addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}

	ok, err := r.Contains(ip)
	return err == nil && ok
}

// isPrivateAddr reports whether addr is private, loopback or reserved.
func isPrivateAddr(addr string) bool {
	return rangerContains(privateRanger, addr)
}

// isDocAddr reports whether addr lies in a documentation range, real
// services never live there.
func isDocAddr(addr string) bool {
	return rangerContains(docRanger, addr)
}

// isParkingAddr reports whether addr belongs to a known parking operator.
func isParkingAddr(addr string) bool {
	return rangerContains(parkingRanger, addr)
}

// isSuspiciousAddr combines the heuristics used by the domain status
// check.
func isSuspiciousAddr(addr string) bool {
	return isPrivateAddr(addr) || isDocAddr(addr) || isParkingAddr(addr)
}
