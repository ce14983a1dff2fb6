package checker

import (
	"context"
	"strings"

	"github.com/miekg/dns"
)

// Substrings that betray a parked domain in NS hostnames or TXT data,
// most specific first so sedoparking is not reported as plain parking.
var parkingMarkers = []string{
	"sedoparking", "cashparking", "domaincontrol-parking", "parklogic",
	"parking", "parked", "sedo.com", "bodis.com", "above.com",
}

// checkDomainStatus combines delegation, authority and content signals
// into a verdict: active, parked, suspicious or unregistered.
func (a *analysis) checkDomainStatus(ctx context.Context) *CheckResult {
	res := newResult()

	data := a.nameservers(ctx)

	// No delegation at all usually means the name was never registered.
	if len(data.parent.Records) == 0 && len(data.domainNS) == 0 {
		for _, issue := range data.parent.Issues {
			if strings.Contains(issue, "NXDOMAIN") {
				res.Status = StatusError
				res.Record = "unregistered"
				res.addIssue("The domain is not delegated, it appears to be unregistered")
				return res
			}
		}

		res.Status = StatusError
		res.Record = "broken"
		res.addIssue("No nameservers could be found for the domain")
		return res
	}

	var signals []string

	// Parking operators in the NS hostnames.
	for _, rec := range data.merged {
		if marker := parkingMarker(rec.Host); marker != "" {
			signals = append(signals, "nameserver "+rec.Host+" matches parking marker "+marker)
		}
	}

	// Apex addresses in suspicious space.
	addrs := a.lookupAddrs(ctx, a.domain)
	for _, addr := range addrs {
		if isSuspiciousAddr(addr.Address) {
			signals = append(signals, "apex address "+addr.Address+" lies in private, documentation or parking space")
		}
	}

	// Parking markers in TXT content.
	if txts, err := a.lookupTXT(ctx, a.domain); err == nil {
		for _, txt := range txts {
			if marker := parkingMarker(txt); marker != "" {
				signals = append(signals, "TXT record matches parking marker "+marker)
			}
		}
	}

	// A wildcard pointing at suspicious space is the classic parked
	// zone shape.
	wc := a.wildcardProbe(ctx)
	for _, addr := range wc.addrs {
		if isSuspiciousAddr(addr) {
			signals = append(signals, "wildcard answer "+addr+" lies in suspicious address space")
		}
	}

	res.addCheck(a.subAuthority(ctx, data))

	sc := SubCheck{Name: "parking_signals", Status: StatusPass, Message: "No parking or hijacking signals found"}
	if len(signals) > 0 {
		sc.Status = StatusWarning
		sc.Message = "Signals suggest the domain is parked or misconfigured"
		sc.Records = signals
	}
	res.addCheck(sc)

	switch {
	case len(signals) > 0:
		res.Record = "parked"
		res.demote(StatusWarning)
		for _, signal := range signals {
			res.addIssue("%s", signal)
		}
	case len(addrs) == 0:
		res.Record = "inactive"
		res.demote(StatusInfo)
		res.addIssue("The domain is delegated but serves no apex addresses")
	default:
		res.Record = "active"
	}

	return res
}

// subAuthority verifies a listed nameserver actually answers
// authoritatively for the zone.
func (a *analysis) subAuthority(ctx context.Context, data *nsData) SubCheck {
	sc := SubCheck{Name: "authoritative_answer", Status: StatusPass}

	for _, rec := range data.merged {
		addrs := v4Addrs(rec.IPs)
		if len(addrs) == 0 {
			continue
		}

		resp, err := a.directed(ctx, addrs[0], a.domain, dns.TypeSOA, false)
		if err != nil {
			continue
		}

		if resp.Rcode == dns.RcodeNameError {
			sc.Status = StatusError
			sc.Message = "Nameserver " + rec.Host + " answers NXDOMAIN for its own zone"
			return sc
		}

		if resp.Authoritative {
			sc.Message = "Nameserver " + rec.Host + " answers authoritatively"
			return sc
		}

		sc.Status = StatusWarning
		sc.Message = "Nameserver " + rec.Host + " does not set the AA flag for the zone"
		return sc
	}

	sc.Status = StatusInfo
	sc.Message = "No nameserver could be queried for authority"
	return sc
}

// parkingMarker returns the first parking marker contained in s.
func parkingMarker(s string) string {
	lower := strings.ToLower(s)
	for _, marker := range parkingMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
