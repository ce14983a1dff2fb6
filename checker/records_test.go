package checker

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSOAFromRR(t *testing.T) {
	rr, err := dns.NewRR("example.test. 3600 IN SOA ns1.example.test. hostmaster.example.test. 2024010101 7200 3600 1209600 300")
	require.NoError(t, err)

	rec := soaFromRR(rr.(*dns.SOA))

	assert.Equal(t, "ns1.example.test", rec.MName)
	assert.Equal(t, "hostmaster.example.test", rec.RName)
	assert.Equal(t, uint32(2024010101), rec.Serial)
	assert.Equal(t, uint32(7200), rec.Refresh)
	assert.Equal(t, uint32(3600), rec.Retry)
	assert.Equal(t, uint32(1209600), rec.Expire)
	assert.Equal(t, uint32(300), rec.Minimum)
}

func TestCategorizeTXT(t *testing.T) {
	txts := []string{
		"v=spf1 mx ~all",
		"v=DMARC1; p=reject",
		"google-site-verification=abc123",
		"k=rsa; p=MIGfMA0",
		"some random note",
	}

	cat := categorizeTXT(txts)

	assert.Equal(t, []string{"v=spf1 mx ~all"}, cat["spf"])
	assert.Equal(t, []string{"v=DMARC1; p=reject"}, cat["dmarc"])
	assert.Equal(t, []string{"k=rsa; p=MIGfMA0"}, cat["dkim"])
	assert.Equal(t, []string{"google-site-verification=abc123"}, cat["verification"])
	assert.Equal(t, []string{"some random note"}, cat["other"])
}

func TestParseDMARC(t *testing.T) {
	tags := parseDMARC("v=DMARC1; p=quarantine; rua=mailto:reports@example.com; pct=50")

	assert.Equal(t, "DMARC1", tags["v"])
	assert.Equal(t, "quarantine", tags["p"])
	assert.Equal(t, "mailto:reports@example.com", tags["rua"])
	assert.Equal(t, "50", tags["pct"])
}

func TestIsDKIMKey(t *testing.T) {
	assert.True(t, isDKIMKey("v=DKIM1; k=rsa; p=MIGfMA0GCSq"))
	assert.True(t, isDKIMKey("k=rsa; p=abc"))
	assert.True(t, isDKIMKey("p=abc"))
	assert.False(t, isDKIMKey("v=spf1 -all"))
	assert.False(t, isDKIMKey("google-site-verification=xyz"))
}

func TestParkingMarker(t *testing.T) {
	assert.Equal(t, "sedoparking", parkingMarker("ns1.sedoparking.com"))
	assert.Equal(t, "parking", parkingMarker("PARKING.example.com"))
	assert.Empty(t, parkingMarker("ns1.example.com"))
}

func TestRandomLabel(t *testing.T) {
	a, b := randomLabel(), randomLabel()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len("dnsbunch-")+randomLabelLen)
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a"}, difference([]string{"a", "b"}, []string{"b", "c"}))
	assert.Nil(t, difference([]string{"a"}, []string{"a"}))
}

func TestSubMXChecks(t *testing.T) {
	records := []MXRecord{
		{Host: "mail.example.com", Priority: 10, IPs: []RecordAddr{{Kind: "v4", Address: "10.0.0.1"}}},
		{Host: "mail2.example.com", Priority: 10, IPs: []RecordAddr{{Kind: "v4", Address: "10.0.0.1"}}},
		{Host: "192.0.2.7", Priority: 20},
	}

	assert.Equal(t, StatusWarning, subMXPriorities(records).Status)
	assert.Equal(t, StatusError, subMXPublic(records).Status)
	assert.Equal(t, StatusError, subMXNotIP(records).Status)
	assert.Equal(t, StatusError, subMXResolvable(records).Status)
	assert.Equal(t, StatusWarning, subMXSharedAddrs(records).Status)

	clean := []MXRecord{
		{Host: "mail.example.com", Priority: 10, IPs: []RecordAddr{{Kind: "v4", Address: "198.18.0.1"}}},
		{Host: "mail2.example.com", Priority: 20, IPs: []RecordAddr{{Kind: "v4", Address: "198.18.1.1"}}},
	}

	assert.Equal(t, StatusPass, subMXPriorities(clean).Status)
	assert.Equal(t, StatusPass, subMXPublic(clean).Status)
	assert.Equal(t, StatusPass, subMXNotIP(clean).Status)
	assert.Equal(t, StatusPass, subMXResolvable(clean).Status)
	assert.Equal(t, StatusPass, subMXSharedAddrs(clean).Status)
}

func TestSubSOATimers(t *testing.T) {
	assert.Equal(t, StatusPass, subSOATimer("refresh", 7200, soaRefreshMin, soaRefreshMax).Status)
	assert.Equal(t, StatusWarning, subSOATimer("refresh", 60, soaRefreshMin, soaRefreshMax).Status)
	assert.Equal(t, StatusWarning, subSOATimer("refresh", 100000, soaRefreshMin, soaRefreshMax).Status)

	// retry must stay below refresh even inside its own range.
	rec := SOARecord{Refresh: 3600, Retry: 3600}
	assert.Equal(t, StatusWarning, subSOARetry(rec).Status)

	rec = SOARecord{Refresh: 7200, Retry: 3600, Expire: 1209600}
	assert.Equal(t, StatusPass, subSOARetry(rec).Status)
	assert.Equal(t, StatusPass, subSOAExpire(rec).Status)
}
