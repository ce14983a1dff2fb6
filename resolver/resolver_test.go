package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/dnsbunch/dnsbunch/mock"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testZone(t *testing.T) (*Resolver, *mock.Zone, *mock.Server) {
	zone := mock.NewZone("example.test.")
	err := zone.Add(
		"example.test. 300 IN SOA ns1.example.test. hostmaster.example.test. 2024010101 7200 3600 1209600 3600",
		"example.test. 300 IN A 192.0.2.10",
		"example.test. 300 IN TXT \"v=spf1 -all\"",
		"www.example.test. 300 IN CNAME example.test.",
		"ns1.example.test. 300 IN A 192.0.2.1",
	)
	require.NoError(t, err)

	zone.NXDomain = []string{"missing.example.test."}

	srv, err := mock.Serve(zone)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	r := New([]string{srv.Addr()}, 2*time.Second)

	return r, zone, srv
}

func Test_Lookup(t *testing.T) {
	r, _, _ := testZone(t)

	rrs, err := r.Lookup(context.Background(), "example.test", dns.TypeA)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, "192.0.2.10", rrs[0].(*dns.A).A.String())
}

func Test_LookupNXDomain(t *testing.T) {
	r, _, _ := testZone(t)

	_, err := r.Lookup(context.Background(), "missing.example.test", dns.TypeA)
	require.Error(t, err)
	assert.True(t, IsNXDomain(err))
	assert.Equal(t, "nxdomain", KindOf(err).String())
}

func Test_LookupNoData(t *testing.T) {
	r, _, _ := testZone(t)

	_, err := r.Lookup(context.Background(), "example.test", dns.TypeMX)
	require.Error(t, err)
	assert.True(t, IsNoData(err))
	assert.True(t, IsNegative(err))
}

func Test_LookupFollowsCNAME(t *testing.T) {
	r, _, _ := testZone(t)

	rrs, err := r.Lookup(context.Background(), "www.example.test", dns.TypeA)
	require.NoError(t, err)
	require.Len(t, rrs, 1)
	assert.Equal(t, "192.0.2.10", rrs[0].(*dns.A).A.String())
}

func Test_LookupAddrs(t *testing.T) {
	r, _, _ := testZone(t)

	addrs, err := r.LookupAddrs(context.Background(), "ns1.example.test", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1"}, addrs)
}

func Test_LookupUpstreamFallback(t *testing.T) {
	_, _, srv := testZone(t)

	// Primary upstream is unreachable, the secondary must answer.
	r := New([]string{"127.0.0.1:1", srv.Addr()}, 1*time.Second)

	rrs, err := r.Lookup(context.Background(), "example.test", dns.TypeA)
	require.NoError(t, err)
	assert.Len(t, rrs, 1)
}

func Test_QueryAt(t *testing.T) {
	r, _, srv := testZone(t)

	resp, err := r.QueryAt(context.Background(), srv.Addr(), "example.test", dns.TypeSOA, false)
	require.NoError(t, err)
	assert.True(t, resp.Authoritative)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, uint32(2024010101), resp.Answer[0].(*dns.SOA).Serial)
}

func Test_QueryAtRefused(t *testing.T) {
	r, _, srv := testZone(t)

	resp, err := r.QueryAt(context.Background(), srv.Addr(), "unrelated.example.org", dns.TypeA, false)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
}

func Test_ReverseLookup(t *testing.T) {
	zone := mock.NewZone("2.0.192.in-addr.arpa.")
	err := zone.Add("10.2.0.192.in-addr.arpa. 300 IN PTR example.test.")
	require.NoError(t, err)

	srv, err := mock.Serve(zone)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	r := New([]string{srv.Addr()}, 2*time.Second)

	names, err := r.ReverseLookup(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.test"}, names)

	_, err = r.ReverseLookup(context.Background(), "not-an-ip")
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func Test_TransferRefused(t *testing.T) {
	r, _, srv := testZone(t)

	_, err := r.Transfer(context.Background(), srv.Addr(), "example.test")
	require.Error(t, err)
	assert.Equal(t, KindRefused, KindOf(err))
}

func Test_TransferAllowed(t *testing.T) {
	r, zone, srv := testZone(t)

	zone.AllowTransfer = true

	records, err := r.Transfer(context.Background(), srv.Addr(), "example.test")
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func Test_TransferUnreachable(t *testing.T) {
	r := New(nil, time.Second)

	_, err := r.Transfer(context.Background(), "127.0.0.1:1", "example.test")
	require.Error(t, err)
}

func Test_LookupTimeout(t *testing.T) {
	// Blackhole address, no server listening.
	r := New([]string{"127.0.0.1:1"}, 500*time.Millisecond)

	_, err := r.Lookup(context.Background(), "example.test", dns.TypeA)
	require.Error(t, err)

	kind := KindOf(err)
	assert.True(t, kind == KindTimeout || kind == KindNetwork)
}
