package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain(" Example.COM. "))
	assert.Equal(t, "example.com", NormalizeDomain("example.com"))
	assert.Equal(t, "", NormalizeDomain("  "))
}

func Test_ValidDomain(t *testing.T) {
	assert.True(t, ValidDomain("example.com"))
	assert.True(t, ValidDomain("a-b.example.co.uk"))
	assert.True(t, ValidDomain("123.example.com"))

	assert.False(t, ValidDomain(""))
	assert.False(t, ValidDomain("example"))
	assert.False(t, ValidDomain("-example.com"))
	assert.False(t, ValidDomain("example-.com"))
	assert.False(t, ValidDomain("exa_mple.com"))
	assert.False(t, ValidDomain("example..com"))
}

func Test_ValidDomainLength(t *testing.T) {
	label := strings.Repeat("a", 63)

	// 63+1+63+1+63+1+61 = 253 chars
	domain := label + "." + label + "." + label + "." + strings.Repeat("a", 61)
	assert.Len(t, domain, 253)
	assert.True(t, ValidDomain(domain))

	// 254 chars must be rejected
	domain = label + "." + label + "." + label + "." + strings.Repeat("a", 62)
	assert.Len(t, domain, 254)
	assert.False(t, ValidDomain(domain))

	// 64 char label must be rejected
	assert.False(t, ValidDomain(strings.Repeat("a", 64)+".com"))
}

func Test_TLD(t *testing.T) {
	assert.Equal(t, "com", TLD("example.com"))
	assert.Equal(t, "uk", TLD("example.co.uk"))
	assert.Equal(t, "localhost", TLD("localhost"))
}

func Test_InBailiwick(t *testing.T) {
	assert.True(t, InBailiwick("ns1.example.com", "example.com"))
	assert.True(t, InBailiwick("example.com", "example.com"))
	assert.True(t, InBailiwick("NS1.Example.com.", "example.com"))

	assert.False(t, InBailiwick("ns1.example.net", "example.com"))
	assert.False(t, InBailiwick("badexample.com", "example.com"))
}

func Test_SubnetKey(t *testing.T) {
	assert.Equal(t, "192.0.2.0/24", SubnetKey("192.0.2.55"))
	assert.Equal(t, SubnetKey("192.0.2.1"), SubnetKey("192.0.2.254"))
	assert.NotEqual(t, SubnetKey("192.0.2.1"), SubnetKey("192.0.3.1"))
	assert.Equal(t, "", SubnetKey("2001:db8::1"))
	assert.Equal(t, "", SubnetKey("not-an-ip"))
}

func Test_Deduplicate(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Deduplicate([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, Deduplicate(nil))
}
