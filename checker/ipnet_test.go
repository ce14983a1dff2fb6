package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrivateAddr(t *testing.T) {
	for _, addr := range []string{"10.1.2.3", "192.168.0.1", "127.0.0.1", "172.16.5.5", "169.254.1.1", "fe80::1", "::1"} {
		assert.True(t, isPrivateAddr(addr), addr)
	}

	for _, addr := range []string{"93.184.216.34", "8.8.8.8", "2606:4700::1111"} {
		assert.False(t, isPrivateAddr(addr), addr)
	}
}

func TestDocAddr(t *testing.T) {
	assert.True(t, isDocAddr("192.0.2.1"))
	assert.True(t, isDocAddr("198.51.100.200"))
	assert.True(t, isDocAddr("2001:db8::1"))
	assert.False(t, isDocAddr("93.184.216.34"))
}

func TestParkingAddr(t *testing.T) {
	assert.True(t, isParkingAddr("69.46.86.10"))
	assert.True(t, isParkingAddr("98.124.199.1"))
	assert.False(t, isParkingAddr("8.8.8.8"))
}

func TestSuspiciousAddr(t *testing.T) {
	assert.True(t, isSuspiciousAddr("10.0.0.1"))
	assert.True(t, isSuspiciousAddr("192.0.2.1"))
	assert.True(t, isSuspiciousAddr("69.46.86.1"))
	assert.False(t, isSuspiciousAddr("93.184.216.34"))
	assert.False(t, isSuspiciousAddr("not-an-ip"))
}
