package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountSPFLookups(t *testing.T) {
	tests := []struct {
		record string
		want   int
	}{
		{"v=spf1 -all", 0},
		{"v=spf1 mx ~all", 1},
		{"v=spf1 a mx include:_spf.google.com ~all", 3},
		{"v=spf1 ip4:192.0.2.0/24 -all", 0},
		{"v=spf1 a:mail.example.com mx:mx.example.com exists:%{i}.spf.example.com -all", 3},
		{"v=spf1 redirect=_spf.example.com", 1},
		{"v=spf1 +a +mx ptr ~all", 3},
		{
			"v=spf1 include:a.com include:b.com include:c.com include:d.com include:e.com " +
				"include:f.com include:g.com include:h.com include:i.com include:j.com include:k.com -all",
			11,
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, countSPFLookups(tt.record), tt.record)
	}
}

func TestSubSPFAll(t *testing.T) {
	tests := []struct {
		record string
		status Status
	}{
		{"v=spf1 mx -all", StatusPass},
		{"v=spf1 mx ~all", StatusPass},
		{"v=spf1 mx ?all", StatusPass},
		{"v=spf1 mx +all", StatusWarning},
		{"v=spf1 mx", StatusWarning},
		{"v=spf1 redirect=_spf.example.com", StatusPass},
	}

	for _, tt := range tests {
		sc := subSPFAll(tt.record)
		assert.Equal(t, tt.status, sc.Status, tt.record)
	}
}

func TestIsSPFRecord(t *testing.T) {
	assert.True(t, isSPFRecord("v=spf1 -all"))
	assert.True(t, isSPFRecord("  V=SPF1 mx ~all"))
	assert.False(t, isSPFRecord("v=spf10 -all"))
	assert.False(t, isSPFRecord("spf1 something"))
}

func TestHasSPFMechanism(t *testing.T) {
	assert.True(t, hasSPFMechanism("v=spf1 ptr ~all", "ptr"))
	assert.True(t, hasSPFMechanism("v=spf1 -ptr:example.com ~all", "ptr"))
	assert.False(t, hasSPFMechanism("v=spf1 mx ~all", "ptr"))
}
