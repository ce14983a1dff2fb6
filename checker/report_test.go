package checker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedChecksMarshalOrder(t *testing.T) {
	oc := NewOrderedChecks()
	oc.Set("ns", &CheckResult{Status: StatusPass, Issues: []string{}})
	oc.Set("soa", &CheckResult{Status: StatusError, Issues: []string{"broken"}})
	oc.Set("a", &CheckResult{Status: StatusWarning, Issues: []string{}})

	data, err := json.Marshal(oc)
	require.NoError(t, err)

	// Keys appear in insertion order, not sorted.
	assert.Regexp(t, `^\{"ns":.*"soa":.*"a":.*\}$`, string(data))
}

func TestOrderedChecksRoundTrip(t *testing.T) {
	oc := NewOrderedChecks()
	oc.Set("mx", &CheckResult{Status: StatusPass, Issues: []string{}, Count: 2})
	oc.Set("spf", &CheckResult{Status: StatusInfo, Issues: []string{"no spf"}})

	data, err := json.Marshal(oc)
	require.NoError(t, err)

	restored := NewOrderedChecks()
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, []string{"mx", "spf"}, restored.Names())

	mx, ok := restored.Get("mx")
	require.True(t, ok)
	assert.Equal(t, StatusPass, mx.Status)
	assert.Equal(t, 2, mx.Count)
}

func TestOrderedChecksOverwriteKeepsOrder(t *testing.T) {
	oc := NewOrderedChecks()
	oc.Set("ns", &CheckResult{Status: StatusPass})
	oc.Set("soa", &CheckResult{Status: StatusPass})
	oc.Set("ns", &CheckResult{Status: StatusError})

	assert.Equal(t, []string{"ns", "soa"}, oc.Names())

	ns, _ := oc.Get("ns")
	assert.Equal(t, StatusError, ns.Status)
}

func TestWorstStatus(t *testing.T) {
	assert.Equal(t, StatusError, worst(StatusWarning, StatusError))
	assert.Equal(t, StatusError, worst(StatusError, StatusPass))
	assert.Equal(t, StatusWarning, worst(StatusPass, StatusWarning))

	// Info never demotes an existing status.
	assert.Equal(t, StatusPass, worst(StatusPass, StatusInfo))
	assert.Equal(t, StatusError, worst(StatusError, StatusInfo))
}

func TestCheckResultFolding(t *testing.T) {
	res := newResult()
	assert.Equal(t, StatusPass, res.Status)

	res.addCheck(SubCheck{Name: "ok", Status: StatusPass})
	assert.Equal(t, StatusPass, res.Status)

	res.addCheck(SubCheck{Name: "meh", Status: StatusWarning})
	assert.Equal(t, StatusWarning, res.Status)

	res.addCheck(SubCheck{Name: "note", Status: StatusInfo})
	assert.Equal(t, StatusWarning, res.Status)

	res.addCheck(SubCheck{Name: "bad", Status: StatusError})
	assert.Equal(t, StatusError, res.Status)
}
