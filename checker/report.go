package checker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the outcome of a check or sub-check.
type Status string

// The four report statuses. Summary counters partition over these.
const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

func statusRank(s Status) int {
	switch s {
	case StatusError:
		return 3
	case StatusWarning:
		return 2
	case StatusPass:
		return 1
	}
	return 0
}

// worst returns the more severe of two statuses. Info never demotes.
func worst(a, b Status) Status {
	if statusRank(b) > statusRank(a) {
		return b
	}
	return a
}

// SubCheck is one named diagnostic inside a check. Sub-check order in a
// result is deterministic regardless of query completion order.
type SubCheck struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Records any    `json:"records,omitempty"`
}

// NSComparison describes parent versus domain NS set agreement.
type NSComparison struct {
	Match  bool     `json:"match"`
	Parent []string `json:"parent"`
	Domain []string `json:"domain"`
}

// CheckResult is the uniform fragment every checker emits. Payload
// fields differ per checker and are omitted when unused.
type CheckResult struct {
	Status Status `json:"status"`

	Records any        `json:"records,omitempty"`
	Record  any        `json:"record,omitempty"`
	Checks  []SubCheck `json:"checks,omitempty"`

	Issues []string `json:"issues"`
	Count  int      `json:"count,omitempty"`

	// NS checker extras.
	ParentDelegation any           `json:"parent_delegation,omitempty"`
	Comparisons      *NSComparison `json:"comparisons,omitempty"`

	// TXT checker extras.
	Categorized map[string][]string `json:"categorized,omitempty"`

	// SPF checker extras.
	DNSLookups *int `json:"dns_lookups,omitempty"`

	// WILDCARD checker extras.
	HasWildcard *bool `json:"has_wildcard,omitempty"`
}

func newResult() *CheckResult {
	return &CheckResult{Status: StatusPass, Issues: []string{}}
}

func errorResult(format string, args ...any) *CheckResult {
	return &CheckResult{Status: StatusError, Issues: []string{fmt.Sprintf(format, args...)}}
}

func (r *CheckResult) addIssue(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

func (r *CheckResult) demote(s Status) {
	r.Status = worst(r.Status, s)
}

// addCheck appends a sub-check and folds its status into the result.
func (r *CheckResult) addCheck(sc SubCheck) {
	r.Checks = append(r.Checks, sc)
	r.demote(sc.Status)
}

// Summary counts check outcomes. Total always equals the number of
// entries in the checks map.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	Info     int `json:"info"`
}

// OrderedChecks is a name to CheckResult map that marshals in insertion
// order, the orchestrator's declared run order.
type OrderedChecks struct {
	names   []string
	results map[string]*CheckResult
}

// NewOrderedChecks returns an empty ordered check map.
func NewOrderedChecks() *OrderedChecks {
	return &OrderedChecks{results: make(map[string]*CheckResult)}
}

// Set stores a result, keeping first-insertion order on overwrite.
func (oc *OrderedChecks) Set(name string, res *CheckResult) {
	if _, ok := oc.results[name]; !ok {
		oc.names = append(oc.names, name)
	}
	oc.results[name] = res
}

// Get returns the result for a check name.
func (oc *OrderedChecks) Get(name string) (*CheckResult, bool) {
	res, ok := oc.results[name]
	return res, ok
}

// Names returns check names in insertion order.
func (oc *OrderedChecks) Names() []string {
	return oc.names
}

// Len returns the number of stored results.
func (oc *OrderedChecks) Len() int {
	return len(oc.names)
}

// MarshalJSON emits the map in insertion order.
func (oc *OrderedChecks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, name := range oc.names {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(oc.results[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON restores the map, order follows document order.
func (oc *OrderedChecks) UnmarshalJSON(data []byte) error {
	oc.results = make(map[string]*CheckResult)
	oc.names = nil

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("checks: expected object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}

		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("checks: expected key, got %v", tok)
		}

		res := new(CheckResult)
		if err := dec.Decode(res); err != nil {
			return err
		}

		oc.Set(name, res)
	}

	return nil
}

// Report is the top level analysis result, serialized verbatim by the
// HTTP layer.
type Report struct {
	Domain    string         `json:"domain"`
	Timestamp string         `json:"timestamp"`
	Status    string         `json:"status"`
	Checks    *OrderedChecks `json:"checks"`
	Summary   Summary        `json:"summary"`
}
