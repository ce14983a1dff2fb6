package resolver

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// Kind classifies a lookup failure. Checkers switch on the kind to decide
// between error, warning and info outcomes.
type Kind uint8

// Lookup error kinds.
const (
	KindUnknown Kind = iota
	KindNXDomain
	KindNoData
	KindTimeout
	KindServfail
	KindRefused
	KindNetwork
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNXDomain:
		return "nxdomain"
	case KindNoData:
		return "nodata"
	case KindTimeout:
		return "timeout"
	case KindServfail:
		return "servfail"
	case KindRefused:
		return "refused"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// LookupError is the error value returned by every resolver operation.
// It never escapes the engine, checkers fold it into report issues.
type LookupError struct {
	Kind  Kind
	Name  string
	Qtype uint16
	Err   error
}

func (e *LookupError) Error() string {
	qtype := dns.TypeToString[e.Qtype]
	if e.Err != nil {
		return fmt.Sprintf("%s lookup %s: %s: %v", qtype, e.Name, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s lookup %s: %s", qtype, e.Name, e.Kind)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, name string, qtype uint16, err error) *LookupError {
	return &LookupError{Kind: kind, Name: name, Qtype: qtype, Err: err}
}

// KindOf returns the kind of err, or KindUnknown when err is not a
// LookupError.
func KindOf(err error) Kind {
	var le *LookupError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// IsNXDomain reports whether err is a name error.
func IsNXDomain(err error) bool { return KindOf(err) == KindNXDomain }

// IsNoData reports whether the name exists but carries no records of the
// queried type.
func IsNoData(err error) bool { return KindOf(err) == KindNoData }

// IsTimeout reports whether err is a query timeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsNegative reports whether err is an expected negative answer rather
// than a failure, NXDOMAIN or NODATA.
func IsNegative(err error) bool {
	k := KindOf(err)
	return k == KindNXDomain || k == KindNoData
}
