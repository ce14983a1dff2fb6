// Package tld loads and indexes IANA root zone data. The registry maps a
// TLD label to its authoritative nameservers and glue, it is read-only
// for the lifetime of a request and safe to share.
package tld

import (
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/semihalev/zlog/v2"
)

var (
	// ErrUnknownTLD is returned when the registry has no entry for a label.
	ErrUnknownTLD = errors.New("tld not found in registry")

	// ErrNoAuthority is returned when a TLD entry carries no usable
	// nameserver address.
	ErrNoAuthority = errors.New("no authority address for tld")
)

// Nameserver is one registry nameserver for a TLD with optional glue.
type Nameserver struct {
	Hostname string `json:"hostname"`
	IPv4     string `json:"ipv4,omitempty"`
	IPv6     string `json:"ipv6,omitempty"`
}

// Entry holds the nameserver set of a single TLD.
type Entry struct {
	TLD         string       `json:"tld"`
	Nameservers []Nameserver `json:"nserver"`
}

// Registry indexes TLD entries by label. Reload swaps the whole index
// atomically, readers never see a partial state.
type Registry struct {
	path string

	mu      sync.RWMutex
	entries map[string]Entry
}

// Load reads a registry from a JSON document keyed by TLD label.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path, entries: make(map[string]Entry)}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewStatic builds a registry from a fixed entry set, used by tests and
// callers that manage their own data.
func NewStatic(entries map[string]Entry) *Registry {
	indexed := make(map[string]Entry, len(entries))
	for label, e := range entries {
		label = normalizeLabel(label)
		e.TLD = label
		indexed[label] = e
	}

	return &Registry{entries: indexed}
}

// Reload re-reads the data file and swaps the index.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return err
	}

	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	entries := make(map[string]Entry, len(raw))
	for label, e := range raw {
		label = normalizeLabel(label)
		e.TLD = label
		entries[label] = e
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	zlog.Info("TLD registry loaded", "path", r.path, "tlds", len(entries))

	return nil
}

// Get returns the entry for a TLD label.
func (r *Registry) Get(label string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[normalizeLabel(label)]
	return e, ok
}

// Len returns the number of indexed TLDs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// PickAuthority selects one nameserver of the TLD uniformly at random
// among those with an IPv4 address.
func (r *Registry) PickAuthority(label string) (hostname, ipv4 string, err error) {
	e, ok := r.Get(label)
	if !ok {
		return "", "", ErrUnknownTLD
	}

	var candidates []Nameserver
	for _, ns := range e.Nameservers {
		if ns.IPv4 != "" {
			candidates = append(candidates, ns)
		}
	}

	if len(candidates) == 0 {
		return "", "", ErrNoAuthority
	}

	pick := candidates[rand.Intn(len(candidates))]

	return pick.Hostname, pick.IPv4, nil
}

// Authorities returns all nameservers of the TLD carrying an IPv4
// address, used for fallback when the picked server fails.
func (r *Registry) Authorities(label string) []Nameserver {
	e, ok := r.Get(label)
	if !ok {
		return nil
	}

	var out []Nameserver
	for _, ns := range e.Nameservers {
		if ns.IPv4 != "" {
			out = append(out, ns)
		}
	}

	return out
}

func normalizeLabel(label string) string {
	return strings.TrimPrefix(strings.TrimSuffix(strings.ToLower(label), "."), ".")
}
