// Package params holds the authoritative policy parameter snapshot.
//
// Invariant: param_hash is a deterministic function of snapshot content alone.
// Every decision embeds the hash of the exact snapshot the kernel evaluated.
package params

import (
	"context"
	"errors"
	"sort"

	"github.com/cicconel11/contramind-pilot/pkg/canonicalize"
)

// Threshold names the kernel reads.
const (
	ThresholdAmountMax = "amount_max"
	ThresholdRecentMax = "recent_max"
)

// ErrUnknownAction is returned for allowlist actions other than add/remove.
var ErrUnknownAction = errors.New("params: action must be add|remove")

// Snapshot is a consistent view of all parameters plus its content hash.
type Snapshot struct {
	Thresholds map[string]float64 `json:"thresholds"`
	Allowlist  []string           `json:"allowlist"`
	ParamHash  string             `json:"param_hash"`
}

// Threshold returns the named threshold or def when absent.
func (s Snapshot) Threshold(name string, def float64) float64 {
	if v, ok := s.Thresholds[name]; ok {
		return v
	}
	return def
}

// Allowed reports whether country is on the allowlist.
func (s Snapshot) Allowed(country string) bool {
	for _, c := range s.Allowlist {
		if c == country {
			return true
		}
	}
	return false
}

// Store is the parameter store contract. Mutations atomically update the hash;
// readers always observe a consistent (snapshot, hash) pair.
type Store interface {
	// Snapshot returns the current consistent view.
	Snapshot(ctx context.Context) (Snapshot, error)
	// SetThreshold upserts a threshold and returns the new param_hash.
	SetThreshold(ctx context.Context, name string, value float64) (string, error)
	// SetAllowlist applies action "add" or "remove" for country and returns
	// the new param_hash.
	SetAllowlist(ctx context.Context, country, action string) (string, error)
}

// Hash computes the param_hash over the canonical serialization of all
// parameters: thresholds keyed by name, allowlist sorted.
func Hash(thresholds map[string]float64, allowlist []string) (string, error) {
	sorted := append([]string(nil), allowlist...)
	sort.Strings(sorted)
	return canonicalize.CanonicalHash(map[string]interface{}{
		"thresholds": thresholds,
		"allowlist":  sorted,
	})
}

// Defaults is the out-of-the-box parameter set used when no seed file or
// database state exists.
func Defaults() (map[string]float64, []string) {
	thresholds := map[string]float64{
		ThresholdAmountMax: 2500,
		ThresholdRecentMax: 3,
	}
	allowlist := []string{"CA", "DE", "FR", "GB", "US"}
	return thresholds, allowlist
}
