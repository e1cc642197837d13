package params

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-process parameter store. Reads copy the snapshot under
// a read lock; mutations are serialized and recompute the hash atomically.
type MemoryStore struct {
	mu         sync.RWMutex
	thresholds map[string]float64
	allowlist  map[string]struct{}
	hash       string
}

// NewMemoryStore seeds a store. Nil arguments fall back to Defaults.
func NewMemoryStore(thresholds map[string]float64, allowlist []string) (*MemoryStore, error) {
	if thresholds == nil && allowlist == nil {
		thresholds, allowlist = Defaults()
	}
	s := &MemoryStore{
		thresholds: make(map[string]float64, len(thresholds)),
		allowlist:  make(map[string]struct{}, len(allowlist)),
	}
	for k, v := range thresholds {
		s.thresholds[k] = v
	}
	for _, c := range allowlist {
		s.allowlist[c] = struct{}{}
	}
	if err := s.rehashLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStore) rehashLocked() error {
	h, err := Hash(s.thresholds, s.allowlistSliceLocked())
	if err != nil {
		return err
	}
	s.hash = h
	return nil
}

func (s *MemoryStore) allowlistSliceLocked() []string {
	out := make([]string, 0, len(s.allowlist))
	for c := range s.allowlist {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the current state with its hash.
func (s *MemoryStore) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thresholds := make(map[string]float64, len(s.thresholds))
	for k, v := range s.thresholds {
		thresholds[k] = v
	}
	return Snapshot{
		Thresholds: thresholds,
		Allowlist:  s.allowlistSliceLocked(),
		ParamHash:  s.hash,
	}, nil
}

// SetThreshold upserts a threshold.
func (s *MemoryStore) SetThreshold(ctx context.Context, name string, value float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.thresholds[name]
	s.thresholds[name] = value
	if err := s.rehashLocked(); err != nil {
		if had {
			s.thresholds[name] = prev
		} else {
			delete(s.thresholds, name)
		}
		return "", err
	}
	return s.hash, nil
}

// SetAllowlist adds or removes a country.
func (s *MemoryStore) SetAllowlist(ctx context.Context, country, action string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case "add":
		s.allowlist[country] = struct{}{}
	case "remove":
		delete(s.allowlist, country)
	default:
		return "", ErrUnknownAction
	}
	if err := s.rehashLocked(); err != nil {
		return "", err
	}
	return s.hash, nil
}
