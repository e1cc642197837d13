package oracle

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"time"
)

// Simulator is the local stand-in for the vendor oracle: random latency up to
// MaxLatency, random bit unless the request forces one. Usable both in-process
// (Checker) and as an HTTP endpoint.
type Simulator struct {
	MaxLatency time.Duration
	// PassRate is the probability of bit=true when Force is absent.
	PassRate float64
}

// NewSimulator creates a simulator with the original demo defaults.
func NewSimulator(maxLatency time.Duration) *Simulator {
	if maxLatency <= 0 {
		maxLatency = 1500 * time.Millisecond
	}
	return &Simulator{MaxLatency: maxLatency, PassRate: 0.5}
}

// Check implements Checker in-process.
func (s *Simulator) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	latency := s.latency()
	select {
	case <-ctx.Done():
		return CheckResult{}, ctx.Err()
	case <-time.After(latency):
	}
	return CheckResult{Bit: s.bit(req), LatencyMS: int(latency.Milliseconds())}, nil
}

// Register mounts the simulator HTTP surface on mux. The route is prefixed so
// it can share a mux with the attestor's POST /verify; clients point their
// base URL at /worldcheck.
func (s *Simulator) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /worldcheck/verify", s.handleVerify)
}

func (s *Simulator) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	latency := s.latency()
	time.Sleep(latency)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(CheckResult{Bit: s.bit(req), LatencyMS: int(latency.Milliseconds())})
}

func (s *Simulator) latency() time.Duration {
	minLatency := 100 * time.Millisecond
	if s.MaxLatency <= minLatency {
		return s.MaxLatency
	}
	return minLatency + time.Duration(rand.Int63n(int64(s.MaxLatency-minLatency)))
}

func (s *Simulator) bit(req CheckRequest) bool {
	if req.Force != nil {
		return *req.Force
	}
	return rand.Float64() < s.PassRate
}
