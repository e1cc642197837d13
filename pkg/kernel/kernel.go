// Package kernel is the pure policy decision function.
//
// Decide is deterministic: the same inputs and the same parameter snapshot
// produce identical output. It reads kernel_id and param_hash from the
// snapshot it evaluated, never from a later read.
package kernel

import (
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/contracts"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

// ID identifies this version of the policy function. Bump on any rule change:
// replay drift reports compare recorded decisions against the current kernel.
const ID = "cm.kernel.v1"

// Result is the kernel verdict before oracle resolution. NEED_ONE_BIT is a
// transient state the engine must resolve before signing.
type Result struct {
	Decision    string   `json:"decision"`
	Obligations []string `json:"obligations"`
	KernelID    string   `json:"kernel_id"`
	ParamHash   string   `json:"param_hash"`
}

// Decide evaluates policy over (inputs, snapshot).
//
// Rules combine via a severity lattice PASS(0) < NEED_ONE_BIT(1) < HOLD_HUMAN(2);
// the decision is the maximum severity any rule assigns. Each rule is monotone
// non-decreasing in amount and recent, so the combined decision is too.
func Decide(amount float64, country string, ts time.Time, recent int, snap params.Snapshot) Result {
	sev := 0
	var obligations []string

	if !snap.Allowed(country) {
		sev = max(sev, 2)
	}
	if amount > snap.Threshold(params.ThresholdAmountMax, 2500) {
		sev = max(sev, 1)
		obligations = append(obligations, contracts.ObligationMinInfo)
	}
	if float64(recent) > snap.Threshold(params.ThresholdRecentMax, 3) {
		sev = max(sev, 1)
	}
	// Weekend guard: a request that would otherwise pass needs the one-bit check.
	if sev == 0 && isWeekend(ts) {
		sev = 1
	}

	if obligations == nil {
		obligations = []string{}
	}
	return Result{
		Decision:    contracts.DecisionForSeverity(sev),
		Obligations: obligations,
		KernelID:    ID,
		ParamHash:   snap.ParamHash,
	}
}

func isWeekend(ts time.Time) bool {
	switch ts.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
