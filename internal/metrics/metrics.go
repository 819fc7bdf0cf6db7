package metrics

import (
	"sync"
	"sync/atomic"
)

// rateLimitStats counts HTTP 429 rejections.
type rateLimitStats struct {
	total    uint64
	mu       sync.Mutex
	byPrefix map[string]uint64
}

var rl rateLimitStats

// IncRateLimitDrop increments drop counters for the given prefix.
// Use prefix "global" for global limiter rejections.
func IncRateLimitDrop(prefix string) {
	if prefix == "" {
		prefix = "global"
	}
	atomic.AddUint64(&rl.total, 1)
	rl.mu.Lock()
	if rl.byPrefix == nil {
		rl.byPrefix = make(map[string]uint64)
	}
	rl.byPrefix[prefix]++
	rl.mu.Unlock()
}

// RateLimitSnapshot returns a copy of the current counters.
func RateLimitSnapshot() (total uint64, by map[string]uint64) {
	total = atomic.LoadUint64(&rl.total)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	by = make(map[string]uint64, len(rl.byPrefix))
	for k, v := range rl.byPrefix {
		by[k] = v
	}
	return total, by
}

// automationStats counts engine activity.
type automationStats struct {
	events         uint64
	matched        uint64
	actionsOK      uint64
	actionsFailed  uint64
	actionsSkipped uint64
}

var am automationStats

// AutomationStats is a point-in-time copy of the automation counters.
type AutomationStats struct {
	Events         uint64 `json:"events"`
	Matched        uint64 `json:"matched"`
	ActionsOK      uint64 `json:"actions_ok"`
	ActionsFailed  uint64 `json:"actions_failed"`
	ActionsSkipped uint64 `json:"actions_skipped"`
}

// IncAutomationMatch records one evaluated event and n rules that fired.
func IncAutomationMatch(n int) {
	atomic.AddUint64(&am.events, 1)
	if n > 0 {
		atomic.AddUint64(&am.matched, uint64(n))
	}
}

// IncAutomationAction records the outcome of one executed action.
func IncAutomationAction(ok bool) {
	if ok {
		atomic.AddUint64(&am.actionsOK, 1)
		return
	}
	atomic.AddUint64(&am.actionsFailed, 1)
}

// IncAutomationSkipped records an action that was stored but not runnable.
func IncAutomationSkipped() {
	atomic.AddUint64(&am.actionsSkipped, 1)
}

func AutomationSnapshot() AutomationStats {
	return AutomationStats{
		Events:         atomic.LoadUint64(&am.events),
		Matched:        atomic.LoadUint64(&am.matched),
		ActionsOK:      atomic.LoadUint64(&am.actionsOK),
		ActionsFailed:  atomic.LoadUint64(&am.actionsFailed),
		ActionsSkipped: atomic.LoadUint64(&am.actionsSkipped),
	}
}
