package dispatch

import (
	"math/rand"
	"time"
)

// Simulator schedules deferred task actions (simulated completions,
// auto-start delays). The production implementation is timer-based; tests
// swap in a manual simulator that fires on demand. fire must be invoked
// asynchronously — never from inside Schedule — because it re-enters the
// dispatcher.
type Simulator interface {
	// Schedule arranges for fire to run after delay and returns a cancel
	// func. Cancel is safe to call after firing.
	Schedule(delay time.Duration, fire func()) (cancel func())
}

// TimerSimulator is the production Simulator, backed by time.AfterFunc.
type TimerSimulator struct{}

// Schedule implements Simulator.
func (TimerSimulator) Schedule(delay time.Duration, fire func()) func() {
	t := time.AfterFunc(delay, fire)
	return func() { t.Stop() }
}

func defaultRand() float64 {
	return rand.Float64()
}
