// Package scanloop runs periodic background work at a jittered cadence.
package scanloop

import (
	"math/rand/v2"
	"time"
)

const (
	// DefaultInterval and DefaultJitterRange define the background probe cadence
	// used when no interval source is configured.
	DefaultInterval    = 5 * time.Minute
	DefaultJitterRange = 10 * time.Second
)

// Run executes fn at a jittered interval until stopCh is closed.
// The interval is: interval() + random([0, jitterRange)). interval is read
// before every wait so runtime config changes apply on the next cycle.
func Run(stopCh <-chan struct{}, interval func() time.Duration, jitterRange time.Duration, fn func()) {
	if jitterRange < 0 {
		jitterRange = 0
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C // drain initial fire

	for {
		next := DefaultInterval
		if interval != nil {
			next = interval()
		}
		if next <= 0 {
			next = time.Second
		}
		if jitterRange > 0 {
			next += time.Duration(rand.Int64N(int64(jitterRange)))
		}

		timer.Reset(next)
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}
		fn()
	}
}
