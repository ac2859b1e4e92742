// Package metrics implements bounded in-memory observation windows.
package metrics

import "time"

// Outcome classifies how a dispatcher request was served.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"      // served from cache
	OutcomeMiss     Outcome = "miss"     // originated an upstream call that succeeded
	OutcomeShared   Outcome = "shared"   // joined an in-flight upstream call
	OutcomeFallback Outcome = "fallback" // upstream failed or was rate limited
	OutcomeTimeout  Outcome = "timeout"  // upstream or caller deadline elapsed
	OutcomeTrimmed  Outcome = "trimmed"  // dropped from an oversized batch
)

// WindowSummary aggregates the observations currently held in a ring.
type WindowSummary struct {
	Observations  int                 `json:"observations"`
	ByOutcome     map[Outcome]int     `json:"by_outcome"`
	HitRate       float64             `json:"hit_rate"`
	AverageMs     float64             `json:"average_ms"`
	AverageByKind map[Outcome]float64 `json:"average_ms_by_outcome"`
	Oldest        time.Time           `json:"oldest,omitzero"`
}

// Summarize computes a WindowSummary over the observations in r.
func Summarize(r *Ring[Observation]) WindowSummary {
	sum := WindowSummary{
		ByOutcome:     make(map[Outcome]int),
		AverageByKind: make(map[Outcome]float64),
	}
	var total time.Duration
	totals := make(map[Outcome]time.Duration)
	r.Range(func(o Observation) bool {
		sum.Observations++
		sum.ByOutcome[o.Outcome]++
		total += o.Duration
		totals[o.Outcome] += o.Duration
		sum.Oldest = o.At
		return true
	})
	if sum.Observations == 0 {
		return sum
	}
	sum.HitRate = float64(sum.ByOutcome[OutcomeHit]) / float64(sum.Observations)
	sum.AverageMs = durationMs(total) / float64(sum.Observations)
	for outcome, d := range totals {
		sum.AverageByKind[outcome] = durationMs(d) / float64(sum.ByOutcome[outcome])
	}
	return sum
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
