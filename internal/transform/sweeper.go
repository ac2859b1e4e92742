package transform

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drops expired cache entries on a cron schedule.
type Sweeper struct {
	d       *Dispatcher
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSweeper schedules d.PurgeExpired on schedule (standard 5-field cron).
func NewSweeper(d *Dispatcher, schedule string) (*Sweeper, error) {
	if d == nil {
		panic("transform: NewSweeper requires a dispatcher")
	}
	c := cron.New()
	s := &Sweeper{d: d, cron: c}
	id, err := c.AddFunc(schedule, func() { s.RunNow() })
	if err != nil {
		return nil, fmt.Errorf("transform: invalid sweep schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// RunNow performs one sweep immediately and returns the number of entries
// removed.
func (s *Sweeper) RunNow() int {
	removed := s.d.PurgeExpired()
	if removed > 0 {
		log.Printf("[dispatch] sweep removed %d expired entries", removed)
	}
	return removed
}

// Next reports when the next scheduled sweep fires. Zero before Start.
func (s *Sweeper) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
