package domain

import "time"

// BuildStats counts what happened during a single build pass.
type BuildStats struct {
	PassID      string
	Stage       string
	Paths       int
	Directories int
	Passthrough int
	Hits        int
	Misses      int
	Evicted     int
	Pruned      int
	Duration    time.Duration
}

// Processed returns the number of processable files seen during the pass.
func (s BuildStats) Processed() int {
	return s.Hits + s.Misses
}
