/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package cache

import "time"

// Stats holds process-local cache counters. They are not persisted and
// reset on every run.
type Stats struct {
	Hits      int
	Misses    int
	Updates   int
	TimeSaved time.Duration
	StartTime time.Time
}

// HitRate returns hits / (hits + misses), or 0 before any lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Runtime returns how long the cache has been in use this process.
func (s Stats) Runtime() time.Duration {
	return time.Since(s.StartTime)
}
