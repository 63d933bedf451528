package moderation

import (
	"sync"
	"time"

	"studyguard/internal/utils"
)

// RaidDetector watches guild joins. When the join rate exceeds the threshold
// it reports the whole cohort still inside the window, so every member of
// the wave is handled, not just the join that tipped it over. The window is
// deliberately not cleared on trigger: stragglers joining right after still
// count as part of the raid, but each member is reported only once per wave
// so the callers do not re-ban or re-alert for the same accounts.
type RaidDetector struct {
	mu        sync.Mutex
	joins     *utils.IDWindow
	threshold int
	window    time.Duration

	waveEnd  time.Time
	reported map[string]struct{}
}

func NewRaidDetector(threshold int, window time.Duration) *RaidDetector {
	return &RaidDetector{
		joins:     utils.NewIDWindow(window),
		threshold: threshold,
		window:    window,
	}
}

// RecordJoin registers a join. When the threshold is exceeded it returns the
// not-yet-reported members of the wave; fresh is true only for the join that
// started the wave, so lockdown and alerting happen once. Joins arriving
// while a wave is active are treated as stragglers and reported on their
// own, extending the wave.
func (d *RaidDetector) RecordJoin(userID string, now time.Time) (fresh bool, cohort []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count := d.joins.Add(userID, now)
	active := now.Before(d.waveEnd)
	if count <= d.threshold && !active {
		return false, nil
	}

	fresh = !active
	if fresh {
		d.reported = make(map[string]struct{})
	}
	d.waveEnd = now.Add(d.window)

	for _, id := range d.joins.IDs(now) {
		if _, seen := d.reported[id]; seen {
			continue
		}
		d.reported[id] = struct{}{}
		cohort = append(cohort, id)
	}
	return fresh, cohort
}
