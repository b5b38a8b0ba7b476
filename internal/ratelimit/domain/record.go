package domain

import "time"

// Record is the fixed-window counter kept per principal.
type Record struct {
	Key         string
	Count       int
	WindowStart time.Time
	LastRequest time.Time
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Apply is the fixed-window transition for one request at now. next is nil
// when the request is denied and nothing changes.
func Apply(cur *Record, key string, now time.Time, max int, window time.Duration) (*Record, Decision) {
	if cur == nil || now.Sub(cur.WindowStart) >= window || now.Before(cur.WindowStart) {
		return &Record{Key: key, Count: 1, WindowStart: now, LastRequest: now},
			Decision{Allowed: true, Remaining: max - 1, ResetAt: now.Add(window)}
	}

	resetAt := cur.WindowStart.Add(window)
	if cur.Count >= max {
		return nil, Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	next := *cur
	next.Count++
	next.LastRequest = now
	return &next, Decision{Allowed: true, Remaining: max - next.Count, ResetAt: resetAt}
}
