package engine

import "time"

// Accountant tracks the start of the current time segment. Every read of
// elapsed time that gets attributed to a question goes through Take so the
// segment start is always reset afterwards.
type Accountant struct {
	now          func() time.Time
	segmentStart time.Time
}

func NewAccountant(now func() time.Time) *Accountant {
	if now == nil {
		now = time.Now
	}
	return &Accountant{now: now, segmentStart: now()}
}

// Reset starts a new segment at the current time.
func (a *Accountant) Reset() {
	a.segmentStart = a.now()
}

// Elapsed returns whole seconds since the segment started.
func (a *Accountant) Elapsed() int {
	d := a.now().Sub(a.segmentStart)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Take returns the elapsed seconds and starts a new segment.
func (a *Accountant) Take() int {
	elapsed := a.Elapsed()
	a.Reset()
	return elapsed
}

// Now exposes the injected clock.
func (a *Accountant) Now() time.Time {
	return a.now()
}
