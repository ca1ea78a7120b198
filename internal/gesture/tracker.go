package gesture

import "math"

// Point is a normalized 2D landmark position, (0,0) top-left.
type Point struct {
	X, Y float64
}

// Frame is one hand-tracking tick. A nil Primary means the conducting hand
// was not found in this tick.
type Frame struct {
	Primary     *Point
	Secondary   *Point
	TimestampMs int64
}

// Tracker turns per-tick hand positions into Samples. Velocity is the
// distance the primary hand moved since the previous tick.
type Tracker struct {
	last    Point
	hasLast bool
}

// Observe consumes a frame. It yields no sample on the first tick after the
// primary hand appears, and forgets the hand when it disappears.
func (t *Tracker) Observe(f Frame) (Sample, bool) {
	if f.Primary == nil {
		t.hasLast = false
		return Sample{}, false
	}
	cur := *f.Primary
	prev, ok := t.last, t.hasLast
	t.last, t.hasLast = cur, true
	if !ok {
		return Sample{}, false
	}
	s := Sample{
		Primary:     cur.Y,
		Velocity:    math.Hypot(cur.X-prev.X, cur.Y-prev.Y),
		TimestampMs: f.TimestampMs,
	}
	if f.Secondary != nil {
		s = s.WithSecondary(f.Secondary.Y)
	}
	return s, true
}

// Reset forgets the last seen primary position.
func (t *Tracker) Reset() {
	t.hasLast = false
}
