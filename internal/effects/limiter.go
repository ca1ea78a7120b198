package effects

import "math"

// Limiter keeps the master bus under a ceiling. Both channels share one
// envelope so the stereo image does not shift under gain reduction.
type Limiter struct {
	ceiling float32
	attack  float32 // coefficient
	release float32 // coefficient
	env     float32
}

// NewLimiter creates a limiter with the ceiling in dBFS (e.g. -1).
func NewLimiter(sampleRate int, ceilingDB, attackMs, releaseMs float64) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		ceiling: float32(math.Pow(10, ceilingDB/20)),
		attack:  float32(1.0 - math.Exp(-1.0/(attackMs*sr/1000.0))),
		release: float32(1.0 - math.Exp(-1.0/(releaseMs*sr/1000.0))),
	}
}

func (c *Limiter) Process(l, r float32) (float32, float32) {
	peak := max(abs32(l), abs32(r))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	gain := float32(1)
	if c.env > c.ceiling {
		gain = c.ceiling / c.env
	}
	return clamp(l*gain, -1, 1), clamp(r*gain, -1, 1)
}

func (c *Limiter) Reset() {
	c.env = 0
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
