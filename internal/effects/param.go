package effects

import (
	"math"
	"time"
)

// Param is a per-frame smoothed control value. After SetTarget it moves
// exponentially toward the target: after one time constant it has covered
// about 63% of the distance.
type Param struct {
	sampleRate float64
	value      float64
	target     float64
	coef       float64
}

func NewParam(sampleRate int, initial float64) *Param {
	return &Param{sampleRate: float64(sampleRate), value: initial, target: initial}
}

// SetTarget starts a ramp from the current value. A non-positive time
// constant jumps immediately.
func (p *Param) SetTarget(target float64, tc time.Duration) {
	p.target = target
	frames := tc.Seconds() * p.sampleRate
	if frames <= 0 {
		p.value = target
		p.coef = 0
		return
	}
	p.coef = 1 - math.Exp(-1/frames)
}

// Next advances one frame and returns the new value.
func (p *Param) Next() float64 {
	if p.value == p.target {
		return p.value
	}
	p.value += p.coef * (p.target - p.value)
	if math.Abs(p.target-p.value) < 1e-6 {
		p.value = p.target
	}
	return p.value
}

func (p *Param) Value() float64 {
	return p.value
}

func (p *Param) Target() float64 {
	return p.target
}
