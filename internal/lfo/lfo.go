// Package lfo provides the low-frequency oscillator used for vibrato and
// tremolo on sustained instruments.
package lfo

import "math"

type Shape int

const (
	ShapeSine Shape = iota
	ShapeTriangle
	ShapeSquare
	ShapeSaw
)

// LFO produces one modulation value per audio frame. The zero value is
// silent.
type LFO struct {
	depth  float64 // output units depend on the caller: semitones, gain
	rateHz float64
	shape  Shape
	phase  float64 // [0, 1)
	delay  int     // frames to hold at zero after Reset
	held   int
}

// Set configures depth, rate and shape. Unknown shapes fall back to sine.
func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	if shape < ShapeSine || shape > ShapeSaw {
		shape = ShapeSine
	}
	l.shape = shape
}

// SetDelay keeps the output at zero for the given number of frames after
// each Reset, so vibrato fades in behind the attack.
func (l *LFO) SetDelay(frames int) {
	if frames < 0 {
		frames = 0
	}
	l.delay = frames
	l.held = frames
}

// Sample advances one frame and returns a value in [-depth, +depth].
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	if l.held > 0 {
		l.held--
		return 0
	}

	var v float64
	switch l.shape {
	case ShapeTriangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case ShapeSquare:
		v = -1
		if l.phase < 0.5 {
			v = 1
		}
	case ShapeSaw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset rewinds the phase and re-arms the delay.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = l.delay
}
