// Package effects holds the master-bus processors: distortion, delay and
// reverb with smoothly ramped intensity, followed by a safety limiter.
package effects

import "math"

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs effects in series, first to last.
type Chain []Effector

func (c Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c {
		l, r = e.Process(l, r)
	}
	return l, r
}

// ProcessInterleaved runs the chain in place over interleaved stereo
// frames. A trailing odd sample is left alone.
func (c Chain) ProcessInterleaved(buf []float32) {
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = c.Process(buf[i], buf[i+1])
	}
}

func (c Chain) Reset() {
	for _, e := range c {
		e.Reset()
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

// onePole returns the smoothing coefficient of a one-pole lowpass at
// cutoff Hz, or 0 when the cutoff is outside (0, Nyquist).
func onePole(sampleRate int, cutoff float64) float32 {
	if cutoff <= 0 || cutoff >= float64(sampleRate)/2 {
		return 0
	}
	return float32(1 - math.Exp(-2*math.Pi*cutoff/float64(sampleRate)))
}
