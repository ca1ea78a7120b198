package effects

import (
	"math"
	"time"
)

// Comb lengths in samples at 44.1kHz. The right channel's combs run a few
// samples longer to decorrelate the tails.
var (
	combTuning    = [...]int{1116, 1188, 1277, 1356}
	allpassTuning = [...]int{556, 441}
)

const stereoSpread = 23

// Reverb is a damped-comb stereo reverb whose tail length is given as the
// time to decay by 60dB. The wet level is ramped.
type Reverb struct {
	left, right reverbChannel
	wet         *Param
}

type reverbChannel struct {
	combs   [len(combTuning)]comb
	allpass [len(allpassTuning)]allpass
}

type comb struct {
	buf  []float32
	pos  int
	fb   float32
	damp float32
	lp   float32
}

type allpass struct {
	buf []float32
	pos int
}

// NewReverb creates a reverb with wet level 0. Damping (0..1) darkens the
// tail; 0 keeps it bright.
func NewReverb(sampleRate int, decay time.Duration, damping float32) *Reverb {
	r := &Reverb{wet: NewParam(sampleRate, 0)}
	r.left.init(sampleRate, decay, damping, 0)
	r.right.init(sampleRate, decay, damping, stereoSpread)
	return r
}

func (ch *reverbChannel) init(sampleRate int, decay time.Duration, damping float32, spread int) {
	scale := float64(sampleRate) / 44100
	rt60 := max(decay.Seconds(), 0.05)
	for i, n := range combTuning {
		size := max(int(float64(n+spread)*scale), 1)
		// Feedback that loses 60dB over rt60 seconds at this loop length.
		g := math.Pow(10, -3*float64(size)/(rt60*float64(sampleRate)))
		ch.combs[i] = comb{buf: make([]float32, size), fb: float32(min(g, 0.98)), damp: clamp(damping, 0, 1)}
	}
	for i, n := range allpassTuning {
		ch.allpass[i] = allpass{buf: make([]float32, max(int(float64(n+spread)*scale), 1))}
	}
}

func (ch *reverbChannel) process(in float32) float32 {
	var out float32
	for i := range ch.combs {
		out += ch.combs[i].process(in)
	}
	out /= float32(len(ch.combs))
	for i := range ch.allpass {
		out = ch.allpass[i].process(out)
	}
	return out
}

func (ch *reverbChannel) reset() {
	for i := range ch.combs {
		clear(ch.combs[i].buf)
		ch.combs[i].pos, ch.combs[i].lp = 0, 0
	}
	for i := range ch.allpass {
		clear(ch.allpass[i].buf)
		ch.allpass[i].pos = 0
	}
}

func (r *Reverb) Wet() *Param {
	return r.wet
}

func (r *Reverb) Process(l, rr float32) (float32, float32) {
	in := (l + rr) * 0.5
	outL := r.left.process(in)
	outR := r.right.process(in)
	wet := clamp(float32(r.wet.Next()), 0, 1)
	return l + (outL-l)*wet, rr + (outR-rr)*wet
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (c *comb) process(in float32) float32 {
	out := c.buf[c.pos]
	c.lp = out*(1-c.damp) + c.lp*c.damp
	c.buf[c.pos] = in + c.lp*c.fb
	if c.pos++; c.pos == len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpass) process(in float32) float32 {
	delayed := a.buf[a.pos]
	a.buf[a.pos] = in + delayed*0.5
	if a.pos++; a.pos == len(a.buf) {
		a.pos = 0
	}
	return delayed - in
}
