package effects

import "time"

// Delay is a stereo feedback delay. Repeats bleed across channels and lose
// their top end on every pass through the damping filter.
type Delay struct {
	left, right delayLine
	feedback    float32
	cross       float32
	damp        float32
	wet         *Param
}

type delayLine struct {
	buf []float32
	pos int
	lp  float32
}

func (d *delayLine) read() float32 {
	return d.buf[d.pos]
}

func (d *delayLine) write(v float32) {
	d.buf[d.pos] = v
	if d.pos++; d.pos == len(d.buf) {
		d.pos = 0
	}
}

// NewDelay creates a delay with wet level 0. feedback is clamped to
// 0..0.95 and cross to 0..1; dampHz of 0 leaves repeats undamped.
func NewDelay(sampleRate int, delay time.Duration, feedback, cross float32, dampHz float64) *Delay {
	n := max(int(delay.Seconds()*float64(sampleRate)), 1)
	return &Delay{
		left:     delayLine{buf: make([]float32, n)},
		right:    delayLine{buf: make([]float32, n)},
		feedback: clamp(feedback, 0, 0.95),
		cross:    clamp(cross, 0, 1),
		damp:     onePole(sampleRate, dampHz),
		wet:      NewParam(sampleRate, 0),
	}
}

func (d *Delay) Wet() *Param {
	return d.wet
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	tapL, tapR := d.left.read(), d.right.read()
	fbL := d.feedback * ((1-d.cross)*tapL + d.cross*tapR)
	fbR := d.feedback * ((1-d.cross)*tapR + d.cross*tapL)
	if d.damp > 0 {
		d.left.lp += d.damp * (fbL - d.left.lp)
		d.right.lp += d.damp * (fbR - d.right.lp)
		fbL, fbR = d.left.lp, d.right.lp
	}
	d.left.write(l + fbL)
	d.right.write(r + fbR)

	wet := clamp(float32(d.wet.Next()), 0, 1)
	return l + (tapL-l)*wet, r + (tapR-r)*wet
}

func (d *Delay) Reset() {
	for _, line := range []*delayLine{&d.left, &d.right} {
		clear(line.buf)
		line.pos = 0
		line.lp = 0
	}
}
