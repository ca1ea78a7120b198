package effects

import "math"

// Distortion is a tanh waveshaper whose drive and wet mix both follow a
// single 0..1 amount.
type Distortion struct {
	amount   *Param
	maxDrive float64
	lpfAlpha float32
	lpfL     float32
	lpfR     float32
}

// NewDistortion creates a distortion at amount 0 (transparent). maxDrive is
// the input gain at amount 1; lpfCutoff tames the added harmonics (0 = off).
func NewDistortion(sampleRate int, maxDrive float64, lpfCutoff float32) *Distortion {
	if maxDrive < 1 {
		maxDrive = 1
	}
	return &Distortion{
		amount:   NewParam(sampleRate, 0),
		maxDrive: maxDrive,
		lpfAlpha: onePole(sampleRate, float64(lpfCutoff)),
	}
}

// Amount exposes the ramped intensity.
func (d *Distortion) Amount() *Param {
	return d.amount
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	amt := d.amount.Next()
	if amt <= 0 {
		return l, r
	}
	drive := 1 + amt*(d.maxDrive-1)
	norm := math.Tanh(drive)
	wl := float32(math.Tanh(float64(l)*drive) / norm)
	wr := float32(math.Tanh(float64(r)*drive) / norm)
	if d.lpfAlpha > 0 {
		d.lpfL += d.lpfAlpha * (wl - d.lpfL)
		d.lpfR += d.lpfAlpha * (wr - d.lpfR)
		wl, wr = d.lpfL, d.lpfR
	}
	wet := float32(amt)
	return l*(1-wet) + wl*wet, r*(1-wet) + wr*wet
}

func (d *Distortion) Reset() {
	d.lpfL = 0
	d.lpfR = 0
}
