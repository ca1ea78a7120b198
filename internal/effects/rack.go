package effects

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownEffect = errors.New("unknown effect")

// Effect names accepted by Rack.SetTarget.
const (
	NameDistortion = "distortion"
	NameDelay      = "delay"
	NameReverb     = "reverb"
)

// RackConfig sizes the fixed master chain.
type RackConfig struct {
	DistortionDrive float64
	DistortionLPF   float32
	DelayTime       time.Duration
	DelayFeedback   float32
	DelayCross      float32
	// DelayDampHz lowpasses the repeats; 0 disables it.
	DelayDampHz      float64
	ReverbDecay      time.Duration
	ReverbDamping    float32
	LimiterCeilingDB float64
}

// DefaultRackConfig uses an eighth-note delay at 120 BPM with feedback 0.5
// and a three second reverb tail.
func DefaultRackConfig() RackConfig {
	return RackConfig{
		DistortionDrive:  20,
		DistortionLPF:    9000,
		DelayTime:        250 * time.Millisecond,
		DelayFeedback:    0.5,
		DelayCross:       0.3,
		DelayDampHz:      4500,
		ReverbDecay:      3 * time.Second,
		ReverbDamping:    0.4,
		LimiterCeilingDB: -1,
	}
}

// Rack is distortion, delay and reverb in series, then the limiter.
type Rack struct {
	distortion *Distortion
	delay      *Delay
	reverb     *Reverb
	chain      Chain
}

func NewRack(sampleRate int, cfg RackConfig) *Rack {
	r := &Rack{
		distortion: NewDistortion(sampleRate, cfg.DistortionDrive, cfg.DistortionLPF),
		delay:      NewDelay(sampleRate, cfg.DelayTime, cfg.DelayFeedback, cfg.DelayCross, cfg.DelayDampHz),
		reverb:     NewReverb(sampleRate, cfg.ReverbDecay, cfg.ReverbDamping),
	}
	r.chain = Chain{
		r.distortion,
		r.delay,
		r.reverb,
		NewLimiter(sampleRate, cfg.LimiterCeilingDB, 1, 100),
	}
	return r
}

func (r *Rack) param(name string) (*Param, error) {
	switch name {
	case NameDistortion:
		return r.distortion.Amount(), nil
	case NameDelay:
		return r.delay.Wet(), nil
	case NameReverb:
		return r.reverb.Wet(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
}

// SetTarget starts ramping the named effect toward target, clamped to 0..1.
func (r *Rack) SetTarget(name string, target float64, tc time.Duration) error {
	p, err := r.param(name)
	if err != nil {
		return err
	}
	p.SetTarget(min(max(target, 0), 1), tc)
	return nil
}

// Level reports the current (ramping) level of the named effect.
func (r *Rack) Level(name string) (float64, error) {
	p, err := r.param(name)
	if err != nil {
		return 0, err
	}
	return p.Value(), nil
}

func (r *Rack) Process(l, rr float32) (float32, float32) {
	return r.chain.Process(l, rr)
}

// ProcessInterleaved runs the rack in place over interleaved stereo frames.
func (r *Rack) ProcessInterleaved(buf []float32) {
	r.chain.ProcessInterleaved(buf)
}

func (r *Rack) Reset() {
	r.chain.Reset()
}
