// Package voice is a small polyphonic oscillator bank. One Engine plays one
// timbre; the synth runs an Engine per instrument.
package voice

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/conductor-go/internal/lfo"
	"github.com/cbegin/conductor-go/internal/pitch"
)

const twoPi = math.Pi * 2

type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSawtooth
	WaveSquare
)

// Timbre describes how one instrument sounds. ModRatio and ModIndex add a
// sine modulator in front of the carrier (two-operator FM); a zero index
// leaves the carrier unmodulated.
type Timbre struct {
	Waveform Waveform
	ModRatio float64
	ModIndex float64

	AttackSec  float64
	DecaySec   float64
	Sustain    float64
	ReleaseSec float64

	VibratoDepth float64 // semitones
	VibratoRate  float64 // Hz
	VibratoDelay float64 // seconds

	Gain float64
}

// Piano is the default voice: a soft triangle with a quick decay.
func Piano() Timbre {
	return Timbre{
		Waveform:   WaveTriangle,
		AttackSec:  0.05,
		DecaySec:   0.3,
		Sustain:    0.2,
		ReleaseSec: 0.8,
		Gain:       0.9,
	}
}

// Strings is a slow FM sawtooth pad with delayed vibrato.
func Strings() Timbre {
	return Timbre{
		Waveform:     WaveSawtooth,
		ModRatio:     1,
		ModIndex:     0.6,
		AttackSec:    0.5,
		DecaySec:     0.5,
		Sustain:      0.8,
		ReleaseSec:   2,
		VibratoDepth: 0.12,
		VibratoRate:  5.5,
		VibratoDelay: 0.3,
		Gain:         0.45,
	}
}

// Synth is a band-limited square lead.
func Synth() Timbre {
	return Timbre{
		Waveform:   WaveSquare,
		AttackSec:  0.1,
		DecaySec:   0.2,
		Sustain:    0.5,
		ReleaseSec: 1,
		Gain:       0.35,
	}
}

type Params struct {
	Polyphony   int
	MasterGain  float64
	VelocityAmp float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:   16,
		MasterGain:  0.5,
		VelocityAmp: 0.8,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active      bool
	id          int
	age         uint64
	velocity    float64
	freq        float64
	phase       float64 // carrier, [0, 1)
	modPhase    float64 // radians
	env         float64
	state       envState
	releaseStep float64
	pan         float64
}

// Engine is a voice pool for one timbre. It is not safe for concurrent use,
// except SetMasterGain which may be called from any goroutine.
type Engine struct {
	sampleRate float64
	params     Params
	timbre     Timbre
	voices     []voice
	nextID     int
	clock      uint64
	masterGain uint64
	vibrato    lfo.LFO
}

func New(sampleRate int, timbre Timbre, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = DefaultParams().Polyphony
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		timbre:     timbre,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
	}
	e.vibrato.Set(timbre.VibratoDepth, timbre.VibratoRate, lfo.ShapeSine)
	e.vibrato.SetDelay(int(timbre.VibratoDelay * e.sampleRate))
	return e
}

// NoteOn starts a note and returns its id. velocity is 0..127, pan is
// -64 (left) to 64 (right).
func (e *Engine) NoteOn(note, velocity, pan int) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	e.clock++
	if e.ActiveVoiceCount() == 0 {
		e.vibrato.Reset()
	}
	e.voices[slot] = voice{
		active:   true,
		id:       id,
		age:      e.clock,
		velocity: clamp(float64(velocity)/127, 0, 1),
		freq:     pitch.Freq(note),
		state:    envAttack,
		pan:      clamp(float64(pan), -64, 64),
	}
	return id
}

// NoteOff moves the voice into its release stage. Unknown ids are ignored.
func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id {
			e.release(v)
		}
	}
}

// ReleaseAll releases every sounding voice.
func (e *Engine) ReleaseAll() {
	for i := range e.voices {
		if e.voices[i].active {
			e.release(&e.voices[i])
		}
	}
}

func (e *Engine) release(v *voice) {
	if v.state == envRelease || v.state == envOff {
		return
	}
	v.state = envRelease
	v.releaseStep = v.env / (math.Max(e.timbre.ReleaseSec, 0.001) * e.sampleRate)
	if v.releaseStep <= 0 {
		v.releaseStep = 1
	}
}

func (e *Engine) RenderFrame() (float32, float32) {
	vib := e.vibrato.Sample(e.sampleRate)
	freqMul := 1.0
	if vib != 0 {
		freqMul = math.Pow(2, vib/12)
	}
	gain := e.masterGainValue() * e.timbre.Gain

	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		e.advanceEnv(v)
		if v.state == envOff {
			v.active = false
			continue
		}
		freq := v.freq * freqMul
		sig := e.oscillate(v, freq) * v.env
		sig *= gain * (0.2 + v.velocity*e.params.VelocityAmp)
		angle := ((v.pan + 64) / 128) * (math.Pi / 2)
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (e *Engine) oscillate(v *voice, freq float64) float64 {
	dt := freq / e.sampleRate
	phase := v.phase
	if e.timbre.ModIndex != 0 {
		phase += e.timbre.ModIndex * math.Sin(v.modPhase) / twoPi
		phase -= math.Floor(phase)
		v.modPhase += twoPi * freq * e.timbre.ModRatio / e.sampleRate
		if v.modPhase > twoPi {
			v.modPhase -= twoPi
		}
	}

	var out float64
	switch e.timbre.Waveform {
	case WaveTriangle:
		out = 2*math.Abs(2*phase-1) - 1
	case WaveSawtooth:
		out = 1 - 2*phase
		out += polyBLEP(phase, dt)
	case WaveSquare:
		out = -1
		if phase < 0.5 {
			out = 1
		}
		out += polyBLEP(phase, dt)
		out -= polyBLEP(math.Mod(phase+0.5, 1), dt)
	default:
		out = math.Sin(twoPi * phase)
	}

	v.phase += dt
	if v.phase >= 1 {
		v.phase -= 1
	}
	return out
}

// polyBLEP reduces aliasing at waveform discontinuities.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (e *Engine) advanceEnv(v *voice) {
	t := e.timbre
	switch v.state {
	case envAttack:
		v.env += 1 / (math.Max(t.AttackSec, 0.001) * e.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		v.env -= (1 - t.Sustain) / (math.Max(t.DecaySec, 0.001) * e.sampleRate)
		if v.env <= t.Sustain {
			v.env = t.Sustain
			v.state = envSustain
		}
	case envSustain:
		if t.Sustain <= 0 {
			v.state = envOff
		}
	case envRelease:
		v.env -= v.releaseStep
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	}
}

// stealVoice returns a free slot, or the oldest releasing voice, or the
// oldest voice overall.
func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	oldest, oldestReleasing := -1, -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.state == envRelease && (oldestReleasing < 0 || v.age < e.voices[oldestReleasing].age) {
			oldestReleasing = i
		}
		if oldest < 0 || v.age < e.voices[oldest].age {
			oldest = i
		}
	}
	if oldestReleasing >= 0 {
		return oldestReleasing
	}
	return oldest
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
