// Package synth is the sound-producing backend: one voice engine per
// instrument, a frame-accurate note scheduler and the master effect rack.
package synth

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/cbegin/conductor-go/internal/audio"
	"github.com/cbegin/conductor-go/internal/effects"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/pitch"
	"github.com/cbegin/conductor-go/internal/scheduler"
	"github.com/cbegin/conductor-go/internal/voice"
)

var ErrClosed = errors.New("synth: closed")

type Config struct {
	SampleRate int
	MasterGain float64
	BPM        float64
	Polyphony  int
	Velocity   int
	Rack       effects.RackConfig
	// Latency is the device buffer size for live output.
	Latency time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		MasterGain: 0.5,
		BPM:        perform.DefaultBPM,
		Polyphony:  16,
		Velocity:   100,
		Rack:       effects.DefaultRackConfig(),
		Latency:    60 * time.Millisecond,
	}
}

// channel numbers on the ensemble
var channels = map[perform.Instrument]int{
	perform.InstrumentPiano:   0,
	perform.InstrumentStrings: 1,
	perform.InstrumentSynth:   2,
}

func timbreFor(inst perform.Instrument) voice.Timbre {
	switch inst {
	case perform.InstrumentStrings:
		return voice.Strings()
	case perform.InstrumentSynth:
		return voice.Synth()
	default:
		return voice.Piano()
	}
}

type Synth struct {
	cfg      Config
	ensemble *scheduler.Ensemble
	sched    *scheduler.Scheduler

	fxMu sync.Mutex
	rack *effects.Rack

	closed atomic.Bool
	out    *audio.Output
	tap    atomic.Pointer[func([]float32)]
}

func New(cfg Config) *Synth {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BPM <= 0 {
		cfg.BPM = def.BPM
	}
	if cfg.Velocity <= 0 {
		cfg.Velocity = def.Velocity
	}
	if cfg.Rack == (effects.RackConfig{}) {
		cfg.Rack = def.Rack
		cfg.Rack.DelayTime = 0
	}
	// Delay defaults to an eighth note at the session tempo.
	if cfg.Rack.DelayTime <= 0 {
		cfg.Rack.DelayTime = perform.DurationEighth.Length(cfg.BPM)
	}
	s := &Synth{
		cfg:      cfg,
		ensemble: scheduler.NewEnsemble(),
		rack:     effects.NewRack(cfg.SampleRate, cfg.Rack),
	}
	params := voice.DefaultParams()
	params.MasterGain = cfg.MasterGain
	if cfg.Polyphony > 0 {
		params.Polyphony = cfg.Polyphony
	}
	for _, inst := range perform.Instruments() {
		s.ensemble.Add(channels[inst], voice.New(cfg.SampleRate, timbreFor(inst), params))
	}
	s.sched = scheduler.New(s.ensemble)
	return s
}

func (s *Synth) SampleRate() int {
	return s.cfg.SampleRate
}

// Start opens the default output device and begins pulling audio. Offline
// renderers skip Start and call Process or Streamer directly.
func (s *Synth) Start() error {
	if s.closed.Load() {
		return ErrClosed
	}
	out, err := audio.Open(s.cfg.SampleRate, s, s.cfg.Latency)
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}
	s.out = out
	out.Play()
	return nil
}

// Close silences everything and releases the output device.
func (s *Synth) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.Silence()
	if s.out != nil {
		return s.out.Close()
	}
	return nil
}

// Silence drops queued notes and releases every sounding voice.
func (s *Synth) Silence() {
	s.sched.Clear()
	s.ensemble.ReleaseAll()
}

// SetTap installs a callback that sees every rendered buffer after the
// effect rack. It runs on the audio goroutine.
func (s *Synth) SetTap(fn func([]float32)) {
	if fn == nil {
		s.tap.Store(nil)
		return
	}
	s.tap.Store(&fn)
}

// MasterGain reports the configured master gain.
func (s *Synth) MasterGain() float64 {
	return s.cfg.MasterGain
}

// SetMasterGain changes the gain of every instrument; 0 mutes.
func (s *Synth) SetMasterGain(g float64) {
	s.ensemble.SetMasterGain(g)
}

func (s *Synth) ActiveVoiceCount() int {
	return s.ensemble.ActiveVoiceCount()
}

// Pending reports queued plus still-gated notes.
func (s *Synth) Pending() int {
	return s.sched.Pending()
}

func (s *Synth) frames(d time.Duration) int64 {
	return int64(d) * int64(s.cfg.SampleRate) / int64(time.Second)
}

func channelFor(inst perform.Instrument) (int, error) {
	ch, ok := channels[inst]
	if !ok {
		return 0, fmt.Errorf("%w: %q", perform.ErrUnknownInstrument, inst)
	}
	return ch, nil
}

// ScheduleNote plays pitches together, offset from now, for the length of
// the duration category. Nothing is scheduled if any pitch is invalid.
func (s *Synth) ScheduleNote(pitches []string, d perform.Duration, offset time.Duration, inst perform.Instrument) error {
	if s.closed.Load() {
		return ErrClosed
	}
	ch, err := channelFor(inst)
	if err != nil {
		return err
	}
	keys := make([]int, len(pitches))
	for i, p := range pitches {
		if keys[i], err = pitch.MIDI(p); err != nil {
			return err
		}
	}
	start := s.sched.Now() + s.frames(offset)
	length := s.frames(d.Length(s.cfg.BPM))
	for i, key := range keys {
		s.sched.Schedule(scheduler.Note{
			Channel:  ch,
			Key:      key,
			Velocity: s.cfg.Velocity,
			Pan:      spread(i, len(keys)),
			Start:    start,
			Frames:   length,
		})
	}
	return nil
}

// ScheduleArpeggio queues a whole multi-instrument sequence at once.
func (s *Synth) ScheduleArpeggio(seq perform.Arpeggio) error {
	if s.closed.Load() {
		return ErrClosed
	}
	notes := make([]scheduler.Note, len(seq))
	now := s.sched.Now()
	for i, n := range seq {
		ch, err := channelFor(n.Instrument)
		if err != nil {
			return err
		}
		key, err := pitch.MIDI(n.Pitch)
		if err != nil {
			return err
		}
		notes[i] = scheduler.Note{
			Channel:  ch,
			Key:      key,
			Velocity: s.cfg.Velocity,
			Start:    now + s.frames(n.Offset),
			Frames:   s.frames(n.Duration.Length(s.cfg.BPM)),
		}
	}
	for _, n := range notes {
		s.sched.Schedule(n)
	}
	return nil
}

// RampEffect moves an effect level toward target with the given time
// constant.
func (s *Synth) RampEffect(effect perform.Effect, target float64, tc time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.fxMu.Lock()
	defer s.fxMu.Unlock()
	return s.rack.SetTarget(string(effect), target, tc)
}

// EffectLevel reports the current, possibly mid-ramp, level.
func (s *Synth) EffectLevel(effect perform.Effect) (float64, error) {
	s.fxMu.Lock()
	defer s.fxMu.Unlock()
	return s.rack.Level(string(effect))
}

// Process renders interleaved stereo frames through the effect rack.
func (s *Synth) Process(dst []float32) {
	s.sched.Process(dst)
	s.fxMu.Lock()
	s.rack.ProcessInterleaved(dst)
	s.fxMu.Unlock()
	if tap := s.tap.Load(); tap != nil {
		(*tap)(dst)
	}
}

// Streamer exposes the synth as an endless beep stream.
func (s *Synth) Streamer() beep.Streamer {
	var buf []float32
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		need := len(samples) * 2
		if cap(buf) < need {
			buf = make([]float32, need)
		}
		buf = buf[:need]
		s.Process(buf)
		for i := range samples {
			samples[i][0] = float64(buf[i*2])
			samples[i][1] = float64(buf[i*2+1])
		}
		return len(samples), true
	})
}

// Format is the beep format matching the synth output.
func (s *Synth) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(s.cfg.SampleRate),
		NumChannels: 2,
		Precision:   2,
	}
}

// spread pans chord tones symmetrically around the center.
func spread(i, n int) int {
	if n <= 1 {
		return 0
	}
	const width = 32
	return -width/2 + i*width/(n-1)
}
