package conductor

import (
	"fmt"
	"io"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/synth"
)

type StepKind int

const (
	StepGesture StepKind = iota
	StepReset
	StepInstrument
)

// Step is one entry of a scripted performance.
type Step struct {
	At         time.Duration
	Kind       StepKind
	Sample     gesture.Sample
	Instrument perform.Instrument
}

// GestureStep places a sample on the timeline at its own timestamp.
func GestureStep(s gesture.Sample) Step {
	return Step{At: time.Duration(s.TimestampMs) * time.Millisecond, Kind: StepGesture, Sample: s}
}

type RenderOptions struct {
	Synth synth.Config
	// Tail is rendered after the last step so notes can ring out.
	Tail    time.Duration
	Session []Option
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Synth: synth.DefaultConfig(),
		Tail:  3 * time.Second,
	}
}

// RenderResult summarizes an offline performance.
type RenderResult struct {
	SessionID string
	Frames    int
	Final     Snapshot
}

// performance drives a session from a script while the synth renders, so
// each step lands on its exact frame.
type performance struct {
	synth   *synth.Synth
	session *Session
	steps   []Step
	next    int
	pos     int64
	buf     []float32
}

func newPerformance(steps []Step, opts RenderOptions) (*performance, error) {
	for i := 1; i < len(steps); i++ {
		if steps[i].At < steps[i-1].At {
			return nil, fmt.Errorf("step %d at %v precedes step %d at %v", i, steps[i].At, i-1, steps[i-1].At)
		}
	}
	syn := synth.New(opts.Synth)
	sess, err := New(syn, opts.Session...)
	if err != nil {
		return nil, err
	}
	return &performance{synth: syn, session: sess, steps: steps}, nil
}

func (p *performance) frameOf(d time.Duration) int64 {
	return int64(d) * int64(p.synth.SampleRate()) / int64(time.Second)
}

func (p *performance) length(tail time.Duration) int {
	var end time.Duration
	if len(p.steps) > 0 {
		end = p.steps[len(p.steps)-1].At
	}
	return int(p.frameOf(end + tail))
}

func (p *performance) apply(st Step) {
	switch st.Kind {
	case StepReset:
		p.session.Reset()
	case StepInstrument:
		if err := p.session.SetInstrument(string(st.Instrument)); err != nil {
			p.session.log.Warn("script: set instrument", "error", err)
		}
	default:
		p.session.Dispatch(st.Sample)
	}
}

// Process renders interleaved stereo frames, applying steps as the
// timeline reaches them.
func (p *performance) Process(dst []float32) {
	for len(dst) >= 2 {
		for p.next < len(p.steps) && p.frameOf(p.steps[p.next].At) <= p.pos {
			p.apply(p.steps[p.next])
			p.next++
		}
		n := len(dst) / 2
		if p.next < len(p.steps) {
			if until := p.frameOf(p.steps[p.next].At) - p.pos; until < int64(n) {
				n = int(until)
			}
		}
		p.synth.Process(dst[:n*2])
		dst = dst[n*2:]
		p.pos += int64(n)
	}
}

func (p *performance) Stream(samples [][2]float64) (int, bool) {
	need := len(samples) * 2
	if cap(p.buf) < need {
		p.buf = make([]float32, need)
	}
	p.buf = p.buf[:need]
	p.Process(p.buf)
	for i := range samples {
		samples[i][0] = float64(p.buf[i*2])
		samples[i][1] = float64(p.buf[i*2+1])
	}
	return len(samples), true
}

func (p *performance) Err() error {
	return nil
}

func (p *performance) result(frames int) RenderResult {
	return RenderResult{SessionID: p.session.ID(), Frames: frames, Final: p.session.State()}
}

// RenderSamples performs the script offline and returns interleaved stereo
// float32 frames.
func RenderSamples(steps []Step, opts RenderOptions) ([]float32, RenderResult, error) {
	p, err := newPerformance(steps, opts)
	if err != nil {
		return nil, RenderResult{}, err
	}
	defer p.session.Close()
	frames := p.length(opts.Tail)
	out := make([]float32, frames*2)
	p.Process(out)
	return out, p.result(frames), nil
}

// RenderWAV performs the script offline and encodes it as 16-bit PCM WAV.
func RenderWAV(w io.WriteSeeker, steps []Step, opts RenderOptions) (RenderResult, error) {
	p, err := newPerformance(steps, opts)
	if err != nil {
		return RenderResult{}, err
	}
	defer p.session.Close()
	frames := p.length(opts.Tail)
	if err := wav.Encode(w, beep.Take(frames, p), p.synth.Format()); err != nil {
		return RenderResult{}, fmt.Errorf("encode wav: %w", err)
	}
	return p.result(frames), nil
}
