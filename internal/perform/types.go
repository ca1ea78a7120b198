// Package perform maps a gesture and the current mood to concrete
// performance instructions: pitches, note length, timing and effect levels.
package perform

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultBPM is the tempo used to turn note-length categories into time.
const DefaultBPM = 120

// Duration is a note-length category in musical notation.
type Duration int

const (
	DurationThirtySecondTriplet Duration = iota // 32t, extreme fast
	DurationSixteenth                           // 16n
	DurationEighth                              // 8n
	DurationQuarter                             // 4n
	DurationHalf                                // 2n
	DurationMeasure                             // 1m, extreme slow
	DurationTwoMeasures                         // 2m
)

var durationNames = [...]string{"32t", "16n", "8n", "4n", "2n", "1m", "2m"}

// beats per category, quarter note = 1 beat, 4/4 time.
var durationBeats = [...]float64{1.0 / 12, 0.25, 0.5, 1, 2, 4, 8}

func (d Duration) String() string {
	if d < 0 || int(d) >= len(durationNames) {
		return "?"
	}
	return durationNames[d]
}

// Length returns the wall-clock length of the category at the given tempo.
func (d Duration) Length(bpm float64) time.Duration {
	if d < 0 || int(d) >= len(durationBeats) {
		return 0
	}
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return time.Duration(durationBeats[d] * 60 / bpm * float64(time.Second))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	for i, name := range durationNames {
		if name == string(b) {
			*d = Duration(i)
			return nil
		}
	}
	return fmt.Errorf("unknown duration %q", b)
}

// Instrument selects which synthesis voice plays subsequent events.
type Instrument string

const (
	InstrumentPiano   Instrument = "piano"
	InstrumentStrings Instrument = "strings"
	InstrumentSynth   Instrument = "synth"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// Instruments lists every supported instrument.
func Instruments() []Instrument {
	return []Instrument{InstrumentPiano, InstrumentStrings, InstrumentSynth}
}

func ParseInstrument(s string) (Instrument, error) {
	inst := Instrument(strings.ToLower(strings.TrimSpace(s)))
	switch inst {
	case InstrumentPiano, InstrumentStrings, InstrumentSynth:
		return inst, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInstrument, s)
}

// Effect names an effect-intensity parameter of the synthesis backend.
type Effect string

const (
	EffectDistortion Effect = "distortion"
	EffectReverb     Effect = "reverb"
	EffectDelay      Effect = "delay"
)

// EffectTargets are the levels (0..1) the effects should ramp toward.
type EffectTargets struct {
	Distortion float64
	Reverb     float64
	Delay      float64
}

// EffectLevel is one named target.
type EffectLevel struct {
	Effect Effect
	Level  float64
}

// Levels lists the targets in signal-chain order.
func (t EffectTargets) Levels() []EffectLevel {
	return []EffectLevel{
		{EffectDistortion, t.Distortion},
		{EffectDelay, t.Delay},
		{EffectReverb, t.Reverb},
	}
}

// Event is the instruction for one accepted gesture.
type Event struct {
	Pitches    []string
	Duration   Duration
	Offset     time.Duration
	Suppressed bool
}

// OffsetMs reports the scheduling offset in milliseconds.
func (e Event) OffsetMs() float64 {
	return float64(e.Offset) / float64(time.Millisecond)
}

// IsChord reports whether the event stacks more than one pitch.
func (e Event) IsChord() bool {
	return len(e.Pitches) > 1
}

// Plan is the pure result of mapping: the event plus the effect levels to
// ramp toward. Performing it is the caller's job.
type Plan struct {
	Event    Event
	Effects  EffectTargets
	RampTime time.Duration
}

// Rand is the only source of randomness the mapper uses. *rand.Rand
// satisfies it.
type Rand interface {
	Float64() float64
}
