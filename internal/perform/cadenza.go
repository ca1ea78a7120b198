package perform

import "time"

// ArpeggioNote is one timed note of a multi-note sequence.
type ArpeggioNote struct {
	Pitch      string
	Duration   Duration
	Offset     time.Duration
	Instrument Instrument
}

// Arpeggio is a sequence of notes that can mix instruments, handed to the
// backend in one call.
type Arpeggio []ArpeggioNote

// Span reports the offset of the last note onset.
func (a Arpeggio) Span() time.Duration {
	var end time.Duration
	for _, n := range a {
		if n.Offset > end {
			end = n.Offset
		}
	}
	return end
}

var cadenzaRun = []string{"C3", "E3", "G3", "B3", "C4", "E4", "G4", "C5"}

const (
	cadenzaStep    = 100 * time.Millisecond
	cadenzaShimmer = 50 * time.Millisecond
)

// Cadenza returns the reward flourish: a long low piano C, then a rising
// Cmaj7 arpeggio on strings doubled half a step later by the synth.
func Cadenza() Arpeggio {
	seq := make(Arpeggio, 0, 1+2*len(cadenzaRun))
	seq = append(seq, ArpeggioNote{
		Pitch:      "C2",
		Duration:   DurationTwoMeasures,
		Instrument: InstrumentPiano,
	})
	for i, p := range cadenzaRun {
		at := time.Duration(i) * cadenzaStep
		seq = append(seq,
			ArpeggioNote{Pitch: p, Duration: DurationEighth, Offset: at, Instrument: InstrumentStrings},
			ArpeggioNote{Pitch: p, Duration: DurationSixteenth, Offset: at + cadenzaShimmer, Instrument: InstrumentSynth},
		)
	}
	return seq
}
