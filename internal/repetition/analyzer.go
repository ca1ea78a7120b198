// Package repetition scores how much a new gesture repeats recent ones.
package repetition

import "github.com/cbegin/conductor-go/internal/gesture"

type Config struct {
	// Capacity is the number of recent fingerprints kept.
	Capacity int
	// InnovationThreshold: a repetition rate strictly below it is innovative.
	InnovationThreshold float64
	// PitchTolerance is the max pitch-bucket distance that still matches.
	PitchTolerance int
}

func DefaultConfig() Config {
	return Config{
		Capacity:            10,
		InnovationThreshold: 0.2,
		PitchTolerance:      1,
	}
}

// Result is the analysis of one fingerprint against history.
type Result struct {
	RepetitionRate float64
	IsInnovative   bool
}

// Analyzer owns a bounded FIFO of fingerprints. It is not safe for
// concurrent use; the owning session serializes access.
type Analyzer struct {
	cfg     Config
	history []gesture.Fingerprint
}

func New(cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.PitchTolerance < 0 {
		cfg.PitchTolerance = def.PitchTolerance
	}
	return &Analyzer{
		cfg:     cfg,
		history: make([]gesture.Fingerprint, 0, cfg.Capacity),
	}
}

// Analyze appends fp to history and scores it against every other entry.
func (a *Analyzer) Analyze(fp gesture.Fingerprint) Result {
	if len(a.history) == a.cfg.Capacity {
		copy(a.history, a.history[1:])
		a.history = a.history[:len(a.history)-1]
	}
	a.history = append(a.history, fp)

	rate := a.repetitionRate(fp)
	return Result{
		RepetitionRate: rate,
		IsInnovative:   rate < a.cfg.InnovationThreshold,
	}
}

func (a *Analyzer) repetitionRate(current gesture.Fingerprint) float64 {
	n := len(a.history)
	if n < 2 {
		return 0
	}
	matches := 0
	// The newest entry is current itself.
	for _, prev := range a.history[:n-1] {
		if Matches(prev, current, a.cfg.PitchTolerance) {
			matches++
		}
	}
	return float64(matches) / float64(n-1)
}

// Reset clears history.
func (a *Analyzer) Reset() {
	a.history = a.history[:0]
}

func (a *Analyzer) Len() int {
	return len(a.history)
}

// History returns a copy of the stored fingerprints, oldest first.
func (a *Analyzer) History() []gesture.Fingerprint {
	out := make([]gesture.Fingerprint, len(a.history))
	copy(out, a.history)
	return out
}

// Matches reports whether two fingerprints count as the same gesture:
// pitch within tolerance and identical velocity and chord classes.
func Matches(a, b gesture.Fingerprint, pitchTolerance int) bool {
	d := a.PitchBucket - b.PitchBucket
	if d < 0 {
		d = -d
	}
	return d <= pitchTolerance && a.Velocity == b.Velocity && a.Chord == b.Chord
}
