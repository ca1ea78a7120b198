package perform

import (
	"math"
	"math/rand"
	"time"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
)

// Config holds the mapping constants. The probabilities have no deeper
// meaning than "less reliable as mood worsens" and are meant to be tuned.
type Config struct {
	NeighborNoteChance   float64 // distracted: play an adjacent scale step
	RhythmOverrideChance float64 // rebel: replace the length with an extreme one
	ChordDropChance      float64 // distracted or rebel: ignore the chord hand
	DropoutChance        float64 // rebel: refuse to play at all

	DistractedJitter time.Duration
	RebelJitter      time.Duration
	RampTime         time.Duration

	// Velocity breakpoints for note length.
	LongBelow     float64
	ShortAbove    float64
	ShortestAbove float64
}

func DefaultConfig() Config {
	return Config{
		NeighborNoteChance:   0.3,
		RhythmOverrideChance: 0.4,
		ChordDropChance:      0.2,
		DropoutChance:        0.1,
		DistractedJitter:     100 * time.Millisecond,
		RebelJitter:          500 * time.Millisecond,
		RampTime:             100 * time.Millisecond,
		LongBelow:            0.01,
		ShortAbove:           0.05,
		ShortestAbove:        0.1,
	}
}

// Effect levels per phase.
var phaseEffects = map[mood.Phase]EffectTargets{
	mood.PhaseHarmony:    {Distortion: 0, Reverb: 0.2, Delay: 0},
	mood.PhaseDistracted: {Distortion: 0.2, Reverb: 0.4, Delay: 0.3},
	mood.PhaseRebel:      {Distortion: 0.8, Reverb: 0.8, Delay: 0.6},
}

// EffectsFor returns the effect targets for a phase.
func EffectsFor(p mood.Phase) EffectTargets {
	return phaseEffects[p]
}

// Mapper turns gestures into events. All random choices come from one
// injected source, so a seeded source reproduces a performance exactly.
type Mapper struct {
	cfg Config
	rng Rand
}

// NewMapper creates a mapper. A nil rng is replaced with a seeded
// math/rand source.
func NewMapper(cfg Config, rng Rand) *Mapper {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Mapper{cfg: cfg, rng: rng}
}

// Map returns the performance event for a sample under the given mood.
func (m *Mapper) Map(s gesture.Sample, st mood.State) Event {
	return m.Plan(s, st).Event
}

// Plan computes the event and the effect targets. Random draws happen in a
// fixed order (pitch, length, chord, offset, dropout) and only when the
// phase makes them relevant.
func (m *Mapper) Plan(s gesture.Sample, st mood.State) Plan {
	phase := st.Phase
	root := m.pickRoot(gesture.Clamp01(s.Primary), phase)
	dur := m.pickDuration(gesture.Clamp01(s.Velocity), phase)
	pitches := m.pickPitches(root, s, phase)
	offset := m.pickOffset(phase)
	suppressed := phase == mood.PhaseRebel && m.chance(m.cfg.DropoutChance)

	return Plan{
		Event: Event{
			Pitches:    pitches,
			Duration:   dur,
			Offset:     offset,
			Suppressed: suppressed,
		},
		Effects:  EffectsFor(phase),
		RampTime: m.cfg.RampTime,
	}
}

func (m *Mapper) pickRoot(y float64, phase mood.Phase) string {
	scale := MajorScale
	if phase == mood.PhaseRebel {
		scale = WholeToneScale
	}
	last := len(scale) - 1
	// Inverted: the top of the frame plays the highest note.
	idx := clampInt(int(math.Floor((1-y)*float64(last))), 0, last)
	if phase == mood.PhaseDistracted && m.chance(m.cfg.NeighborNoteChance) {
		step := -1
		if m.rng.Float64() > 0.5 {
			step = 1
		}
		idx = clampInt(idx+step, 0, last)
	}
	return scale[idx]
}

func (m *Mapper) pickDuration(v float64, phase mood.Phase) Duration {
	d := DurationQuarter
	switch {
	case v > m.cfg.ShortestAbove:
		d = DurationSixteenth
	case v > m.cfg.ShortAbove:
		d = DurationEighth
	case v < m.cfg.LongBelow:
		d = DurationHalf
	}
	if phase == mood.PhaseRebel && m.chance(m.cfg.RhythmOverrideChance) {
		if m.rng.Float64() > 0.5 {
			return DurationThirtySecondTriplet
		}
		return DurationMeasure
	}
	return d
}

func (m *Mapper) pickPitches(root string, s gesture.Sample, phase mood.Phase) []string {
	if !s.HasSecondary {
		return []string{root}
	}
	if phase != mood.PhaseHarmony && m.chance(m.cfg.ChordDropChance) {
		return []string{root}
	}
	return Chord(root, gesture.ClassifyChord(s.Secondary))
}

func (m *Mapper) pickOffset(phase mood.Phase) time.Duration {
	var bound time.Duration
	switch phase {
	case mood.PhaseDistracted:
		bound = m.cfg.DistractedJitter
	case mood.PhaseRebel:
		bound = m.cfg.RebelJitter
	default:
		return 0
	}
	return time.Duration(m.rng.Float64() * float64(bound))
}

func (m *Mapper) chance(p float64) bool {
	return m.rng.Float64() < p
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
