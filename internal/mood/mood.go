// Package mood tracks the orchestra's patience: repetition raises mood,
// innovation lowers it, and the mood value selects the behavioral phase.
package mood

import (
	"fmt"
	"math"
)

type Phase int

const (
	PhaseHarmony Phase = iota
	PhaseDistracted
	PhaseRebel
)

func (p Phase) String() string {
	switch p {
	case PhaseDistracted:
		return "distracted"
	case PhaseRebel:
		return "rebel"
	default:
		return "harmony"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func ParsePhase(s string) (Phase, error) {
	switch s {
	case "harmony":
		return PhaseHarmony, nil
	case "distracted":
		return PhaseDistracted, nil
	case "rebel":
		return PhaseRebel, nil
	}
	return PhaseHarmony, fmt.Errorf("unknown phase %q", s)
}

// Rules holds the thresholds and deltas driving the machine.
type Rules struct {
	DistractedFrom    float64
	RebelFrom         float64
	Max               float64
	InnovationBonus   float64 // subtracted per innovative gesture
	CadenzaBonus      float64 // subtracted instead when a streak completes
	RepetitionPenalty float64 // multiplied by the repetition rate
	CadenzaStreak     int
}

func DefaultRules() Rules {
	return Rules{
		DistractedFrom:    30,
		RebelFrom:         65,
		Max:               100,
		InnovationBonus:   25,
		CadenzaBonus:      40,
		RepetitionPenalty: 15,
		CadenzaStreak:     3,
	}
}

// PhaseFor maps a mood value to its phase. There is no hysteresis.
func (r Rules) PhaseFor(m float64) Phase {
	switch {
	case m >= r.RebelFrom:
		return PhaseRebel
	case m >= r.DistractedFrom:
		return PhaseDistracted
	default:
		return PhaseHarmony
	}
}

type State struct {
	Mood             float64
	Phase            Phase
	InnovationStreak int
}

// Update describes the outcome of one gesture.
type Update struct {
	Mood             float64
	Delta            float64
	Phase            Phase
	PhaseChanged     bool
	CadenzaTriggered bool
}

// Machine is the mood state machine. Not safe for concurrent use.
type Machine struct {
	rules Rules
	state State
}

func NewMachine(rules Rules) *Machine {
	if rules.Max <= 0 {
		rules.Max = DefaultRules().Max
	}
	if rules.CadenzaStreak <= 0 {
		rules.CadenzaStreak = DefaultRules().CadenzaStreak
	}
	m := &Machine{rules: rules}
	m.Reset()
	return m
}

// Update applies one analyzed gesture.
func (m *Machine) Update(repetitionRate float64, isInnovative bool) Update {
	var (
		delta   float64
		cadenza bool
	)
	if isInnovative {
		m.state.InnovationStreak++
		if m.state.InnovationStreak >= m.rules.CadenzaStreak {
			delta = -m.rules.CadenzaBonus
			m.state.InnovationStreak = 0
			cadenza = true
		} else {
			delta = -m.rules.InnovationBonus
		}
	} else {
		m.state.InnovationStreak = 0
		delta = repetitionRate * m.rules.RepetitionPenalty
	}

	prev := m.state.Phase
	m.state.Mood = clamp(m.state.Mood+delta, 0, m.rules.Max)
	m.state.Phase = m.rules.PhaseFor(m.state.Mood)

	return Update{
		Mood:             m.state.Mood,
		Delta:            delta,
		Phase:            m.state.Phase,
		PhaseChanged:     m.state.Phase != prev,
		CadenzaTriggered: cadenza,
	}
}

// Reset returns the machine to {0, harmony, 0}.
func (m *Machine) Reset() {
	m.state = State{Mood: 0, Phase: m.rules.PhaseFor(0)}
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Rules() Rules {
	return m.rules
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
