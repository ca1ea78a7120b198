package perform

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
)

// scriptedRand returns preset draws in order and fails the test when it
// runs dry.
type scriptedRand struct {
	t     *testing.T
	draws []float64
	calls int
}

func (r *scriptedRand) Float64() float64 {
	r.t.Helper()
	if r.calls >= len(r.draws) {
		r.t.Fatalf("unexpected random draw #%d", r.calls+1)
	}
	v := r.draws[r.calls]
	r.calls++
	return v
}

var (
	harmony    = mood.State{Mood: 0, Phase: mood.PhaseHarmony}
	distracted = mood.State{Mood: 40, Phase: mood.PhaseDistracted}
	rebel      = mood.State{Mood: 80, Phase: mood.PhaseRebel}
)

func TestHarmonyPitchAxisIsInverted(t *testing.T) {
	m := NewMapper(DefaultConfig(), &scriptedRand{t: t})
	for _, tc := range []struct {
		y    float64
		want string
	}{
		{0, "C5"},
		{1, "C3"},
		{0.5, "C4"},
		{-3, "C5"},
		{7, "C3"},
	} {
		ev := m.Map(gesture.Sample{Primary: tc.y, Velocity: 0.03}, harmony)
		if len(ev.Pitches) != 1 || ev.Pitches[0] != tc.want {
			t.Errorf("y=%v: pitches %v, want [%s]", tc.y, ev.Pitches, tc.want)
		}
		if ev.Offset != 0 || ev.Suppressed {
			t.Errorf("y=%v: harmony event %+v must be on time and audible", tc.y, ev)
		}
	}
}

func TestDurationFromVelocity(t *testing.T) {
	m := NewMapper(DefaultConfig(), &scriptedRand{t: t})
	for _, tc := range []struct {
		v    float64
		want Duration
	}{
		{0.005, DurationHalf},
		{0.01, DurationQuarter},
		{0.03, DurationQuarter},
		{0.05, DurationQuarter},
		{0.07, DurationEighth},
		{0.1, DurationEighth},
		{0.2, DurationSixteenth},
		{1, DurationSixteenth},
	} {
		if got := m.Map(gesture.Sample{Primary: 0.5, Velocity: tc.v}, harmony).Duration; got != tc.want {
			t.Errorf("velocity %v: duration %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestHarmonyChords(t *testing.T) {
	m := NewMapper(DefaultConfig(), &scriptedRand{t: t})
	for _, tc := range []struct {
		secondary float64
		want      []string
	}{
		{0.8, []string{"C4", "E4", "G4"}},
		{0.5, []string{"C4", "D#4", "G4"}},
		{0.1, []string{"C4", "E4", "G4", "A#4"}},
	} {
		s := gesture.Sample{Primary: 0.5, Velocity: 0.03}.WithSecondary(tc.secondary)
		ev := m.Map(s, harmony)
		if !reflect.DeepEqual(ev.Pitches, tc.want) {
			t.Errorf("secondary %v: pitches %v, want %v", tc.secondary, ev.Pitches, tc.want)
		}
		if !ev.IsChord() {
			t.Errorf("secondary %v: expected a chord", tc.secondary)
		}
	}
}

func TestDistractedNeighborAndJitter(t *testing.T) {
	rng := &scriptedRand{t: t, draws: []float64{0.1, 0.9, 0.5}}
	m := NewMapper(DefaultConfig(), rng)
	p := m.Plan(gesture.Sample{Primary: 0.5, Velocity: 0.03}, distracted)
	if got := p.Event.Pitches; len(got) != 1 || got[0] != "D4" {
		t.Fatalf("pitches = %v, want [D4]", got)
	}
	if p.Event.Offset != 50*time.Millisecond {
		t.Fatalf("offset = %v, want 50ms", p.Event.Offset)
	}
	if p.Event.Suppressed {
		t.Fatal("distracted events are never suppressed")
	}
	if p.Effects != (EffectTargets{Distortion: 0.2, Reverb: 0.4, Delay: 0.3}) {
		t.Fatalf("effects = %+v", p.Effects)
	}
	if rng.calls != 3 {
		t.Fatalf("draws = %d, want 3", rng.calls)
	}
}

func TestDistractedNeighborClampsAtScaleEdge(t *testing.T) {
	m := NewMapper(DefaultConfig(), &scriptedRand{t: t, draws: []float64{0.1, 0.9, 0}})
	ev := m.Map(gesture.Sample{Primary: 0, Velocity: 0.03}, distracted)
	if ev.Pitches[0] != "C5" {
		t.Fatalf("pitch = %v, want C5", ev.Pitches)
	}
}

func TestRebelUsesWholeToneAndOverrides(t *testing.T) {
	rng := &scriptedRand{t: t, draws: []float64{0.3, 0.9, 0.5, 0.05}}
	m := NewMapper(DefaultConfig(), rng)
	p := m.Plan(gesture.Sample{Primary: 0, Velocity: 0.03}, rebel)
	ev := p.Event
	if ev.Pitches[0] != "C5" {
		t.Fatalf("pitch = %v", ev.Pitches)
	}
	if ev.Duration != DurationThirtySecondTriplet {
		t.Fatalf("duration = %v, want 32t", ev.Duration)
	}
	if ev.Offset != 250*time.Millisecond {
		t.Fatalf("offset = %v, want 250ms", ev.Offset)
	}
	if !ev.Suppressed {
		t.Fatal("expected dropout")
	}
	if p.Effects != (EffectTargets{Distortion: 0.8, Reverb: 0.8, Delay: 0.6}) {
		t.Fatalf("effects = %+v", p.Effects)
	}
}

func TestRebelPitchesStayInWholeTone(t *testing.T) {
	in := make(map[string]bool, len(WholeToneScale))
	for _, n := range WholeToneScale {
		in[n] = true
	}
	m := NewMapper(DefaultConfig(), rand.New(rand.NewSource(3)))
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 1000; i++ {
		ev := m.Map(gesture.Sample{Primary: rng.Float64(), Velocity: rng.Float64() * 0.2}, rebel)
		if !in[ev.Pitches[0]] {
			t.Fatalf("rebel root %s outside whole-tone scale", ev.Pitches[0])
		}
		if ev.Offset < 0 || ev.Offset >= 500*time.Millisecond {
			t.Fatalf("rebel offset %v out of range", ev.Offset)
		}
	}
}

func TestChordSuppressionRate(t *testing.T) {
	m := NewMapper(DefaultConfig(), rand.New(rand.NewSource(42)))
	const trials = 10000
	dropped := 0
	for i := 0; i < trials; i++ {
		s := gesture.Sample{Primary: 0.5, Velocity: 0.03}.WithSecondary(0.2)
		ev := m.Map(s, distracted)
		if !ev.IsChord() {
			dropped++
			continue
		}
		want := Chord(ev.Pitches[0], gesture.ChordDominant7)
		if len(ev.Pitches) != 4 || !reflect.DeepEqual(ev.Pitches, want) {
			t.Fatalf("kept chord = %v, want dominant seventh %v", ev.Pitches, want)
		}
	}
	rate := float64(dropped) / trials
	if rate < 0.18 || rate > 0.22 {
		t.Fatalf("chord suppression rate = %.3f, want about 0.2", rate)
	}
}

func TestSameSeedSamePerformance(t *testing.T) {
	a := NewMapper(DefaultConfig(), rand.New(rand.NewSource(9)))
	b := NewMapper(DefaultConfig(), rand.New(rand.NewSource(9)))
	states := []mood.State{harmony, distracted, rebel}
	for i := 0; i < 200; i++ {
		s := gesture.Sample{Primary: float64(i%10) / 10, Velocity: float64(i%7) / 40}
		if i%3 == 0 {
			s = s.WithSecondary(float64(i%5) / 5)
		}
		st := states[i%3]
		if pa, pb := a.Plan(s, st), b.Plan(s, st); !reflect.DeepEqual(pa, pb) {
			t.Fatalf("step %d diverged: %+v vs %+v", i, pa, pb)
		}
	}
}

func TestEffectsForHarmony(t *testing.T) {
	if got := EffectsFor(mood.PhaseHarmony); got != (EffectTargets{Reverb: 0.2}) {
		t.Fatalf("harmony effects = %+v", got)
	}
	if got := DefaultConfig().RampTime; got != 100*time.Millisecond {
		t.Fatalf("ramp = %v", got)
	}
}

func TestCadenza(t *testing.T) {
	seq := Cadenza()
	if len(seq) != 17 {
		t.Fatalf("len = %d, want 17", len(seq))
	}
	if seq[0] != (ArpeggioNote{Pitch: "C2", Duration: DurationTwoMeasures, Instrument: InstrumentPiano}) {
		t.Fatalf("first note = %+v", seq[0])
	}
	for i, p := range cadenzaRun {
		str, syn := seq[1+2*i], seq[2+2*i]
		at := time.Duration(i) * 100 * time.Millisecond
		if str.Pitch != p || str.Instrument != InstrumentStrings || str.Offset != at || str.Duration != DurationEighth {
			t.Errorf("strings %d = %+v", i, str)
		}
		if syn.Pitch != p || syn.Instrument != InstrumentSynth || syn.Offset != at+50*time.Millisecond || syn.Duration != DurationSixteenth {
			t.Errorf("synth %d = %+v", i, syn)
		}
	}
	if got := seq.Span(); got != 750*time.Millisecond {
		t.Fatalf("span = %v", got)
	}
}

func TestDurationText(t *testing.T) {
	for d := DurationThirtySecondTriplet; d <= DurationTwoMeasures; d++ {
		b, _ := d.MarshalText()
		var back Duration
		if err := back.UnmarshalText(b); err != nil || back != d {
			t.Fatalf("%v round trip: %v %v", d, back, err)
		}
	}
	if got := DurationQuarter.Length(120); got != 500*time.Millisecond {
		t.Fatalf("4n at 120 = %v", got)
	}
	if got := DurationEighth.Length(0); got != 250*time.Millisecond {
		t.Fatalf("8n at default tempo = %v", got)
	}
}

func TestParseInstrument(t *testing.T) {
	if got, err := ParseInstrument(" Strings "); err != nil || got != InstrumentStrings {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := ParseInstrument("kazoo"); err == nil {
		t.Fatal("expected error")
	}
}
