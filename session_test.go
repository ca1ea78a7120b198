package conductor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/conductor-go/internal/config"
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
)

type noteCall struct {
	pitches    []string
	duration   perform.Duration
	offset     time.Duration
	instrument perform.Instrument
}

type rampCall struct {
	effect perform.Effect
	target float64
	tc     time.Duration
}

type fakeBackend struct {
	mu         sync.Mutex
	notes      []noteCall
	ramps      []rampCall
	arpeggios  []perform.Arpeggio
	err        error
	callsOrder []string
}

func (b *fakeBackend) ScheduleNote(pitches []string, d perform.Duration, offset time.Duration, inst perform.Instrument) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = append(b.notes, noteCall{pitches, d, offset, inst})
	b.callsOrder = append(b.callsOrder, "note")
	return b.err
}

func (b *fakeBackend) RampEffect(effect perform.Effect, target float64, tc time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ramps = append(b.ramps, rampCall{effect, target, tc})
	b.callsOrder = append(b.callsOrder, "ramp:"+string(effect))
	return b.err
}

func (b *fakeBackend) ScheduleArpeggio(seq perform.Arpeggio) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.arpeggios = append(b.arpeggios, seq)
	b.callsOrder = append(b.callsOrder, "arpeggio")
	return b.err
}

type fakeRecorder struct {
	sessions []SessionInfo
	gestures []GestureRecord
	resets   []ResetRecord
	err      error
	closed   bool
}

func (r *fakeRecorder) BeginSession(info SessionInfo) error {
	r.sessions = append(r.sessions, info)
	return r.err
}

func (r *fakeRecorder) RecordGesture(rec GestureRecord) error {
	r.gestures = append(r.gestures, rec)
	return r.err
}

func (r *fakeRecorder) RecordReset(rec ResetRecord) error {
	r.resets = append(r.resets, rec)
	return r.err
}

func (r *fakeRecorder) Close() error {
	r.closed = true
	return nil
}

func newSession(t *testing.T, b Backend, opts ...Option) *Session {
	t.Helper()
	s, err := New(b, append([]Option{WithSeed(1)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func sample(primary, velocity float64, ts int64) gesture.Sample {
	return gesture.Sample{Primary: primary, Velocity: velocity, TimestampMs: ts}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("err = %v, want ErrNoBackend", err)
	}
	if _, err := New(&fakeBackend{}, WithInstrument("kazoo")); !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("err = %v, want ErrUnknownInstrument", err)
	}
}

func TestInitialState(t *testing.T) {
	s := newSession(t, &fakeBackend{})
	st := s.State()
	if st.Mood != 0 || st.Phase != mood.PhaseHarmony || st.InnovationStreak != 0 {
		t.Fatalf("state = %+v", st)
	}
	if st.Instrument != perform.InstrumentPiano {
		t.Fatalf("instrument = %q, want piano", st.Instrument)
	}
	if st.LastFingerprint != "" || st.HistoryLen != 0 {
		t.Fatalf("state = %+v, want no gesture yet", st)
	}
	if st.SessionID == "" || st.SessionID != s.ID() {
		t.Fatalf("session id = %q", st.SessionID)
	}
}

func TestDispatchGate(t *testing.T) {
	tests := []struct {
		name    string
		samples []gesture.Sample
		want    []bool
	}{
		{
			name:    "slow gesture ignored",
			samples: []gesture.Sample{sample(0.5, 0.03, 0)},
			want:    []bool{false},
		},
		{
			name:    "threshold is exclusive",
			samples: []gesture.Sample{sample(0.5, 0.05, 0)},
			want:    []bool{false},
		},
		{
			name:    "first fast gesture accepted",
			samples: []gesture.Sample{sample(0.5, 0.2, 0)},
			want:    []bool{true},
		},
		{
			name: "cooldown",
			samples: []gesture.Sample{
				sample(0.5, 0.2, 1000),
				sample(0.5, 0.2, 1100),
				sample(0.5, 0.2, 1149),
				sample(0.5, 0.2, 1150),
			},
			want: []bool{true, false, false, true},
		},
		{
			name: "ignored gesture does not restart cooldown",
			samples: []gesture.Sample{
				sample(0.5, 0.2, 0),
				sample(0.5, 0.01, 200),
				sample(0.5, 0.2, 250),
			},
			want: []bool{true, false, true},
		},
		{
			name: "clock moved back restarts cooldown",
			samples: []gesture.Sample{
				sample(0.5, 0.2, 1_760_000_000_000),
				sample(0.5, 0.2, 5000),
				sample(0.5, 0.2, 5100),
				sample(0.5, 0.2, 5150),
			},
			want: []bool{true, true, false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			s := newSession(t, b)
			var accepted int
			for i, smp := range tt.samples {
				_, ok := s.Dispatch(smp)
				if ok != tt.want[i] {
					t.Fatalf("sample %d accepted = %v, want %v", i, ok, tt.want[i])
				}
				if ok {
					accepted++
				}
			}
			st := s.State()
			if int(st.Accepted) != accepted || int(st.Ignored) != len(tt.samples)-accepted {
				t.Fatalf("counters = %d/%d", st.Accepted, st.Ignored)
			}
			if len(b.ramps) != 3*accepted {
				t.Fatalf("ramps = %d, want %d", len(b.ramps), 3*accepted)
			}
		})
	}
}

func TestMixedTimeBasesKeepFlowing(t *testing.T) {
	s := newSession(t, &fakeBackend{})
	if _, ok := s.Dispatch(sample(0.5, 0.2, 1_760_000_000_000)); !ok {
		t.Fatal("epoch-stamped gesture ignored")
	}
	accepted := 0
	for i := range 50 {
		if _, ok := s.Dispatch(sample(0.5, 0.2, 5000+int64(i)*300)); ok {
			accepted++
		}
	}
	if accepted != 50 {
		t.Fatalf("accepted %d of 50 gestures after an epoch-stamped one", accepted)
	}
}

func TestIgnoredGestureLeavesStateAlone(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b)
	before := s.State()
	if _, ok := s.Dispatch(sample(0.5, 0.03, 0)); ok {
		t.Fatal("expected slow gesture to be ignored")
	}
	after := s.State()
	if after.Mood != before.Mood || after.HistoryLen != 0 || after.LastFingerprint != "" {
		t.Fatalf("state changed: %+v", after)
	}
	if len(b.notes)+len(b.ramps)+len(b.arpeggios) != 0 {
		t.Fatal("backend was called for an ignored gesture")
	}
}

func TestRepetitionSoursMood(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b)
	wantMood := []float64{0, 15, 30, 45, 60, 75}
	wantPhase := []mood.Phase{
		mood.PhaseHarmony, mood.PhaseHarmony, mood.PhaseDistracted,
		mood.PhaseDistracted, mood.PhaseDistracted, mood.PhaseRebel,
	}
	for i := range wantMood {
		if _, ok := s.Dispatch(sample(0.5, 0.2, int64(i)*200)); !ok {
			t.Fatalf("gesture %d ignored", i)
		}
		st := s.State()
		if st.Mood != wantMood[i] || st.Phase != wantPhase[i] {
			t.Fatalf("gesture %d: mood %v %v, want %v %v", i, st.Mood, st.Phase, wantMood[i], wantPhase[i])
		}
	}
	last := b.ramps[len(b.ramps)-3:]
	want := perform.EffectsFor(mood.PhaseRebel).Levels()
	for i, r := range last {
		if r.effect != want[i].Effect || r.target != want[i].Level || r.tc != 100*time.Millisecond {
			t.Fatalf("ramp %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestBackendCallOrder(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b, WithInstrument(perform.InstrumentStrings))
	ev, ok := s.Dispatch(sample(0.5, 0.2, 0).WithSecondary(0.5))
	if !ok {
		t.Fatal("gesture ignored")
	}
	want := []string{"ramp:distortion", "ramp:delay", "ramp:reverb", "note"}
	if len(b.callsOrder) != len(want) {
		t.Fatalf("calls = %v, want %v", b.callsOrder, want)
	}
	for i := range want {
		if b.callsOrder[i] != want[i] {
			t.Fatalf("calls = %v, want %v", b.callsOrder, want)
		}
	}
	n := b.notes[0]
	if n.instrument != perform.InstrumentStrings || n.duration != ev.Duration || len(n.pitches) != len(ev.Pitches) {
		t.Fatalf("note = %+v, event = %+v", n, ev)
	}
	if !ev.IsChord() {
		t.Fatalf("event %+v, want a chord in harmony", ev)
	}
}

func TestCadenzaAfterThreeInnovations(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b)
	for i, y := range []float64{0.05, 0.5, 0.95} {
		if _, ok := s.Dispatch(sample(y, 0.2, int64(i)*200)); !ok {
			t.Fatalf("gesture %d ignored", i)
		}
	}
	if len(b.arpeggios) != 1 {
		t.Fatalf("arpeggios = %d, want 1", len(b.arpeggios))
	}
	if got := len(b.arpeggios[0]); got != 17 {
		t.Fatalf("cadenza notes = %d, want 17", got)
	}
	if b.callsOrder[len(b.callsOrder)-1] != "arpeggio" {
		t.Fatalf("cadenza must follow the note: %v", b.callsOrder)
	}
	if st := s.State(); st.InnovationStreak != 0 || st.Mood != 0 {
		t.Fatalf("state after cadenza = %+v", st)
	}
}

func TestBackendFailureIsSwallowed(t *testing.T) {
	b := &fakeBackend{err: errors.New("device gone")}
	s := newSession(t, b)
	for i := range 3 {
		if _, ok := s.Dispatch(sample(0.5, 0.2, int64(i)*200)); !ok {
			t.Fatalf("gesture %d ignored", i)
		}
	}
	if st := s.State(); st.Mood != 30 {
		t.Fatalf("mood = %v, want 30", st.Mood)
	}
	if len(b.notes) != 3 {
		t.Fatalf("notes = %d, want 3 attempts", len(b.notes))
	}
}

type panickyBackend struct {
	fakeBackend
}

func (b *panickyBackend) ScheduleNote(pitches []string, d perform.Duration, offset time.Duration, inst perform.Instrument) error {
	b.fakeBackend.ScheduleNote(pitches, d, offset, inst)
	panic("voice table corrupted")
}

func TestBackendPanicIsContained(t *testing.T) {
	b := &panickyBackend{}
	s := newSession(t, b)
	for i := range 3 {
		if _, ok := s.Dispatch(sample(0.5, 0.2, int64(i)*200)); !ok {
			t.Fatalf("gesture %d ignored", i)
		}
	}
	if st := s.State(); st.Mood != 30 || st.Accepted != 3 {
		t.Fatalf("state = %+v, want mood 30 after 3 gestures", st)
	}
	if len(b.notes) != 3 || len(b.ramps) != 9 {
		t.Fatalf("notes %d ramps %d, want 3 and 9", len(b.notes), len(b.ramps))
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b, WithInstrument(perform.InstrumentSynth))
	for i := range 6 {
		s.Dispatch(sample(0.5, 0.2, int64(i)*200))
	}
	if s.State().Phase != mood.PhaseRebel {
		t.Fatal("expected rebel before reset")
	}
	s.Reset()
	st := s.State()
	if st.Mood != 0 || st.Phase != mood.PhaseHarmony || st.InnovationStreak != 0 || st.HistoryLen != 0 {
		t.Fatalf("state after reset = %+v", st)
	}
	if st.Instrument != perform.InstrumentSynth {
		t.Fatalf("instrument = %q, reset must keep it", st.Instrument)
	}

	// History is empty, so the next gesture starts fresh and the one after
	// it is a full repeat.
	s.Dispatch(sample(0.5, 0.2, 2000))
	if st := s.State(); st.Mood != 0 {
		t.Fatalf("mood = %v after first gesture, want 0", st.Mood)
	}
	s.Dispatch(sample(0.5, 0.2, 2200))
	if st := s.State(); st.Mood != 15 {
		t.Fatalf("mood = %v after repeat, want 15", st.Mood)
	}
}

func TestSetInstrument(t *testing.T) {
	b := &fakeBackend{}
	s := newSession(t, b)
	if err := s.SetInstrument("strings"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetInstrument("kazoo"); !errors.Is(err, ErrUnknownInstrument) {
		t.Fatalf("err = %v, want ErrUnknownInstrument", err)
	}
	if s.Instrument() != perform.InstrumentStrings {
		t.Fatalf("instrument = %q", s.Instrument())
	}
	s.Dispatch(sample(0.5, 0.2, 0))
	if b.notes[0].instrument != perform.InstrumentStrings {
		t.Fatalf("note instrument = %q", b.notes[0].instrument)
	}
}

func TestSameSeedSameEvents(t *testing.T) {
	run := func() []perform.Event {
		s := newSession(t, &fakeBackend{}, WithSeed(42))
		var out []perform.Event
		for i := range 12 {
			ev, _ := s.Dispatch(sample(0.5, 0.2, int64(i)*200))
			out = append(out, ev)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i].Duration != b[i].Duration || a[i].Offset != b[i].Offset || a[i].Suppressed != b[i].Suppressed {
			t.Fatalf("event %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Dispatch.CooldownMs = 500
	cfg.Dispatch.Threshold = 0.3
	cfg.Audio.Instrument = "synth"
	b := &fakeBackend{}
	s := newSession(t, b, WithConfig(cfg))
	if _, ok := s.Dispatch(sample(0.5, 0.2, 0)); ok {
		t.Fatal("gesture under the configured threshold accepted")
	}
	if _, ok := s.Dispatch(sample(0.5, 0.4, 0)); !ok {
		t.Fatal("gesture ignored")
	}
	if _, ok := s.Dispatch(sample(0.5, 0.4, 300)); ok {
		t.Fatal("gesture inside the configured cooldown accepted")
	}
	if s.Instrument() != perform.InstrumentSynth {
		t.Fatalf("instrument = %q", s.Instrument())
	}
}

func TestRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(t, &fakeBackend{}, WithRecorder(rec), WithSeed(7), WithClock(func() time.Time { return clock }))
	if len(rec.sessions) != 1 || rec.sessions[0].Seed != 7 || rec.sessions[0].ID != s.ID() {
		t.Fatalf("sessions = %+v", rec.sessions)
	}
	s.Dispatch(sample(0.5, 0.2, 0))
	s.Dispatch(sample(0.5, 0.01, 100))
	s.Reset()
	s.Dispatch(sample(0.2, 0.2, 400).WithSecondary(0.5))

	if len(rec.gestures) != 2 || len(rec.resets) != 1 {
		t.Fatalf("gestures = %d resets = %d", len(rec.gestures), len(rec.resets))
	}
	if rec.gestures[0].Seq != 1 || rec.resets[0].Seq != 2 || rec.gestures[1].Seq != 3 {
		t.Fatalf("seq = %d %d %d", rec.gestures[0].Seq, rec.resets[0].Seq, rec.gestures[1].Seq)
	}
	g := rec.gestures[1]
	if !g.Sample.HasSecondary || g.Fingerprint.Chord != gesture.ChordMinor || !g.At.Equal(clock) {
		t.Fatalf("gesture record = %+v", g)
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !rec.closed {
		t.Fatal("recorder not closed")
	}
	if _, ok := s.Dispatch(sample(0.5, 0.2, 5000)); ok {
		t.Fatal("closed session accepted a gesture")
	}
}

func TestRecorderErrorsDoNotInterrupt(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	s := newSession(t, &fakeBackend{}, WithRecorder(rec))
	if _, ok := s.Dispatch(sample(0.5, 0.2, 0)); !ok {
		t.Fatal("gesture ignored")
	}
	s.Reset()
}

func TestConcurrentUse(t *testing.T) {
	s := newSession(t, &fakeBackend{})
	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				ts := int64(g*100000 + i*200)
				s.Dispatch(sample(float64(i%10)/10, 0.2, ts))
				if i%25 == 0 {
					s.Reset()
				}
				st := s.State()
				if st.Mood < 0 || st.Mood > 100 {
					t.Errorf("mood out of range: %v", st.Mood)
					return
				}
			}
		}()
	}
	wg.Wait()
}
