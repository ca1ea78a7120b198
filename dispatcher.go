package conductor

import (
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/perform"
)

// Dispatch runs one gesture through the pipeline. It returns the mapped
// event and true when the gesture was accepted; gestures that are too slow,
// arrive inside the cooldown, or reach a closed session are ignored and
// leave no trace.
//
// An accepted gesture is fingerprinted, analyzed against history, applied
// to the mood, mapped under the updated mood and handed to the backend.
// Backend failures are logged and otherwise ignored.
func (s *Session) Dispatch(sample gesture.Sample) (perform.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.accepts(sample) {
		s.ignored++
		return perform.Event{}, false
	}
	s.hasAccepted = true
	s.lastAccepted = sample.TimestampMs
	s.accepted++

	fp := gesture.NewFingerprint(sample)
	res := s.analyzer.Analyze(fp)
	upd := s.mood.Update(res.RepetitionRate, res.IsInnovative)
	plan := s.mapper.Plan(sample, s.mood.State())
	s.last = &fp
	s.seq++

	s.perform(plan, upd.CadenzaTriggered)

	if upd.PhaseChanged {
		s.log.Info("phase changed", "phase", upd.Phase, "mood", upd.Mood)
	}
	s.log.Debug("gesture",
		"fingerprint", fp.String(),
		"repetition", res.RepetitionRate,
		"innovative", res.IsInnovative,
		"mood", upd.Mood,
		"pitches", plan.Event.Pitches,
		"duration", plan.Event.Duration,
		"offset_ms", plan.Event.OffsetMs(),
		"suppressed", plan.Event.Suppressed,
	)

	if s.recorder != nil {
		err := s.recorder.RecordGesture(GestureRecord{
			SessionID:      s.id,
			Seq:            s.seq,
			At:             s.now(),
			Sample:         sample,
			Fingerprint:    fp,
			RepetitionRate: res.RepetitionRate,
			Innovative:     res.IsInnovative,
			Mood:           upd.Mood,
			Phase:          upd.Phase,
			Cadenza:        upd.CadenzaTriggered,
			Instrument:     s.instrument,
			Event:          plan.Event,
		})
		if err != nil {
			s.log.Warn("journal: record gesture", "error", err)
		}
	}
	return plan.Event, true
}

// accepts applies the velocity threshold and the cooldown. The first
// gesture of a session is never held back by the cooldown, and neither is a
// gesture stamped before the last accepted one: the clock moved back, so
// the cooldown restarts from the new time base.
func (s *Session) accepts(sample gesture.Sample) bool {
	if s.closed {
		return false
	}
	if !(sample.Velocity > s.threshold) {
		return false
	}
	if !s.hasAccepted {
		return true
	}
	elapsed := sample.TimestampMs - s.lastAccepted
	return elapsed < 0 || elapsed >= s.cooldownMs
}

// perform hands a plan to the backend: effect ramps first, then the note,
// then the cadenza flourish. A failing call, returned error or panic, is
// logged and the remaining calls still run.
func (s *Session) perform(plan perform.Plan, cadenza bool) {
	for _, fx := range plan.Effects.Levels() {
		s.call("ramp effect", func() error {
			return s.backend.RampEffect(fx.Effect, fx.Level, plan.RampTime)
		}, "effect", fx.Effect)
	}
	ev := plan.Event
	if !ev.Suppressed {
		s.call("schedule note", func() error {
			return s.backend.ScheduleNote(ev.Pitches, ev.Duration, ev.Offset, s.instrument)
		}, "pitches", ev.Pitches)
	}
	if cadenza {
		seq := perform.Cadenza()
		s.log.Info("cadenza", "notes", len(seq), "span", seq.Span())
		s.call("schedule cadenza", func() error {
			return s.backend.ScheduleArpeggio(seq)
		})
	}
}

func (s *Session) call(op string, fn func() error, attrs ...any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("backend: "+op+" panicked", append(attrs, "panic", r)...)
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("backend: "+op, append(attrs, "error", err)...)
	}
}
