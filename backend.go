package conductor

import (
	"time"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
)

// Backend produces sound. Calls must not block on audio I/O; an error
// means the request was dropped, and the session carries on regardless.
type Backend interface {
	ScheduleNote(pitches []string, d perform.Duration, offset time.Duration, inst perform.Instrument) error
	RampEffect(effect perform.Effect, target float64, timeConstant time.Duration) error
	ScheduleArpeggio(seq perform.Arpeggio) error
}

var ErrUnknownInstrument = perform.ErrUnknownInstrument

// SessionInfo describes a session when it starts.
type SessionInfo struct {
	ID         string
	StartedAt  time.Time
	Seed       int64
	Instrument perform.Instrument
}

// GestureRecord is everything known about one accepted gesture. Seq orders
// gestures and resets within a session.
type GestureRecord struct {
	SessionID      string
	Seq            int64
	At             time.Time
	Sample         gesture.Sample
	Fingerprint    gesture.Fingerprint
	RepetitionRate float64
	Innovative     bool
	Mood           float64
	Phase          mood.Phase
	Cadenza        bool
	Instrument     perform.Instrument
	Event          perform.Event
}

type ResetRecord struct {
	SessionID string
	Seq       int64
	At        time.Time
}

// Recorder persists what a session does. Errors are logged by the session
// and never interrupt it.
type Recorder interface {
	BeginSession(SessionInfo) error
	RecordGesture(GestureRecord) error
	RecordReset(ResetRecord) error
}
