// Package journal records sessions, accepted gestures and resets in SQLite
// so a performance can be inspected or replayed.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	conductor "github.com/cbegin/conductor-go"
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	instrument  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS gestures (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	recorded_at     TEXT NOT NULL,
	timestamp_ms    INTEGER NOT NULL,
	primary_axis    REAL NOT NULL,
	velocity        REAL NOT NULL,
	secondary       REAL,
	fingerprint     TEXT NOT NULL,
	repetition_rate REAL NOT NULL,
	innovative      INTEGER NOT NULL,
	mood            REAL NOT NULL,
	phase           TEXT NOT NULL,
	cadenza         INTEGER NOT NULL,
	instrument      TEXT NOT NULL,
	pitches         TEXT NOT NULL,
	duration        TEXT NOT NULL,
	offset_ms       REAL NOT NULL,
	suppressed      INTEGER NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE INDEX IF NOT EXISTS gestures_session_seq ON gestures(session_id, seq);

CREATE TABLE IF NOT EXISTS resets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

// Store is a SQLite-backed conductor.Recorder.
type Store struct {
	db *sql.DB
}

var _ conductor.Recorder = (*Store)(nil)

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) BeginSession(info conductor.SessionInfo) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at, seed, instrument) VALUES (?, ?, ?, ?)`,
		info.ID, info.StartedAt.UTC().Format(time.RFC3339Nano), info.Seed, string(info.Instrument),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) RecordGesture(rec conductor.GestureRecord) error {
	pitches, err := json.Marshal(rec.Event.Pitches)
	if err != nil {
		return fmt.Errorf("marshal pitches: %w", err)
	}
	var secondary sql.NullFloat64
	if rec.Sample.HasSecondary {
		secondary = sql.NullFloat64{Float64: rec.Sample.Secondary, Valid: true}
	}
	_, err = s.db.Exec(
		`INSERT INTO gestures (
			session_id, seq, recorded_at, timestamp_ms, primary_axis, velocity, secondary,
			fingerprint, repetition_rate, innovative, mood, phase, cadenza,
			instrument, pitches, duration, offset_ms, suppressed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Seq, rec.At.UTC().Format(time.RFC3339Nano),
		rec.Sample.TimestampMs, rec.Sample.Primary, rec.Sample.Velocity, secondary,
		rec.Fingerprint.String(), rec.RepetitionRate, rec.Innovative,
		rec.Mood, rec.Phase.String(), rec.Cadenza,
		string(rec.Instrument), string(pitches), rec.Event.Duration.String(),
		rec.Event.OffsetMs(), rec.Event.Suppressed,
	)
	if err != nil {
		return fmt.Errorf("insert gesture: %w", err)
	}
	return nil
}

func (s *Store) RecordReset(rec conductor.ResetRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO resets (session_id, seq, recorded_at) VALUES (?, ?, ?)`,
		rec.SessionID, rec.Seq, rec.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert reset: %w", err)
	}
	return nil
}

// SessionSummary is one row of Sessions.
type SessionSummary struct {
	ID         string
	StartedAt  time.Time
	Seed       int64
	Instrument perform.Instrument
	Gestures   int
	Resets     int
}

// Sessions lists recorded sessions, newest first.
func (s *Store) Sessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, s.seed, s.instrument,
			(SELECT COUNT(*) FROM gestures g WHERE g.session_id = s.id),
			(SELECT COUNT(*) FROM resets r WHERE r.session_id = s.id)
		FROM sessions s
		ORDER BY s.started_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum     SessionSummary
			started string
			inst    string
		)
		if err := rows.Scan(&sum.ID, &started, &sum.Seed, &inst, &sum.Gestures, &sum.Resets); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		sum.Instrument = perform.Instrument(inst)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Session returns one session's summary.
func (s *Store) Session(id string) (SessionSummary, error) {
	all, err := s.Sessions()
	if err != nil {
		return SessionSummary{}, err
	}
	for _, sum := range all {
		if sum.ID == id {
			return sum, nil
		}
	}
	return SessionSummary{}, fmt.Errorf("session %s: %w", id, sql.ErrNoRows)
}

// Gestures returns a session's accepted gestures in order.
func (s *Store) Gestures(sessionID string) ([]conductor.GestureRecord, error) {
	rows, err := s.db.Query(`
		SELECT seq, recorded_at, timestamp_ms, primary_axis, velocity, secondary,
			repetition_rate, innovative, mood, phase, cadenza,
			instrument, pitches, duration, offset_ms, suppressed
		FROM gestures WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query gestures: %w", err)
	}
	defer rows.Close()

	var out []conductor.GestureRecord
	for rows.Next() {
		var (
			rec       conductor.GestureRecord
			at        string
			secondary sql.NullFloat64
			phase     string
			inst      string
			pitches   string
			dur       string
			offsetMs  float64
		)
		err := rows.Scan(
			&rec.Seq, &at, &rec.Sample.TimestampMs, &rec.Sample.Primary, &rec.Sample.Velocity, &secondary,
			&rec.RepetitionRate, &rec.Innovative, &rec.Mood, &phase, &rec.Cadenza,
			&inst, &pitches, &dur, &offsetMs, &rec.Event.Suppressed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan gesture: %w", err)
		}
		rec.SessionID = sessionID
		rec.At, _ = time.Parse(time.RFC3339Nano, at)
		if secondary.Valid {
			rec.Sample = rec.Sample.WithSecondary(secondary.Float64)
		}
		rec.Fingerprint = gesture.NewFingerprint(rec.Sample)
		if rec.Phase, err = mood.ParsePhase(phase); err != nil {
			return nil, err
		}
		rec.Instrument = perform.Instrument(inst)
		if err := json.Unmarshal([]byte(pitches), &rec.Event.Pitches); err != nil {
			return nil, fmt.Errorf("unmarshal pitches: %w", err)
		}
		if err := rec.Event.Duration.UnmarshalText([]byte(dur)); err != nil {
			return nil, err
		}
		rec.Event.Offset = time.Duration(math.Round(offsetMs * float64(time.Millisecond)))
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Entry is one replayable step: either a gesture or a reset.
type Entry struct {
	Seq        int64
	Reset      bool
	Sample     gesture.Sample
	Instrument perform.Instrument
}

// Entries merges a session's gestures and resets in recording order.
func (s *Store) Entries(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT seq, 0, timestamp_ms, primary_axis, velocity, secondary, instrument
			FROM gestures WHERE session_id = ?
		UNION ALL
		SELECT seq, 1, 0, 0, 0, NULL, ''
			FROM resets WHERE session_id = ?
		ORDER BY 1`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			secondary sql.NullFloat64
			inst      string
		)
		if err := rows.Scan(&e.Seq, &e.Reset, &e.Sample.TimestampMs, &e.Sample.Primary, &e.Sample.Velocity, &secondary, &inst); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if secondary.Valid {
			e.Sample = e.Sample.WithSecondary(secondary.Float64)
		}
		e.Instrument = perform.Instrument(inst)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Script turns a recorded session into steps for the offline renderer.
// Gesture times are shifted so the first gesture lands at zero; a reset
// keeps the time of the step before it. Instrument changes are inferred
// from the instrument each gesture was played on.
func (s *Store) Script(sessionID string) ([]conductor.Step, error) {
	info, err := s.Session(sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries(sessionID)
	if err != nil {
		return nil, err
	}

	var (
		steps   []conductor.Step
		at      time.Duration
		origin  int64
		started bool
		current = info.Instrument
	)
	for _, e := range entries {
		if e.Reset {
			steps = append(steps, conductor.Step{At: at, Kind: conductor.StepReset})
			continue
		}
		if !started {
			origin = e.Sample.TimestampMs
			started = true
		}
		at = max(at, time.Duration(e.Sample.TimestampMs-origin)*time.Millisecond)
		if e.Instrument != current {
			steps = append(steps, conductor.Step{At: at, Kind: conductor.StepInstrument, Instrument: e.Instrument})
			current = e.Instrument
		}
		steps = append(steps, conductor.Step{At: at, Kind: conductor.StepGesture, Sample: e.Sample})
	}
	return steps, nil
}
