// Package conductor turns a stream of conducting gestures into music whose
// obedience depends on how inventive the conductor is. Repetition sours the
// orchestra's mood; fresh gestures win it back.
package conductor

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/conductor-go/internal/config"
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/logs"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/repetition"
)

var ErrNoBackend = errors.New("conductor: nil backend")

type Option func(*sessionConfig)

type sessionConfig struct {
	logger     *slog.Logger
	rng        perform.Rand
	seed       int64
	rules      mood.Rules
	analysis   repetition.Config
	mapping    perform.Config
	cooldown   time.Duration
	threshold  float64
	recorder   Recorder
	instrument perform.Instrument
	now        func() time.Time
}

func defaultSessionConfig() sessionConfig {
	cfg := config.Default()
	return sessionConfig{
		logger:     logs.Discard(),
		rules:      cfg.MoodRules(),
		analysis:   cfg.AnalyzerConfig(),
		mapping:    cfg.MapperConfig(),
		cooldown:   cfg.Cooldown(),
		threshold:  cfg.Dispatch.Threshold,
		instrument: perform.InstrumentPiano,
		now:        time.Now,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *sessionConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithSeed makes every random choice reproducible. Zero seeds from the
// clock.
func WithSeed(seed int64) Option {
	return func(cfg *sessionConfig) {
		cfg.seed = seed
	}
}

// WithRand injects the random source directly; it takes precedence over
// WithSeed.
func WithRand(rng perform.Rand) Option {
	return func(cfg *sessionConfig) {
		cfg.rng = rng
	}
}

// WithConfig applies the mood, analysis, mapping, dispatch, seed and
// instrument sections of a loaded config.
func WithConfig(c config.Config) Option {
	return func(cfg *sessionConfig) {
		cfg.rules = c.MoodRules()
		cfg.analysis = c.AnalyzerConfig()
		cfg.mapping = c.MapperConfig()
		cfg.cooldown = c.Cooldown()
		cfg.threshold = c.Dispatch.Threshold
		cfg.seed = c.Seed
		if inst, err := perform.ParseInstrument(c.Audio.Instrument); err == nil {
			cfg.instrument = inst
		}
	}
}

// WithRecorder journals every accepted gesture and reset.
func WithRecorder(r Recorder) Option {
	return func(cfg *sessionConfig) {
		cfg.recorder = r
	}
}

func WithInstrument(inst perform.Instrument) Option {
	return func(cfg *sessionConfig) {
		cfg.instrument = inst
	}
}

// WithClock replaces the wall clock used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *sessionConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// Session is one performance: the analyzer, mood machine and mapper plus
// the dispatch gate in front of them. All methods are safe for concurrent
// use; they serialize on one lock, so a Reset never lands in the middle of
// a Dispatch.
type Session struct {
	mu sync.Mutex

	id        string
	seed      int64
	startedAt time.Time
	log       *slog.Logger
	now       func() time.Time

	backend  Backend
	recorder Recorder

	analyzer *repetition.Analyzer
	mood     *mood.Machine
	mapper   *perform.Mapper

	instrument perform.Instrument
	cooldownMs int64
	threshold  float64

	hasAccepted  bool
	lastAccepted int64
	last         *gesture.Fingerprint
	seq          int64
	accepted     uint64
	ignored      uint64
	closed       bool
}

func New(backend Backend, opts ...Option) (*Session, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := perform.ParseInstrument(string(cfg.instrument)); err != nil {
		return nil, err
	}

	seed := cfg.seed
	rng := cfg.rng
	if rng == nil {
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	s := &Session{
		id:         uuid.NewString(),
		seed:       seed,
		startedAt:  cfg.now(),
		now:        cfg.now,
		backend:    backend,
		recorder:   cfg.recorder,
		analyzer:   repetition.New(cfg.analysis),
		mood:       mood.NewMachine(cfg.rules),
		mapper:     perform.NewMapper(cfg.mapping, rng),
		instrument: cfg.instrument,
		cooldownMs: cfg.cooldown.Milliseconds(),
		threshold:  cfg.threshold,
	}
	s.log = cfg.logger.With("session", s.id)

	if s.recorder != nil {
		err := s.recorder.BeginSession(SessionInfo{
			ID:         s.id,
			StartedAt:  s.startedAt,
			Seed:       s.seed,
			Instrument: s.instrument,
		})
		if err != nil {
			s.log.Warn("journal: begin session", "error", err)
		}
	}
	s.log.Info("session started", "seed", s.seed, "instrument", s.instrument)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Seed reports the seed the session's random source was built from, or 0
// when the source was injected.
func (s *Session) Seed() int64 {
	return s.seed
}

// Reset returns mood, phase, streak and gesture history to their initial
// state. The dispatch cooldown and the instrument are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mood.Reset()
	s.analyzer.Reset()
	s.last = nil
	s.seq++
	if s.recorder != nil && !s.closed {
		if err := s.recorder.RecordReset(ResetRecord{SessionID: s.id, Seq: s.seq, At: s.now()}); err != nil {
			s.log.Warn("journal: record reset", "error", err)
		}
	}
	s.log.Info("mood reset")
}

// SetInstrument switches the instrument for subsequent events.
func (s *Session) SetInstrument(id string) error {
	inst, err := perform.ParseInstrument(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst != s.instrument {
		s.log.Info("instrument changed", "from", s.instrument, "to", inst)
	}
	s.instrument = inst
	return nil
}

func (s *Session) Instrument() perform.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instrument
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	SessionID        string
	Mood             float64
	Phase            mood.Phase
	InnovationStreak int
	Instrument       perform.Instrument
	// LastFingerprint is empty until a gesture is accepted.
	LastFingerprint string
	HistoryLen      int
	Accepted        uint64
	Ignored         uint64
}

func (s *Session) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.mood.State()
	snap := Snapshot{
		SessionID:        s.id,
		Mood:             st.Mood,
		Phase:            st.Phase,
		InnovationStreak: st.InnovationStreak,
		Instrument:       s.instrument,
		HistoryLen:       s.analyzer.Len(),
		Accepted:         s.accepted,
		Ignored:          s.ignored,
	}
	if s.last != nil {
		snap.LastFingerprint = s.last.String()
	}
	return snap
}

// Close stops the session: later gestures are ignored. A recorder that is
// also an io.Closer is closed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Info("session closed", "accepted", s.accepted, "ignored", s.ignored)
	if c, ok := s.recorder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
