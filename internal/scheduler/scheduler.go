// Package scheduler turns timed note requests into note-on and note-off
// calls at exact frame positions while rendering audio.
package scheduler

import "sync"

// Engine is what the scheduler drives. Ensemble implements it.
type Engine interface {
	NoteOn(channel, note, velocity, pan int) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
}

// Note is one scheduled note. Start is an absolute frame on the
// scheduler's clock; Frames is the gate length before note-off.
type Note struct {
	Channel  int
	Key      int
	Velocity int
	Pan      int
	Start    int64
	Frames   int64
}

type noteOff struct {
	frame int64
	voice int
}

// Scheduler owns the frame clock. Schedule may be called from any
// goroutine; Process runs on the audio goroutine.
type Scheduler struct {
	mu       sync.Mutex
	engine   Engine
	frame    int64
	pending  []Note // sorted by Start
	noteOffs []noteOff
}

func New(engine Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

// Now returns the frame that the next Process call renders first.
func (s *Scheduler) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Schedule queues a note. Notes whose start is already past play on the
// next rendered frame.
func (s *Scheduler) Schedule(n Note) {
	if n.Frames < 1 {
		n.Frames = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Insertion keeps equal starts in submission order.
	i := len(s.pending)
	s.pending = append(s.pending, n)
	for i > 0 && s.pending[i-1].Start > n.Start {
		s.pending[i] = s.pending[i-1]
		i--
	}
	s.pending[i] = n
}

// Pending reports notes not yet started plus notes still gated on.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.noteOffs)
}

// Clear drops every queued note and releases the ones already sounding.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.pending[:0]
	for _, off := range s.noteOffs {
		s.engine.NoteOff(off.voice)
	}
	s.noteOffs = s.noteOffs[:0]
}

// Process renders len(dst)/2 interleaved stereo frames.
func (s *Scheduler) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		s.dispatch(s.frame)
		l, r := s.engine.RenderFrame()
		dst[f*2] = l
		dst[f*2+1] = r
		s.frame++
	}
}

func (s *Scheduler) dispatch(frame int64) {
	started := 0
	for _, n := range s.pending {
		if n.Start > frame {
			break
		}
		id := s.engine.NoteOn(n.Channel, n.Key, n.Velocity, n.Pan)
		if id >= 0 {
			s.addNoteOff(noteOff{frame: frame + n.Frames, voice: id})
		}
		started++
	}
	if started > 0 {
		s.pending = append(s.pending[:0], s.pending[started:]...)
	}

	fired := 0
	for _, off := range s.noteOffs {
		if off.frame > frame {
			break
		}
		s.engine.NoteOff(off.voice)
		fired++
	}
	if fired > 0 {
		s.noteOffs = append(s.noteOffs[:0], s.noteOffs[fired:]...)
	}
}

func (s *Scheduler) addNoteOff(off noteOff) {
	i := len(s.noteOffs)
	s.noteOffs = append(s.noteOffs, off)
	for i > 0 && s.noteOffs[i-1].frame > off.frame {
		s.noteOffs[i] = s.noteOffs[i-1]
		i--
	}
	s.noteOffs[i] = off
}
