package scheduler

import "sync"

// Voice is a single-timbre polyphonic engine.
type Voice interface {
	NoteOn(note, velocity, pan int) int
	NoteOff(id int)
	ReleaseAll()
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	ActiveVoiceCount() int
}

// Ensemble routes notes to one Voice per channel and mixes their output.
// Voices are not safe for concurrent use, so every call into one happens
// under mu. The scheduler calls in with its own lock held; the ensemble never
// calls back out.
type Ensemble struct {
	mu     sync.Mutex
	voices map[int]Voice
	order  []int
}

func NewEnsemble() *Ensemble {
	return &Ensemble{voices: make(map[int]Voice)}
}

// Add registers a voice for a channel, replacing any previous one.
func (m *Ensemble) Add(channel int, v Voice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.voices[channel]; !ok {
		m.order = append(m.order, channel)
	}
	m.voices[channel] = v
}

// encodeVoiceID packs channel and local voice id into one int.
func encodeVoiceID(channel, localID int) int {
	return (channel << 16) | (localID & 0xFFFF)
}

func decodeVoiceID(id int) (channel, localID int) {
	return (id >> 16) & 0xFF, id & 0xFFFF
}

// NoteOn returns -1 when no voice is registered for the channel.
func (m *Ensemble) NoteOn(channel, note, velocity, pan int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.voices[channel]
	if v == nil {
		return -1
	}
	return encodeVoiceID(channel, v.NoteOn(note, velocity, pan))
}

func (m *Ensemble) NoteOff(id int) {
	channel, localID := decodeVoiceID(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := m.voices[channel]; v != nil {
		v.NoteOff(localID)
	}
}

func (m *Ensemble) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.order {
		m.voices[ch].ReleaseAll()
	}
}

func (m *Ensemble) RenderFrame() (float32, float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var l, r float32
	for _, ch := range m.order {
		vl, vr := m.voices[ch].RenderFrame()
		l += vl
		r += vr
	}
	return l, r
}

func (m *Ensemble) SetMasterGain(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.order {
		m.voices[ch].SetMasterGain(gain)
	}
}

func (m *Ensemble) ActiveVoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ch := range m.order {
		n += m.voices[ch].ActiveVoiceCount()
	}
	return n
}
