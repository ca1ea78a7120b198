package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"

	conductor "github.com/cbegin/conductor-go"
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/synth"
)

// Hand tracking is sampled at camera rate.
const tickInterval = 33 * time.Millisecond

// headerRows are reserved above the conducting area.
const headerRows = 6

var (
	styleText  = tcell.StyleDefault
	styleDim   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBaton = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

var phaseStyles = map[mood.Phase]tcell.Style{
	mood.PhaseHarmony:    tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true),
	mood.PhaseDistracted: tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true),
	mood.PhaseRebel:      tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true),
}

var secondaryKeys = map[rune]float64{'1': 0.15, '2': 0.5, '3': 0.85}

var instrumentKeys = map[rune]perform.Instrument{
	'p': perform.InstrumentPiano,
	's': perform.InstrumentStrings,
	'y': perform.InstrumentSynth,
}

// stage is the terminal front end: it turns mouse motion into frames for
// the tracker and draws the orchestra's state.
type stage struct {
	screen  tcell.Screen
	session *conductor.Session
	synth   *synth.Synth
	httpURL string

	// now stamps gestures; it shares its time base with the HTTP surface.
	now func() time.Time

	tracker   gesture.Tracker
	mouse     gesture.Point
	hasMouse  bool
	secondary *gesture.Point

	lastEvent perform.Event
	hasEvent  bool
	lastAt    time.Time
	message   string
	muted     bool

	// peak holds the float32 bits of the last rendered buffer's peak.
	peak atomic.Uint32
}

func newStage(sess *conductor.Session, syn *synth.Synth, httpAddr string, now func() time.Time) (*stage, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.HideCursor()
	st := &stage{
		screen:  screen,
		session: sess,
		synth:   syn,
		now:     now,
	}
	if httpAddr != "" {
		st.httpURL = "http://" + httpAddr
	}
	syn.SetTap(st.meter)
	return st, nil
}

// meter runs on the audio goroutine.
func (st *stage) meter(buf []float32) {
	var p float32
	for _, v := range buf {
		p = max(p, v, -v)
	}
	st.peak.Store(math.Float32bits(p))
}

func (st *stage) run(ctx context.Context) error {
	defer st.screen.Fini()
	defer st.synth.SetTap(nil)

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := st.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	st.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !st.handle(ev) {
				return nil
			}
		case <-ticker.C:
			st.tick()
			st.draw()
		}
	}
}

func (st *stage) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			return st.handleRune(ev.Rune())
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		st.mouse, st.hasMouse = st.normalize(x, y)
	case *tcell.EventResize:
		st.screen.Sync()
		st.tracker.Reset()
	}
	return true
}

func (st *stage) handleRune(r rune) bool {
	if y, ok := secondaryKeys[r]; ok {
		st.secondary = &gesture.Point{Y: y}
		st.message = fmt.Sprintf("left hand at %.2f (%s)", y, gesture.ClassifyChord(y))
		return true
	}
	if inst, ok := instrumentKeys[r]; ok {
		if err := st.session.SetInstrument(string(inst)); err != nil {
			st.message = err.Error()
		} else {
			st.message = "instrument: " + string(inst)
		}
		return true
	}
	switch r {
	case '0':
		st.secondary = nil
		st.message = "left hand down"
	case 'm':
		st.muted = !st.muted
		if st.muted {
			st.synth.SetMasterGain(0)
			st.message = "muted"
		} else {
			st.synth.SetMasterGain(st.synth.MasterGain())
			st.message = "unmuted"
		}
	case 'r':
		st.session.Reset()
		st.hasEvent = false
		st.message = "the orchestra forgives you"
	case 'q':
		return false
	}
	return true
}

// normalize maps a cell inside the conducting area to 0..1 on both axes.
func (st *stage) normalize(x, y int) (gesture.Point, bool) {
	w, h := st.screen.Size()
	areaH := h - headerRows - 1
	if w < 2 || areaH < 2 || y < headerRows || y >= headerRows+areaH {
		return gesture.Point{}, false
	}
	return gesture.Point{
		X: float64(x) / float64(w-1),
		Y: float64(y-headerRows) / float64(areaH-1),
	}, true
}

func (st *stage) tick() {
	f := gesture.Frame{
		Secondary:   st.secondary,
		TimestampMs: st.now().UnixMilli(),
	}
	if st.hasMouse {
		p := st.mouse
		f.Primary = &p
	}
	s, ok := st.tracker.Observe(f)
	if !ok {
		return
	}
	if ev, ok := st.session.Dispatch(s); ok {
		st.lastEvent, st.hasEvent, st.lastAt = ev, true, time.Now()
	}
}

func (st *stage) draw() {
	st.screen.Clear()
	w, h := st.screen.Size()
	snap := st.session.State()
	phaseStyle := phaseStyles[snap.Phase]

	st.text(0, 0, styleText, "conduct  ")
	st.text(9, 0, phaseStyle, strings.ToUpper(snap.Phase.String()))
	status := fmt.Sprintf("instrument %s  voices %d  queued %d  out %s  seed %d  session %s",
		snap.Instrument, st.synth.ActiveVoiceCount(), st.synth.Pending(),
		dbfs(math.Float32frombits(st.peak.Load())), st.session.Seed(), short(snap.SessionID))
	if st.muted {
		status += "  MUTED"
	}
	st.text(22, 0, styleDim, status)

	barW := max(w-16, 10)
	filled := int(snap.Mood / 100 * float64(barW))
	st.text(0, 1, styleText, fmt.Sprintf("mood %5.1f ", snap.Mood))
	for i := range barW {
		r := '·'
		if i < filled {
			r = '█'
		}
		st.screen.SetContent(11+i, 1, r, nil, phaseStyle)
	}

	st.text(0, 2, styleDim, fmt.Sprintf("streak %d  history %d  last %s  accepted %d  ignored %d",
		snap.InnovationStreak, snap.HistoryLen, orDash(snap.LastFingerprint), snap.Accepted, snap.Ignored))
	if st.hasEvent {
		ev := st.lastEvent
		line := fmt.Sprintf("%s %s +%.0fms", strings.Join(ev.Pitches, " "), ev.Duration, ev.OffsetMs())
		if ev.Suppressed {
			line += " (refused)"
		}
		style := styleText
		if time.Since(st.lastAt) < 200*time.Millisecond {
			style = phaseStyle
		}
		st.text(0, 3, style, line)
	}
	st.text(0, 4, styleDim, st.message)

	help := "mouse: conduct  1/2/3: chord hand  0: no chord  p/s/y: instrument  m: mute  r: reset  q: quit"
	if st.httpURL != "" {
		help += "  api " + st.httpURL
	}
	st.text(0, h-1, styleDim, help)

	for x := range w {
		st.screen.SetContent(x, headerRows-1, '─', nil, styleDim)
	}
	if st.hasMouse {
		areaH := h - headerRows - 1
		x := int(st.mouse.X * float64(w-1))
		y := headerRows + int(st.mouse.Y*float64(areaH-1))
		st.screen.SetContent(x, y, ' ', nil, styleBaton)
	}
	st.screen.Show()
}

func (st *stage) text(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		st.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dbfs(peak float32) string {
	if peak <= 0 {
		return "-inf"
	}
	return fmt.Sprintf("%.0fdB", 20*math.Log10(float64(peak)))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
