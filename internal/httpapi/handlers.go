package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
)

// Handlers contains the HTTP handlers for one session.
type Handlers struct {
	session Conductor
	clock   func() time.Time
}

func NewHandlers(session Conductor, clock func() time.Time) *Handlers {
	return &Handlers{session: session, clock: clock}
}

// StateResponse is the body of GET /state.
type StateResponse struct {
	SessionID        string             `json:"sessionId"`
	Mood             float64            `json:"mood"`
	Phase            mood.Phase         `json:"phase"`
	InnovationStreak int                `json:"innovationStreak"`
	Instrument       perform.Instrument `json:"instrument"`
	LastFingerprint  string             `json:"lastFingerprint,omitempty"`
	History          int                `json:"history"`
	Accepted         uint64             `json:"accepted"`
	Ignored          uint64             `json:"ignored"`
}

// GestureRequest is the body of POST /gestures.
type GestureRequest struct {
	Primary     *float64 `json:"primary"`
	Velocity    float64  `json:"velocity"`
	Secondary   *float64 `json:"secondary,omitempty"`
	TimestampMs *int64   `json:"timestampMs,omitempty"`
}

// EventResponse is the body of an accepted POST /gestures.
type EventResponse struct {
	Pitches    []string         `json:"pitches"`
	Duration   perform.Duration `json:"duration"`
	OffsetMs   float64          `json:"offsetMs"`
	Suppressed bool             `json:"suppressed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// State handles GET /state.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	st := h.session.State()
	writeJSON(w, http.StatusOK, StateResponse{
		SessionID:        st.SessionID,
		Mood:             st.Mood,
		Phase:            st.Phase,
		InnovationStreak: st.InnovationStreak,
		Instrument:       st.Instrument,
		LastFingerprint:  st.LastFingerprint,
		History:          st.HistoryLen,
		Accepted:         st.Accepted,
		Ignored:          st.Ignored,
	})
}

// Reset handles POST /reset.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.session.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// SetInstrument handles PUT /instrument/{id}.
func (h *Handlers) SetInstrument(w http.ResponseWriter, r *http.Request) {
	err := h.session.SetInstrument(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, perform.ErrUnknownInstrument):
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Gesture handles POST /gestures. An ignored sample answers 202 with no
// body.
func (h *Handlers) Gesture(w http.ResponseWriter, r *http.Request) {
	var req GestureRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid gesture: " + err.Error()})
		return
	}
	if req.Primary == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid gesture: primary is required"})
		return
	}

	s := gesture.Sample{Primary: *req.Primary, Velocity: req.Velocity}
	if req.TimestampMs != nil {
		s.TimestampMs = *req.TimestampMs
	} else {
		s.TimestampMs = h.clock().UnixMilli()
	}
	if req.Secondary != nil {
		s = s.WithSecondary(*req.Secondary)
	}

	ev, ok := h.session.Dispatch(s)
	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{
		Pitches:    ev.Pitches,
		Duration:   ev.Duration,
		OffsetMs:   ev.OffsetMs(),
		Suppressed: ev.Suppressed,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
