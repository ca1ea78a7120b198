package conductor

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/perform"
)

// scriptLine is one JSON line of a gesture script:
//
//	{"t": 0, "y": 0.4, "v": 0.2}
//	{"t": 200, "y": 0.4, "v": 0.2, "y2": 0.5}
//	{"t": 900, "reset": true}
//	{"t": 900, "instrument": "strings"}
type scriptLine struct {
	T          int64    `json:"t"`
	Y          *float64 `json:"y"`
	V          float64  `json:"v"`
	Y2         *float64 `json:"y2"`
	Reset      bool     `json:"reset"`
	Instrument string   `json:"instrument"`
}

// ParseScript reads a JSON-lines gesture script. Blank lines and lines
// starting with # are skipped.
func ParseScript(r io.Reader) ([]Step, error) {
	var steps []Step
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var l scriptLine
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		st, err := l.step()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if n := len(steps); n > 0 && st.At < steps[n-1].At {
			return nil, fmt.Errorf("line %d: t=%d goes back in time", lineNo, l.T)
		}
		steps = append(steps, st)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (l scriptLine) step() (Step, error) {
	at := time.Duration(l.T) * time.Millisecond
	switch {
	case l.Reset:
		return Step{At: at, Kind: StepReset}, nil
	case l.Instrument != "":
		inst, err := perform.ParseInstrument(l.Instrument)
		if err != nil {
			return Step{}, err
		}
		return Step{At: at, Kind: StepInstrument, Instrument: inst}, nil
	case l.Y != nil:
		s := gesture.Sample{Primary: *l.Y, Velocity: l.V, TimestampMs: l.T}
		if l.Y2 != nil {
			s = s.WithSecondary(*l.Y2)
		}
		return GestureStep(s), nil
	default:
		return Step{}, errors.New("need y, reset or instrument")
	}
}
