// Package pitch converts between scientific pitch names ("C4", "F#3", "Bb2")
// and MIDI note numbers. Middle C is C4 = 60.
package pitch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrInvalidName = errors.New("invalid pitch name")

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MIDI parses a pitch name into its MIDI note number.
// Accidentals may be '#', '+' (sharp) or 'b' (flat), repeated.
func MIDI(name string) (int, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	base, ok := noteOffsets[lower(name[0])]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	i, shift := 1, 0
accidentals:
	for ; i < len(name); i++ {
		switch name[i] {
		case '#', '+':
			shift++
		case 'b':
			shift--
		default:
			break accidentals
		}
	}
	oct, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	note := (oct+1)*12 + base + shift
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("%w: %q out of MIDI range", ErrInvalidName, name)
	}
	return note, nil
}

// Name renders a MIDI note number using sharps.
func Name(note int) string {
	note = clampInt(note, 0, 127)
	return sharpNames[note%12] + strconv.Itoa(note/12-1)
}

// Transpose shifts a named pitch by the given number of semitones.
func Transpose(name string, semitones int) (string, error) {
	n, err := MIDI(name)
	if err != nil {
		return "", err
	}
	shifted := n + semitones
	if shifted < 0 || shifted > 127 {
		return "", fmt.Errorf("%w: %q%+d out of MIDI range", ErrInvalidName, name, semitones)
	}
	return Name(shifted), nil
}

// Freq returns the equal-temperament frequency of a MIDI note, A4 = 440Hz.
func Freq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
