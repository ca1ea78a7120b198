package perform

import (
	"github.com/cbegin/conductor-go/internal/gesture"
	"github.com/cbegin/conductor-go/internal/pitch"
)

// Scales are ordered low to high.
var (
	MajorScale = []string{
		"C3", "D3", "E3", "F3", "G3", "A3", "B3",
		"C4", "D4", "E4", "F4", "G4", "A4", "B4", "C5",
	}
	WholeToneScale = []string{
		"C3", "D3", "E3", "F#3", "G#3", "A#3",
		"C4", "D4", "E4", "F#4", "G#4", "A#4", "C5",
	}
)

// chordIntervals are semitones above the root.
var chordIntervals = map[gesture.ChordClass][]int{
	gesture.ChordMajor:     {4, 7},
	gesture.ChordMinor:     {3, 7},
	gesture.ChordDominant7: {4, 7, 10},
}

// Chord stacks the chord class on root. Unknown roots or ChordNone yield
// the root alone.
func Chord(root string, class gesture.ChordClass) []string {
	notes := []string{root}
	for _, semis := range chordIntervals[class] {
		n, err := pitch.Transpose(root, semis)
		if err != nil {
			return []string{root}
		}
		notes = append(notes, n)
	}
	return notes
}
