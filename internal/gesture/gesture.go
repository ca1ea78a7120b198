// Package gesture defines the samples produced by hand tracking and the
// quantized fingerprints used to compare them.
package gesture

import (
	"math"
	"strconv"
)

// Sample is one reading of the conducting hand. Primary and Secondary are
// normalized vertical positions where 0 is the top of the frame.
type Sample struct {
	Primary      float64
	Velocity     float64
	Secondary    float64
	HasSecondary bool
	TimestampMs  int64
}

// WithSecondary returns a copy of s carrying a secondary-hand position.
func (s Sample) WithSecondary(y float64) Sample {
	s.Secondary = y
	s.HasSecondary = true
	return s
}

type VelocityClass int

const (
	VelocitySlow VelocityClass = iota
	VelocityMedium
	VelocityFast
)

func (v VelocityClass) String() string {
	switch v {
	case VelocitySlow:
		return "slow"
	case VelocityFast:
		return "fast"
	default:
		return "medium"
	}
}

type ChordClass int

const (
	ChordNone ChordClass = iota
	ChordMajor
	ChordMinor
	ChordDominant7
)

func (c ChordClass) String() string {
	switch c {
	case ChordMajor:
		return "major"
	case ChordMinor:
		return "minor"
	case ChordDominant7:
		return "dom7"
	default:
		return "none"
	}
}

const (
	PitchBuckets = 10

	slowBelow = 0.02
	fastAbove = 0.1

	dominantBelow = 0.33
	minorBelow    = 0.66
)

// Fingerprint is the comparable summary of a Sample.
type Fingerprint struct {
	PitchBucket int
	Velocity    VelocityClass
	Chord       ChordClass
	TimestampMs int64
}

// NewFingerprint quantizes a sample. Out-of-range axes are clamped.
func NewFingerprint(s Sample) Fingerprint {
	bucket := int(math.Floor((1 - Clamp01(s.Primary)) * PitchBuckets))
	fp := Fingerprint{
		PitchBucket: clampInt(bucket, 0, PitchBuckets),
		Velocity:    ClassifyVelocity(s.Velocity),
		Chord:       ChordNone,
		TimestampMs: s.TimestampMs,
	}
	if s.HasSecondary {
		fp.Chord = ClassifyChord(s.Secondary)
	}
	return fp
}

// String renders the fingerprint without its timestamp, e.g. "p7/fast/minor".
func (f Fingerprint) String() string {
	return "p" + strconv.Itoa(f.PitchBucket) + "/" + f.Velocity.String() + "/" + f.Chord.String()
}

func ClassifyVelocity(v float64) VelocityClass {
	switch {
	case v < slowBelow:
		return VelocitySlow
	case v > fastAbove:
		return VelocityFast
	default:
		return VelocityMedium
	}
}

// ClassifyChord buckets a secondary-hand position into thirds:
// top = dominant 7th, middle = minor, bottom = major.
func ClassifyChord(y float64) ChordClass {
	y = Clamp01(y)
	switch {
	case y < dominantBelow:
		return ChordDominant7
	case y < minorBelow:
		return ChordMinor
	default:
		return ChordMajor
	}
}

func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
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
