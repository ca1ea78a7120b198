package gesture

import (
	"math"
	"testing"
)

func TestFingerprintPitchBucket(t *testing.T) {
	for _, tc := range []struct {
		primary float64
		want    int
	}{
		{0, 10},
		{0.05, 9},
		{0.5, 5},
		{0.95, 0},
		{1, 0},
		{-0.4, 10},
		{1.7, 0},
		{math.NaN(), 10},
	} {
		fp := NewFingerprint(Sample{Primary: tc.primary, Velocity: 0.06})
		if fp.PitchBucket != tc.want {
			t.Errorf("primary %v: bucket = %d, want %d", tc.primary, fp.PitchBucket, tc.want)
		}
	}
}

func TestFingerprintVelocityClass(t *testing.T) {
	for _, tc := range []struct {
		v    float64
		want VelocityClass
	}{
		{0, VelocitySlow},
		{0.019, VelocitySlow},
		{0.02, VelocityMedium},
		{0.1, VelocityMedium},
		{0.11, VelocityFast},
		{3, VelocityFast},
	} {
		if got := NewFingerprint(Sample{Velocity: tc.v}).Velocity; got != tc.want {
			t.Errorf("velocity %v: class = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestFingerprintChordClass(t *testing.T) {
	if got := NewFingerprint(Sample{Primary: 0.5}).Chord; got != ChordNone {
		t.Fatalf("no secondary: chord = %v, want none", got)
	}
	for _, tc := range []struct {
		y    float64
		want ChordClass
	}{
		{0, ChordDominant7},
		{0.2, ChordDominant7},
		{0.33, ChordMinor},
		{0.5, ChordMinor},
		{0.66, ChordMajor},
		{0.99, ChordMajor},
		{2, ChordMajor},
		{-1, ChordDominant7},
	} {
		fp := NewFingerprint(Sample{Primary: 0.5}.WithSecondary(tc.y))
		if fp.Chord != tc.want {
			t.Errorf("secondary %v: chord = %v, want %v", tc.y, fp.Chord, tc.want)
		}
	}
}

func TestFingerprintString(t *testing.T) {
	fp := NewFingerprint(Sample{Primary: 0.25, Velocity: 0.2, TimestampMs: 99}.WithSecondary(0.5))
	if got, want := fp.String(), "p7/fast/minor"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if fp.TimestampMs != 99 {
		t.Fatalf("timestamp = %d, want 99", fp.TimestampMs)
	}
}

func TestTrackerFirstFrameYieldsNothing(t *testing.T) {
	var tr Tracker
	if _, ok := tr.Observe(Frame{Primary: &Point{0.5, 0.5}, TimestampMs: 0}); ok {
		t.Fatal("first frame should not yield a sample")
	}
	s, ok := tr.Observe(Frame{Primary: &Point{0.8, 0.9}, TimestampMs: 33})
	if !ok {
		t.Fatal("second frame should yield a sample")
	}
	if math.Abs(s.Velocity-0.5) > 1e-9 {
		t.Fatalf("velocity = %f, want 0.5", s.Velocity)
	}
	if s.Primary != 0.9 || s.TimestampMs != 33 || s.HasSecondary {
		t.Fatalf("unexpected sample %+v", s)
	}
}

func TestTrackerForgetsLostHand(t *testing.T) {
	var tr Tracker
	tr.Observe(Frame{Primary: &Point{0, 0}})
	if _, ok := tr.Observe(Frame{TimestampMs: 10}); ok {
		t.Fatal("missing primary hand should not yield a sample")
	}
	if _, ok := tr.Observe(Frame{Primary: &Point{1, 1}, TimestampMs: 20}); ok {
		t.Fatal("hand reappearing should restart tracking")
	}
	s, ok := tr.Observe(Frame{Primary: &Point{1, 0.9}, Secondary: &Point{0.1, 0.4}, TimestampMs: 30})
	if !ok {
		t.Fatal("expected sample")
	}
	if !s.HasSecondary || s.Secondary != 0.4 {
		t.Fatalf("secondary = %v/%v, want 0.4", s.Secondary, s.HasSecondary)
	}
}
