package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/repetition"
)

func TestSchemaDefaultsMatchDefault(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("schema defaults\n got %+v\nwant %+v", cfg, want)
	}
}

func TestDefaultsConvert(t *testing.T) {
	cfg := Default()
	if got := cfg.MoodRules(); got != mood.DefaultRules() {
		t.Fatalf("mood rules = %+v", got)
	}
	if got := cfg.AnalyzerConfig(); got != repetition.DefaultConfig() {
		t.Fatalf("analyzer = %+v", got)
	}
	if got := cfg.MapperConfig(); got != perform.DefaultConfig() {
		t.Fatalf("mapper = %+v", got)
	}
	if cfg.Cooldown() != 150*time.Millisecond || cfg.Dispatch.Threshold != 0.05 {
		t.Fatalf("dispatch = %+v", cfg.Dispatch)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverrides(t *testing.T) {
	a := writeFile(t, "a.cue", `
seed: 42
mood: rebelFrom: 70
audio: instrument: "strings"
`)
	b := writeFile(t, "b.cue", `
perform: rampMs: 250
journal: path: "/tmp/j.db"
`)
	cfg, err := Load(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seed != 42 || cfg.Mood.RebelFrom != 70 || cfg.Audio.Instrument != "strings" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.MapperConfig().RampTime != 250*time.Millisecond || cfg.Journal.Path != "/tmp/j.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Mood.DistractedFrom != 30 {
		t.Fatalf("untouched key lost its default: %v", cfg.Mood.DistractedFrom)
	}
}

func TestParseRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
	}{
		{"unknown key", `colour: "red"`},
		{"unknown nested key", `mood: anger: 3`},
		{"probability above one", `perform: dropoutChance: 1.5`},
		{"bad instrument", `audio: instrument: "kazoo"`},
		{"wrong type", `dispatch: cooldownMs: "soon"`},
		{"syntax", `mood: {`},
		{"inverted thresholds", `mood: { distractedFrom: 70, rebelFrom: 60 }`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.src); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestConflictingFilesRejected(t *testing.T) {
	a := writeFile(t, "a.cue", `seed: 1`)
	b := writeFile(t, "b.cue", `seed: 2`)
	if _, err := Load(a, b); err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.cue")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvSeed, "7")
	t.Setenv(EnvSampleRate, "44100")
	t.Setenv(EnvMasterVolume, "150")
	t.Setenv(EnvInstrument, "Synth")
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvJournal, "j.db")
	t.Setenv(EnvHTTPAddr, ":7070")

	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Seed = 7
	want.Audio.SampleRate = 44100
	want.Audio.MasterVolume = 1
	want.Audio.Instrument = "synth"
	want.Log.Level = "debug"
	want.Journal.Path = "j.db"
	want.HTTP.Addr = ":7070"
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("got %+v\nwant %+v", cfg, want)
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	t.Setenv(EnvSeed, "abc")
	t.Setenv(EnvSampleRate, "12")
	t.Setenv(EnvInstrument, "strings")

	cfg := Default()
	err := cfg.ApplyEnv()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v", err)
	}
	if cfg.Seed != 0 || cfg.Audio.SampleRate != 48000 {
		t.Fatalf("bad values applied: %+v", cfg)
	}
	if cfg.Audio.Instrument != "strings" {
		t.Fatal("valid value skipped")
	}
}
