// Package config loads conductor settings from CUE files and CONDUCTOR_*
// environment variables on top of built-in defaults.
package config

import (
	"time"

	"github.com/cbegin/conductor-go/internal/mood"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/repetition"
)

type Config struct {
	// Seed drives every random choice. Zero means seed from the clock.
	Seed     int64          `json:"seed"`
	Mood     MoodConfig     `json:"mood"`
	Analysis AnalysisConfig `json:"analysis"`
	Perform  PerformConfig  `json:"perform"`
	Dispatch DispatchConfig `json:"dispatch"`
	Audio    AudioConfig    `json:"audio"`
	Log      LogConfig      `json:"log"`
	Journal  JournalConfig  `json:"journal"`
	HTTP     HTTPConfig     `json:"http"`
}

type MoodConfig struct {
	DistractedFrom    float64 `json:"distractedFrom"`
	RebelFrom         float64 `json:"rebelFrom"`
	Max               float64 `json:"max"`
	InnovationBonus   float64 `json:"innovationBonus"`
	CadenzaBonus      float64 `json:"cadenzaBonus"`
	RepetitionPenalty float64 `json:"repetitionPenalty"`
	CadenzaStreak     int     `json:"cadenzaStreak"`
}

type AnalysisConfig struct {
	HistorySize         int     `json:"historySize"`
	InnovationThreshold float64 `json:"innovationThreshold"`
	PitchTolerance      int     `json:"pitchTolerance"`
}

type PerformConfig struct {
	NeighborNoteChance   float64 `json:"neighborNoteChance"`
	RhythmOverrideChance float64 `json:"rhythmOverrideChance"`
	ChordDropChance      float64 `json:"chordDropChance"`
	DropoutChance        float64 `json:"dropoutChance"`
	DistractedJitterMs   float64 `json:"distractedJitterMs"`
	RebelJitterMs        float64 `json:"rebelJitterMs"`
	RampMs               float64 `json:"rampMs"`
}

type DispatchConfig struct {
	CooldownMs int64   `json:"cooldownMs"`
	Threshold  float64 `json:"threshold"`
}

type AudioConfig struct {
	SampleRate   int     `json:"sampleRate"`
	MasterVolume float64 `json:"masterVolume"`
	BPM          float64 `json:"bpm"`
	Instrument   string  `json:"instrument"`
	LatencyMs    int     `json:"latencyMs"`
}

type LogConfig struct {
	Level   string `json:"level"`
	Journal bool   `json:"journal"`
}

type JournalConfig struct {
	// Path of the SQLite gesture journal. Empty disables recording.
	Path string `json:"path"`
}

type HTTPConfig struct {
	// Addr of the control API, e.g. "127.0.0.1:7070". Empty disables it.
	Addr string `json:"addr"`
}

// Default mirrors the defaults declared in the CUE schema.
func Default() Config {
	rules := mood.DefaultRules()
	analysis := repetition.DefaultConfig()
	pc := perform.DefaultConfig()
	return Config{
		Mood: MoodConfig{
			DistractedFrom:    rules.DistractedFrom,
			RebelFrom:         rules.RebelFrom,
			Max:               rules.Max,
			InnovationBonus:   rules.InnovationBonus,
			CadenzaBonus:      rules.CadenzaBonus,
			RepetitionPenalty: rules.RepetitionPenalty,
			CadenzaStreak:     rules.CadenzaStreak,
		},
		Analysis: AnalysisConfig{
			HistorySize:         analysis.Capacity,
			InnovationThreshold: analysis.InnovationThreshold,
			PitchTolerance:      analysis.PitchTolerance,
		},
		Perform: PerformConfig{
			NeighborNoteChance:   pc.NeighborNoteChance,
			RhythmOverrideChance: pc.RhythmOverrideChance,
			ChordDropChance:      pc.ChordDropChance,
			DropoutChance:        pc.DropoutChance,
			DistractedJitterMs:   ms(pc.DistractedJitter),
			RebelJitterMs:        ms(pc.RebelJitter),
			RampMs:               ms(pc.RampTime),
		},
		Dispatch: DispatchConfig{
			CooldownMs: 150,
			Threshold:  0.05,
		},
		Audio: AudioConfig{
			SampleRate:   48000,
			MasterVolume: 0.5,
			BPM:          perform.DefaultBPM,
			Instrument:   string(perform.InstrumentPiano),
			LatencyMs:    60,
		},
		Log: LogConfig{Level: "info"},
	}
}

func (c Config) MoodRules() mood.Rules {
	return mood.Rules{
		DistractedFrom:    c.Mood.DistractedFrom,
		RebelFrom:         c.Mood.RebelFrom,
		Max:               c.Mood.Max,
		InnovationBonus:   c.Mood.InnovationBonus,
		CadenzaBonus:      c.Mood.CadenzaBonus,
		RepetitionPenalty: c.Mood.RepetitionPenalty,
		CadenzaStreak:     c.Mood.CadenzaStreak,
	}
}

func (c Config) AnalyzerConfig() repetition.Config {
	return repetition.Config{
		Capacity:            c.Analysis.HistorySize,
		InnovationThreshold: c.Analysis.InnovationThreshold,
		PitchTolerance:      c.Analysis.PitchTolerance,
	}
}

func (c Config) MapperConfig() perform.Config {
	pc := perform.DefaultConfig()
	pc.NeighborNoteChance = c.Perform.NeighborNoteChance
	pc.RhythmOverrideChance = c.Perform.RhythmOverrideChance
	pc.ChordDropChance = c.Perform.ChordDropChance
	pc.DropoutChance = c.Perform.DropoutChance
	pc.DistractedJitter = dur(c.Perform.DistractedJitterMs)
	pc.RebelJitter = dur(c.Perform.RebelJitterMs)
	pc.RampTime = dur(c.Perform.RampMs)
	return pc
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Dispatch.CooldownMs) * time.Millisecond
}

func (c Config) Latency() time.Duration {
	return time.Duration(c.Audio.LatencyMs) * time.Millisecond
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func dur(msec float64) time.Duration {
	return time.Duration(msec * float64(time.Millisecond))
}
