package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/cbegin/conductor-go/internal/perform"
)

var ErrInvalid = errors.New("invalid config")

// Load unifies the CUE files with the schema and decodes the result.
// Files are unified, not layered: two files setting the same key to
// different values is an error. With no files the schema defaults apply.
func Load(paths ...string) (Config, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}

	value := def
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		file := ctx.CompileBytes(content, cue.Filename(path))
		if err := file.Err(); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
		value = value.Unify(file)
	}
	return decode(value)
}

// Parse is Load for in-memory CUE source.
func Parse(src string) (Config, error) {
	ctx := cuecontext.New()
	def := ctx.CompileString(schema).LookupPath(cue.ParsePath("#Config"))
	file := ctx.CompileString(src, cue.Filename("config.cue"))
	if err := file.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return decode(def.Unify(file))
}

func decode(value cue.Value) (Config, error) {
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if c.Mood.RebelFrom <= c.Mood.DistractedFrom {
		return fmt.Errorf("%w: mood.rebelFrom (%v) must exceed mood.distractedFrom (%v)",
			ErrInvalid, c.Mood.RebelFrom, c.Mood.DistractedFrom)
	}
	if c.Mood.RebelFrom > c.Mood.Max {
		return fmt.Errorf("%w: mood.rebelFrom (%v) exceeds mood.max (%v)", ErrInvalid, c.Mood.RebelFrom, c.Mood.Max)
	}
	if _, err := perform.ParseInstrument(c.Audio.Instrument); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Environment overrides.
const (
	EnvSeed         = "CONDUCTOR_SEED"
	EnvSampleRate   = "CONDUCTOR_SAMPLE_RATE"
	EnvMasterVolume = "CONDUCTOR_MASTER_VOLUME" // 0-100
	EnvInstrument   = "CONDUCTOR_INSTRUMENT"
	EnvLogLevel     = "CONDUCTOR_LOG_LEVEL"
	EnvJournal      = "CONDUCTOR_JOURNAL"
	EnvHTTPAddr     = "CONDUCTOR_HTTP_ADDR"
)

// ApplyEnv overlays CONDUCTOR_* variables. Malformed values are skipped
// and reported together in the returned error; valid ones still apply.
func (c *Config) ApplyEnv() error {
	var errs []error
	bad := func(key, val string) {
		errs = append(errs, fmt.Errorf("%w: %s=%q", ErrInvalid, key, val))
	}

	if v := os.Getenv(EnvSeed); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = n
		} else {
			bad(EnvSeed, v)
		}
	}
	if v := os.Getenv(EnvSampleRate); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 8000 && n <= 192000 {
			c.Audio.SampleRate = n
		} else {
			bad(EnvSampleRate, v)
		}
	}
	if v := os.Getenv(EnvMasterVolume); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Audio.MasterVolume = min(max(float64(n)/100, 0), 1)
		} else {
			bad(EnvMasterVolume, v)
		}
	}
	if v := os.Getenv(EnvInstrument); v != "" {
		if inst, err := perform.ParseInstrument(v); err == nil {
			c.Audio.Instrument = string(inst)
		} else {
			bad(EnvInstrument, v)
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		switch l := strings.ToLower(v); l {
		case "debug", "info", "warn", "error":
			c.Log.Level = l
		default:
			bad(EnvLogLevel, v)
		}
	}
	if v, ok := os.LookupEnv(EnvJournal); ok {
		c.Journal.Path = v
	}
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok {
		c.HTTP.Addr = v
	}
	return errors.Join(errs...)
}
