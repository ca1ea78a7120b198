// Command conduct is the live instrument: the mouse is the conducting hand,
// the number keys are the other hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	conductor "github.com/cbegin/conductor-go"
	"github.com/cbegin/conductor-go/internal/config"
	"github.com/cbegin/conductor-go/internal/httpapi"
	"github.com/cbegin/conductor-go/internal/journal"
	"github.com/cbegin/conductor-go/internal/logs"
	"github.com/cbegin/conductor-go/internal/perform"
	"github.com/cbegin/conductor-go/internal/synth"
)

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var configPaths stringList
	flag.Var(&configPaths, "config", "CUE config file (repeatable; files are unified)")
	var (
		seed       = flag.Int64("seed", 0, "random seed (0 = from config or clock)")
		instrument = flag.String("instrument", "", "starting instrument: piano|strings|synth")
		httpAddr   = flag.String("http", "", "control API address, e.g. "+httpapi.DefaultAddr)
		journalDB  = flag.String("journal", "", "record the session to this SQLite file")
		logLevel   = flag.String("log-level", "", "debug|info|warn|error")
		logFile    = flag.String("log-file", "", "write logs to this file instead of discarding them")
		mute       = flag.Bool("mute", false, "run without opening an audio device")
	)
	flag.Parse()

	cfg, err := loadConfig(configPaths)
	if err != nil {
		log.Fatal(err)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *instrument != "" {
		inst, err := perform.ParseInstrument(*instrument)
		if err != nil {
			log.Fatalf("invalid -instrument: %v", err)
		}
		cfg.Audio.Instrument = string(inst)
	}
	if *httpAddr != "" {
		cfg.HTTP.Addr = *httpAddr
	}
	if *journalDB != "" {
		cfg.Journal.Path = *journalDB
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger, closeLog, err := openLogger(cfg.Log, *logFile)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	if err := run(cfg, logger, *mute); err != nil {
		logger.Error("conduct failed", "error", err)
		closeLog()
		log.Fatal(err)
	}
}

func loadConfig(paths []string) (config.Config, error) {
	cfg := config.Default()
	if len(paths) > 0 {
		var err error
		if cfg, err = config.Load(paths...); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// The screen belongs to the stage, so text logs only go to a file.
func openLogger(lc config.LogConfig, path string) (*slog.Logger, func(), error) {
	level, err := logs.ParseLevel(lc.Level)
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger, _ := logs.New(logs.Options{Writer: w, Level: level, Journal: lc.Journal})
	return logger, closeFn, nil
}

func run(cfg config.Config, logger *slog.Logger, mute bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syn := synth.New(synth.Config{
		SampleRate: cfg.Audio.SampleRate,
		MasterGain: cfg.Audio.MasterVolume,
		BPM:        cfg.Audio.BPM,
		Latency:    cfg.Latency(),
	})
	defer syn.Close()
	if !mute {
		if err := syn.Start(); err != nil {
			return err
		}
	}

	opts := []conductor.Option{conductor.WithConfig(cfg), conductor.WithLogger(logger)}
	if cfg.Journal.Path != "" {
		store, err := journal.NewStore(cfg.Journal.Path)
		if err != nil {
			return err
		}
		opts = append(opts, conductor.WithRecorder(store))
	}
	sess, err := conductor.New(syn, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	// The stage and the HTTP surface stamp gestures from one clock so the
	// cooldown compares like with like.
	clock := time.Now
	if cfg.HTTP.Addr != "" {
		srv, err := httpapi.NewServer(httpapi.ServerConfig{
			Addr:    cfg.HTTP.Addr,
			Session: sess,
			Logger:  logger,
			Clock:   clock,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				logger.Error("http server", "error", err)
			}
		}()
	}

	st, err := newStage(sess, syn, cfg.HTTP.Addr, clock)
	if err != nil {
		return err
	}
	return st.run(ctx)
}
