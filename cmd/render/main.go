// Command render performs a gesture script, or replays a recorded session,
// offline and writes the result as a WAV file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	conductor "github.com/cbegin/conductor-go"
	"github.com/cbegin/conductor-go/internal/config"
	"github.com/cbegin/conductor-go/internal/journal"
	"github.com/cbegin/conductor-go/internal/logs"
	"github.com/cbegin/conductor-go/internal/synth"
)

func main() {
	var (
		configPath = flag.String("config", "", "CUE config file")
		scriptPath = flag.String("script", "", "JSON-lines gesture script ('-' for stdin)")
		journalDB  = flag.String("journal", "", "SQLite journal to replay from")
		sessionID  = flag.String("session", "", "journal session to replay (default: newest)")
		list       = flag.Bool("list", false, "list journal sessions and exit")
		outPath    = flag.String("out", "conductor.wav", "output WAV path")
		seed       = flag.Int64("seed", 0, "random seed (journal replays default to the recorded seed)")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (default from config)")
		tail       = flag.Duration("tail", 3*time.Second, "audio rendered after the last step")
		logLevel   = flag.String("log-level", "warn", "debug|info|warn|error")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	level, err := logs.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logger, _ := logs.New(logs.Options{Level: level})

	if *list {
		if err := listSessions(*journalDB, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	steps, recordedSeed, err := loadSteps(*scriptPath, *journalDB, *sessionID)
	if err != nil {
		log.Fatal(err)
	}
	switch {
	case *seed != 0:
		cfg.Seed = *seed
	case recordedSeed != 0:
		cfg.Seed = recordedSeed
	}
	if *sampleRate > 0 {
		cfg.Audio.SampleRate = *sampleRate
	}

	opts := conductor.RenderOptions{
		Synth: synth.Config{
			SampleRate: cfg.Audio.SampleRate,
			MasterGain: cfg.Audio.MasterVolume,
			BPM:        cfg.Audio.BPM,
		},
		Tail:    *tail,
		Session: []conductor.Option{conductor.WithConfig(cfg), conductor.WithLogger(logger)},
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatal(err)
	}
	res, err := conductor.RenderWAV(f, steps, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatal(err)
	}

	length := time.Duration(res.Frames) * time.Second / time.Duration(cfg.Audio.SampleRate)
	fmt.Printf("wrote %s: %s, %d gestures accepted, %d ignored, final mood %.1f (%s)\n",
		*outPath, length.Round(time.Millisecond), res.Final.Accepted, res.Final.Ignored,
		res.Final.Mood, res.Final.Phase)
}

func loadSteps(scriptPath, journalDB, sessionID string) ([]conductor.Step, int64, error) {
	switch {
	case scriptPath != "" && journalDB != "":
		return nil, 0, errors.New("use either -script or -journal, not both")
	case scriptPath != "":
		var r io.Reader = os.Stdin
		if scriptPath != "-" {
			f, err := os.Open(scriptPath)
			if err != nil {
				return nil, 0, err
			}
			defer f.Close()
			r = f
		}
		steps, err := conductor.ParseScript(r)
		return steps, 0, err
	case journalDB != "":
		store, err := journal.NewStore(journalDB)
		if err != nil {
			return nil, 0, err
		}
		defer store.Close()
		info, err := pickSession(store, sessionID)
		if err != nil {
			return nil, 0, err
		}
		steps, err := store.Script(info.ID)
		return steps, info.Seed, err
	default:
		return nil, 0, errors.New("need -script or -journal")
	}
}

func pickSession(store *journal.Store, id string) (journal.SessionSummary, error) {
	if id != "" {
		return store.Session(id)
	}
	all, err := store.Sessions()
	if err != nil {
		return journal.SessionSummary{}, err
	}
	if len(all) == 0 {
		return journal.SessionSummary{}, errors.New("journal has no sessions")
	}
	return all[0], nil
}

func listSessions(journalDB string, w io.Writer) error {
	if journalDB == "" {
		return errors.New("-list needs -journal")
	}
	store, err := journal.NewStore(journalDB)
	if err != nil {
		return err
	}
	defer store.Close()
	all, err := store.Sessions()
	if err != nil {
		return err
	}
	for _, s := range all {
		fmt.Fprintf(w, "%s  %-12s  %-8s  %s gestures  %d resets  seed %d\n",
			s.ID, humanize.Time(s.StartedAt), s.Instrument,
			humanize.Comma(int64(s.Gestures)), s.Resets, s.Seed)
	}
	if len(all) == 0 {
		fmt.Fprintln(w, "no sessions recorded")
	}
	return nil
}
