// Fablecore runs data-driven text adventures written in the Lua game DSL.
// Usage: fablecore [--version] [--plain] [--script <file>] [--trace] <game_directory>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nathoo/fablecore/cli"
	"github.com/nathoo/fablecore/config"
	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/vocab"
	"github.com/nathoo/fablecore/loader"
	"github.com/nathoo/fablecore/logger"
	"github.com/nathoo/fablecore/narrator"
	"github.com/nathoo/fablecore/session"
	"github.com/nathoo/fablecore/store"
	"github.com/nathoo/fablecore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: fablecore [--version] [--plain] [--script <file>] [--trace] <game_directory>"

type options struct {
	plain  bool
	trace  bool
	script string
	dir    string
}

func main() {
	opts, done := parseArgs(os.Args[1:])
	if done {
		return
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, bool) {
	var o options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("fablecore %s (commit %s, built %s)\n", version, commit, date)
			return o, true
		case "--plain":
			o.plain = true
		case "--trace":
			o.trace = true
		case "--script":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--script requires a file path")
				os.Exit(1)
			}
			i++
			o.script = args[i]
		default:
			if o.dir == "" {
				o.dir = args[i]
			}
		}
	}
	if o.dir == "" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	return o, false
}

func run(o options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The full-screen UI owns the terminal, so it runs without a log sink.
	fullScreen := o.script == "" && !o.plain && isTerminal()
	log := logger.Setup(cfg)
	if fullScreen {
		log = logger.Discard()
		slog.SetDefault(log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	defs, err := loader.Load(o.dir, loader.WithLogger(log))
	if err != nil {
		return fmt.Errorf("loading game: %w", err)
	}

	engOpts := []engine.Option{engine.WithLogger(log), engine.WithNarratorTimeout(cfg.NarratorTimeout)}
	if cfg.VocabFile != "" {
		v, err := vocab.LoadFile(cfg.VocabFile)
		if err != nil {
			return fmt.Errorf("loading vocabulary: %w", err)
		}
		engOpts = append(engOpts, engine.WithVocabulary(v))
	}
	if cfg.NarratorEnabled() {
		g, err := narrator.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			logger.WithError(log, err).Warn("narrator disabled")
		} else {
			defer g.Close()
			engOpts = append(engOpts, engine.WithNarrator(g))
		}
	}
	eng := engine.New(defs, engOpts...)

	st, err := store.Open(ctx, store.Options{
		Kind:       cfg.Store,
		Dir:        cfg.SaveDir,
		RedisURL:   cfg.RedisURL,
		SQLitePath: cfg.SQLitePath,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("opening save store: %w", err)
	}
	defer st.Close()

	s := session.New(eng, st, session.WithLogger(logger.WithSession(log, eng.State.SessionID)))
	log.Info("game loaded", "title", defs.Game.Title, "rooms", len(defs.Rooms), "entities", len(defs.Entities), "store", cfg.Store)

	if fullScreen {
		return tui.Run(s, cfg.Tick)
	}

	fmt.Println(header(defs.Game.Title, defs.Game.Version, defs.Game.Author))
	c := cli.New(s)
	c.Trace = o.trace
	if o.script != "" {
		f, err := os.Open(o.script)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
	}
	return c.Run(ctx)
}

func header(title, ver, author string) string {
	h := title
	if ver != "" {
		h += " v" + ver
	}
	if author != "" {
		h += " by " + author
	}
	return h + "\n"
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
