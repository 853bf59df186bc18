// Package main is the entry point for the peek debugger shell.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/dshills/peek/internal/app"
	"github.com/dshills/peek/internal/config"
	"github.com/dshills/peek/internal/script"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	configPath string
	adapter    string
	target     string
	logLevel   string
	scripts    []string
	watch      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}
	if opts.adapter != "" {
		cfg.Engine.Adapter = opts.adapter
	}
	if opts.target != "" {
		cfg.Engine.Target = opts.target
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	session, err := app.NewSession(cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to attach: %v\n", err)
		return 1
	}

	state := script.NewState()
	defer state.Close()
	script.NewAPI(session, state).Install()

	if opts.watch {
		watcher, err := config.NewWatcher(opts.configPath, func(next *config.Config, err error) {
			if err != nil {
				session.Logger().Warn("config reload failed: %v", err)
				return
			}
			session.Logger().SetLevel(app.ParseLogLevel(next.Logging.Level))
			session.Logger().Info("config reloaded")
		})
		if err != nil {
			session.Logger().Warn("config watch unavailable: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	for _, path := range append(cfg.Scripts.Startup, opts.scripts...) {
		if err := state.DoFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "Error: startup script %s: %v\n", path, err)
			return 1
		}
	}

	// Ctrl-C halts the target rather than killing the shell.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for range signals {
			if err := session.Stop(); err != nil {
				session.Logger().Warn("could not stop target: %v", err)
			}
		}
	}()

	if err := repl(session, state, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// repl reads Lua lines until EOF or an exit command. An empty line
// repeats the previous one.
func repl(session *app.Session, state *script.State, cfg *config.Config) error {
	if dir := filepath.Dir(cfg.REPL.HistoryFile); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cfg.REPL.Prompt,
		HistoryFile:       cfg.REPL.HistoryFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	prev := ""
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if prev == "" {
				continue
			}
			line = prev
		}
		if line == "q" || line == "exit" || line == "quit" {
			return nil
		}
		prev = line

		if err := state.DoString(line); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.adapter, "adapter", "", "Engine adapter name (overrides config)")
	flag.StringVar(&opts.target, "target", "", "Target connection string (overrides config)")
	flag.StringVar(&opts.target, "t", "", "Target connection string (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.watch, "watch-config", false, "Reload configuration on change")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Peek - scriptable debugger shell\n\n")
		fmt.Fprintf(os.Stderr, "Usage: peek [options] [scripts...]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  peek -t localhost:1234           Attach and open the shell\n")
		fmt.Fprintf(os.Stderr, "  peek -t localhost:1234 init.lua  Run a script, then the shell\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("peek %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}

	opts.scripts = flag.Args()
	return opts
}
