package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/peek/internal/breakpoint"
	"github.com/dshills/peek/internal/config"
	"github.com/dshills/peek/internal/dispatch"
	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/symbol"
	"github.com/dshills/peek/internal/watchpoint"
)

// Session is one attached debug session.
type Session struct {
	cfg    *config.Config
	logger *Logger

	eng     engine.Engine
	catalog *symbol.Catalog
	frames  *dispatch.FrameScope
	router  *dispatch.Router

	breakpoints *breakpoint.Manager
	watchpoints *watchpoint.Manager
}

// Options configures session construction.
type Options struct {
	// Logger receives session output. Defaults to a stderr logger at
	// the configured level.
	Logger *Logger

	// Confirmer answers breakpoint-replacement questions. Defaults to
	// the terminal prompt.
	Confirmer breakpoint.Confirmer
}

// NewSession opens the configured engine adapter and wires the
// catalog, managers and hit router around it. The router's handlers
// become the engine's only hit entry points.
func NewSession(cfg *config.Config, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(LoggerConfig{
			Level:  ParseLogLevel(cfg.Logging.Level),
			Prefix: "peek",
		})
		if cfg.Logging.File != "" {
			f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("opening log file: %w", err)
			}
			logger.SetOutput(f)
		}
	}

	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = PromptConfirmer{}
	}

	eng, err := engine.Open(cfg.Engine.Adapter, cfg.Engine.Target)
	if err != nil {
		return nil, fmt.Errorf("opening %q engine: %w", cfg.Engine.Adapter, err)
	}

	catalog := symbol.NewCatalog(eng)
	frames := dispatch.NewFrameScope()
	router := dispatch.NewRouter(frames)

	bps := breakpoint.NewManager(eng, catalog, logger.WithComponent("breakpoint"), confirmer)
	wps := watchpoint.NewManager(eng, logger.WithComponent("watchpoint"))
	router.SetBreakpointDispatcher(bps)
	router.SetWatchpointDispatcher(wps)

	eng.SetBreakpointHandler(router.HandleBreakpoint)
	eng.SetWatchpointHandler(router.HandleWatchpoint)

	s := &Session{
		cfg:         cfg,
		logger:      logger,
		eng:         eng,
		catalog:     catalog,
		frames:      frames,
		router:      router,
		breakpoints: bps,
		watchpoints: wps,
	}
	logger.Info("session attached via %q adapter", cfg.Engine.Adapter)
	return s, nil
}

// Engine returns the underlying engine.
func (s *Session) Engine() engine.Engine { return s.eng }

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Logger returns the session logger.
func (s *Session) Logger() *Logger { return s.logger }

// Symbols returns the global symbol catalog.
func (s *Session) Symbols() *symbol.Catalog { return s.catalog }

// Breakpoints returns the breakpoint manager.
func (s *Session) Breakpoints() *breakpoint.Manager { return s.breakpoints }

// BreakpointDefaults returns the breakpoint options new breakpoints
// start from, with the conflict-override policy taken from the
// session configuration.
func (s *Session) BreakpointDefaults() breakpoint.AddOptions {
	opts := breakpoint.DefaultAddOptions()
	opts.Override = s.cfg.Breakpoints.Override
	return opts
}

// Watchpoints returns the watchpoint manager.
func (s *Session) Watchpoints() *watchpoint.Manager { return s.watchpoints }

// CurrentFrame returns the frame script code should operate on: the
// hit frame while a breakpoint or watchpoint callback runs, otherwise
// the engine's selected frame.
func (s *Session) CurrentFrame() engine.Frame {
	return s.frames.Current(s.eng)
}

// InCallback reports whether a hit callback is currently executing.
func (s *Session) InCallback() bool {
	_, ok := s.frames.Active()
	return ok
}

// SaveSymbols writes the catalog's named symbols to the configured
// map path.
func (s *Session) SaveSymbols() error {
	path := s.cfg.Symbols.MapPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating symbol map directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating symbol map: %w", err)
	}
	defer f.Close()

	if err := s.catalog.SaveMap(f); err != nil {
		return err
	}
	s.logger.Info("symbol map saved to %s", path)
	return nil
}

// LoadSymbols reads a previously saved symbol map, verifying it still
// matches the running process.
func (s *Session) LoadSymbols() error {
	path := s.cfg.Symbols.MapPath
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening symbol map: %w", err)
	}
	defer f.Close()

	opts := symbol.DefaultLoadOptions()
	if len(s.cfg.Symbols.Probes) > 0 {
		opts.Probes = s.cfg.Symbols.Probes
	}
	n, err := s.catalog.LoadMap(f, opts)
	if err != nil {
		return err
	}
	s.logger.Info("loaded %d symbols from %s", n, path)
	return nil
}

// Inject loads a shared library into the target and returns a catalog
// view of its exported symbols.
func (s *Session) Inject(path string) (*symbol.Catalog, error) {
	view, err := s.catalog.Inject(path)
	if err != nil {
		return nil, err
	}
	s.logger.Info("injected %s (%d symbols)", filepath.Base(path), view.Len())
	return view, nil
}

// Continue resumes the target.
func (s *Session) Continue() error { return s.eng.Continue() }

// Stop halts the target.
func (s *Session) Stop() error { return s.eng.Stop() }

// StepInto executes one source-level step in the current frame.
func (s *Session) StepInto() error {
	return s.eng.StepInto(s.CurrentFrame())
}

// StepOut runs the current frame to its return.
func (s *Session) StepOut() error {
	return s.eng.StepOut(s.CurrentFrame())
}
