package app

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dshills/peek/internal/breakpoint"
	"github.com/dshills/peek/internal/config"
	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/engine/enginetest"
)

var (
	fakeMu   sync.Mutex
	lastFake *enginetest.Fake
)

func init() {
	err := engine.Register("session-fake", func(string) (engine.Engine, error) {
		f := enginetest.New()
		f.AddModule("libsystem.dylib", 0x100000000,
			enginetest.Sym("malloc", 0x100001000, "libsystem.dylib", engine.CategoryCode),
			enginetest.Sym("free", 0x100002000, "libsystem.dylib", engine.CategoryCode))
		f.ObjectResults["(void *)dlsym"] = "0x00000001a0000000"
		fakeMu.Lock()
		lastFake = f
		fakeMu.Unlock()
		return f, nil
	})
	if err != nil {
		panic(err)
	}
}

func newTestSession(t *testing.T) (*Session, *enginetest.Fake) {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.Adapter = "session-fake"
	cfg.Symbols.MapPath = filepath.Join(t.TempDir(), "symbols.json")

	s, err := NewSession(cfg, Options{Logger: NullLogger, Confirmer: StaticConfirmer(true)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	fakeMu.Lock()
	f := lastFake
	fakeMu.Unlock()
	return s, f
}

func TestNewSession_UnknownAdapter(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Adapter = "no-such-adapter"
	if _, err := NewSession(cfg, Options{Logger: NullLogger}); !errors.Is(err, engine.ErrNoAdapter) {
		t.Fatalf("err = %v, want ErrNoAdapter", err)
	}
}

func TestSession_BreakpointDefaultsFollowConfig(t *testing.T) {
	s, _ := newTestSession(t)
	if !s.BreakpointDefaults().Override {
		t.Error("default config should yield override-on breakpoint defaults")
	}

	cfg := config.Default()
	cfg.Engine.Adapter = "session-fake"
	cfg.Symbols.MapPath = filepath.Join(t.TempDir(), "symbols.json")
	cfg.Breakpoints.Override = false

	s2, err := NewSession(cfg, Options{Logger: NullLogger, Confirmer: StaticConfirmer(true)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s2.BreakpointDefaults().Override {
		t.Error("override-off config should carry into breakpoint defaults")
	}
}

func TestSession_HitRouting(t *testing.T) {
	s, f := newTestSession(t)

	hitFrame := engine.Frame{PC: 0x100001000, Function: "malloc", ThreadID: 0x1d03, ThreadIndex: 1}

	var (
		sawFrame      engine.Frame
		sawInCallback bool
	)
	bp, err := s.Breakpoints().Add(breakpoint.WhereAddress(0x100001000), func(hit breakpoint.Hit) error {
		sawFrame = s.CurrentFrame()
		sawInCallback = s.InCallback()
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := f.FireBreakpoint(bp.ID(), hitFrame); err != nil {
		t.Fatalf("FireBreakpoint: %v", err)
	}

	if !sawInCallback {
		t.Error("InCallback was false during the callback")
	}
	if sawFrame != hitFrame {
		t.Errorf("CurrentFrame during callback = %+v, want hit frame", sawFrame)
	}
	if s.InCallback() {
		t.Error("InCallback still true after dispatch")
	}
}

func TestSession_CurrentFrameOutsideCallback(t *testing.T) {
	s, f := newTestSession(t)

	selected := engine.Frame{PC: 0x100002000, Function: "free"}
	f.Selected = selected

	if got := s.CurrentFrame(); got != selected {
		t.Errorf("CurrentFrame = %+v, want engine's selected frame", got)
	}
}

func TestSession_SaveLoadSymbols(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.Symbols().EnsurePopulated(); err != nil {
		t.Fatalf("EnsurePopulated: %v", err)
	}
	if err := s.SaveSymbols(); err != nil {
		t.Fatalf("SaveSymbols: %v", err)
	}

	// A second session against a fresh engine restores the map.
	cfg := config.Default()
	cfg.Engine.Adapter = "session-fake"
	cfg.Symbols.MapPath = s.Config().Symbols.MapPath
	restored, err := NewSession(cfg, Options{Logger: NullLogger, Confirmer: StaticConfirmer(true)})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := restored.LoadSymbols(); err != nil {
		t.Fatalf("LoadSymbols: %v", err)
	}
	sym, err := restored.Symbols().IndexName("malloc")
	if err != nil {
		t.Fatalf("IndexName after load: %v", err)
	}
	if sym.Address() != 0x100001000 {
		t.Errorf("malloc address = %#x", sym.Address())
	}
}

func TestSession_LoadSymbolsMissingFile(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.LoadSymbols(); err == nil {
		t.Fatal("LoadSymbols should fail for a missing map file")
	}
}

func TestSession_Inject(t *testing.T) {
	s, f := newTestSession(t)
	f.AddModule("hook.dylib", 0x100800000,
		enginetest.Sym("hook_install", 0x100801000, "hook.dylib", engine.CategoryCode))

	view, err := s.Inject("/tmp/hook.dylib")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if !view.IsView() {
		t.Error("Inject should return a derived view")
	}
	if view.Len() != 1 {
		t.Errorf("view.Len = %d, want 1", view.Len())
	}
}

func TestSession_SteppingUsesCurrentFrame(t *testing.T) {
	s, f := newTestSession(t)
	f.Selected = engine.Frame{PC: 0x100001000}

	if err := s.StepOut(); err != nil {
		t.Fatalf("StepOut: %v", err)
	}
	if f.StepOutCount != 1 {
		t.Errorf("StepOutCount = %d, want 1", f.StepOutCount)
	}

	if err := s.Continue(); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.Continued != 1 || f.Stopped != 1 {
		t.Errorf("Continued=%d Stopped=%d, want 1/1", f.Continued, f.Stopped)
	}
}
