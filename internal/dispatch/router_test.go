package dispatch

import (
	"errors"
	"testing"

	"github.com/dshills/peek/internal/engine"
	"github.com/dshills/peek/internal/engine/enginetest"
)

type recordingBPDispatcher struct {
	ids    []int
	frames []engine.Frame
	scope  *FrameScope
	err    error
	panic  bool
}

func (d *recordingBPDispatcher) DispatchBreakpoint(id int, frame engine.Frame) error {
	d.ids = append(d.ids, id)
	d.frames = append(d.frames, frame)
	if d.scope != nil {
		if _, ok := d.scope.Active(); !ok {
			panic("hit frame not published during dispatch")
		}
	}
	if d.panic {
		panic("callback exploded")
	}
	return d.err
}

type recordingWPDispatcher struct {
	ids    []int
	access []engine.Access
}

func (d *recordingWPDispatcher) DispatchWatchpoint(id int, frame engine.Frame, access engine.Access) error {
	d.ids = append(d.ids, id)
	d.access = append(d.access, access)
	return nil
}

func TestRouter_HandleBreakpoint(t *testing.T) {
	frames := NewFrameScope()
	router := NewRouter(frames)
	disp := &recordingBPDispatcher{scope: frames}
	router.SetBreakpointDispatcher(disp)

	hit := engine.Frame{ThreadID: 42, ThreadIndex: 1, PC: 0x100001000, Function: "malloc"}
	if err := router.HandleBreakpoint(engine.BreakpointEvent{BreakpointID: 7, Frame: hit}); err != nil {
		t.Fatalf("HandleBreakpoint failed: %v", err)
	}

	if len(disp.ids) != 1 || disp.ids[0] != 7 {
		t.Errorf("dispatched ids = %v, want [7]", disp.ids)
	}
	if disp.frames[0] != hit {
		t.Errorf("dispatched frame = %+v, want %+v", disp.frames[0], hit)
	}
	if _, ok := frames.Active(); ok {
		t.Errorf("hit frame still published after dispatch returned")
	}
}

func TestRouter_FrameScopeClearedOnError(t *testing.T) {
	frames := NewFrameScope()
	router := NewRouter(frames)
	wantErr := errors.New("callback failed")
	router.SetBreakpointDispatcher(&recordingBPDispatcher{err: wantErr})

	err := router.HandleBreakpoint(engine.BreakpointEvent{BreakpointID: 1})
	if !errors.Is(err, wantErr) {
		t.Fatalf("HandleBreakpoint = %v, want the callback error", err)
	}
	if _, ok := frames.Active(); ok {
		t.Errorf("hit frame still published after a failing dispatch")
	}
}

func TestRouter_FrameScopeClearedOnPanic(t *testing.T) {
	frames := NewFrameScope()
	router := NewRouter(frames)
	router.SetBreakpointDispatcher(&recordingBPDispatcher{panic: true})

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("panic did not propagate past the router")
			}
		}()
		_ = router.HandleBreakpoint(engine.BreakpointEvent{BreakpointID: 1})
	}()

	if _, ok := frames.Active(); ok {
		t.Errorf("hit frame still published after a panicking dispatch")
	}
}

func TestRouter_NilDispatchersNoOp(t *testing.T) {
	frames := NewFrameScope()
	router := NewRouter(frames)

	if err := router.HandleBreakpoint(engine.BreakpointEvent{BreakpointID: 1}); err != nil {
		t.Errorf("HandleBreakpoint with nil dispatcher = %v, want nil", err)
	}
	if err := router.HandleWatchpoint(engine.WatchpointEvent{WatchpointID: 1}); err != nil {
		t.Errorf("HandleWatchpoint with nil dispatcher = %v, want nil", err)
	}
	if _, ok := frames.Active(); ok {
		t.Errorf("hit frame leaked from a no-op dispatch")
	}
}

func TestRouter_HandleWatchpoint(t *testing.T) {
	frames := NewFrameScope()
	router := NewRouter(frames)
	disp := &recordingWPDispatcher{}
	router.SetWatchpointDispatcher(disp)

	ev := engine.WatchpointEvent{WatchpointID: 3, Access: engine.AccessWrite}
	if err := router.HandleWatchpoint(ev); err != nil {
		t.Fatalf("HandleWatchpoint failed: %v", err)
	}
	if len(disp.ids) != 1 || disp.ids[0] != 3 || disp.access[0] != engine.AccessWrite {
		t.Errorf("dispatched = %v/%v, want [3]/[write]", disp.ids, disp.access)
	}
}

func TestFrameScope_Current(t *testing.T) {
	fake := enginetest.New()
	fake.Selected = engine.Frame{PC: 0x1000, Function: "selected"}

	frames := NewFrameScope()
	if got := frames.Current(fake); got.Function != "selected" {
		t.Errorf("Current outside dispatch = %+v, want the selected frame", got)
	}

	hit := engine.Frame{PC: 0x2000, Function: "hit"}
	frames.publish(hit)
	if got := frames.Current(fake); got != hit {
		t.Errorf("Current during dispatch = %+v, want the hit frame", got)
	}
	frames.clear()
	if got := frames.Current(fake); got.Function != "selected" {
		t.Errorf("Current after clear = %+v, want the selected frame", got)
	}
}
