package box

import "testing"

func TestPendingErrorLifecycle(t *testing.T) {
	rt := NewRuntime()
	if rt.ErrOccurred() {
		t.Fatal("fresh runtime has a pending error")
	}
	rt.SetErrString(ExcTypeError, "bad value %d", 7)
	if !rt.ErrOccurred() {
		t.Fatal("error not pending after SetErrString")
	}
	if !rt.ErrMatches(ExcTypeError) || rt.ErrMatches(ExcValueError) {
		t.Fatal("pending error type mismatch")
	}
	if rt.ErrMessage() != "bad value 7" {
		t.Fatalf("message: got %q", rt.ErrMessage())
	}
	rt.ErrClear()
	if rt.ErrOccurred() {
		t.Fatal("error still pending after clear")
	}
}

// A second error replaces the first; the replaced value object is
// released.
func TestPendingErrorReplacement(t *testing.T) {
	rt := NewRuntime()
	val := NewString("first")
	val.IncRef()
	rt.SetErrObject(ExcValueError, Own(val))
	if rt.ErrMessage() != "first" {
		t.Fatalf("message: got %q", rt.ErrMessage())
	}
	rt.SetErrString(ExcRuntimeError, "second")
	if val.RefCount() != 1 {
		t.Fatalf("replaced value refcount: %d, want 1", val.RefCount())
	}
	if !rt.ErrMatches(ExcRuntimeError) || rt.ErrMessage() != "second" {
		t.Fatal("replacement did not take effect")
	}
	val.DecRef()
}

func TestRaiseObject(t *testing.T) {
	rt := NewRuntime()
	rt.RaiseObject(Own(NewString("boom")))
	if !rt.ErrOccurred() || rt.ErrMessage() != "boom" {
		t.Fatalf("raise: pending=%v message=%q", rt.ErrOccurred(), rt.ErrMessage())
	}

	// re-raise with nothing pending synthesizes a runtime error
	rt.ErrClear()
	rt.RaiseObject(Owned{})
	if !rt.ErrMatches(ExcRuntimeError) {
		t.Fatal("bare re-raise without pending error must set RuntimeError")
	}
}

func TestLockGuardPairing(t *testing.T) {
	msgs := withFatalHook(t)
	var l RuntimeLock

	g := l.Acquire()
	s := l.Suspend()
	s.Resume()
	g.Release()
	if len(*msgs) != 0 {
		t.Fatalf("well-paired usage aborted: %v", *msgs)
	}

	g = l.Acquire()
	g.Release()
	g.Release()
	if len(*msgs) != 1 {
		t.Fatalf("double release: expected 1 fatal, got %d", len(*msgs))
	}
}

func TestAcquireWhileHeldIsFatal(t *testing.T) {
	msgs := withFatalHook(t)
	var l RuntimeLock
	g := l.Acquire()
	l.Acquire() // must abort, not deadlock
	if len(*msgs) != 1 {
		t.Fatalf("nested acquire: expected 1 fatal, got %d", len(*msgs))
	}
	g.Release()

	// releasing ends the hold, so the next acquire is clean again
	g = l.Acquire()
	g.Release()
	if len(*msgs) != 1 {
		t.Fatalf("re-acquire after release aborted: %v", *msgs)
	}
}

func TestSuspendWhileNotHeldIsFatal(t *testing.T) {
	msgs := withFatalHook(t)
	var l RuntimeLock
	l.Suspend()
	if len(*msgs) != 1 {
		t.Fatalf("expected 1 fatal, got %d", len(*msgs))
	}
}

func TestSuspendRestoresDepth(t *testing.T) {
	msgs := withFatalHook(t)
	var l RuntimeLock
	g := l.Acquire()
	s := l.Suspend()

	// the lock is free during the suspend window
	g2 := l.Acquire()
	g2.Release()

	s.Resume()
	s.Resume() // double resume is a usage error
	if len(*msgs) != 1 {
		t.Fatalf("double resume: expected 1 fatal, got %d", len(*msgs))
	}
	g.Release()
}
