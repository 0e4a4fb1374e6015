/*
Copyright (C) 2025-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package box

import (
	"testing"
)

// withFatalHook swaps the abort hook for one test and records messages.
func withFatalHook(t *testing.T) *[]string {
	t.Helper()
	var msgs []string
	prev := fatalHook
	fatalHook = func(msg string) { msgs = append(msgs, msg) }
	t.Cleanup(func() { fatalHook = prev })
	return &msgs
}

func TestRefcountLifecycle(t *testing.T) {
	o := NewInt(42)
	if o.RefCount() != 1 {
		t.Fatalf("fresh object: refcount %d, want 1", o.RefCount())
	}
	o.IncRef()
	if o.RefCount() != 2 {
		t.Fatalf("after incref: refcount %d, want 2", o.RefCount())
	}
	o.DecRef()
	o.DecRef()
	if o.RefCount() != 0 {
		t.Fatalf("after final decref: refcount %d, want 0", o.RefCount())
	}
}

func TestRefcountOnDeadObjectIsFatal(t *testing.T) {
	msgs := withFatalHook(t)
	o := NewInt(1)
	o.DecRef()
	o.DecRef()
	if len(*msgs) != 1 {
		t.Fatalf("decref on dead object: expected 1 fatal, got %d", len(*msgs))
	}
	o.IncRef()
	if len(*msgs) != 2 {
		t.Fatalf("incref on dead object: expected 2 fatals, got %d", len(*msgs))
	}
}

func TestNoneIsImmortal(t *testing.T) {
	before := None.RefCount()
	None.IncRef()
	None.DecRef()
	None.DecRef()
	if None.RefCount() != before {
		t.Fatalf("none refcount changed: %d -> %d", before, None.RefCount())
	}
}

func TestTruthTest(t *testing.T) {
	cases := []struct {
		obj  *Object
		want bool
	}{
		{None, false},
		{NewBool(false), false},
		{NewBool(true), true},
		{NewInt(0), false},
		{NewInt(-3), true},
		{NewFloat(0.0), false},
		{NewFloat(0.5), true},
		{NewString(""), false},
		{NewString("x"), true},
		{NewComplex(0), false},
		{NewComplex(1i), true},
		{NewTuple(0), false},
		{NewTuple(1), true},
	}
	for _, c := range cases {
		if got := c.obj.Bool(); got != c.want {
			t.Errorf("truth of %s: got %v, want %v", c.obj, got, c.want)
		}
	}
}

func TestIntCoercion(t *testing.T) {
	if v, err := NewString("123").Int(); err != nil || v != 123 {
		t.Errorf("string coercion: got %d, %v", v, err)
	}
	if v, err := NewFloat(3.7).Int(); err != nil || v != 3 {
		t.Errorf("float coercion: got %d, %v", v, err)
	}
	if _, err := NewString("abc").Int(); err == nil {
		t.Error("non-numeric string: expected error")
	}
	if _, err := NewTuple(2).Int(); err == nil {
		t.Error("tuple: expected error")
	}
}

// TestTupleStealsReferences checks the setitem stealing contract: the
// tuple takes over the caller's reference and releases its elements on
// death.
func TestTupleStealsReferences(t *testing.T) {
	elem := NewInt(7)
	elem.IncRef() // keep one reference for inspection
	tup := NewTuple(2)
	tup.SetItem(0, elem) // steals the constructor reference
	tup.SetItem(1, NewString("x"))

	if elem.RefCount() != 2 {
		t.Fatalf("element refcount after steal: %d, want 2", elem.RefCount())
	}
	if tup.Item(0) != elem {
		t.Fatal("borrowed item is not the stored element")
	}

	// replacing a slot releases the previous occupant
	tup.SetItem(0, NewInt(8))
	if elem.RefCount() != 1 {
		t.Fatalf("element refcount after replacement: %d, want 1", elem.RefCount())
	}

	tup.DecRef()
	elem.DecRef()
	if elem.RefCount() != 0 {
		t.Fatalf("element alive after all releases: %d", elem.RefCount())
	}
}

func TestGeneratorFinalizerRunsOnDeath(t *testing.T) {
	ran := 0
	g := NewGenerator([]byte{1, 2, 3}, 0xdead, func(state []byte) {
		ran++
		if len(state) != 3 {
			t.Errorf("finalizer state: got %d bytes, want 3", len(state))
		}
	})
	g.IncRef()
	g.DecRef()
	if ran != 0 {
		t.Fatal("finalizer ran while references remain")
	}
	g.DecRef()
	if ran != 1 {
		t.Fatalf("finalizer ran %d times, want 1", ran)
	}
}

func TestGeneratorCopiesState(t *testing.T) {
	state := []byte{1, 2, 3}
	g := NewGenerator(state, 0, nil)
	state[0] = 99
	if g.Data()[0] != 1 {
		t.Fatal("generator state aliases the caller's slice")
	}
}

func TestOwnedHandles(t *testing.T) {
	o := NewInt(5)
	h := Own(o)
	h2 := Acquire(h.Borrow())
	if o.RefCount() != 2 {
		t.Fatalf("after acquire: refcount %d, want 2", o.RefCount())
	}
	h2.Release()
	h2.Release() // idempotent
	if o.RefCount() != 1 {
		t.Fatalf("after double release: refcount %d, want 1", o.RefCount())
	}
	stolen := h.Steal()
	if !h.IsNil() {
		t.Fatal("handle not emptied by steal")
	}
	stolen.DecRef()
}
