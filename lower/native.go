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
package lower

// Cleanup releases resources pinned during an unboxing conversion
// (buffer views, temporary references). Cleanups run unconditionally
// on every exit path, including the error path, and must therefore be
// safe to run after a partial conversion.
type Cleanup func()

// NativeValue is the result of an unboxing conversion: the native
// value, an error bit for recoverable conversion failures (a pending
// error describes the cause), and an optional cleanup.
//
// IsError=true still carries whatever partial value was produced; the
// caller branches on the bit before touching Value.
type NativeValue struct {
	Value   any
	IsError bool
	Cleanup Cleanup
}

// Optional is the native shape of an optional type: either absent or
// a present inner native value. Exactly one of the two states holds.
type Optional struct {
	Present bool
	Value   any
}

// combineCleanups folds per-element cleanups into one that runs them
// in reverse acquisition order. nil entries are skipped; all-nil input
// yields nil so callers can test for "nothing to release".
func combineCleanups(parts []Cleanup) Cleanup {
	n := 0
	for _, p := range parts {
		if p != nil {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	kept := make([]Cleanup, 0, n)
	for _, p := range parts {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return func() {
		for i := len(kept) - 1; i >= 0; i-- {
			kept[i]()
		}
	}
}
