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
	"fmt"
	"os"
)

// Standard error type singletons, fetched by collaborators through
// Module.CObject by their symbol names.
var (
	ExcTypeError     = newExcType("TypeError")
	ExcValueError    = newExcType("ValueError")
	ExcRuntimeError  = newExcType("RuntimeError")
	ExcOverflowError = newExcType("OverflowError")
)

// fatalHook is swapped in tests; production aborts the process.
// Fatal is reserved for internal invariant violations (unpaired lock
// guards, dead-object refcounting), never for user-triggered failures.
var fatalHook = func(msg string) {
	fmt.Fprintln(os.Stderr, "boxlow fatal: "+msg)
	os.Exit(134)
}

// Fatal escalates an unrecoverable internal condition to process
// abort.
func Fatal(msg string) {
	fatalHook(msg)
}

// SetErrString records a pending error of the given type with a
// formatted message. Any previously pending error is replaced.
func (rt *Runtime) SetErrString(excType *Object, format string, args ...any) {
	rt.pendingType = excType
	rt.pendingMsg = fmt.Sprintf(format, args...)
	if rt.pendingVal != nil {
		rt.pendingVal.DecRef()
	}
	rt.pendingVal = nil
}

// SetErrObject records a pending error carrying a value object. The
// value reference is consumed.
func (rt *Runtime) SetErrObject(excType *Object, val Owned) {
	rt.pendingType = excType
	rt.pendingMsg = ""
	if rt.pendingVal != nil {
		rt.pendingVal.DecRef()
	}
	rt.pendingVal = val.Steal()
}

// RaiseObject re-raises an arbitrary error value, consuming its
// reference. A nil value re-raises whatever is already pending.
func (rt *Runtime) RaiseObject(exc Owned) {
	if exc.IsNil() {
		if rt.pendingType == nil {
			rt.SetErrString(ExcRuntimeError, "no active exception to re-raise")
		}
		return
	}
	rt.SetErrObject(ExcRuntimeError, exc)
}

// ErrOccurred is the universal failure-detection idiom: check it after
// every external call that can fail implicitly.
func (rt *Runtime) ErrOccurred() bool {
	return rt.pendingType != nil
}

// ErrMatches reports whether the pending error is of the given type.
func (rt *Runtime) ErrMatches(excType *Object) bool {
	return rt.pendingType == excType
}

// ErrMessage returns the pending message, empty if none.
func (rt *Runtime) ErrMessage() string {
	if rt.pendingVal != nil {
		return rt.pendingVal.String()
	}
	return rt.pendingMsg
}

// ErrClear wipes the pending error state.
func (rt *Runtime) ErrClear() {
	rt.pendingType = nil
	rt.pendingMsg = ""
	if rt.pendingVal != nil {
		rt.pendingVal.DecRef()
		rt.pendingVal = nil
	}
}
