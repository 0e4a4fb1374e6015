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
	"unsafe"

	"github.com/boxlow/boxlow/view"
)

// Runtime is the boxed object runtime surface: pending-error state,
// the runtime lock, and the table of native operations bound by symbol
// name. All conversions of one compiled-function invocation run
// synchronously against one Runtime.
type Runtime struct {
	pendingType *Object
	pendingMsg  string
	pendingVal  *Object

	Lock RuntimeLock

	symbols    map[string]any
	csingleton map[string]*Object
}

// NewRuntime builds a runtime with all builtin operations and
// singletons registered.
func NewRuntime() *Runtime {
	rt := &Runtime{
		symbols:    make(map[string]any),
		csingleton: make(map[string]*Object),
	}
	rt.registerBuiltins()
	return rt
}

// Symbol resolves a native operation by name; the second result is
// false for unknown symbols.
func (rt *Runtime) Symbol(name string) (any, bool) {
	fn, ok := rt.symbols[name]
	return fn, ok
}

// CValue resolves a runtime-provided singleton (the none value, error
// type objects) by its external symbol name.
func (rt *Runtime) CValue(name string) (*Object, bool) {
	o, ok := rt.csingleton[name]
	return o, ok
}

func (rt *Runtime) declare(name string, fn any) {
	rt.symbols[name] = fn
}

// registerBuiltins binds every native-runtime operation under its
// symbol name. The conversion bridge only ever reaches these through
// Module.Func, the typed-call surface.
func (rt *Runtime) registerBuiltins() {
	rt.csingleton["RtNone"] = None
	rt.csingleton["ExcTypeError"] = ExcTypeError
	rt.csingleton["ExcValueError"] = ExcValueError
	rt.csingleton["ExcRuntimeError"] = ExcRuntimeError
	rt.csingleton["ExcOverflowError"] = ExcOverflowError

	rt.declare("rt_incref", func(o *Object) { o.IncRef() })
	rt.declare("rt_decref", func(o *Object) { o.DecRef() })

	// truth test; -1 with a pending error on a nil handle
	rt.declare("rt_object_istrue", func(o *Object) int64 {
		if o == nil {
			rt.SetErrString(ExcRuntimeError, "truth test on null object")
			return -1
		}
		if o.Bool() {
			return 1
		}
		return 0
	})

	// number coercions
	rt.declare("rt_number_long", func(o *Object) *Object {
		v, err := o.Int()
		if err != nil {
			rt.SetErrString(ExcTypeError, "%s", err.Error())
			return nil
		}
		return NewInt(v)
	})
	rt.declare("rt_number_float", func(o *Object) *Object {
		v, err := o.Float()
		if err != nil {
			rt.SetErrString(ExcTypeError, "%s", err.Error())
			return nil
		}
		return NewFloat(v)
	})
	rt.declare("rt_long_as_longlong", func(o *Object) int64 {
		if o.tag != TagInt {
			rt.SetErrString(ExcTypeError, "an integer is required")
			return -1
		}
		return o.i64
	})
	rt.declare("rt_long_as_ulonglong", func(o *Object) uint64 {
		if o.tag != TagInt {
			rt.SetErrString(ExcTypeError, "an integer is required")
			return 0
		}
		return uint64(o.i64)
	})
	rt.declare("rt_long_as_voidptr", func(o *Object) uintptr {
		if o.tag != TagInt {
			rt.SetErrString(ExcTypeError, "an integer is required")
			return 0
		}
		return uintptr(o.i64)
	})
	rt.declare("rt_float_as_double", func(o *Object) float64 {
		if o.tag != TagFloat {
			rt.SetErrString(ExcTypeError, "a float is required")
			return -1
		}
		return o.f64
	})

	// adaptors
	rt.declare("rt_complex_adaptor", func(o *Object, out *complex128) bool {
		c, ok := o.Complex()
		if !ok {
			return false
		}
		*out = c
		return true
	})
	rt.declare("rt_adapt_array", rt.AdaptArray)
	rt.declare("rt_get_buffer", rt.GetBuffer)
	rt.declare("rt_release_buffer", func(buf *BufferView) { buf.Release() })
	rt.declare("rt_extract_record_data", rt.ExtractRecordData)

	// datetime/timedelta payloads
	rt.declare("rt_extract_datetime", func(o *Object) int64 {
		if o.tag != TagDatetime {
			rt.SetErrString(ExcTypeError, "expected a datetime, got %s", o.tag)
			return 0
		}
		return o.i64
	})
	rt.declare("rt_extract_timedelta", func(o *Object) int64 {
		if o.tag != TagTimedelta {
			rt.SetErrString(ExcTypeError, "expected a timedelta, got %s", o.tag)
			return 0
		}
		return o.i64
	})
	rt.declare("rt_create_datetime", func(v int64, unit int32) *Object { return NewDatetime(v, unit) })
	rt.declare("rt_create_timedelta", func(v int64, unit int32) *Object { return NewTimedelta(v, unit) })

	// boxing constructors
	rt.declare("rt_bool_from_long", func(v int64) *Object { return NewBool(v != 0) })
	rt.declare("rt_long_from_longlong", func(v int64) *Object { return NewInt(v) })
	rt.declare("rt_long_from_ulonglong", func(v uint64) *Object { return NewInt(int64(v)) })
	rt.declare("rt_float_from_double", func(v float64) *Object { return NewFloat(v) })
	rt.declare("rt_complex_from_doubles", func(re, im float64) *Object { return NewComplex(complex(re, im)) })
	rt.declare("rt_bytes_from_data", func(b []byte) *Object {
		cp := make([]byte, len(b))
		copy(cp, b)
		return NewBytes(cp)
	})

	// tuple surface
	rt.declare("rt_tuple_new", func(n int) *Object { return NewTuple(n) })
	// borrowed result; nil plus a pending error on misuse
	rt.declare("rt_tuple_getitem", func(t *Object, i int) *Object {
		if t.tag != TagTuple {
			rt.SetErrString(ExcTypeError, "expected a tuple, got %s", t.tag)
			return nil
		}
		if i < 0 || i >= len(t.items) {
			rt.SetErrString(ExcValueError, "tuple index %d out of range", i)
			return nil
		}
		return t.items[i]
	})
	rt.declare("rt_tuple_setitem", func(t *Object, i int, item *Object) { t.SetItem(i, item) })

	// record reconstruction: copies the native bytes
	rt.declare("rt_recreate_record", func(data unsafe.Pointer, size int, dtype *Object) *Object {
		cp := make([]byte, size)
		copy(cp, unsafe.Slice((*byte)(data), size))
		return NewRecord(cp, dtype)
	})

	// generator construction from a size-prefixed state copy
	rt.declare("rt_make_generator", func(state []byte, resume uintptr, finalize func([]byte)) *Object {
		return NewGenerator(state, resume, finalize)
	})

	// boxed call
	rt.declare("rt_call_object", func(callee *Object, args ...*Object) *Object {
		return callee.Call(args...)
	})

	rt.declare("rt_do_raise", func(exc *Object) {
		rt.RaiseObject(Own(exc))
	})

	// array view helpers, native-only
	rt.declare("rt_slice_axis", view.SliceAxis)
	rt.declare("rt_broadcast", view.Broadcast)
}
