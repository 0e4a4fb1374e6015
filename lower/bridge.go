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

import (
	"fmt"
	"unsafe"

	"github.com/boxlow/boxlow/box"
	"github.com/boxlow/boxlow/view"
)

// Bridge converts boxed runtime values to native layouts and back. It
// reaches the runtime only through symbol-bound operations of its
// module, so every conversion a compiled function performs is visible
// in the module's symbol table.
//
// Recoverable failures (wrong kind, non-numeric input) come back as
// NativeValue.IsError with a pending error on the runtime; a Go error
// return means the conversion itself is unimplemented for the type,
// which aborts compilation rather than execution.
type Bridge struct {
	rt   *box.Runtime
	mod  *box.Module
	none *box.Object

	istrue            func(*box.Object) int64
	numberLong        func(*box.Object) *box.Object
	numberFloat       func(*box.Object) *box.Object
	longAsLonglong    func(*box.Object) int64
	longAsUlonglong   func(*box.Object) uint64
	longAsVoidptr     func(*box.Object) uintptr
	floatAsDouble     func(*box.Object) float64
	complexAdaptor    func(*box.Object, *complex128) bool
	adaptArray        func(*box.Object, *view.Descriptor) int
	getBuffer         func(*box.Object, *box.BufferView) int
	releaseBuffer     func(*box.BufferView)
	extractRecordData func(*box.Object, *box.BufferView) unsafe.Pointer
	extractDatetime   func(*box.Object) int64
	extractTimedelta  func(*box.Object) int64

	boolFromLong       func(int64) *box.Object
	longFromLonglong   func(int64) *box.Object
	longFromUlonglong  func(uint64) *box.Object
	floatFromDouble    func(float64) *box.Object
	complexFromDoubles func(float64, float64) *box.Object
	createDatetime     func(int64, int32) *box.Object
	createTimedelta    func(int64, int32) *box.Object
	bytesFromData      func([]byte) *box.Object
	tupleNew           func(int) *box.Object
	tupleGetItem       func(*box.Object, int) *box.Object
	tupleSetItem       func(*box.Object, int, *box.Object)
	recreateRecord     func(unsafe.Pointer, int, *box.Object) *box.Object
	makeGenerator      func([]byte, uintptr, func([]byte)) *box.Object
	callObject         func(*box.Object, ...*box.Object) *box.Object

	incref func(*box.Object)
	decref func(*box.Object)
}

// NewBridge binds all conversion operations against mod's runtime.
func NewBridge(mod *box.Module) *Bridge {
	b := &Bridge{
		rt:   mod.Runtime(),
		mod:  mod,
		none: mod.CObject("RtNone").Object(),
	}
	b.istrue = mod.Func("rt_object_istrue").(func(*box.Object) int64)
	b.numberLong = mod.Func("rt_number_long").(func(*box.Object) *box.Object)
	b.numberFloat = mod.Func("rt_number_float").(func(*box.Object) *box.Object)
	b.longAsLonglong = mod.Func("rt_long_as_longlong").(func(*box.Object) int64)
	b.longAsUlonglong = mod.Func("rt_long_as_ulonglong").(func(*box.Object) uint64)
	b.longAsVoidptr = mod.Func("rt_long_as_voidptr").(func(*box.Object) uintptr)
	b.floatAsDouble = mod.Func("rt_float_as_double").(func(*box.Object) float64)
	b.complexAdaptor = mod.Func("rt_complex_adaptor").(func(*box.Object, *complex128) bool)
	b.adaptArray = mod.Func("rt_adapt_array").(func(*box.Object, *view.Descriptor) int)
	b.getBuffer = mod.Func("rt_get_buffer").(func(*box.Object, *box.BufferView) int)
	b.releaseBuffer = mod.Func("rt_release_buffer").(func(*box.BufferView))
	b.extractRecordData = mod.Func("rt_extract_record_data").(func(*box.Object, *box.BufferView) unsafe.Pointer)
	b.extractDatetime = mod.Func("rt_extract_datetime").(func(*box.Object) int64)
	b.extractTimedelta = mod.Func("rt_extract_timedelta").(func(*box.Object) int64)

	b.boolFromLong = mod.Func("rt_bool_from_long").(func(int64) *box.Object)
	b.longFromLonglong = mod.Func("rt_long_from_longlong").(func(int64) *box.Object)
	b.longFromUlonglong = mod.Func("rt_long_from_ulonglong").(func(uint64) *box.Object)
	b.floatFromDouble = mod.Func("rt_float_from_double").(func(float64) *box.Object)
	b.complexFromDoubles = mod.Func("rt_complex_from_doubles").(func(float64, float64) *box.Object)
	b.createDatetime = mod.Func("rt_create_datetime").(func(int64, int32) *box.Object)
	b.createTimedelta = mod.Func("rt_create_timedelta").(func(int64, int32) *box.Object)
	b.bytesFromData = mod.Func("rt_bytes_from_data").(func([]byte) *box.Object)
	b.tupleNew = mod.Func("rt_tuple_new").(func(int) *box.Object)
	b.tupleGetItem = mod.Func("rt_tuple_getitem").(func(*box.Object, int) *box.Object)
	b.tupleSetItem = mod.Func("rt_tuple_setitem").(func(*box.Object, int, *box.Object))
	b.recreateRecord = mod.Func("rt_recreate_record").(func(unsafe.Pointer, int, *box.Object) *box.Object)
	b.makeGenerator = mod.Func("rt_make_generator").(func([]byte, uintptr, func([]byte)) *box.Object)
	b.callObject = mod.Func("rt_call_object").(func(*box.Object, ...*box.Object) *box.Object)

	b.incref = mod.Func("rt_incref").(func(*box.Object))
	b.decref = mod.Func("rt_decref").(func(*box.Object))
	return b
}

// Module returns the compilation unit this bridge converts for.
func (b *Bridge) Module() *box.Module { return b.mod }

// ToNative unboxes obj into the native layout of t. The boxed argument
// is borrowed; references acquired for the native value's lifetime are
// released by the returned cleanup.
func (b *Bridge) ToNative(obj *box.Object, t *Type) (NativeValue, error) {
	if box.Settings.TraceConversions {
		fmt.Printf("lower: to_native %s <- %s\n", t, obj)
	}
	switch t.Kind {
	case KBool:
		v := b.istrue(obj)
		return NativeValue{Value: v > 0, IsError: v < 0}, nil

	case KInt:
		longObj := b.numberLong(obj)
		if longObj == nil {
			return NativeValue{IsError: true}, nil
		}
		if t.Signed {
			raw := b.longAsLonglong(longObj)
			b.decref(longObj)
			return NativeValue{Value: truncSigned(raw, t.Width), IsError: b.rt.ErrOccurred()}, nil
		}
		raw := b.longAsUlonglong(longObj)
		b.decref(longObj)
		return NativeValue{Value: truncUnsigned(raw, t.Width), IsError: b.rt.ErrOccurred()}, nil

	case KFloat32, KFloat64:
		floatObj := b.numberFloat(obj)
		if floatObj == nil {
			return NativeValue{IsError: true}, nil
		}
		v := b.floatAsDouble(floatObj)
		b.decref(floatObj)
		isError := b.rt.ErrOccurred()
		if t.Kind == KFloat32 {
			return NativeValue{Value: float32(v), IsError: isError}, nil
		}
		return NativeValue{Value: v, IsError: isError}, nil

	case KComplex64, KComplex128:
		var c complex128
		if !b.complexAdaptor(obj, &c) {
			b.rt.SetErrString(box.ExcTypeError, "conversion to %s failed", t)
			return NativeValue{IsError: true}, nil
		}
		if t.Kind == KComplex64 {
			return NativeValue{Value: complex64(c)}, nil
		}
		return NativeValue{Value: c}, nil

	case KRecord:
		// the view must be released whether or not extraction
		// succeeded, so the cleanup is attached on both paths
		buf := new(box.BufferView)
		ptr := b.extractRecordData(obj, buf)
		cleanup := func() { b.releaseBuffer(buf) }
		return NativeValue{Value: ptr, IsError: ptr == nil, Cleanup: cleanup}, nil

	case KArray:
		desc := new(view.Descriptor)
		rc := b.adaptArray(obj, desc)
		return NativeValue{Value: desc, IsError: rc != 0}, nil

	case KBuffer:
		buf := new(box.BufferView)
		rc := b.getBuffer(obj, buf)
		desc := new(view.Descriptor)
		if rc == 0 {
			box.AdaptBuffer(buf, desc)
		}
		cleanup := func() { b.releaseBuffer(buf) }
		return NativeValue{Value: desc, IsError: rc != 0, Cleanup: cleanup}, nil

	case KOptional:
		// the none check decides representation; the inner
		// conversion never sees a none value
		if obj == b.none {
			return NativeValue{Value: Optional{}}, nil
		}
		inner, err := b.ToNative(obj, t.Elem)
		if err != nil {
			return NativeValue{}, err
		}
		return NativeValue{
			Value:   Optional{Present: true, Value: inner.Value},
			IsError: inner.IsError,
			Cleanup: inner.Cleanup,
		}, nil

	case KTuple, KUniTuple:
		n := t.TupleLen()
		values := make([]any, n)
		cleanups := make([]Cleanup, n)
		isError := false
		// every element is converted even after a failure so that
		// the combined cleanup covers all acquired resources
		for i := 0; i < n; i++ {
			elem := b.tupleGetItem(obj, i)
			if elem == nil {
				isError = true
				continue
			}
			ev, err := b.ToNative(elem, t.ElemAt(i))
			if err != nil {
				combined := combineCleanups(cleanups)
				if combined != nil {
					combined()
				}
				return NativeValue{}, err
			}
			values[i] = ev.Value
			cleanups[i] = ev.Cleanup
			isError = isError || ev.IsError
		}
		return NativeValue{Value: values, IsError: isError, Cleanup: combineCleanups(cleanups)}, nil

	case KDatetime:
		v := b.extractDatetime(obj)
		return NativeValue{Value: v, IsError: b.rt.ErrOccurred()}, nil

	case KTimedelta:
		v := b.extractTimedelta(obj)
		return NativeValue{Value: v, IsError: b.rt.ErrOccurred()}, nil

	case KGenerator:
		// the state pointer aliases the boxed object's storage; the
		// caller keeps the boxed generator alive while using it
		state := obj.Data()
		var p unsafe.Pointer
		if len(state) > 0 {
			p = unsafe.Pointer(&state[0])
		}
		return NativeValue{Value: p}, nil

	case KFuncPtr:
		return b.funcPtrToNative(obj, t)

	case KOpaque:
		return NativeValue{Value: obj}, nil
	}
	return NativeValue{}, fmt.Errorf("to_native: unimplemented conversion for %s", t)
}

// funcPtrToNative extracts a raw function address by round-tripping
// the pointer-extraction callback through the module's constant pool
// and calling it on the boxed value.
func (b *Bridge) funcPtrToNative(obj *box.Object, t *Type) (NativeValue, error) {
	if t.GetPointer == nil {
		return NativeValue{}, fmt.Errorf("to_native: %s has no pointer-extraction callback", t)
	}
	blob := b.mod.Serialize(t.GetPointer)
	cb, err := b.mod.Unserialize(blob)
	if err != nil {
		return NativeValue{}, fmt.Errorf("to_native: %s: %w", t, err)
	}
	var ptr uintptr
	if !cb.IsNil() {
		intObj := b.callObject(cb.Object(), obj)
		cb.Release()
		if intObj != nil {
			ptr = b.longAsVoidptr(intObj)
			b.decref(intObj)
		}
	}
	return NativeValue{Value: ptr, IsError: b.rt.ErrOccurred()}, nil
}

// FromNative boxes a native value of type t into a new owned handle.
// An empty handle with a nil error never happens: failures to box are
// unimplemented conversions and come back as Go errors.
func (b *Bridge) FromNative(val any, t *Type) (box.Owned, error) {
	if box.Settings.TraceConversions {
		fmt.Printf("lower: from_native %s\n", t)
	}
	switch t.Kind {
	case KBool:
		v, ok := val.(bool)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		lv := int64(0)
		if v {
			lv = 1
		}
		return box.Own(b.boolFromLong(lv)), nil

	case KInt:
		if t.Signed {
			v, ok := val.(int64)
			if !ok {
				return box.Owned{}, typeMismatch(t, val)
			}
			return box.Own(b.longFromLonglong(truncSigned(v, t.Width))), nil
		}
		v, ok := val.(uint64)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.longFromUlonglong(truncUnsigned(v, t.Width))), nil

	case KFloat32:
		v, ok := val.(float32)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.floatFromDouble(float64(v))), nil

	case KFloat64:
		v, ok := val.(float64)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.floatFromDouble(v)), nil

	case KComplex64:
		v, ok := val.(complex64)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.complexFromDoubles(float64(real(v)), float64(imag(v)))), nil

	case KComplex128:
		v, ok := val.(complex128)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.complexFromDoubles(real(v), imag(v))), nil

	case KRecord:
		ptr, ok := val.(unsafe.Pointer)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.recreateRecord(ptr, t.Size, t.Dtype)), nil

	case KTuple, KUniTuple:
		values, ok := val.([]any)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		n := t.TupleLen()
		if len(values) != n {
			return box.Owned{}, fmt.Errorf("from_native: %s expects %d elements, got %d", t, n, len(values))
		}
		tup := box.Own(b.tupleNew(n))
		for i := 0; i < n; i++ {
			elem, err := b.FromNative(values[i], t.ElemAt(i))
			if err != nil {
				tup.Release()
				return box.Owned{}, err
			}
			// the tuple slot takes over the element reference
			b.tupleSetItem(tup.Object(), i, elem.Steal())
		}
		return tup, nil

	case KOptional:
		v, ok := val.(Optional)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		if !v.Present {
			return box.Acquire(box.Borrow(b.none)), nil
		}
		return b.FromNative(v.Value, t.Elem)

	case KArray:
		desc, ok := val.(*view.Descriptor)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		// native arrays always originate from a boxed parent; a
		// descriptor without one cannot be reboxed
		parent := box.ParentObject(desc)
		if parent == nil {
			box.Fatal("from_native: array view lost its boxed parent")
			return box.Owned{}, fmt.Errorf("from_native: array view without boxed parent")
		}
		b.incref(parent)
		return box.Own(parent), nil

	case KDatetime:
		v, ok := val.(int64)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.createDatetime(v, t.Unit)), nil

	case KTimedelta:
		v, ok := val.(int64)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		return box.Own(b.createTimedelta(v, t.Unit)), nil

	case KGenerator:
		p, ok := val.(unsafe.Pointer)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		state := unsafe.Slice((*byte)(p), t.StateSize)
		return box.Own(b.makeGenerator(state, t.Resume, t.Finalizer)), nil

	case KCharSeq:
		raw, ok := val.([]byte)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		n := t.Count
		if len(raw) < n {
			n = len(raw)
		}
		// stop at the first NUL within the fixed-width field
		for i := 0; i < n; i++ {
			if raw[i] == 0 {
				n = i
				break
			}
		}
		return box.Own(b.bytesFromData(raw[:n])), nil

	case KOpaque:
		o, ok := val.(*box.Object)
		if !ok {
			return box.Owned{}, typeMismatch(t, val)
		}
		b.incref(o)
		return box.Own(o), nil
	}
	return box.Owned{}, fmt.Errorf("from_native: unimplemented conversion for %s", t)
}

func typeMismatch(t *Type, val any) error {
	return fmt.Errorf("from_native: %s cannot box a %T", t, val)
}

// truncSigned wraps v modulo 2^width, then sign-extends.
func truncSigned(v int64, width int) int64 {
	switch width {
	case 8:
		return int64(int8(v))
	case 16:
		return int64(int16(v))
	case 32:
		return int64(int32(v))
	}
	return v
}

// truncUnsigned wraps v modulo 2^width.
func truncUnsigned(v uint64, width int) uint64 {
	switch width {
	case 8:
		return uint64(uint8(v))
	case 16:
		return uint64(uint16(v))
	case 32:
		return uint64(uint32(v))
	}
	return v
}
