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
	"strconv"
)

// Tag identifies the runtime kind of a boxed object.
type Tag uint16

// data will ALWAYS be stored under the correct tag, so a TagInt never
// carries a float payload and vice versa
const (
	TagNone Tag = iota
	TagBool
	TagInt
	TagFloat
	TagComplex
	TagString
	TagBytes
	TagTuple
	TagRecord
	TagArray
	TagDatetime
	TagTimedelta
	TagGenerator
	TagFunc
	TagExcType
	TagOpaque
)

// Object is a boxed, reference-counted runtime value. All mutation of
// reference counts and payloads happens under the runtime lock.
type Object struct {
	tag  Tag
	refs int32

	i64   int64
	f64   float64
	c128  complex128
	str   string
	data  []byte    // bytes payload, record data, array backing, generator state
	items []*Object // tuple elements (owned)
	unit  int32     // datetime/timedelta unit code

	dtype    *Object // record dtype handle
	shape    []int64 // array
	strides  []int64
	itemsize int64

	resume   uintptr            // generator resume entry point
	finalize func(state []byte) // optional generator finalizer
	call     func(args ...*Object) *Object
	any      any

	views int32 // outstanding buffer views
}

// None is the canonical none singleton. It is immortal: reference
// count operations on it are no-ops.
var None = &Object{tag: TagNone, refs: 1}

func (o *Object) immortal() bool {
	return o == None || o.tag == TagExcType
}

// IncRef acquires one reference.
func (o *Object) IncRef() {
	if o.immortal() {
		return
	}
	if o.refs <= 0 {
		Fatal("incref on dead object")
		return
	}
	o.refs++
}

// DecRef releases one reference; at zero the object is dead and any
// generator finalizer runs.
func (o *Object) DecRef() {
	if o.immortal() {
		return
	}
	if o.refs <= 0 {
		Fatal("decref on dead object")
		return
	}
	o.refs--
	if o.refs == 0 {
		if o.tag == TagGenerator && o.finalize != nil {
			o.finalize(o.data)
		}
		for _, it := range o.items {
			if it != nil {
				it.DecRef()
			}
		}
		o.items = nil
	}
}

// RefCount reports the current reference count.
func (o *Object) RefCount() int { return int(o.refs) }

// Views reports outstanding buffer views, for leak assertions.
func (o *Object) Views() int { return int(o.views) }

// Tag returns the runtime kind.
func (o *Object) Tag() Tag { return o.tag }

//
// Constructors (each returns a new owned reference)
//

func NewBool(b bool) *Object {
	v := int64(0)
	if b {
		v = 1
	}
	return &Object{tag: TagBool, refs: 1, i64: v}
}

func NewInt(i int64) *Object { return &Object{tag: TagInt, refs: 1, i64: i} }

func NewFloat(f float64) *Object { return &Object{tag: TagFloat, refs: 1, f64: f} }

func NewComplex(c complex128) *Object { return &Object{tag: TagComplex, refs: 1, c128: c} }

func NewString(s string) *Object { return &Object{tag: TagString, refs: 1, str: s} }

func NewBytes(b []byte) *Object { return &Object{tag: TagBytes, refs: 1, data: b} }

// NewTuple builds a tuple with n empty slots; fill them with SetItem.
func NewTuple(n int) *Object {
	return &Object{tag: TagTuple, refs: 1, items: make([]*Object, n)}
}

// NewRecord wraps a fixed-size byte payload identified by a dtype
// handle. The dtype reference is borrowed from the catalog and shared.
func NewRecord(data []byte, dtype *Object) *Object {
	return &Object{tag: TagRecord, refs: 1, data: data, dtype: dtype}
}

// NewArray builds a boxed n-dimensional array over its own backing
// buffer. Shape and strides are byte-exact as handed in.
func NewArray(data []byte, shape, strides []int64, itemsize int64) *Object {
	return &Object{tag: TagArray, refs: 1, data: data, shape: shape, strides: strides, itemsize: itemsize}
}

func NewDatetime(v int64, unit int32) *Object {
	return &Object{tag: TagDatetime, refs: 1, i64: v, unit: unit}
}

func NewTimedelta(v int64, unit int32) *Object {
	return &Object{tag: TagTimedelta, refs: 1, i64: v, unit: unit}
}

// NewGenerator embeds a copy of the native generator state together
// with the resume entry point and an optional finalizer that runs when
// the object dies.
func NewGenerator(state []byte, resume uintptr, finalize func(state []byte)) *Object {
	cp := make([]byte, len(state))
	copy(cp, state)
	return &Object{tag: TagGenerator, refs: 1, data: cp, resume: resume, finalize: finalize}
}

func NewFunc(fn func(args ...*Object) *Object) *Object {
	return &Object{tag: TagFunc, refs: 1, call: fn}
}

func NewOpaque(v any) *Object { return &Object{tag: TagOpaque, refs: 1, any: v} }

func newExcType(name string) *Object { return &Object{tag: TagExcType, refs: 1, str: name} }

//
// Accessors with coercion (panics on impossible tags are invariant
// violations, not data errors)
//

func (o *Object) IsNone() bool { return o.tag == TagNone }

// Bool is the truth test used by the istrue runtime call.
func (o *Object) Bool() bool {
	switch o.tag {
	case TagNone:
		return false
	case TagBool, TagInt, TagDatetime, TagTimedelta:
		return o.i64 != 0
	case TagFloat:
		return o.f64 != 0.0
	case TagComplex:
		return o.c128 != 0
	case TagString:
		return o.str != ""
	case TagBytes, TagRecord, TagGenerator:
		return len(o.data) > 0
	case TagTuple:
		return len(o.items) > 0
	default:
		return true
	}
}

// Int coerces to an arbitrary-precision style integer value. Strings
// parse; anything non-numeric reports an error instead of silently
// producing zero.
func (o *Object) Int() (int64, error) {
	switch o.tag {
	case TagInt, TagDatetime, TagTimedelta, TagBool:
		return o.i64, nil
	case TagFloat:
		return int64(o.f64), nil
	case TagString:
		v, err := strconv.ParseInt(o.str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid literal for int: %q", o.str)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("cannot interpret %s as an integer", o.tag)
	}
}

// Float coerces to float64.
func (o *Object) Float() (float64, error) {
	switch o.tag {
	case TagFloat:
		return o.f64, nil
	case TagInt, TagBool:
		return float64(o.i64), nil
	case TagString:
		v, err := strconv.ParseFloat(o.str, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid literal for float: %q", o.str)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("cannot interpret %s as a float", o.tag)
	}
}

// Complex coerces numerics into a complex value; ok is false for
// everything else.
func (o *Object) Complex() (complex128, bool) {
	switch o.tag {
	case TagComplex:
		return o.c128, true
	case TagFloat:
		return complex(o.f64, 0), true
	case TagInt, TagBool:
		return complex(float64(o.i64), 0), true
	default:
		return 0, false
	}
}

func (o *Object) String() string {
	switch o.tag {
	case TagNone:
		return "none"
	case TagBool:
		if o.i64 != 0 {
			return "true"
		}
		return "false"
	case TagInt:
		return strconv.FormatInt(o.i64, 10)
	case TagFloat:
		return strconv.FormatFloat(o.f64, 'g', -1, 64)
	case TagComplex:
		return strconv.FormatComplex(o.c128, 'g', -1, 128)
	case TagString, TagExcType:
		return o.str
	case TagBytes:
		return fmt.Sprintf("[%d bytes]", len(o.data))
	case TagTuple:
		return fmt.Sprintf("[tuple %d]", len(o.items))
	case TagFunc:
		return "[func]"
	default:
		return fmt.Sprintf("<%s>", o.tag)
	}
}

// Item returns the i-th tuple element as a borrowed reference.
func (o *Object) Item(i int) *Object {
	if o.tag != TagTuple {
		panic("not tuple")
	}
	return o.items[i]
}

// SetItem places item into slot i, stealing the caller's reference.
// Once placed, the tuple owns it and will release it on death.
func (o *Object) SetItem(i int, item *Object) {
	if o.tag != TagTuple {
		panic("not tuple")
	}
	if o.items[i] != nil {
		o.items[i].DecRef()
	}
	o.items[i] = item
}

// Len is the tuple length.
func (o *Object) Len() int {
	if o.tag != TagTuple {
		panic("not tuple")
	}
	return len(o.items)
}

// Data exposes the raw payload of bytes/record/array/generator objects.
func (o *Object) Data() []byte {
	switch o.tag {
	case TagBytes, TagRecord, TagArray, TagGenerator:
		return o.data
	}
	panic("object carries no byte payload")
}

// Dtype is the record dtype handle (borrowed).
func (o *Object) Dtype() *Object {
	if o.tag != TagRecord {
		panic("not record")
	}
	return o.dtype
}

// Unit is the datetime/timedelta unit code.
func (o *Object) Unit() int32 {
	if o.tag != TagDatetime && o.tag != TagTimedelta {
		panic("not datetime/timedelta")
	}
	return o.unit
}

// Resume is the generator resume entry point.
func (o *Object) Resume() uintptr {
	if o.tag != TagGenerator {
		panic("not generator")
	}
	return o.resume
}

// Call invokes a boxed callable.
func (o *Object) Call(args ...*Object) *Object {
	if o.tag != TagFunc {
		panic("not callable")
	}
	return o.call(args...)
}

// Any unwraps an opaque payload.
func (o *Object) Any() any {
	if o.tag != TagOpaque {
		panic("not opaque")
	}
	return o.any
}

func (t Tag) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagBool:
		return "bool"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagComplex:
		return "complex"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagTuple:
		return "tuple"
	case TagRecord:
		return "record"
	case TagArray:
		return "array"
	case TagDatetime:
		return "datetime"
	case TagTimedelta:
		return "timedelta"
	case TagGenerator:
		return "generator"
	case TagFunc:
		return "func"
	case TagExcType:
		return "exctype"
	case TagOpaque:
		return "opaque"
	}
	return "unknown"
}
