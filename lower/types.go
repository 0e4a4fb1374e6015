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
	"strings"

	"github.com/boxlow/boxlow/box"
)

// Kind is the closed set of semantic type kinds. Both conversion
// directions dispatch exhaustively over it; an unhandled kind is a
// compile-fatal "unimplemented conversion", never a data error.
type Kind uint8

const (
	KBool Kind = iota
	KInt
	KFloat32
	KFloat64
	KComplex64
	KComplex128
	KRecord
	KTuple
	KUniTuple
	KOptional
	KArray
	KBuffer
	KDatetime
	KTimedelta
	KGenerator
	KCharSeq
	KFuncPtr
	KOpaque
)

// Type describes a value's native memory layout and conversion rules.
// Types are built during front-end analysis, immutable afterwards, and
// shared by reference across all conversions of a compilation unit.
// The kind fully determines the bit layout used by both directions, so
// ToNative and FromNative for the same Type are mutually inverse up to
// reference-count effects.
type Type struct {
	Kind   Kind
	Width  int  // integer bit width
	Signed bool // integer signedness

	Elem   *Type   // array/buffer/unituple/optional element
	Fields []*Type // heterogeneous tuple
	Count  int     // unituple length, charseq length
	Ndim   int     // array dimensionality

	Size  int         // record byte size
	Dtype *box.Object // record dtype handle (borrowed from the catalog)

	Unit int32 // datetime/timedelta unit code

	StateSize int                // generator state struct size
	Resume    uintptr            // generator resume entry point
	Finalizer func(state []byte) // optional generator finalizer

	GetPointer *box.Object // boxed pointer-extraction callback, nil if absent
}

// Shared numeric singletons.
var (
	Boolean    = &Type{Kind: KBool}
	Int8       = IntType(8, true)
	Int16      = IntType(16, true)
	Int32      = IntType(32, true)
	Int64      = IntType(64, true)
	Uint8      = IntType(8, false)
	Uint16     = IntType(16, false)
	Uint32     = IntType(32, false)
	Uint64     = IntType(64, false)
	Float32    = &Type{Kind: KFloat32}
	Float64    = &Type{Kind: KFloat64}
	Complex64  = &Type{Kind: KComplex64}
	Complex128 = &Type{Kind: KComplex128}
	Opaque     = &Type{Kind: KOpaque}
)

func IntType(width int, signed bool) *Type {
	switch width {
	case 8, 16, 32, 64:
	default:
		panic(fmt.Sprintf("unsupported integer width %d", width))
	}
	return &Type{Kind: KInt, Width: width, Signed: signed}
}

func RecordType(size int, dtype *box.Object) *Type {
	return &Type{Kind: KRecord, Size: size, Dtype: dtype}
}

func TupleType(fields ...*Type) *Type {
	return &Type{Kind: KTuple, Fields: fields}
}

func UniTupleType(elem *Type, count int) *Type {
	return &Type{Kind: KUniTuple, Elem: elem, Count: count}
}

func OptionalType(inner *Type) *Type {
	return &Type{Kind: KOptional, Elem: inner}
}

func ArrayType(elem *Type, ndim int) *Type {
	return &Type{Kind: KArray, Elem: elem, Ndim: ndim}
}

func BufferType(elem *Type) *Type {
	return &Type{Kind: KBuffer, Elem: elem}
}

func DatetimeType(unit int32) *Type  { return &Type{Kind: KDatetime, Unit: unit} }
func TimedeltaType(unit int32) *Type { return &Type{Kind: KTimedelta, Unit: unit} }

func GeneratorType(stateSize int, resume uintptr, finalizer func([]byte)) *Type {
	return &Type{Kind: KGenerator, StateSize: stateSize, Resume: resume, Finalizer: finalizer}
}

func CharSeqType(count int) *Type { return &Type{Kind: KCharSeq, Count: count} }

// FuncPtrType describes an external function pointer; getPointer is an
// optional boxed callback that extracts the raw address from the boxed
// value.
func FuncPtrType(getPointer *box.Object) *Type {
	return &Type{Kind: KFuncPtr, GetPointer: getPointer}
}

// ElemAt returns the element type at tuple position i.
func (t *Type) ElemAt(i int) *Type {
	if t.Kind == KUniTuple {
		return t.Elem
	}
	return t.Fields[i]
}

// TupleLen is the element count of a tuple kind.
func (t *Type) TupleLen() int {
	if t.Kind == KUniTuple {
		return t.Count
	}
	return len(t.Fields)
}

// ByteSize is the native layout size for fixed-size kinds; -1 for
// kinds whose size is not a plain byte count (tuples of mixed layout,
// optionals, opaque handles).
func (t *Type) ByteSize() int {
	switch t.Kind {
	case KBool:
		return 1
	case KInt:
		return t.Width / 8
	case KFloat32:
		return 4
	case KFloat64, KDatetime, KTimedelta:
		return 8
	case KComplex64:
		return 8
	case KComplex128:
		return 16
	case KRecord:
		return t.Size
	case KCharSeq:
		return t.Count
	case KUniTuple:
		es := t.Elem.ByteSize()
		if es < 0 {
			return -1
		}
		return es * t.Count
	default:
		return -1
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case KBool:
		return "bool"
	case KInt:
		if t.Signed {
			return fmt.Sprintf("int%d", t.Width)
		}
		return fmt.Sprintf("uint%d", t.Width)
	case KFloat32:
		return "float32"
	case KFloat64:
		return "float64"
	case KComplex64:
		return "complex64"
	case KComplex128:
		return "complex128"
	case KRecord:
		return fmt.Sprintf("record<%d>", t.Size)
	case KTuple:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.String()
		}
		return "tuple(" + strings.Join(parts, ", ") + ")"
	case KUniTuple:
		return fmt.Sprintf("unituple(%s x %d)", t.Elem, t.Count)
	case KOptional:
		return fmt.Sprintf("optional(%s)", t.Elem)
	case KArray:
		return fmt.Sprintf("array(%s, %dd)", t.Elem, t.Ndim)
	case KBuffer:
		return fmt.Sprintf("buffer(%s)", t.Elem)
	case KDatetime:
		return fmt.Sprintf("datetime[%d]", t.Unit)
	case KTimedelta:
		return fmt.Sprintf("timedelta[%d]", t.Unit)
	case KGenerator:
		return fmt.Sprintf("generator<%d>", t.StateSize)
	case KCharSeq:
		return fmt.Sprintf("charseq<%d>", t.Count)
	case KFuncPtr:
		return "funcptr"
	case KOpaque:
		return "object"
	}
	return "unknown"
}
