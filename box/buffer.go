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

// BufferView is a scoped view into an object's byte payload. Acquiring
// pins the object (incref + view count); Release drops both. Release
// on a never-filled or already-released view is a no-op, so cleanups
// may run unconditionally on every exit path.
type BufferView struct {
	obj      *Object
	Data     []byte
	ItemSize int64
}

// Release returns the view. Idempotent.
func (v *BufferView) Release() {
	if v.obj == nil {
		return
	}
	v.obj.views--
	v.obj.DecRef()
	v.obj = nil
	v.Data = nil
}

// GetBuffer acquires a buffer view of obj into buf. Returns 0 on
// success, nonzero if the object exposes no byte payload (and sets a
// pending TypeError).
func (rt *Runtime) GetBuffer(obj *Object, buf *BufferView) int {
	switch obj.tag {
	case TagBytes, TagRecord, TagArray:
		obj.IncRef()
		obj.views++
		buf.obj = obj
		buf.Data = obj.data
		buf.ItemSize = obj.itemsize
		if buf.ItemSize == 0 {
			buf.ItemSize = 1
		}
		return 0
	}
	rt.SetErrString(ExcTypeError, "object of kind %s does not expose a buffer", obj.tag)
	return -1
}

// ExtractRecordData acquires a buffer view of a record object and
// returns its base address, nil on failure. The caller must release
// buf on every exit path.
func (rt *Runtime) ExtractRecordData(obj *Object, buf *BufferView) unsafe.Pointer {
	if obj.tag != TagRecord {
		rt.SetErrString(ExcTypeError, "expected a record, got %s", obj.tag)
		return nil
	}
	if rt.GetBuffer(obj, buf) != 0 {
		return nil
	}
	if len(buf.Data) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf.Data[0])
}

// AdaptBuffer bitcasts an acquired buffer view into a flat native
// array descriptor (one axis, element count derived from the item
// size).
func AdaptBuffer(buf *BufferView, desc *view.Descriptor) {
	n := int64(len(buf.Data)) / buf.ItemSize
	desc.Parent = unsafe.Pointer(buf.obj)
	if len(buf.Data) > 0 {
		desc.Data = unsafe.Pointer(&buf.Data[0])
	}
	desc.Nitems = n
	desc.ItemSize = buf.ItemSize
	desc.Shape = []int64{n}
	desc.Strides = []int64{buf.ItemSize}
}

// AdaptArray validates and fills the native array descriptor from a
// boxed array object. Returns 0 on success, nonzero otherwise. Shape
// and strides are copied: broadcasting mutates operand strides in
// place, and that must never write through into the boxed object.
//
// The adaptor deliberately does not check element-type compatibility
// between the boxed array and the requested native element layout; a
// mismatched dtype is accepted. This mirrors the long-standing gap in
// the original adaptor and is documented rather than fixed.
func (rt *Runtime) AdaptArray(obj *Object, desc *view.Descriptor) int {
	if obj.tag != TagArray {
		rt.SetErrString(ExcTypeError, "expected an array, got %s", obj.tag)
		return -1
	}
	desc.Parent = unsafe.Pointer(obj)
	if len(obj.data) > 0 {
		desc.Data = unsafe.Pointer(&obj.data[0])
	} else {
		desc.Data = nil
	}
	desc.ItemSize = obj.itemsize
	desc.Shape = append([]int64(nil), obj.shape...)
	desc.Strides = append([]int64(nil), obj.strides...)
	desc.Nitems = 1
	for _, e := range obj.shape {
		desc.Nitems *= e
	}
	return 0
}

// ParentObject recovers the boxed origin of a descriptor, nil when the
// array was synthesized natively without a boxed parent.
func ParentObject(desc *view.Descriptor) *Object {
	return (*Object)(desc.Parent)
}
