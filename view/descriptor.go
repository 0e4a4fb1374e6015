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
package view

import "unsafe"

// Descriptor is the native layout of an array view: a borrowed data
// pointer plus shape and strides. Parent is the boxed object the view
// was derived from (nil for raw external buffers). The descriptor never
// owns the data; whoever holds the parent reference does.
//
// A stride of 0 along an axis means the axis is broadcastable: all
// logical indices on that axis alias the same elements.
type Descriptor struct {
	Parent   unsafe.Pointer // boxed origin, nil if synthesized natively
	Data     unsafe.Pointer
	Nitems   int64
	ItemSize int64
	Shape    []int64
	Strides  []int64
}

// Ndim returns the dimensionality. len(Shape) == len(Strides) always
// holds for a well-formed descriptor.
func (d *Descriptor) Ndim() int { return len(d.Shape) }

// OptIndex is an optional slice bound. The zero value means "absent",
// which selects the direction-dependent default during normalization.
type OptIndex struct {
	Value int64
	Valid bool
}

// Idx wraps a present index value.
func Idx(v int64) OptIndex { return OptIndex{Value: v, Valid: true} }

// None is the absent bound.
var None = OptIndex{}

// IndexAxis performs the pointer arithmetic for a scalar index on one
// axis: data + strides[axis]*index. There is no bounds check; the
// caller's type layer is assumed to have validated the index.
func IndexAxis(data unsafe.Pointer, shape, strides []int64, axis int, index int64) unsafe.Pointer {
	_ = shape
	return unsafe.Add(data, strides[axis]*index)
}

// InsertNewAxis marks the destination axis as a fresh broadcastable
// dimension of extent 1. Shifting surrounding axes is the caller's
// dimension bookkeeping, not done here.
func InsertNewAxis(shape, strides []int64, axis int) {
	shape[axis] = 1
	strides[axis] = 0
}
