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

import "fmt"

// ShapeMismatchError reports incompatible extents during broadcasting.
// It is a user data error, not an internal failure: the caller raises
// it as a value error in the boxed runtime.
type ShapeMismatchError struct {
	Axis int
	Dst  int64
	Src  int64
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch while broadcasting: axis %d extents %d and %d", e.Axis, e.Dst, e.Src)
}

// Broadcast aligns the operands against dstShape. dstShape must be
// pre-initialized to all ones (see InitShape). For each operand, axes
// are aligned at the trailing end (offset by maxNdim - ndim). An
// operand extent of 1 zeroes that operand's stride (the axis
// broadcasts); a destination extent of 1 adopts the operand's extent;
// anything else differing is a mismatch.
//
// Operand strides are mutated in place. No boxed-runtime calls happen
// here; the loop works on native descriptors only.
func Broadcast(dstShape []int64, operands []*Descriptor) error {
	for _, op := range operands {
		dimOffset := len(dstShape) - op.Ndim()
		for i := 0; i < op.Ndim(); i++ {
			srcExtent := op.Shape[i]
			dstExtent := dstShape[i+dimOffset]
			if srcExtent == 1 {
				op.Strides[i] = 0
			} else if dstExtent == 1 {
				dstShape[i+dimOffset] = srcExtent
			} else if srcExtent != dstExtent {
				return &ShapeMismatchError{Axis: i, Dst: dstExtent, Src: srcExtent}
			}
		}
	}
	return nil
}

// InitShape returns a destination shape of the given rank initialized
// to ones, ready for Broadcast.
func InitShape(ndim int) []int64 {
	shape := make([]int64, ndim)
	for i := range shape {
		shape[i] = 1
	}
	return shape
}

// BroadcastShape computes the common shape of the operands: the
// destination rank is the maximum operand rank. Convenience wrapper
// around InitShape+Broadcast for callers that do not pre-size the
// destination.
func BroadcastShape(operands []*Descriptor) ([]int64, error) {
	ndim := 0
	for _, op := range operands {
		ndim = maxInt(ndim, op.Ndim())
	}
	shape := InitShape(ndim)
	if err := Broadcast(shape, operands); err != nil {
		return nil, err
	}
	return shape, nil
}
