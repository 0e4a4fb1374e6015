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

import (
	"fmt"
	"unsafe"

	"golang.org/x/exp/constraints"
)

func clampLow[T constraints.Ordered](v, lo T) T {
	if v < lo {
		return lo
	}
	return v
}

func maxInt[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// SliceAxis normalizes one axis of a slice expression and computes the
// resulting sub-axis. extent and stride describe the source axis; each
// of start/stop/step may independently be absent.
//
// Normalization contract:
//   - absent step defaults to 1
//   - absent start defaults to extent-1 for negative step, else 0;
//     negative start has extent added, then is clamped at 0; start past
//     the end is clamped to extent-1 for negative step, else extent
//   - absent stop defaults to -1 for negative step, else extent;
//     negative stop has extent added, then is clamped at 0; stop past
//     the end is clamped to extent
//   - new extent is ceil((stop-start)/step), clamped at 0
//   - a resulting extent of 1 forces the new stride to 0 so the axis
//     broadcasts
//
// Returns the new extent, the new stride and the byte offset to add to
// the data pointer (start times the original stride).
func SliceAxis(extent, stride int64, start, stop, step OptIndex) (newExtent, newStride, offset int64) {
	st := int64(1)
	if step.Valid {
		st = step.Value
	}
	negativeStep := st < 0

	var lo int64
	if start.Valid {
		lo = adjustIndex(extent, negativeStep, start.Value, true)
	} else if negativeStep {
		lo = extent - 1
	} else {
		lo = 0
	}

	var hi int64
	if stop.Valid {
		hi = adjustIndex(extent, negativeStep, stop.Value, false)
	} else if negativeStep {
		hi = -1
	} else {
		hi = extent
	}

	newExtent = (hi - lo) / st
	if (hi-lo)%st != 0 {
		newExtent++
	}
	newExtent = clampLow(newExtent, 0)

	newStride = stride * st
	if newExtent == 1 {
		newStride = 0
	}
	offset = lo * stride
	return
}

// adjustIndex wraps a present index: negative values count from the
// end, everything is clamped into the valid range. Start indices past
// the end clamp to extent-1 when stepping backwards (the last element
// still in range); stop is exclusive, so its clamp ignores direction.
func adjustIndex(extent int64, negativeStep bool, index int64, isStart bool) int64 {
	if index < 0 {
		index += extent
		return clampLow(index, 0)
	}
	if index >= extent {
		if isStart && negativeStep {
			return extent - 1
		}
		return extent
	}
	return index
}

// AxisSelKind tags one entry of a slice specification.
type AxisSelKind uint8

const (
	SelSlice AxisSelKind = iota // start:stop:step, consumes a source axis, produces one
	SelIndex                    // scalar index, consumes a source axis, produces none
	SelNewAxis                  // inserts a broadcastable axis, consumes none
)

// AxisSel is one per-axis selector of a slice specification. It is
// built once per slicing operation and consumed by Apply.
type AxisSel struct {
	Kind AxisSelKind

	Start, Stop, Step OptIndex // SelSlice
	Index             int64    // SelIndex
}

// Slice builds a SelSlice selector.
func Slice(start, stop, step OptIndex) AxisSel {
	return AxisSel{Kind: SelSlice, Start: start, Stop: stop, Step: step}
}

// Index builds a SelIndex selector.
func Index(i int64) AxisSel { return AxisSel{Kind: SelIndex, Index: i} }

// NewAxis builds a SelNewAxis selector.
func NewAxis() AxisSel { return AxisSel{Kind: SelNewAxis} }

// ResultNdim computes the dimensionality Apply will produce for a
// source of srcNdim axes under the given specification.
func ResultNdim(srcNdim int, spec []AxisSel) int {
	src, dst := 0, 0
	for _, sel := range spec {
		switch sel.Kind {
		case SelSlice:
			src++
			dst++
		case SelIndex:
			src++
		case SelNewAxis:
			dst++
		}
	}
	return dst + (srcNdim - src)
}

// Apply slices in into out according to spec. out.Shape and out.Strides
// must already have length ResultNdim(in.Ndim(), spec); Apply writes
// them in place and never allocates, so it is safe in the per-call hot
// path. Source axes beyond the specification are passed through
// unchanged. Apply operates purely on native descriptors and never
// calls back into the boxed runtime.
func Apply(in *Descriptor, spec []AxisSel, out *Descriptor) error {
	want := ResultNdim(in.Ndim(), spec)
	if len(out.Shape) != want || len(out.Strides) != want {
		return fmt.Errorf("slice: output descriptor has %d axes, need %d", len(out.Shape), want)
	}

	data := in.Data
	srcDim, dstDim := 0, 0
	for _, sel := range spec {
		switch sel.Kind {
		case SelSlice:
			if srcDim >= in.Ndim() {
				return fmt.Errorf("slice: too many selectors for %d source axes", in.Ndim())
			}
			ext, str, off := SliceAxis(in.Shape[srcDim], in.Strides[srcDim], sel.Start, sel.Stop, sel.Step)
			data = unsafe.Add(data, off)
			out.Shape[dstDim] = ext
			out.Strides[dstDim] = str
			srcDim++
			dstDim++
		case SelIndex:
			if srcDim >= in.Ndim() {
				return fmt.Errorf("slice: too many selectors for %d source axes", in.Ndim())
			}
			data = IndexAxis(data, in.Shape, in.Strides, srcDim, sel.Index)
			srcDim++
		case SelNewAxis:
			InsertNewAxis(out.Shape, out.Strides, dstDim)
			dstDim++
		}
	}
	for ; srcDim < in.Ndim(); srcDim, dstDim = srcDim+1, dstDim+1 {
		out.Shape[dstDim] = in.Shape[srcDim]
		out.Strides[dstDim] = in.Strides[srcDim]
	}

	out.Parent = in.Parent
	out.Data = data
	out.ItemSize = in.ItemSize
	out.Nitems = 1
	for _, e := range out.Shape {
		out.Nitems *= e
	}
	return nil
}
