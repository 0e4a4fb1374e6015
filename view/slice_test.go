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
	"testing"
)

// assertAxis checks one SliceAxis normalization result.
func assertAxis(t *testing.T, ctx string, extent, stride int64, start, stop, step OptIndex, wantExtent, wantStride, wantOffset int64) {
	t.Helper()
	ext, str, off := SliceAxis(extent, stride, start, stop, step)
	if ext != wantExtent || str != wantStride || off != wantOffset {
		t.Errorf("%s: got extent=%d stride=%d offset=%d, want extent=%d stride=%d offset=%d",
			ctx, ext, str, off, wantExtent, wantStride, wantOffset)
	}
}

func TestSliceAxisDefaults(t *testing.T) {
	// all absent selects the full axis
	assertAxis(t, "full", 10, 8, None, None, None, 10, 8, 0)
	// absent start/stop with negative step walks backwards from the end
	assertAxis(t, "reverse", 10, 8, None, None, Idx(-1), 10, -8, 72)
}

func TestSliceAxisNegativeIndices(t *testing.T) {
	// start=-3 wraps to 7, so three elements remain
	assertAxis(t, "negstart", 10, 8, Idx(-3), None, None, 3, 8, 56)
	// stop=-2 wraps to 8
	assertAxis(t, "negstop", 10, 8, None, Idx(-2), None, 8, 8, 0)
	// very negative start clamps to 0
	assertAxis(t, "clamplow", 10, 8, Idx(-100), None, None, 10, 8, 0)
}

func TestSliceAxisClampHigh(t *testing.T) {
	// stop past the end clamps to extent
	assertAxis(t, "stophigh", 10, 8, None, Idx(100), None, 10, 8, 0)
	// start past the end yields an empty axis for positive step
	assertAxis(t, "starthigh", 10, 8, Idx(100), None, None, 0, 8, 80)
	// start past the end with negative step clamps to the last element
	assertAxis(t, "starthigh-neg", 10, 8, Idx(100), None, Idx(-1), 10, -8, 72)
}

func TestSliceAxisEmpty(t *testing.T) {
	// start=0 stop=5 step=-1 walks the wrong way: empty
	assertAxis(t, "wrongway", 5, 8, Idx(0), Idx(5), Idx(-1), 0, -8, 0)
	// start == stop is empty
	assertAxis(t, "startstop", 10, 8, Idx(4), Idx(4), None, 0, 8, 32)
}

func TestSliceAxisStep(t *testing.T) {
	// ceil division: 10 elements by step 3 is 4
	assertAxis(t, "step3", 10, 8, None, None, Idx(3), 4, 24, 0)
	// step 2 over 10 is 5
	assertAxis(t, "step2", 10, 8, None, None, Idx(2), 5, 16, 0)
	// backwards by 2 from the end
	assertAxis(t, "backstep", 10, 8, None, None, Idx(-2), 5, -16, 72)
}

func TestSliceAxisSingleElementBroadcasts(t *testing.T) {
	// a resulting extent of 1 always zeroes the stride
	assertAxis(t, "one", 10, 8, Idx(3), Idx(4), None, 1, 0, 24)
	// offset still uses the original stride
	assertAxis(t, "one-off", 10, 8, Idx(9), None, None, 1, 0, 72)
	// source axis of extent 1
	assertAxis(t, "src1", 1, 8, None, None, None, 1, 0, 0)
}

func TestResultNdim(t *testing.T) {
	spec := []AxisSel{Slice(None, None, None), Index(0), NewAxis()}
	if got := ResultNdim(3, spec); got != 3 {
		t.Errorf("ResultNdim: got %d, want 3", got)
	}
	if got := ResultNdim(2, spec); got != 2 {
		t.Errorf("ResultNdim: got %d, want 2", got)
	}
}
