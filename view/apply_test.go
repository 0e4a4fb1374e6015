package view

import (
	"testing"
	"unsafe"
)

// buildMatrix fills a rows x cols int64 matrix with v(r,c) and returns
// its descriptor over the backing slice.
func buildMatrix(rows, cols int64, v func(r, c int64) int64) ([]int64, *Descriptor) {
	backing := make([]int64, rows*cols)
	for r := int64(0); r < rows; r++ {
		for c := int64(0); c < cols; c++ {
			backing[r*cols+c] = v(r, c)
		}
	}
	d := &Descriptor{
		Data:     unsafe.Pointer(&backing[0]),
		Nitems:   rows * cols,
		ItemSize: 8,
		Shape:    []int64{rows, cols},
		Strides:  []int64{cols * 8, 8},
	}
	return backing, d
}

// at reads an int64 element through a descriptor's strides.
func at(d *Descriptor, idx ...int64) int64 {
	p := d.Data
	for axis, i := range idx {
		p = unsafe.Add(p, d.Strides[axis]*i)
	}
	return *(*int64)(p)
}

func TestApplySliceRows(t *testing.T) {
	_, d := buildMatrix(4, 3, func(r, c int64) int64 { return r*10 + c })

	out := &Descriptor{Shape: make([]int64, 2), Strides: make([]int64, 2)}
	// rows 1..2, all columns
	spec := []AxisSel{Slice(Idx(1), Idx(3), None)}
	if err := Apply(d, spec, out); err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 2 || out.Shape[1] != 3 {
		t.Fatalf("shape: got %v", out.Shape)
	}
	if out.Nitems != 6 {
		t.Errorf("nitems: got %d, want 6", out.Nitems)
	}
	if got := at(out, 0, 0); got != 10 {
		t.Errorf("out[0,0]: got %d, want 10", got)
	}
	if got := at(out, 1, 2); got != 22 {
		t.Errorf("out[1,2]: got %d, want 22", got)
	}
}

func TestApplyIndexCollapsesAxis(t *testing.T) {
	_, d := buildMatrix(4, 3, func(r, c int64) int64 { return r*10 + c })

	out := &Descriptor{Shape: make([]int64, 1), Strides: make([]int64, 1)}
	spec := []AxisSel{Index(2)}
	if err := Apply(d, spec, out); err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 3 {
		t.Fatalf("shape: got %v", out.Shape)
	}
	if got := at(out, 1); got != 21 {
		t.Errorf("out[1]: got %d, want 21", got)
	}
}

func TestApplyReverse(t *testing.T) {
	_, d := buildMatrix(1, 5, func(r, c int64) int64 { return c })

	out := &Descriptor{Shape: make([]int64, 1), Strides: make([]int64, 1)}
	spec := []AxisSel{Index(0), Slice(None, None, Idx(-1))}
	if err := Apply(d, spec, out); err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 5 || out.Strides[0] != -8 {
		t.Fatalf("axis: got shape=%v strides=%v", out.Shape, out.Strides)
	}
	for i := int64(0); i < 5; i++ {
		if got := at(out, i); got != 4-i {
			t.Errorf("out[%d]: got %d, want %d", i, got, 4-i)
		}
	}
}

func TestApplyNewAxis(t *testing.T) {
	_, d := buildMatrix(2, 2, func(r, c int64) int64 { return r*2 + c })

	out := &Descriptor{Shape: make([]int64, 3), Strides: make([]int64, 3)}
	spec := []AxisSel{NewAxis()}
	if err := Apply(d, spec, out); err != nil {
		t.Fatal(err)
	}
	if out.Shape[0] != 1 || out.Strides[0] != 0 {
		t.Fatalf("new axis: got shape=%v strides=%v", out.Shape, out.Strides)
	}
	if out.Shape[1] != 2 || out.Shape[2] != 2 {
		t.Fatalf("passthrough axes: got %v", out.Shape)
	}
	if got := at(out, 0, 1, 1); got != 3 {
		t.Errorf("out[0,1,1]: got %d, want 3", got)
	}
}

func TestApplyWrongOutputRank(t *testing.T) {
	_, d := buildMatrix(2, 2, func(r, c int64) int64 { return 0 })
	out := &Descriptor{Shape: make([]int64, 1), Strides: make([]int64, 1)}
	if err := Apply(d, []AxisSel{NewAxis()}, out); err == nil {
		t.Fatal("expected rank error")
	}
}
