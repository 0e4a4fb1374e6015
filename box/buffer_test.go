package box

import (
	"testing"
	"unsafe"

	"github.com/boxlow/boxlow/view"
)

func TestGetBufferPinsObject(t *testing.T) {
	rt := NewRuntime()
	o := NewBytes([]byte{1, 2, 3, 4})
	var buf BufferView
	if rc := rt.GetBuffer(o, &buf); rc != 0 {
		t.Fatalf("GetBuffer: rc=%d", rc)
	}
	if o.RefCount() != 2 || o.Views() != 1 {
		t.Fatalf("after acquire: refs=%d views=%d", o.RefCount(), o.Views())
	}
	if len(buf.Data) != 4 || buf.ItemSize != 1 {
		t.Fatalf("view: %d bytes, itemsize %d", len(buf.Data), buf.ItemSize)
	}
	buf.Release()
	buf.Release() // idempotent
	if o.RefCount() != 1 || o.Views() != 0 {
		t.Fatalf("after release: refs=%d views=%d", o.RefCount(), o.Views())
	}
	o.DecRef()
}

func TestGetBufferRejectsNonBuffer(t *testing.T) {
	rt := NewRuntime()
	o := NewInt(5)
	var buf BufferView
	if rc := rt.GetBuffer(o, &buf); rc == 0 {
		t.Fatal("integer must not expose a buffer")
	}
	if !rt.ErrMatches(ExcTypeError) {
		t.Fatal("expected a pending TypeError")
	}
	// release on a never-filled view is a no-op
	buf.Release()
	if o.RefCount() != 1 {
		t.Fatalf("refcount touched on failure: %d", o.RefCount())
	}
	o.DecRef()
}

func TestExtractRecordData(t *testing.T) {
	rt := NewRuntime()
	dtype := NewString("i8,f8")
	rec := NewRecord([]byte{1, 2, 3, 4, 5, 6, 7, 8}, dtype)
	var buf BufferView
	ptr := rt.ExtractRecordData(rec, &buf)
	if ptr == nil {
		t.Fatal("extraction failed")
	}
	if *(*byte)(ptr) != 1 {
		t.Fatal("pointer does not address the record payload")
	}
	buf.Release()

	ptr = rt.ExtractRecordData(NewInt(1), &buf)
	if ptr != nil || !rt.ErrMatches(ExcTypeError) {
		t.Fatal("non-record must fail with TypeError")
	}
}

func TestAdaptArray(t *testing.T) {
	rt := NewRuntime()
	data := make([]byte, 6*8)
	arr := NewArray(data, []int64{2, 3}, []int64{24, 8}, 8)
	var desc view.Descriptor
	if rc := rt.AdaptArray(arr, &desc); rc != 0 {
		t.Fatalf("adapt: rc=%d", rc)
	}
	if desc.Nitems != 6 || desc.ItemSize != 8 {
		t.Fatalf("adapted: nitems=%d itemsize=%d", desc.Nitems, desc.ItemSize)
	}
	if desc.Data != unsafe.Pointer(&data[0]) {
		t.Fatal("data pointer does not alias the backing buffer")
	}
	if ParentObject(&desc) != arr {
		t.Fatal("parent does not round-trip")
	}
}

func TestAdaptArrayDetachesLayout(t *testing.T) {
	rt := NewRuntime()
	arr := NewArray(make([]byte, 3*8), []int64{1, 3}, []int64{24, 8}, 8)
	var desc view.Descriptor
	if rc := rt.AdaptArray(arr, &desc); rc != 0 {
		t.Fatalf("adapt: rc=%d", rc)
	}
	other := &view.Descriptor{Shape: []int64{4, 3}, Strides: []int64{24, 8}, ItemSize: 8, Nitems: 12}
	shape, err := view.BroadcastShape([]*view.Descriptor{&desc, other})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if shape[0] != 4 || shape[1] != 3 {
		t.Fatalf("broadcast shape: %v", shape)
	}
	if desc.Strides[0] != 0 {
		t.Fatalf("broadcast axis stride not zeroed: %v", desc.Strides)
	}
	// broadcasting works on the descriptor only; the boxed array keeps
	// its own layout
	if arr.strides[0] != 24 || arr.strides[1] != 8 {
		t.Fatalf("boxed array strides mutated: %v", arr.strides)
	}
	if arr.shape[0] != 1 || arr.shape[1] != 3 {
		t.Fatalf("boxed array shape mutated: %v", arr.shape)
	}
}

func TestAdaptArrayRejectsNonArray(t *testing.T) {
	rt := NewRuntime()
	var desc view.Descriptor
	if rc := rt.AdaptArray(NewBytes([]byte{1}), &desc); rc == 0 {
		t.Fatal("bytes must not adapt as an array")
	}
	if !rt.ErrMatches(ExcTypeError) {
		t.Fatal("expected a pending TypeError")
	}
}

func TestAdaptBufferFlatDescriptor(t *testing.T) {
	rt := NewRuntime()
	o := NewBytes(make([]byte, 16))
	var buf BufferView
	if rc := rt.GetBuffer(o, &buf); rc != 0 {
		t.Fatal("GetBuffer failed")
	}
	var desc view.Descriptor
	AdaptBuffer(&buf, &desc)
	if desc.Ndim() != 1 || desc.Shape[0] != 16 || desc.Strides[0] != 1 {
		t.Fatalf("flat view: shape=%v strides=%v", desc.Shape, desc.Strides)
	}
	buf.Release()
}
