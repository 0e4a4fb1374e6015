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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Blob container bytes: raw, lz4 block (uvarint raw size + block), or
// xz stream. The encoder emits raw or lz4; xz is accepted for blobs
// produced by offline tooling. There is no versioning beyond this
// paired encode/decode agreement.
const (
	blobRaw = 'R'
	blobLZ4 = 'L'
	blobXZ  = 'X'
)

// marker for objects encoded by module-table identity instead of by
// value (callables, opaque payloads, generators)
const tagByIdentity = 0xFF

// Serialize embeds obj as a constant blob in the artifact, at most
// once per object identity within this module. Plain data kinds are
// encoded by value; callables and opaque payloads are pinned in the
// module's object table and encoded by index — they only decode inside
// the same module, which is all the compiled artifact needs.
func (m *Module) Serialize(obj *Object) *Blob {
	if b, ok := m.serialized[obj]; ok {
		return b
	}
	var payload bytes.Buffer
	m.encodeObject(&payload, obj)

	data := payload.Bytes()
	wrapped := make([]byte, 0, len(data)+1)
	if len(data) >= Settings.CompressThreshold {
		bound := lz4.CompressBlockBound(len(data))
		dst := make([]byte, bound)
		var c lz4.Compressor
		n, err := c.CompressBlock(data, dst)
		if err == nil && n > 0 && n < len(data) {
			wrapped = append(wrapped, blobLZ4)
			wrapped = binary.AppendUvarint(wrapped, uint64(len(data)))
			wrapped = append(wrapped, dst[:n]...)
		}
	}
	if len(wrapped) == 0 {
		wrapped = append(wrapped, blobRaw)
		wrapped = append(wrapped, data...)
	}

	blob := m.InsertConst(wrapped)
	m.serialized[obj] = blob
	return blob
}

// Unserialize decodes a blob back into a new owned boxed handle.
func (m *Module) Unserialize(blob *Blob) (Owned, error) {
	if blob.Len() == 0 {
		return Owned{}, fmt.Errorf("unserialize: empty blob")
	}
	body := blob.Data[1:]
	switch blob.Data[0] {
	case blobRaw:
	case blobLZ4:
		rawLen, n := binary.Uvarint(body)
		if n <= 0 {
			return Owned{}, fmt.Errorf("unserialize: bad lz4 header")
		}
		dst := make([]byte, rawLen)
		if _, err := lz4.UncompressBlock(body[n:], dst); err != nil {
			return Owned{}, fmt.Errorf("unserialize: lz4: %w", err)
		}
		body = dst
	case blobXZ:
		r, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return Owned{}, fmt.Errorf("unserialize: xz: %w", err)
		}
		body, err = io.ReadAll(r)
		if err != nil {
			return Owned{}, fmt.Errorf("unserialize: xz: %w", err)
		}
	default:
		return Owned{}, fmt.Errorf("unserialize: unknown container %q", blob.Data[0])
	}

	rd := bytes.NewReader(body)
	obj, err := m.decodeObject(rd)
	if err != nil {
		return Owned{}, err
	}
	return Own(obj), nil
}

func (m *Module) encodeObject(w *bytes.Buffer, o *Object) {
	switch o.tag {
	case TagFunc, TagOpaque, TagGenerator:
		w.WriteByte(tagByIdentity)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], m.registerObject(o))
		w.Write(idx[:])
		return
	}

	w.WriteByte(byte(o.tag))
	switch o.tag {
	case TagNone:
	case TagBool, TagInt:
		writeU64(w, uint64(o.i64))
	case TagFloat:
		writeU64(w, math.Float64bits(o.f64))
	case TagComplex:
		writeU64(w, math.Float64bits(real(o.c128)))
		writeU64(w, math.Float64bits(imag(o.c128)))
	case TagDatetime, TagTimedelta:
		writeU64(w, uint64(o.i64))
		writeU64(w, uint64(o.unit))
	case TagString, TagExcType:
		writeBytes(w, []byte(o.str))
	case TagBytes:
		writeBytes(w, o.data)
	case TagTuple:
		writeUvarint(w, uint64(len(o.items)))
		for _, it := range o.items {
			m.encodeObject(w, it)
		}
	case TagRecord:
		writeBytes(w, o.data)
		m.encodeObject(w, o.dtype)
	case TagArray:
		writeU64(w, uint64(o.itemsize))
		writeUvarint(w, uint64(len(o.shape)))
		for i := range o.shape {
			writeU64(w, uint64(o.shape[i]))
			writeU64(w, uint64(o.strides[i]))
		}
		writeBytes(w, o.data)
	default:
		Fatal("serialize: unhandled tag " + o.tag.String())
	}
}

func (m *Module) decodeObject(r *bytes.Reader) (*Object, error) {
	tb, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("unserialize: truncated")
	}
	if tb == tagByIdentity {
		var idx [4]byte
		if _, err := io.ReadFull(r, idx[:]); err != nil {
			return nil, fmt.Errorf("unserialize: truncated identity")
		}
		i := binary.LittleEndian.Uint32(idx[:])
		if int(i) >= len(m.objTable) {
			return nil, fmt.Errorf("unserialize: identity %d not in this module", i)
		}
		o := m.objTable[i]
		o.IncRef()
		return o, nil
	}

	switch Tag(tb) {
	case TagNone:
		return None, nil
	case TagBool:
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		return NewBool(v != 0), nil
	case TagInt:
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		return NewInt(int64(v)), nil
	case TagFloat:
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		return NewFloat(math.Float64frombits(v)), nil
	case TagComplex:
		re, err := readU64(r)
		if err != nil {
			return nil, err
		}
		im, err := readU64(r)
		if err != nil {
			return nil, err
		}
		return NewComplex(complex(math.Float64frombits(re), math.Float64frombits(im))), nil
	case TagDatetime, TagTimedelta:
		v, err := readU64(r)
		if err != nil {
			return nil, err
		}
		u, err := readU64(r)
		if err != nil {
			return nil, err
		}
		if Tag(tb) == TagDatetime {
			return NewDatetime(int64(v), int32(u)), nil
		}
		return NewTimedelta(int64(v), int32(u)), nil
	case TagString:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return NewString(string(b)), nil
	case TagExcType:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		if o, ok := m.rt.CValue("Exc" + string(b)); ok {
			return o, nil
		}
		return nil, fmt.Errorf("unserialize: unknown error type %q", b)
	case TagBytes:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return NewBytes(b), nil
	case TagTuple:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		t := NewTuple(int(n))
		for i := 0; i < int(n); i++ {
			it, err := m.decodeObject(r)
			if err != nil {
				t.DecRef()
				return nil, err
			}
			t.SetItem(i, it)
		}
		return t, nil
	case TagRecord:
		data, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		dtype, err := m.decodeObject(r)
		if err != nil {
			return nil, err
		}
		return NewRecord(data, dtype), nil
	case TagArray:
		itemsize, err := readU64(r)
		if err != nil {
			return nil, err
		}
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		shape := make([]int64, n)
		strides := make([]int64, n)
		for i := 0; i < int(n); i++ {
			s, err := readU64(r)
			if err != nil {
				return nil, err
			}
			st, err := readU64(r)
			if err != nil {
				return nil, err
			}
			shape[i] = int64(s)
			strides[i] = int64(st)
		}
		data, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return NewArray(data, shape, strides, int64(itemsize)), nil
	}
	return nil, fmt.Errorf("unserialize: unknown tag %d", tb)
}

func writeU64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("unserialize: truncated")
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], v)
	w.Write(b[:n])
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUvarint(w, uint64(len(b)))
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("unserialize: truncated length")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("unserialize: truncated payload")
	}
	return b, nil
}
