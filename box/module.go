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
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
)

// Blob is an embedded constant: a stable byte slice plus its 4-byte
// length, the unit of the serialized-object format.
type Blob struct {
	Data []byte
}

// Len is the blob payload length as stored in the artifact.
func (b *Blob) Len() uint32 { return uint32(len(b.Data)) }

type constEntry struct {
	name string
	data []byte
}

// Module is the per-compilation-unit context: deduplicated symbol
// bindings, the constant pool, and the identity-keyed serialization
// cache. A module guarantees at most one serialized encoding per
// distinct object identity.
//
// Mutable and single-writer: concurrent compilation threads need
// external locking around a shared module.
type Module struct {
	ID uuid.UUID
	rt *Runtime

	funcs    map[string]any
	symIndex *btree.BTreeG[string]

	consts     map[string]*constEntry // keyed by content
	constIndex *btree.BTreeG[*constEntry]
	constSeq   int
	poolBytes  int

	serialized map[*Object]*Blob
	objTable   []*Object
	objIndex   map[*Object]uint32
}

var moduleSeq atomic.Uint64

// newModuleID issues a process-unique v4-shaped module identifier.
// Module IDs only need to tell compilation units apart in logs and
// artifacts, so a counter stirred with wall-clock bits suffices; no
// system entropy is consumed.
func newModuleID() uuid.UUID {
	seq := moduleSeq.Add(1)
	now := uint64(time.Now().UnixNano())
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[0:8], now)
	binary.BigEndian.PutUint64(id[8:16], (seq+now)*0x9e3779b97f4a7c15)
	id[6] = (id[6] & 0x0f) | 0x40 // version 4
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	return id
}

// NewModule creates a compilation-unit context bound to rt.
func NewModule(rt *Runtime) *Module {
	return &Module{
		ID:         newModuleID(),
		rt:         rt,
		funcs:      make(map[string]any),
		symIndex:   btree.NewG[string](8, func(a, b string) bool { return a < b }),
		consts:     make(map[string]*constEntry),
		constIndex: btree.NewG[*constEntry](8, func(a, b *constEntry) bool { return a.name < b.name }),
		serialized: make(map[*Object]*Blob),
		objIndex:   make(map[*Object]uint32),
	}
}

// Runtime returns the runtime this module compiles against.
func (m *Module) Runtime() *Runtime { return m.rt }

// Func binds a native-runtime operation by symbol name. The same name
// requested twice returns the same callable. Unknown symbols are a
// compile-time programming error.
func (m *Module) Func(name string) any {
	if fn, ok := m.funcs[name]; ok {
		return fn
	}
	fn, ok := m.rt.Symbol(name)
	if !ok {
		Fatal("undefined runtime symbol: " + name)
		return nil
	}
	m.funcs[name] = fn
	m.symIndex.ReplaceOrInsert(name)
	return fn
}

// CObject fetches a runtime-provided singleton by its external symbol
// name (the canonical none value, standard error types). The returned
// handle is borrowed from the runtime's global table.
func (m *Module) CObject(name string) Borrowed {
	o, ok := m.rt.CValue(name)
	if !ok {
		Fatal("undefined runtime value: " + name)
		return Borrowed{}
	}
	return Borrow(o)
}

// InsertConst embeds a byte string into the compiled artifact and
// returns its stable blob. Byte-identical content is deduplicated.
func (m *Module) InsertConst(data []byte) *Blob {
	if e, ok := m.consts[string(data)]; ok {
		return &Blob{Data: e.data}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	e := &constEntry{name: fmt.Sprintf(".const.data.%d", m.constSeq), data: cp}
	m.constSeq++
	m.consts[string(cp)] = e
	m.constIndex.ReplaceOrInsert(e)
	m.poolBytes += len(cp)
	return &Blob{Data: e.data}
}

// Symbols lists the bound symbol names in deterministic order.
func (m *Module) Symbols() []string {
	out := make([]string, 0, m.symIndex.Len())
	m.symIndex.Ascend(func(name string) bool {
		out = append(out, name)
		return true
	})
	return out
}

// Consts walks the constant pool in deterministic name order.
func (m *Module) Consts(fn func(name string, data []byte) bool) {
	m.constIndex.Ascend(func(e *constEntry) bool {
		return fn(e.name, e.data)
	})
}

// Stats summarizes the module for diagnostics.
type ModuleStats struct {
	Symbols    int
	Consts     int
	PoolBytes  int
	Serialized int
	ObjTable   int
}

func (m *Module) Stats() ModuleStats {
	return ModuleStats{
		Symbols:    len(m.funcs),
		Consts:     len(m.consts),
		PoolBytes:  m.poolBytes,
		Serialized: len(m.serialized),
		ObjTable:   len(m.objTable),
	}
}

// registerObject pins a boxed constant in the module's identity table
// and returns its index; the module holds a reference until discarded.
func (m *Module) registerObject(o *Object) uint32 {
	if idx, ok := m.objIndex[o]; ok {
		return idx
	}
	idx := uint32(len(m.objTable))
	o.IncRef()
	m.objTable = append(m.objTable, o)
	m.objIndex[o] = idx
	return idx
}
