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

// Borrowed is a handle the holder must not release. The owner is a
// caller frame or a global table; borrowing never touches the
// reference count.
type Borrowed struct {
	obj *Object
}

// Borrow wraps an object as a borrowed handle.
func Borrow(o *Object) Borrowed { return Borrowed{obj: o} }

// Object returns the underlying object.
func (b Borrowed) Object() *Object { return b.obj }

// IsNil reports an empty handle.
func (b Borrowed) IsNil() bool { return b.obj == nil }

// Owned is a handle whose holder must release it exactly once.
// Release is idempotent-guarded: the second call is a no-op, so a
// cleanup running twice cannot double-release.
type Owned struct {
	obj *Object
}

// Own wraps a fresh reference (the constructor already counted it).
func Own(o *Object) Owned { return Owned{obj: o} }

// Acquire increfs a borrowed handle into an owned one.
func Acquire(b Borrowed) Owned {
	b.obj.IncRef()
	return Owned{obj: b.obj}
}

// Object returns the underlying object, nil after Release.
func (o *Owned) Object() *Object { return o.obj }

// Borrow lends the owned handle out without transferring ownership.
func (o *Owned) Borrow() Borrowed { return Borrowed{obj: o.obj} }

// IsNil reports an empty handle (failed constructor or released).
func (o *Owned) IsNil() bool { return o.obj == nil }

// Release drops the reference. Safe to call more than once; only the
// first call releases.
func (o *Owned) Release() {
	if o.obj != nil {
		o.obj.DecRef()
		o.obj = nil
	}
}

// Steal transfers the reference out of the handle, e.g. into a tuple
// slot that takes over ownership. The handle is emptied so a later
// Release does not double-free.
func (o *Owned) Steal() *Object {
	obj := o.obj
	o.obj = nil
	return obj
}
