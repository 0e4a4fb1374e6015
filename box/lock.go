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

import "sync"

// RuntimeLock is the boxed runtime's mutual-exclusion token. It must
// be held during any operation touching boxed state (refcounts,
// attribute access, error state) and may be suspended around
// long-running native-only work such as the slicing hot path.
//
// Scoped guards replace pairing-by-convention: construction acquires,
// the guard's release method releases, and misuse (releasing twice,
// resuming twice) is a fatal usage error, not a silent corruption.
type RuntimeLock struct {
	mu    sync.Mutex
	depth int32
}

// LockGuard is one acquisition of the runtime lock.
type LockGuard struct {
	l    *RuntimeLock
	done bool
}

// SuspendGuard is one release-for-native-work window; Resume restores.
type SuspendGuard struct {
	l     *RuntimeLock
	depth int32
	done  bool
}

// Acquire takes the lock and returns the guard that must release it.
// The lock is not reentrant: boxed-state access is single-threaded, so
// a second Acquire while the lock is held is a usage error and aborts
// instead of deadlocking silently. Release the guard or open a Suspend
// window before acquiring again; depth above 1 only ever comes from
// Suspend's save and restore.
func (l *RuntimeLock) Acquire() *LockGuard {
	if !l.mu.TryLock() {
		Fatal("runtime lock acquired while already held")
		return &LockGuard{l: l, done: true}
	}
	l.depth++
	return &LockGuard{l: l}
}

// Release drops the acquisition. Releasing the same guard twice is an
// implementation bug and aborts.
func (g *LockGuard) Release() {
	if g.done {
		Fatal("runtime lock guard released twice")
		return
	}
	g.done = true
	g.l.depth--
	if g.l.depth < 0 {
		Fatal("runtime lock released more often than acquired")
	}
	g.l.mu.Unlock()
}

// Suspend releases the lock around native-only work. The caller must
// currently hold it; the full nesting depth is saved and restored so
// suspend windows nest correctly.
func (l *RuntimeLock) Suspend() *SuspendGuard {
	if l.depth <= 0 {
		Fatal("runtime lock suspended while not held")
		return &SuspendGuard{l: l, done: true}
	}
	depth := l.depth
	l.depth = 0
	l.mu.Unlock()
	return &SuspendGuard{l: l, depth: depth}
}

// Resume reacquires after Suspend. Resuming twice aborts.
func (s *SuspendGuard) Resume() {
	if s.done {
		Fatal("runtime lock resumed twice")
		return
	}
	s.done = true
	s.l.mu.Lock()
	s.l.depth = s.depth
}
