// Package rwlock provides the reentrant multi-reader/single-writer lock that
// guards a container's structure.
//
// A goroutine may re-acquire a mode it already holds, and a writer may also
// take the read mode, without touching the underlying sync.RWMutex. This
// keeps nested calls from deadlocking behind a queued writer. Upgrading
// from read to write would deadlock and panics instead.
package rwlock

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"github.com/puzpuzpuz/xsync/v3"
)

type holder struct {
	mu     sync.Mutex
	reads  int
	writes int
	// retired is set once the last release dropped the underlying lock.
	retired bool
	// ownsRead is set when this holder acquired the underlying read lock.
	ownsRead bool
}

// enter counts one more acquisition on a live holder. It reports false if
// the holder was retired by a release on another goroutine.
func (h *holder) enter(write bool) (ok bool, upgrade bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return false, false
	}
	if write {
		if h.writes == 0 {
			return true, true
		}
		h.writes++
		return true, false
	}
	h.reads++
	return true, false
}

// leave drops one acquisition and reports whether it was the last.
func (h *holder) leave(write bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if write {
		h.writes--
	} else {
		h.reads--
	}
	if h.reads > 0 || h.writes > 0 {
		return false
	}
	h.retired = true
	return true
}

// Lock is a reentrant reader/writer lock keyed by goroutine identity.
type Lock struct {
	rw      sync.RWMutex
	holders *xsync.MapOf[int64, *holder]
}

// New creates an unlocked Lock.
func New() *Lock {
	return &Lock{holders: xsync.NewMapOf[int64, *holder]()}
}

// RLock acquires the lock in read mode and returns its release function.
//
// The release function may be called from any goroutine, exactly once;
// later calls are no-ops. A release that drops the last acquisition
// retires the holder, so a concurrent nested RLock on the acquiring
// goroutine takes the underlying lock afresh.
func (l *Lock) RLock() (release func()) {
	gid := goid.Get()
	if h, ok := l.holders.Load(gid); ok {
		if live, _ := h.enter(false); live {
			return once(func() { l.release(gid, h, false) })
		}
	}
	l.rw.RLock()
	h := &holder{ownsRead: true, reads: 1}
	l.holders.Store(gid, h)
	return once(func() { l.release(gid, h, false) })
}

// Lock acquires the lock in write mode and returns its release function.
// It panics if the calling goroutine holds only the read mode.
func (l *Lock) Lock() (release func()) {
	gid := goid.Get()
	if h, ok := l.holders.Load(gid); ok {
		live, upgrade := h.enter(true)
		if upgrade {
			panic("rwlock: read to write upgrade")
		}
		if live {
			return once(func() { l.release(gid, h, true) })
		}
	}
	l.rw.Lock()
	h := &holder{writes: 1}
	l.holders.Store(gid, h)
	return once(func() { l.release(gid, h, true) })
}

// Held reports the modes held by the calling goroutine.
func (l *Lock) Held() (read, write bool) {
	h, ok := l.holders.Load(goid.Get())
	if !ok {
		return false, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.retired {
		return false, false
	}
	return h.reads > 0, h.writes > 0
}

func (l *Lock) release(gid int64, h *holder, write bool) {
	if !h.leave(write) {
		return
	}
	// A fresh holder may already sit under gid; only drop our own.
	l.holders.Compute(gid, func(cur *holder, loaded bool) (*holder, bool) {
		return cur, !loaded || cur == h
	})
	if h.ownsRead {
		l.rw.RUnlock()
	} else {
		l.rw.Unlock()
	}
}

func once(f func()) func() {
	var done atomic.Bool
	return func() {
		if done.CompareAndSwap(false, true) {
			f()
		}
	}
}
