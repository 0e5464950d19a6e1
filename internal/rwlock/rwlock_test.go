package rwlock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_ReentrantRead(t *testing.T) {
	l := New()
	r1 := l.RLock()

	// A queued writer must not block a nested read.
	acquired := make(chan struct{})
	go func() {
		release := l.Lock()
		close(acquired)
		release()
	}()
	time.Sleep(10 * time.Millisecond)

	r2 := l.RLock()
	read, write := l.Held()
	assert.True(t, read)
	assert.False(t, write)
	r2()
	r1()

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never acquired the lock")
	}
}

func TestLock_WriterMayRead(t *testing.T) {
	l := New()
	w := l.Lock()
	w2 := l.Lock()
	r := l.RLock()

	read, write := l.Held()
	assert.True(t, read)
	assert.True(t, write)

	w2()
	w()
	// Still held through the nested read.
	_, write = l.Held()
	assert.False(t, write)
	r()

	read, write = l.Held()
	assert.False(t, read)
	assert.False(t, write)

	// The underlying lock is free again.
	done := make(chan struct{})
	go func() {
		l.Lock()()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lock leaked")
	}
}

func TestLock_UpgradePanics(t *testing.T) {
	l := New()
	release := l.RLock()
	defer release()
	assert.Panics(t, func() { l.Lock() })
}

func TestLock_ReleaseOnce(t *testing.T) {
	l := New()
	release := l.RLock()
	release()
	release()

	w := l.Lock()
	w()
}

func TestLock_ReleaseFromOtherGoroutine(t *testing.T) {
	l := New()
	release := l.RLock()

	done := make(chan struct{})
	go func() {
		release()
		close(done)
	}()
	<-done

	w := l.Lock()
	w()
}

func TestLock_NestedReadRacingForeignRelease(t *testing.T) {
	l := New()
	for i := 0; i < 500; i++ {
		outer := l.RLock()
		released := make(chan struct{})
		go func() {
			outer()
			close(released)
		}()

		inner := l.RLock()
		<-released
		// inner must still exclude writers, whichever side won the race.
		require.False(t, l.rw.TryLock(), "iteration %d", i)
		read, _ := l.Held()
		require.True(t, read)
		inner()

		require.True(t, l.rw.TryLock())
		l.rw.Unlock()
		read, _ = l.Held()
		require.False(t, read)
	}
}

func TestLock_WriterExcludesReaders(t *testing.T) {
	l := New()
	var (
		wg      sync.WaitGroup
		writing atomic.Bool
		bad     atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				release := l.RLock()
				if writing.Load() {
					bad.Add(1)
				}
				release()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				release := l.Lock()
				writing.Store(true)
				writing.Store(false)
				release()
			}
		}()
	}
	wg.Wait()
	require.Zero(t, bad.Load())
}
