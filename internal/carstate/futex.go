//go:build linux

package carstate

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Go has no cgo-free binding for pthread_mutexattr_setpshared, so the
// cross-process lock is built the way glibc itself builds
// pthread_mutex_t over a futex word in a shared mapping, and the
// condition variable is a sequence counter bumped on every broadcast
// with waiters parked on FUTEX_WAIT against the observed sequence
// value.

const (
	mutexUnlocked  = 0
	mutexLocked    = 1
	mutexContended = 2
)

func futexAddr(word *uint32) *int32 {
	return (*int32)(unsafe.Pointer(word))
}

// lock acquires the process-shared mutex backed by word.
func lock(word *uint32) {
	if atomic.CompareAndSwapUint32(word, mutexUnlocked, mutexLocked) {
		return
	}
	for {
		if atomic.SwapUint32(word, mutexContended) == mutexUnlocked {
			return
		}
		_, _ = unix.Futex(futexAddr(word), unix.FUTEX_WAIT, mutexContended, nil, nil, 0)
	}
}

// unlock releases the mutex backed by word, waking one waiter if any
// contended while held.
func unlock(word *uint32) {
	if atomic.SwapUint32(word, mutexUnlocked) == mutexContended {
		_, _ = unix.Futex(futexAddr(word), unix.FUTEX_WAKE, 1, nil, nil, 0)
	}
}

// broadcast bumps the condition variable's sequence number and wakes
// every waiter parked on the previous value, the futex analogue of
// pthread_cond_broadcast.
func broadcast(seq *uint32) {
	atomic.AddUint32(seq, 1)
	_, _ = unix.Futex(futexAddr(seq), unix.FUTEX_WAKE, int32max, nil, nil, 0)
}

const int32max = 1<<31 - 1

// waitSeq blocks until seq changes from observed, or until timeout
// elapses when timeout is non-negative. The caller must not hold the
// mutex the sequence number is paired with while calling this.
func waitSeq(seq *uint32, observed uint32, timeout time.Duration) {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}
	_, _ = unix.Futex(futexAddr(seq), unix.FUTEX_WAIT, int32(observed), ts, nil, 0)
}
