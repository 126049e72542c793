//go:build linux

// Package carstate implements the shared car state block: a
// fixed-layout record backed by a named shared memory object, guarded
// by a process-shared mutex and signalled by a process-shared
// condition variable. Linux's /dev/shm is the same backing store
// shm_open uses, and the lock/condvar pair is rebuilt directly on
// futexes (see futex.go) since Go has no cgo-free binding for
// PTHREAD_PROCESS_SHARED primitives.
package carstate

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// State is a car's attached shared memory block, plus bookkeeping for
// whether this process is the one responsible for unlinking it on
// close.
type State struct {
	name  string
	path  string
	fd    int
	data  []byte
	block *Block
	owner bool
}

func shmPath(carName string) string {
	return "/dev/shm/car" + carName
}

// Create makes a new named shared memory object for carName, sized
// and mapped for a Block, and initializes it to the idle state: doors
// closed, current and destination floors both at lowest, every flag
// clear. The calling process becomes the owner and is responsible for
// calling Close at shutdown to unlink the name.
func Create(carName, lowestLabel string) (*State, error) {
	path := shmPath(carName)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("carstate: create %s: %w", path, err)
	}

	if err := unix.Ftruncate(fd, blockSize); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("carstate: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("carstate: mmap %s: %w", path, err)
	}

	st := &State{
		name:  carName,
		path:  path,
		fd:    fd,
		data:  data,
		block: (*Block)(unsafe.Pointer(&data[0])),
		owner: true,
	}

	st.Lock()
	setFixedString(st.block.status[:], string(StatusClosed))
	setFixedString(st.block.currentFloor[:], lowestLabel)
	setFixedString(st.block.destinationFloor[:], lowestLabel)
	st.block.openButton = 0
	st.block.closeButton = 0
	st.block.doorObstruction = 0
	st.block.overload = 0
	st.block.emergencyStop = 0
	st.block.individualService = 0
	st.block.emergencyMode = 0
	st.block.safetySystem = 0
	st.Broadcast()
	st.Unlock()

	return st, nil
}

// Open attaches an existing named shared memory object without
// creating or initializing it. The controller, safety monitor and
// internal panel all attach this way.
func Open(carName string) (*State, error) {
	path := shmPath(carName)

	fd, err := unix.Open(path, unix.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("carstate: open %s: %w", path, err)
	}

	data, err := unix.Mmap(fd, 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("carstate: mmap %s: %w", path, err)
	}

	return &State{
		name:  carName,
		path:  path,
		fd:    fd,
		data:  data,
		block: (*Block)(unsafe.Pointer(&data[0])),
		owner: false,
	}, nil
}

// Close unmaps the block. The owner (the car process that created it)
// also unlinks the shared memory name; attachers only unmap.
func (s *State) Close() error {
	if err := unix.Munmap(s.data); err != nil {
		return fmt.Errorf("carstate: munmap %s: %w", s.path, err)
	}
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("carstate: close %s: %w", s.path, err)
	}
	if s.owner {
		if err := unix.Unlink(s.path); err != nil {
			return fmt.Errorf("carstate: unlink %s: %w", s.path, err)
		}
	}
	return nil
}

// Lock acquires the block's process-shared mutex.
func (s *State) Lock() { lock(&s.block.lockWord) }

// Unlock releases the block's process-shared mutex.
func (s *State) Unlock() { unlock(&s.block.lockWord) }

// Broadcast wakes every waiter parked in Wait. Must be called while
// holding the lock.
func (s *State) Broadcast() { broadcast(&s.block.seqWord) }

// Wait blocks until the next Broadcast, or until timeout elapses when
// timeout is non-negative. The caller must hold the lock; Wait
// releases it for the duration of the wait and reacquires it before
// returning, the same contract as pthread_cond_wait/timedwait.
func (s *State) Wait(timeout time.Duration) {
	observed := s.block.seqWord
	s.Unlock()
	waitSeq(&s.block.seqWord, observed, timeout)
	s.Lock()
}
