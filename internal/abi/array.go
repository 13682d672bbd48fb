package abi

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrReleased is returned when an Array is read after it was released.
	ErrReleased = errors.New("abi: result array already released")

	// ErrDoubleFree is returned when an Array is released a second time.
	ErrDoubleFree = errors.New("abi: result array released twice")

	// ErrForeignArray is returned when an Array is released through a
	// Ledger that did not issue it.
	ErrForeignArray = errors.New("abi: result array not issued by this ledger")

	// ErrNilArray is returned when a nil Array is released.
	ErrNilArray = errors.New("abi: nil result array")

	// ErrIndexOutOfRange is returned by At for an index outside [0, Len).
	ErrIndexOutOfRange = errors.New("abi: index out of range")
)

// Array is a counted, ordered sequence of engine-owned Buffers.
//
// Arrays are created only by Ledger.Issue. An empty Array has Len() == 0 and
// is never nil.
type Array struct {
	mu       sync.RWMutex
	id       uint64
	owner    *Ledger
	items    []Buffer
	size     int
	released bool
}

// ID returns the ledger-assigned identifier of the array.
func (a *Array) ID() uint64 {
	return a.id
}

// Len returns the number of items, or 0 once the array is released.
func (a *Array) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return 0
	}
	return len(a.items)
}

// Released reports whether the array has been released.
func (a *Array) Released() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.released
}

// At returns the i-th item.
func (a *Array) At(i int) (Buffer, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return Buffer{}, ErrReleased
	}
	if i < 0 || i >= len(a.items) {
		return Buffer{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(a.items))
	}
	return a.items[i], nil
}

// Strings copies every item out as a string.
func (a *Array) Strings() ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return nil, ErrReleased
	}
	out := make([]string, len(a.items))
	for i, item := range a.items {
		out[i] = item.String()
	}
	return out, nil
}

// Size returns the total number of payload bytes held by the array.
func (a *Array) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return 0
	}
	return a.size
}

// markReleased flips the array to released and drops its storage.
// Returns false if it was already released.
func (a *Array) markReleased() (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.released {
		return 0, false
	}
	size := a.size
	a.released = true
	a.items = nil
	a.size = 0
	return size, true
}
