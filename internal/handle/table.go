// Package handle maps opaque integer handles to owned values.
//
// A Handle packs a slot index and a generation. Removing a value bumps the
// slot's generation, so a handle kept after removal is rejected with ErrStale
// instead of silently reaching whatever value reuses the slot.
//
//	tbl := handle.NewTable[*engine.Engine]()
//	h := tbl.Insert(e)
//	e, err := tbl.Get(h)
//	e, err = tbl.Remove(h) // h is now stale
//
// Handle 0 is reserved and always invalid.
package handle

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalid is returned for handles that were never issued by the table.
	ErrInvalid = errors.New("invalid handle")

	// ErrStale is returned for handles whose value has been removed.
	ErrStale = errors.New("stale handle")

	// ErrClosed is returned once the table has been closed.
	ErrClosed = errors.New("handle table closed")
)

// Handle is an opaque reference to a value in a Table.
type Handle uint64

// Zero is the reserved invalid handle.
const Zero Handle = 0

func pack(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot+1))
}

func (h Handle) unpack() (slot, gen uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> 32), true
}

// String renders the handle for logs.
func (h Handle) String() string {
	slot, gen, ok := h.unpack()
	if !ok {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d.%d)", slot, gen)
}

// Dropper is implemented by values that must release resources when they
// leave the table.
type Dropper interface {
	Drop()
}

// EventType identifies a table lifecycle event.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Event is delivered to observers on insert and remove.
type Event struct {
	Handle Handle
	Type   EventType
}

// Observer receives table lifecycle events.
type Observer func(Event)

type entry[T any] struct {
	value T
	gen   uint32
	valid bool
}

// Table stores values of type T behind generation-checked handles.
// Safe for concurrent use.
type Table[T any] struct {
	mu        sync.RWMutex
	entries   []entry[T]
	freeList  []uint32
	observers []Observer
	closed    bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 16),
		freeList: make([]uint32, 0, 4),
	}
}

// Subscribe registers an observer. Observers are called without the table lock held.
func (t *Table[T]) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Insert stores value and returns a fresh handle.
func (t *Table[T]) Insert(value T) (Handle, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Zero, ErrClosed
	}

	var h Handle
	if n := len(t.freeList); n > 0 {
		slot := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		e := &t.entries[slot]
		e.value = value
		e.valid = true
		h = pack(slot, e.gen)
	} else {
		t.entries = append(t.entries, entry[T]{value: value, valid: true})
		h = pack(uint32(len(t.entries)-1), 0)
	}
	obs := t.observers
	t.mu.Unlock()

	notify(obs, Event{Handle: h, Type: EventCreated})
	return h, nil
}

// Get returns the value behind h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var zero T
	if t.closed {
		return zero, ErrClosed
	}
	e, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	return e.value, nil
}

// Remove takes the value out of the table and invalidates h.
// If the value implements Dropper, Drop is called.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	var zero T
	if t.closed {
		t.mu.Unlock()
		return zero, ErrClosed
	}
	e, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return zero, err
	}

	slot, _, _ := h.unpack()
	value := e.value
	e.value = zero
	e.valid = false
	e.gen++
	t.freeList = append(t.freeList, slot)
	obs := t.observers
	t.mu.Unlock()

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
	notify(obs, Event{Handle: h, Type: EventDropped})
	return value, nil
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - len(t.freeList)
}

// Close drops every live value and rejects further use. Closing twice is a no-op.
func (t *Table[T]) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	var zero T
	var dropped []Handle
	var values []T
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid {
			continue
		}
		dropped = append(dropped, pack(uint32(i), e.gen))
		values = append(values, e.value)
		e.value = zero
		e.valid = false
		e.gen++
	}
	t.entries = nil
	t.freeList = nil
	obs := t.observers
	t.mu.Unlock()

	for i, v := range values {
		if d, ok := any(v).(Dropper); ok {
			d.Drop()
		}
		notify(obs, Event{Handle: dropped[i], Type: EventDropped})
	}
	return nil
}

// lookup must be called with t.mu held.
func (t *Table[T]) lookup(h Handle) (*entry[T], error) {
	slot, gen, ok := h.unpack()
	if !ok || int(slot) >= len(t.entries) {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, h)
	}
	e := &t.entries[slot]
	if !e.valid || e.gen != gen {
		return nil, fmt.Errorf("%w: %s", ErrStale, h)
	}
	return e, nil
}

func notify(obs []Observer, ev Event) {
	for _, o := range obs {
		o(ev)
	}
}
