package abi

import "sync"

// Ledger issues result arrays and tracks them until they are released.
//
// The ledger holds a reference to every live array, which makes leaks
// observable through Outstanding and lets Release reject arrays it never
// issued. Safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	nextID uint64
	live   map[uint64]*Array
	bytes  int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		live: make(map[uint64]*Array),
	}
}

// Issue copies items into a new engine-owned Array.
// Calling Issue with no items yields an empty, non-nil Array.
func (l *Ledger) Issue(items ...[]byte) *Array {
	bufs := make([]Buffer, len(items))
	size := 0
	for i, item := range items {
		bufs[i] = CopyBuffer(item)
		size += len(item)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	arr := &Array{
		id:    l.nextID,
		owner: l,
		items: bufs,
		size:  size,
	}
	l.live[arr.id] = arr
	l.bytes += size
	return arr
}

// IssueStrings is Issue for string items.
func (l *Ledger) IssueStrings(items ...string) *Array {
	raw := make([][]byte, len(items))
	for i, s := range items {
		raw[i] = []byte(s)
	}
	return l.Issue(raw...)
}

// Release frees arr and every buffer it owns.
//
// Releasing the same array twice returns ErrDoubleFree and changes nothing.
func (l *Ledger) Release(arr *Array) error {
	if arr == nil {
		return ErrNilArray
	}
	if arr.owner != l {
		return ErrForeignArray
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.live[arr.id]; !ok {
		return ErrDoubleFree
	}
	size, ok := arr.markReleased()
	if !ok {
		return ErrDoubleFree
	}
	delete(l.live, arr.id)
	l.bytes -= size
	if l.bytes < 0 {
		l.bytes = 0
	}
	return nil
}

// Outstanding returns the number of live arrays and their payload bytes.
func (l *Ledger) Outstanding() (arrays int, bytes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live), l.bytes
}

// ReleaseAll releases every live array. Used on runtime shutdown.
func (l *Ledger) ReleaseAll() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, arr := range l.live {
		arr.markReleased()
		delete(l.live, id)
		n++
	}
	l.bytes = 0
	return n
}
