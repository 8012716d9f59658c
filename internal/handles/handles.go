// Package handles maps opaque integer tokens to Go values so that the
// values can be referenced from C without handing Go pointers across the
// boundary.
package handles

import (
	"errors"
	"sync"
)

// ErrStale is returned for tokens that were never issued or whose slot has
// been released.
var ErrStale = errors.New("handles: stale or unknown token")

// Token identifies one stored value. The low 32 bits hold the slot index
// plus one and the high 32 bits the slot generation, so zero is never a
// valid token and a reused slot never matches an old token.
type Token uint64

func makeToken(index int, gen uint32) Token {
	return Token(uint64(gen)<<32 | uint64(index+1))
}

func (t Token) index() int { return int(uint32(t)) - 1 }
func (t Token) gen() uint32 { return uint32(t >> 32) }

type slot[T any] struct {
	value T
	gen   uint32
	used  bool
}

// Table is an arena of slots addressed by Token. It is safe for concurrent
// use.
type Table[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []int
	live  int
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{}
}

// Put stores v and returns its token.
func (t *Table[T]) Put(v T) Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		idx = len(t.slots) - 1
	}

	s := &t.slots[idx]
	s.gen++
	s.value = v
	s.used = true
	t.live++
	return makeToken(idx, s.gen)
}

// Get returns the value stored under tok.
func (t *Table[T]) Get(tok Token) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.lookup(tok)
	if !ok {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Delete removes the value stored under tok and returns it. Deleting a
// token twice returns ErrStale.
func (t *Table[T]) Delete(tok Token) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, ok := t.lookup(tok)
	if !ok {
		return zero, ErrStale
	}
	v := s.value
	s.value = zero
	s.used = false
	t.free = append(t.free, tok.index())
	t.live--
	return v, nil
}

// Len returns the number of live values.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

func (t *Table[T]) lookup(tok Token) (*slot[T], bool) {
	idx := tok.index()
	if idx < 0 || idx >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[idx]
	if !s.used || s.gen != tok.gen() {
		return nil, false
	}
	return s, true
}
