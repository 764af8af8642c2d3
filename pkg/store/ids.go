package store

import "sync/atomic"

// IDAllocator issues positive, strictly increasing identifiers starting at 1.
// Issued values are never handed out again for the lifetime of the allocator.
type IDAllocator struct {
	last atomic.Int64
}

// NewIDAllocator returns an allocator whose first Next call yields 1.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

// Next returns the next unused identifier.
func (a *IDAllocator) Next() int {
	return int(a.last.Add(1))
}

// Last returns the most recently issued identifier, or 0 if none.
func (a *IDAllocator) Last() int {
	return int(a.last.Load())
}

// Observe moves the allocator past id so that a later Next never returns it.
// Lower values are ignored.
func (a *IDAllocator) Observe(id int) {
	for {
		cur := a.last.Load()
		if int64(id) <= cur {
			return
		}
		if a.last.CompareAndSwap(cur, int64(id)) {
			return
		}
	}
}
