package klock

import (
	"sync/atomic"
)

// McsNode is a waiter's queue node for MCSLock, allocated by the caller
// (typically as a local variable) and passed by pointer to Lock/Unlock.
// Each waiter spins only on its own node's locked flag, never on shared
// state, giving strict FIFO handoff with no cache-line ping-pong.
type McsNode struct {
	next   atomic.Pointer[McsNode]
	locked atomic.Bool
}

// MCSLock is a FIFO queue lock: contenders queue up by swapping
// themselves into the tail pointer, then spin on their own node.
type MCSLock struct {
	tail atomic.Pointer[McsNode]
}

// Lock enqueues node at the tail and spins until it is at the head.
func (m *MCSLock) Lock(node *McsNode, y Yielder) {
	if y == nil {
		y = schedGosched{}
	}
	node.next.Store(nil)
	node.locked.Store(true)

	prev := m.tail.Swap(node)
	if prev == nil {
		// Queue was empty: we're immediately the head.
		node.locked.Store(false)
		return
	}
	prev.next.Store(node)
	for node.locked.Load() {
		y.Yield()
	}
}

// Unlock hands the lock off to the next queued node, if any.
func (m *MCSLock) Unlock(node *McsNode, y Yielder) {
	if y == nil {
		y = schedGosched{}
	}
	if node.next.Load() == nil {
		if m.tail.CompareAndSwap(node, nil) {
			// No successor had queued yet; we were the only holder.
			return
		}
		// A successor is mid-enqueue (tail already changed) but hasn't
		// published node.next yet — wait for it to appear, bounded by
		// that one in-flight Lock call storing itself into node.next.
		for node.next.Load() == nil {
			y.Yield()
		}
	}
	node.next.Load().locked.Store(false)
}
