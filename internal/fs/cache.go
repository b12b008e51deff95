package fs

import (
	"container/list"
	"sync"

	"eduos/internal/klock"
)

// Entry is one cached disk block. Its own lock guards Data/dirty, so
// work on one block's bytes and eviction write-back never hold the
// cache's outer lock. A miss, however, reads the block from disk while
// holding the outer lock, so lookups of other blocks wait for that read.
type Entry struct {
	mu    sync.Mutex
	Bid   uint32
	Data  Block
	dirty bool
}

// Lock acquires the entry's own lock and returns an unlock function,
// matching the RAII-guard idiom used throughout this repository.
func (e *Entry) Lock() func() {
	e.mu.Lock()
	return e.mu.Unlock
}

// MarkDirty records that Data has been mutated by the caller (who must
// already hold the entry's lock via Lock).
func (e *Entry) MarkDirty() {
	e.dirty = true
}

// BlockCache is an LRU, write-back cache of disk blocks keyed by block
// id: container/list tracks recency, and locking is two-level — the
// cache's own lock covers the map and LRU order, each entry's lock
// covers its bytes. The map lock is always taken before an entry lock,
// never the reverse.
type BlockCache struct {
	mu       sync.Mutex
	disk     DiskManager
	capacity int
	index    map[uint32]*list.Element
	lru      *list.List // Front = most recently used
}

// NewBlockCache creates a cache of the given capacity (in blocks) over
// disk.
func NewBlockCache(disk DiskManager, capacity int) *BlockCache {
	if capacity < 1 {
		capacity = 1
	}
	return &BlockCache{
		disk:     disk,
		capacity: capacity,
		index:    make(map[uint32]*list.Element),
		lru:      list.New(),
	}
}

// waiterDisk is implemented by disks (NonBlockingDisk) that can park a
// task while a read completes; the cache uses it on a miss whenever the
// caller supplied a waiter.
type waiterDisk interface {
	ReadFor(w klock.Waiter, bid uint32, buf *Block) error
}

// Get returns the cached entry for bid, reading it from disk on a miss
// and evicting (write-back) the coldest entry if the cache is now over
// capacity.
func (c *BlockCache) Get(bid uint32) *Entry {
	return c.GetFor(nil, bid)
}

// GetFor is Get on behalf of task w: a miss that has to touch the disk
// suspends w instead of blocking inline when the disk supports it. A
// nil w (or a disk without non-blocking completion) reads inline.
func (c *BlockCache) GetFor(w klock.Waiter, bid uint32) *Entry {
	c.mu.Lock()
	if el, ok := c.index[bid]; ok {
		c.lru.MoveToFront(el)
		e := el.Value.(*Entry)
		c.mu.Unlock()
		return e
	}

	e := &Entry{Bid: bid}
	var err error
	if wd, ok := c.disk.(waiterDisk); ok && w != nil {
		err = wd.ReadFor(w, bid, &e.Data)
	} else {
		err = c.disk.Read(bid, &e.Data)
	}
	if err != nil {
		// A disk short read/write is a fatal I/O error.
		panic(err)
	}
	el := c.lru.PushFront(e)
	c.index[bid] = el

	var evicted *Entry
	if c.lru.Len() > c.capacity {
		back := c.lru.Back()
		evicted = back.Value.(*Entry)
		c.lru.Remove(back)
		delete(c.index, evicted.Bid)
	}
	c.mu.Unlock()

	if evicted != nil {
		c.writeBack(evicted)
	}
	return e
}

func (c *BlockCache) writeBack(e *Entry) {
	unlock := e.Lock()
	defer unlock()
	if e.dirty {
		if err := c.disk.Write(e.Bid, &e.Data); err != nil {
			panic(err)
		}
		e.dirty = false
	}
}

// Sync writes back every dirty entry currently resident, without
// evicting any of them.
func (c *BlockCache) Sync() {
	c.mu.Lock()
	entries := make([]*Entry, 0, len(c.index))
	for _, el := range c.index {
		entries = append(entries, el.Value.(*Entry))
	}
	c.mu.Unlock()

	for _, e := range entries {
		c.writeBack(e)
	}
}

// Clear flushes dirty entries and drops the entire cache, the only
// point besides process termination at which durability is guaranteed.
func (c *BlockCache) Clear() {
	c.Sync()
	c.mu.Lock()
	c.index = make(map[uint32]*list.Element)
	c.lru.Init()
	c.mu.Unlock()
}

// Len reports the number of blocks currently resident, mainly for tests.
func (c *BlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
