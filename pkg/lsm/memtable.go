package lsm

import (
	"strings"
	"sync"

	"github.com/huandu/skiplist"
)

// memTable is the mutable in-memory buffer of recent writes. It keeps keys
// in ascending order via a skip list and tracks byteSize/count incrementally
// so callers never have to recompute them.
//
// The spec's state machine (accepting-writes vs. frozen-for-flush) collapses
// to a single mutable struct here: the orchestrator is the sole writer and
// guarantees no mutation occurs between snapshotting entries() and clear(),
// so no separate immutable view is required.
type memTable struct {
	mu       sync.RWMutex
	list     *skiplist.SkipList
	byteSize int
	count    int
}

func newComparator() skiplist.Comparable {
	return skiplist.GreaterThanFunc(func(a, b interface{}) int {
		return strings.Compare(a.(string), b.(string))
	})
}

func newMemTable() *memTable {
	return &memTable{list: skiplist.New(newComparator())}
}

// put inserts or updates key with value, adjusting byteSize by the delta of
// the new minus old value byte lengths.
func (m *memTable) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem := m.list.Find(key); elem != nil && elem.Key().(string) == key {
		old := elem.Value.(string)
		elem.Value = value
		m.byteSize += len(value) - len(old)
		return
	}
	m.list.Set(key, value)
	m.byteSize += len(key) + len(value)
	m.count++
}

// delete is equivalent to put(key, tombstone); the tombstone value is
// supplied by the caller (the orchestrator knows the configured sentinel).
func (m *memTable) delete(key, tombstone string) {
	m.put(key, tombstone)
}

// get returns the stored value (possibly the tombstone) or false if key is
// absent from this table.
func (m *memTable) get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	elem := m.list.Find(key)
	if elem == nil || elem.Key().(string) != key {
		return "", false
	}
	return elem.Value.(string), true
}

// entries returns every live node in ascending key order.
func (m *memTable) entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, m.count)
	for e := m.list.Front(); e != nil; e = e.Next() {
		out = append(out, Entry{Key: e.Key().(string), Value: e.Value.(string)})
	}
	return out
}

// scan returns entries with lo <= key <= hi in ascending order. An empty hi
// means unbounded (no upper bound), matching the empty-lo convention for
// unbounded-below.
func (m *memTable) scan(lo, hi string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for e := m.list.Find(lo); e != nil; e = e.Next() {
		k := e.Key().(string)
		if hi != "" && k > hi {
			break
		}
		out = append(out, Entry{Key: k, Value: e.Value.(string)})
	}
	return out
}

func (m *memTable) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byteSize
}

func (m *memTable) numEntries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// clear resets the table to empty.
func (m *memTable) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = skiplist.New(newComparator())
	m.byteSize = 0
	m.count = 0
}
