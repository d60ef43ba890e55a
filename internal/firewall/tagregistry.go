// Package firewall implements the Tag Registry, the four LPM Stores, the
// Firewall Service facade, and the Peer/Report background services.
package firewall

import (
	"errors"
	"sync"

	"github.com/r3dlight/couic/common"
)

// ErrIDExhausted is returned by acquire only on counter overflow, never
// expected in practice.
var ErrIDExhausted = errors.New("tag id space exhausted")

// TagRegistry interns tag strings into small monotonic numeric
// identifiers suitable as kernel-map values, refcounted so an id is freed
// once no Entry refers to it. IDs are monotonic and never reused while
// live.
type TagRegistry struct {
	mtx      sync.RWMutex
	nameToID map[common.Tag]uint64
	idToName map[uint64]common.Tag
	refcount map[uint64]uint32
	next     uint64
}

func NewTagRegistry() *TagRegistry {
	return &TagRegistry{
		nameToID: make(map[common.Tag]uint64),
		idToName: make(map[uint64]common.Tag),
		refcount: make(map[uint64]uint32),
		next:     1,
	}
}

// Acquire increments the refcount for an existing tag, or allocates the
// next unused id and registers it with refcount 1.
func (r *TagRegistry) Acquire(tag common.Tag) (uint64, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if id, ok := r.nameToID[tag]; ok {
		r.refcount[id]++
		return id, nil
	}
	if r.next == 0 {
		return 0, ErrIDExhausted
	}
	id := r.next
	r.next++
	r.nameToID[tag] = id
	r.idToName[id] = tag
	r.refcount[id] = 1
	return id, nil
}

// Release decrements the refcount; at zero, removes both directions.
// Releasing an unknown id is a silent no-op, required for idempotence
// under at-most-once delivery from the sweeper's tag-release channel.
func (r *TagRegistry) Release(id uint64) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	cnt, ok := r.refcount[id]
	if !ok {
		return
	}
	if cnt <= 1 {
		tag := r.idToName[id]
		delete(r.refcount, id)
		delete(r.idToName, id)
		delete(r.nameToID, tag)
		return
	}
	r.refcount[id] = cnt - 1
}

// GetTag returns the stored tag name (possibly empty) for id.
func (r *TagRegistry) GetTag(id uint64) (common.Tag, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	t, ok := r.idToName[id]
	return t, ok
}

// GetTagDisplay is GetTag with "untagged" substituted for the empty tag.
func (r *TagRegistry) GetTagDisplay(id uint64) (string, bool) {
	t, ok := r.GetTag(id)
	if !ok {
		return "", false
	}
	return t.Display(), true
}

// Len returns the number of distinct live tags, for tests and stats.
func (r *TagRegistry) Len() int {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	return len(r.nameToID)
}
