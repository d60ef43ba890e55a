package firewall

import (
	"sync"
	"time"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/xdpmap"
)

// shrinkEveryCycles is the sweeper's periodic hash-table-shrink interval,
// in 1-second ticks, a periodic shrink every 3600 cycles.
const shrinkEveryCycles = 3600

// LPMStore is the authoritative userspace mirror of one kernel LPM map,
// one instance per (Policy, Family). Every mutation updates the kernel
// map first, then the userspace map, under the store's lock — on a
// kernel-side failure the userspace map is left untouched so the two
// never diverge.
type LPMStore struct {
	mtx        sync.Mutex
	kmap       xdpmap.KernelMap
	maxEntries int
	entries    map[common.NormalizedCidr]common.StoredEntry
	family     common.Family

	tagRelease chan<- uint64
	cycles     uint64
	logger     *logging.Logger
}

func NewLPMStore(kmap xdpmap.KernelMap, family common.Family, tagRelease chan<- uint64, lgr *logging.Logger) *LPMStore {
	return &LPMStore{
		kmap:       kmap,
		maxEntries: int(kmap.MaxEntries()),
		entries:    make(map[common.NormalizedCidr]common.StoredEntry),
		family:     family,
		tagRelease: tagRelease,
		logger:     lgr,
	}
}

func (s *LPMStore) checkFamily(c common.NormalizedCidr) error {
	if c.Family() != s.family {
		return common.Invalid("family mismatch").Add("cidr", "CIDR family does not match this store")
	}
	return nil
}

func (s *LPMStore) kernelPut(c common.NormalizedCidr, stored common.StoredEntry) error {
	if s.family == common.FamilyV4 {
		return s.kmap.Put(c.ToLPMKeyV4(), stored)
	}
	return s.kmap.Put(c.ToLPMKeyV6(), stored)
}

func (s *LPMStore) kernelDelete(c common.NormalizedCidr) error {
	if s.family == common.FamilyV4 {
		return s.kmap.Delete(c.ToLPMKeyV4())
	}
	return s.kmap.Delete(c.ToLPMKeyV6())
}

// Add inserts a new entry into the kernel map then the userspace map.
func (s *LPMStore) Add(c common.NormalizedCidr, stored common.StoredEntry) error {
	if err := s.checkFamily(c); err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, exists := s.entries[c]; exists {
		return common.Conflict("entry already exists")
	}
	if len(s.entries) >= s.maxEntries {
		return common.Conflict("map full")
	}
	if err := s.kernelPut(c, stored); err != nil {
		return common.Internal("kernel map insert failed: " + err.Error())
	}
	s.entries[c] = stored
	return nil
}

// Get returns a copy of the stored entry for c.
func (s *LPMStore) Get(c common.NormalizedCidr) (common.StoredEntry, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.entries[c]
	if !ok {
		return common.StoredEntry{}, common.NotFound("entry not found")
	}
	return v, nil
}

// Update replaces an existing entry, rewriting the kernel map only when
// TagID changed, and returns the prior value.
func (s *LPMStore) Update(c common.NormalizedCidr, next common.StoredEntry) (common.StoredEntry, error) {
	if err := s.checkFamily(c); err != nil {
		return common.StoredEntry{}, err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	prior, ok := s.entries[c]
	if !ok {
		return common.StoredEntry{}, common.NotFound("entry not found")
	}
	if prior.TagID != next.TagID {
		if err := s.kernelPut(c, next); err != nil {
			return common.StoredEntry{}, common.Internal("kernel map update failed: " + err.Error())
		}
	}
	s.entries[c] = next
	return prior, nil
}

// AddOrUpdate upserts c: inserts both sides if absent (subject to the map
// size cap), or rewrites the kernel side only when TagID changed if
// present. Returns the prior value and whether one existed.
func (s *LPMStore) AddOrUpdate(c common.NormalizedCidr, next common.StoredEntry) (prior common.StoredEntry, existed bool, err error) {
	if err = s.checkFamily(c); err != nil {
		return
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	prior, existed = s.entries[c]
	if existed {
		if prior.TagID != next.TagID {
			if kerr := s.kernelPut(c, next); kerr != nil {
				err = common.Internal("kernel map update failed: " + kerr.Error())
				return
			}
		}
		s.entries[c] = next
		return
	}
	if len(s.entries) >= s.maxEntries {
		err = common.Conflict("map full")
		return
	}
	if kerr := s.kernelPut(c, next); kerr != nil {
		err = common.Internal("kernel map insert failed: " + kerr.Error())
		return
	}
	s.entries[c] = next
	return
}

// Remove deletes c from the kernel map then the userspace map, returning
// the prior value.
func (s *LPMStore) Remove(c common.NormalizedCidr) (common.StoredEntry, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	prior, ok := s.entries[c]
	if !ok {
		return common.StoredEntry{}, common.NotFound("entry not found")
	}
	if err := s.kernelDelete(c); err != nil {
		return common.StoredEntry{}, common.Internal("kernel map delete failed: " + err.Error())
	}
	delete(s.entries, c)
	return prior, nil
}

// List returns a snapshot of every (cidr, stored) pair.
func (s *LPMStore) List() map[common.NormalizedCidr]common.StoredEntry {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := make(map[common.NormalizedCidr]common.StoredEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Count returns the current number of entries.
func (s *LPMStore) Count() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.entries)
}

// RunSweeper runs the background expiration sweeper until stop is closed.
// Every tick it takes the lock, periodically shrinks the backing map, and
// evicts every expired entry, emitting released tag ids onto the shared
// tag-release channel so refcount bookkeeping never happens under this
// store's lock.
func (s *LPMStore) RunSweeper(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *LPMStore) sweepOnce() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.cycles++
	if s.cycles%shrinkEveryCycles == 0 {
		s.maybeShrink()
	}
	if len(s.entries) == 0 {
		return
	}

	now := time.Now().Unix()
	for c, stored := range s.entries {
		if stored.Expiration.IsNever() || int64(stored.Expiration) > now {
			continue
		}
		if err := s.kernelDelete(c); err != nil {
			if s.logger != nil {
				s.logger.Warnf("sweeper: failed to remove expired entry %s from kernel map: %v", c, err)
			}
			continue // retry next cycle
		}
		delete(s.entries, c)
		if s.tagRelease != nil {
			select {
			case s.tagRelease <- stored.TagID:
			default:
				// channel full: the tag-release worker is behind: drop
				// rather than block the sweeper's critical section. The
				// dropped reference is never released, so the tag stays
				// registered until restart — an accepted tradeoff for
				// bounding sweeper lock-hold time.
			}
		}
	}
}

// maybeShrink re-allocates the entries into a fresh map sized to the
// current len, the idiomatic equivalent of an explicit hash-table shrink:
// Go's builtin maps have no public API to read or shrink their backing
// storage. The early-return guard never holds for a non-empty map, so
// every call re-allocates.
func (s *LPMStore) maybeShrink() {
	if cap8_7 := len(s.entries) * 8 / 7; len(s.entries) > 0 && len(s.entries)*2 < cap8_7 {
		return
	}
	fresh := make(map[common.NormalizedCidr]common.StoredEntry, len(s.entries))
	for k, v := range s.entries {
		fresh[k] = v
	}
	s.entries = fresh
}
