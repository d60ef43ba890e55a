package firewall

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cilium/ebpf"

	"github.com/r3dlight/couic/common"
)

var errTestKernelFailure = errors.New("simulated kernel map failure")

// fakeKernelMap is an in-memory stand-in for xdpmap.KernelMap, so LPMStore
// can be exercised without a real kernel map.
type fakeKernelMap struct {
	mtx        sync.Mutex
	data       map[interface{}]interface{}
	maxEntries uint32
	failPut    bool
	failDelete bool
}

func newFakeKernelMap(max uint32) *fakeKernelMap {
	return &fakeKernelMap{data: make(map[interface{}]interface{}), maxEntries: max}
}

func (f *fakeKernelMap) Lookup(key, valueOut interface{}) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if _, ok := f.data[key]; !ok {
		return ebpf.ErrKeyNotExist
	}
	return nil
}

func (f *fakeKernelMap) Put(key, value interface{}) error {
	if f.failPut {
		return errTestKernelFailure
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKernelMap) Delete(key interface{}) error {
	if f.failDelete {
		return errTestKernelFailure
	}
	f.mtx.Lock()
	defer f.mtx.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeKernelMap) Iterate() *ebpf.MapIterator { return nil }
func (f *fakeKernelMap) MaxEntries() uint32         { return f.maxEntries }

func mustCidr(t *testing.T, s string) common.NormalizedCidr {
	t.Helper()
	c, err := common.ParseNormalizedCidr(s)
	if err != nil {
		t.Fatalf("parsing %q: %v", s, err)
	}
	return c
}

func TestLPMStoreAddGetRemove(t *testing.T) {
	km := newFakeKernelMap(16)
	store := NewLPMStore(km, common.FamilyV4, nil, nil)

	c := mustCidr(t, "10.0.0.0/8")
	stored := common.StoredEntry{TagID: 1}
	if err := store.Add(c, stored); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(c, stored); err == nil {
		t.Fatal("expected Conflict on duplicate Add")
	}
	got, err := store.Get(c)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TagID != 1 {
		t.Fatalf("got TagID %d, want 1", got.TagID)
	}
	if store.Count() != 1 {
		t.Fatalf("got count %d, want 1", store.Count())
	}
	if _, err := store.Remove(c); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(c); err == nil {
		t.Fatal("expected NotFound after Remove")
	}
}

func TestLPMStoreFamilyMismatchRejected(t *testing.T) {
	km := newFakeKernelMap(16)
	store := NewLPMStore(km, common.FamilyV4, nil, nil)
	v6 := mustCidr(t, "2001:db8::/32")
	if err := store.Add(v6, common.StoredEntry{}); err == nil {
		t.Fatal("expected family-mismatch error")
	}
}

func TestLPMStoreMapFullRejected(t *testing.T) {
	km := newFakeKernelMap(1)
	store := NewLPMStore(km, common.FamilyV4, nil, nil)
	if err := store.Add(mustCidr(t, "10.0.0.0/8"), common.StoredEntry{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := store.Add(mustCidr(t, "11.0.0.0/8"), common.StoredEntry{}); err == nil {
		t.Fatal("expected Conflict once max entries reached")
	}
}

func TestLPMStoreAddOrUpdate(t *testing.T) {
	km := newFakeKernelMap(16)
	store := NewLPMStore(km, common.FamilyV4, nil, nil)
	c := mustCidr(t, "10.0.0.0/8")

	_, existed, err := store.AddOrUpdate(c, common.StoredEntry{TagID: 1})
	if err != nil || existed {
		t.Fatalf("first upsert: existed=%v err=%v", existed, err)
	}
	prior, existed, err := store.AddOrUpdate(c, common.StoredEntry{TagID: 2})
	if err != nil || !existed {
		t.Fatalf("second upsert: existed=%v err=%v", existed, err)
	}
	if prior.TagID != 1 {
		t.Fatalf("got prior TagID %d, want 1", prior.TagID)
	}
}

func TestLPMStoreSweeperEvictsExpiredAndReleasesTag(t *testing.T) {
	km := newFakeKernelMap(16)
	release := make(chan uint64, 1)
	store := NewLPMStore(km, common.FamilyV4, release, nil)

	c := mustCidr(t, "10.0.0.0/8")
	past := common.ExpirationFromTimestamp(uint64(time.Now().Add(-time.Hour).Unix()))
	if err := store.Add(c, common.StoredEntry{TagID: 7, Expiration: past}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	store.sweepOnce()

	if store.Count() != 0 {
		t.Fatalf("got count %d, want 0 after sweep", store.Count())
	}
	select {
	case id := <-release:
		if id != 7 {
			t.Fatalf("got released tag id %d, want 7", id)
		}
	default:
		t.Fatal("expected a tag id on the release channel")
	}
}

func TestLPMStoreSweeperKeepsUnexpired(t *testing.T) {
	km := newFakeKernelMap(16)
	store := NewLPMStore(km, common.FamilyV4, nil, nil)
	c := mustCidr(t, "10.0.0.0/8")
	if err := store.Add(c, common.StoredEntry{Expiration: common.NeverExpiration}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	store.sweepOnce()
	if store.Count() != 1 {
		t.Fatalf("got count %d, want 1 (never-expiring entry must survive sweep)", store.Count())
	}
}
