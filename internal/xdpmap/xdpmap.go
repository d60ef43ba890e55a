// Package xdpmap wraps the cilium/ebpf kernel-map and program handles the
// Firewall Service takes ownership of at startup: the four LPM trie maps,
// the per-CPU stats array, and the two per-CPU per-tag hash maps, plus the
// XDP program itself and its per-interface attachment. The XDP bytecode's
// packet-parsing logic is given, not implemented here — this package only
// owns the map/program handles and the mode-to-flags mapping.
package xdpmap

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/r3dlight/couic/internal/config"
)

// Map names the seven kernel maps the program named "couic" exposes.
const (
	MapIPv4Drop         = "couic_ipv4_drop"
	MapIPv6Drop         = "couic_ipv6_drop"
	MapIPv4Ignore       = "couic_ipv4_ignore"
	MapIPv6Ignore       = "couic_ipv6_ignore"
	MapStats            = "couic_stats"
	MapDropStatsPerTag  = "couic_drop_stats_per_tag"
	MapIgnoreStatsPerTag = "couic_ignore_stats_per_tag"

	ProgramName = "couic"
)

// KernelMap is the interface an LPM Store holds a handle to; satisfied by
// *ebpf.Map. Abstracted so tests can substitute a fake without a real
// kernel map.
type KernelMap interface {
	Lookup(key, valueOut interface{}) error
	Put(key, value interface{}) error
	Delete(key interface{}) error
	Iterate() *ebpf.MapIterator
	MaxEntries() uint32
}

// mapHandle adapts *ebpf.Map to KernelMap.
type mapHandle struct{ m *ebpf.Map }

func (h mapHandle) Lookup(key, valueOut interface{}) error { return h.m.Lookup(key, valueOut) }
func (h mapHandle) Put(key, value interface{}) error       { return h.m.Put(key, value) }
func (h mapHandle) Delete(key interface{}) error            { return h.m.Delete(key) }
func (h mapHandle) Iterate() *ebpf.MapIterator              { return h.m.Iterate() }
func (h mapHandle) MaxEntries() uint32                      { return h.m.MaxEntries() }

// Collection owns every map/program handle and the per-interface links
// produced by attaching the XDP program.
type Collection struct {
	coll  *ebpf.Collection
	prog  *ebpf.Program
	links []link.Link

	IPv4Drop, IPv6Drop, IPv4Ignore, IPv6Ignore KernelMap
	Stats, DropStatsPerTag, IgnoreStatsPerTag   *ebpf.Map
}

// Load loads the XDP bytecode into the kernel and takes ownership of the
// seven named maps. bytecode is the byte array supplied externally by the
// caller.
func Load(bytecode []byte) (*Collection, error) {
	spec, err := ebpf.LoadCollectionSpecFromReader(newReader(bytecode))
	if err != nil {
		return nil, fmt.Errorf("loading XDP collection spec: %w", err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("loading XDP collection: %w", err)
	}
	prog, ok := coll.Programs[ProgramName]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("XDP program %q not found in collection", ProgramName)
	}
	c := &Collection{coll: coll, prog: prog}
	required := map[string]**ebpf.Map{
		MapStats:             &c.Stats,
		MapDropStatsPerTag:   &c.DropStatsPerTag,
		MapIgnoreStatsPerTag: &c.IgnoreStatsPerTag,
	}
	for name, dst := range required {
		m, ok := coll.Maps[name]
		if !ok {
			coll.Close()
			return nil, fmt.Errorf("map %q not found in collection", name)
		}
		*dst = m
	}
	lpm := map[string]*KernelMap{
		MapIPv4Drop:   &c.IPv4Drop,
		MapIPv6Drop:   &c.IPv6Drop,
		MapIPv4Ignore: &c.IPv4Ignore,
		MapIPv6Ignore: &c.IPv6Ignore,
	}
	for name, dst := range lpm {
		m, ok := coll.Maps[name]
		if !ok {
			coll.Close()
			return nil, fmt.Errorf("map %q not found in collection", name)
		}
		*dst = mapHandle{m}
	}
	return c, nil
}

// flagsFor maps config.OperationMode to the XDP attach flags: Generic ->
// SKB_MODE, Native -> DRV_MODE, Offloaded -> HW_MODE.
func flagsFor(mode config.OperationMode) link.XDPAttachFlags {
	switch mode {
	case config.ModeNative:
		return link.XDPDriverMode
	case config.ModeOffloaded:
		return link.XDPOffloadMode
	default:
		return link.XDPGenericMode
	}
}

// Attach attaches the loaded program to iface using the flags derived
// from mode.
func (c *Collection) Attach(iface string, mode config.OperationMode) error {
	ifi, err := interfaceIndex(iface)
	if err != nil {
		return err
	}
	l, err := link.AttachXDP(link.XDPOptions{
		Program:   c.prog,
		Interface: ifi,
		Flags:     flagsFor(mode),
	})
	if err != nil {
		return fmt.Errorf("attaching XDP program to %s: %w", iface, err)
	}
	c.links = append(c.links, l)
	return nil
}

// Close detaches every link and releases the collection.
func (c *Collection) Close() error {
	var firstErr error
	for _, l := range c.links {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.coll.Close()
	return firstErr
}

// ActionNames labels couic_stats' five indices, the standard XDP action
// codes: aborted, drop, pass, tx, redirect.
var ActionNames = [5]string{"aborted", "drop", "pass", "tx", "redirect"}

// ReadStats sums the per-CPU stats array into one packet counter per
// action code.
func (c *Collection) ReadStats() ([5]uint64, error) {
	var out [5]uint64
	for i := uint32(0); i < 5; i++ {
		var perCPU []struct{ RxPackets, RxBytes uint64 }
		if err := c.Stats.Lookup(&i, &perCPU); err != nil {
			return out, fmt.Errorf("reading stats[%d]: %w", i, err)
		}
		for _, v := range perCPU {
			out[i] += v.RxPackets
		}
	}
	return out, nil
}

// TagCounter is one key/value pair read out of a per-tag per-CPU LRU hash.
type TagCounter struct {
	TagID uint64
	Count uint64
}

func readTagStats(m *ebpf.Map) ([]TagCounter, error) {
	var out []TagCounter
	var key uint64
	var perCPU []struct{ RxPackets, RxBytes uint64 }
	it := m.Iterate()
	for it.Next(&key, &perCPU) {
		var sum uint64
		for _, v := range perCPU {
			sum += v.RxPackets
		}
		out = append(out, TagCounter{TagID: key, Count: sum})
	}
	return out, it.Err()
}

// ReadDropTagStats reads couic_drop_stats_per_tag.
func (c *Collection) ReadDropTagStats() ([]TagCounter, error) { return readTagStats(c.DropStatsPerTag) }

// ReadIgnoreTagStats reads couic_ignore_stats_per_tag.
func (c *Collection) ReadIgnoreTagStats() ([]TagCounter, error) {
	return readTagStats(c.IgnoreStatsPerTag)
}
