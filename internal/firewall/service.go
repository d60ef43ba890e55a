package firewall

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/config"
	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/security"
	"github.com/r3dlight/couic/internal/xdpmap"
)

// tagReleaseChanCapacity bounds the sweeper-to-registry channel so a
// sweeper's critical section never blocks on the tag-release worker.
const tagReleaseChanCapacity = 1 << 10

// Service is the Firewall Service facade: it composes the four LPM
// stores, the tag registry, the peer/report services and the kernel
// counter maps, and owns set reconciliation.
type Service struct {
	cfg *config.Config
	xdp *xdpmap.Collection

	stores map[storeKey]*LPMStore
	tags   *TagRegistry

	peer   *PeerService
	report *ReportService

	tagRelease chan uint64
	stop       chan struct{}
	wg         sync.WaitGroup

	watcher *fsnotify.Watcher
	logger  *logging.Logger
}

type storeKey struct {
	policy common.Policy
	family common.Family
}

// New constructs the Service without starting anything; Start performs
// the mandatory startup sequence.
func New(cfg *config.Config, lgr *logging.Logger) *Service {
	return &Service{
		cfg:        cfg,
		tags:       NewTagRegistry(),
		tagRelease: make(chan uint64, tagReleaseChanCapacity),
		stop:       make(chan struct{}),
		logger:     lgr,
	}
}

// Start runs the mandatory startup sequence: decide peer/report
// enablement, load the XDP program, attach per configured interface,
// take ownership of the seven kernel maps, spawn the tag-release worker,
// then run set reconciliation once. Order is mandatory.
func (s *Service) Start(bytecode []byte, ifaces []string, mode config.OperationMode) error {
	if s.cfg.Peering.Enabled {
		var peers []PeerConfig
		for _, p := range s.cfg.Peering.Peer {
			tok, err := uuid.Parse(p.Token)
			if err != nil {
				return common.Internal("invalid peer token: " + err.Error())
			}
			peers = append(peers, PeerConfig{
				Host: p.Host, Port: p.Port, TLS: p.Tls, Token: tok,
				SignBatches: p.Sign_Batches, Secret: p.Secret,
			})
		}
		s.peer = NewPeerService(peers, s.logger)
	}
	if s.cfg.Reporting.Enabled {
		var producer sarama.SyncProducer
		if len(s.cfg.Reporting.Kafka_Brokers) > 0 && s.cfg.Reporting.Kafka_Topic != "" {
			kcfg := sarama.NewConfig()
			kcfg.Producer.Return.Successes = true
			p, err := sarama.NewSyncProducer(s.cfg.Reporting.Kafka_Brokers, kcfg)
			if err != nil {
				return common.Internal("creating kafka producer: " + err.Error())
			}
			producer = p
		}
		s.report = NewReportService(s.cfg.Reporting.Webhook, producer, s.cfg.Reporting.Kafka_Topic, s.logger)
	}

	coll, err := xdpmap.Load(bytecode)
	if err != nil {
		return err
	}
	s.xdp = coll

	for _, iface := range ifaces {
		if err := s.xdp.Attach(iface, mode); err != nil {
			return err
		}
	}

	s.stores = map[storeKey]*LPMStore{
		{common.PolicyDrop, common.FamilyV4}:   NewLPMStore(s.xdp.IPv4Drop, common.FamilyV4, s.tagRelease, s.logger),
		{common.PolicyDrop, common.FamilyV6}:   NewLPMStore(s.xdp.IPv6Drop, common.FamilyV6, s.tagRelease, s.logger),
		{common.PolicyIgnore, common.FamilyV4}: NewLPMStore(s.xdp.IPv4Ignore, common.FamilyV4, s.tagRelease, s.logger),
		{common.PolicyIgnore, common.FamilyV6}: NewLPMStore(s.xdp.IPv6Ignore, common.FamilyV6, s.tagRelease, s.logger),
	}

	s.wg.Add(1)
	go s.runTagReleaseWorker()
	for _, store := range s.stores {
		s.wg.Add(1)
		st := store
		go func() {
			defer s.wg.Done()
			st.RunSweeper(s.stop)
		}()
	}
	if s.peer != nil {
		s.wg.Add(1)
		go func() { defer s.wg.Done(); s.peer.Run(s.stop) }()
	}
	if s.report != nil {
		s.wg.Add(1)
		go func() { defer s.wg.Done(); s.report.Run(s.stop) }()
	}

	if err := s.ReconcileAll(); err != nil {
		return err
	}
	return s.watchSetDirs()
}

func (s *Service) runTagReleaseWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case id := <-s.tagRelease:
			s.tags.Release(id)
		}
	}
}

// Stop tears down the background workers and the XDP attachment.
func (s *Service) Stop() error {
	close(s.stop)
	s.wg.Wait()
	if s.watcher != nil {
		s.watcher.Close()
	}
	if s.xdp != nil {
		return s.xdp.Close()
	}
	return nil
}

func (s *Service) store(policy common.Policy, family common.Family) *LPMStore {
	return s.stores[storeKey{policy, family}]
}

// AddEntry validates placement of a RawEntry into policy, acquires a tag
// id, writes the entry into the appropriate store, and fans the mutation
// out to the peer/report services.
func (s *Service) AddEntry(policy common.Policy, re common.RawEntry) (common.Entry, error) {
	store := s.store(policy, re.Cidr.Family())
	if store == nil {
		return common.Entry{}, common.Internal("no store for this family")
	}
	tagID, err := s.tags.Acquire(re.Tag)
	if err != nil {
		return common.Entry{}, common.Internal(err.Error())
	}
	entry, meta := re.IntoEntryAndMetadata()
	stored := common.StoredEntry{Creation: entry.Creation, TagID: tagID, Expiration: entry.Expiration}
	if err := store.Add(re.Cidr, stored); err != nil {
		s.tags.Release(tagID) // release on the error path, the tag was never committed
		return common.Entry{}, err
	}
	s.logAudit("add", policy, entry)
	s.fanOut(common.ActionAdd, policy, entry, meta)
	return entry, nil
}

// RemoveEntry deletes cidr from policy's store. Set-origin entries are
// refused here — only reconciliation may remove them.
func (s *Service) RemoveEntry(policy common.Policy, cidr common.NormalizedCidr) error {
	store := s.store(policy, cidr.Family())
	if store == nil {
		return common.Invalid("family mismatch")
	}
	stored, err := store.Get(cidr)
	if err != nil {
		return err
	}
	tag, _ := s.tags.GetTag(stored.TagID)
	if tag.IsSetOrigin() {
		return common.NewCompositeError(common.ErrInvalid, "Entry defined in a set cannot be removed")
	}
	prior, err := store.Remove(cidr)
	if err != nil {
		return err
	}
	s.tags.Release(prior.TagID)
	entry := common.Entry{Creation: prior.Creation, Cidr: cidr, Tag: tag, Expiration: prior.Expiration}
	s.logAudit("remove", policy, entry)
	s.fanOut(common.ActionRemove, policy, entry, nil)
	return nil
}

// GetEntry returns the Entry stored for cidr under policy.
func (s *Service) GetEntry(policy common.Policy, cidr common.NormalizedCidr) (common.Entry, error) {
	store := s.store(policy, cidr.Family())
	if store == nil {
		return common.Entry{}, common.Invalid("family mismatch")
	}
	stored, err := store.Get(cidr)
	if err != nil {
		return common.Entry{}, err
	}
	tag, _ := s.tags.GetTag(stored.TagID)
	return common.Entry{Creation: stored.Creation, Cidr: cidr, Tag: tag, Expiration: stored.Expiration}, nil
}

// ListEntries returns every entry across both families for policy.
func (s *Service) ListEntries(policy common.Policy) []common.Entry {
	var out []common.Entry
	for _, fam := range []common.Family{common.FamilyV4, common.FamilyV6} {
		store := s.store(policy, fam)
		if store == nil {
			continue
		}
		for cidr, stored := range store.List() {
			tag, _ := s.tags.GetTag(stored.TagID)
			out = append(out, common.Entry{Creation: stored.Creation, Cidr: cidr, Tag: tag, Expiration: stored.Expiration})
		}
	}
	return out
}

// Stats returns the entry counts and the per-action XDP packet counters
// read live from the kernel's couic_stats array.
func (s *Service) Stats() (common.Stats, error) {
	stats := common.Stats{
		DropCidrCount:   s.store(common.PolicyDrop, common.FamilyV4).Count() + s.store(common.PolicyDrop, common.FamilyV6).Count(),
		IgnoreCidrCount: s.store(common.PolicyIgnore, common.FamilyV4).Count() + s.store(common.PolicyIgnore, common.FamilyV6).Count(),
		Xdp:             map[string]common.PktStats{},
	}
	if s.xdp == nil {
		return stats, nil
	}
	counters, err := s.xdp.ReadStats()
	if err != nil {
		return common.Stats{}, common.Internal(err.Error())
	}
	for i, name := range xdpmap.ActionNames {
		stats.Xdp[name] = common.PktStats{RxPackets: counters[i]}
	}
	return stats, nil
}

// TagStats returns per-tag packet counts for policy, resolving each
// kernel tag id back to its display string via the tag registry.
func (s *Service) TagStats(policy common.Policy) (common.TagStats, error) {
	if s.xdp == nil {
		return common.TagStats{Tags: map[string]common.PktStats{}}, nil
	}
	var counters []xdpmap.TagCounter
	var err error
	switch policy {
	case common.PolicyDrop:
		counters, err = s.xdp.ReadDropTagStats()
	case common.PolicyIgnore:
		counters, err = s.xdp.ReadIgnoreTagStats()
	default:
		return common.TagStats{}, common.Invalid("unknown policy")
	}
	if err != nil {
		return common.TagStats{}, common.Internal(err.Error())
	}
	out := make(map[string]common.PktStats, len(counters))
	for _, c := range counters {
		tag, ok := s.tags.GetTag(c.TagID)
		display := common.UntaggedDisplay
		if ok {
			display = tag.Display()
		}
		out[display] = common.PktStats{RxPackets: c.Count}
	}
	return common.TagStats{Tags: out}, nil
}

// fanOut queues the mutation to the peer and report services. Per
// Peer jobs never carry metadata, and a set-origin entry's tag is nulled
// before it is queued: peers reconcile their own sets locally from their
// own set files.
func (s *Service) fanOut(action common.Action, policy common.Policy, entry common.Entry, meta *common.Metadata) {
	if s.peer != nil {
		peerTag := entry.Tag
		if peerTag.IsSetOrigin() {
			peerTag = ""
		}
		s.peer.Enqueue(common.PeerJob{Action: action, Entry: common.RawEntry{Cidr: entry.Cidr, Tag: peerTag, Expiration: entry.Expiration}})
	}
	if s.report != nil {
		s.report.Enqueue(common.Report{Action: action, Policy: policy, Entry: entry, Metadata: meta})
	}
}

func (s *Service) logAudit(op string, policy common.Policy, entry common.Entry) {
	if s.logger == nil {
		return
	}
	s.logger.Info("firewall entry "+op,
		logging.KV("policy", policy.String()),
		logging.KV("cidr", entry.Cidr.String()),
		logging.KV("tag", entry.Tag.Display()),
	)
}

func (s *Service) setDir(policy common.Policy) string {
	if policy == common.PolicyDrop {
		return s.cfg.DropSetDir()
	}
	return s.cfg.IgnoreSetDir()
}

func setFilePath(dir string, name common.SetName) string {
	return filepath.Join(dir, string(name)+".couic")
}

// ListSets returns a summary of every set file under policy's set dir.
func (s *Service) ListSets(policy common.Policy) ([]common.SetSummary, error) {
	dir := s.setDir(policy)
	files, err := filepath.Glob(filepath.Join(dir, "*.couic"))
	if err != nil {
		return nil, common.Internal(err.Error())
	}
	out := make([]common.SetSummary, 0, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".couic")
		setName, ce := common.ValidateSetNameFrom(name)
		if ce != nil {
			continue
		}
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		entries, err := readSetFile(f)
		if err != nil {
			return nil, common.Internal(err.Error())
		}
		out = append(out, common.SetSummary{Name: setName, EntryCount: len(entries), FileSize: fi.Size()})
	}
	return out, nil
}

// GetSet returns the parsed entries of a single named set.
func (s *Service) GetSet(policy common.Policy, name common.SetName) (common.Set, error) {
	path := setFilePath(s.setDir(policy), name)
	lines, err := readSetFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return common.Set{}, common.NotFound("set not found")
		}
		return common.Set{}, common.Internal(err.Error())
	}
	entries := make([]common.NormalizedCidr, 0, len(lines))
	for _, l := range lines {
		cidr, err := common.ParseNormalizedCidr(l)
		if err != nil {
			return common.Set{}, common.Internal("set " + string(name) + ": " + err.Error())
		}
		entries = append(entries, cidr)
	}
	return common.Set{Name: name, Entries: entries}, nil
}

// PutSet validates and atomically writes a set's full entry list, then
// reconciles policy so the change takes effect immediately.
func (s *Service) PutSet(policy common.Policy, name common.SetName, rawEntries []string) (common.Set, error) {
	set, ce := common.ValidateSetFrom(common.SetInput{Name: string(name), Entries: rawEntries})
	if ce != nil {
		return common.Set{}, ce
	}
	var body strings.Builder
	for _, e := range set.Entries {
		body.WriteString(e.String())
		body.WriteByte('\n')
	}
	dir := s.setDir(policy)
	path := setFilePath(dir, name)
	if err := security.WriteAtomic(path, []byte(body.String()), s.cfg.Global.User, s.cfg.Global.Group, security.FileMode); err != nil {
		return common.Set{}, common.Internal(err.Error())
	}
	if err := s.Reconcile(policy, dir); err != nil {
		return common.Set{}, err
	}
	return set, nil
}

// DeleteSet removes a set file and reconciles policy so its entries are
// released from the LPM store.
func (s *Service) DeleteSet(policy common.Policy, name common.SetName) error {
	dir := s.setDir(policy)
	path := setFilePath(dir, name)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return common.NotFound("set not found")
		}
		return common.Internal(err.Error())
	}
	return s.Reconcile(policy, dir)
}

// ReconcileAll runs set reconciliation for both policies.
func (s *Service) ReconcileAll() error {
	if err := s.Reconcile(common.PolicyDrop, s.cfg.DropSetDir()); err != nil {
		return err
	}
	return s.Reconcile(common.PolicyIgnore, s.cfg.IgnoreSetDir())
}

// readSetFile parses a set file's plain-text line format: one CIDR per
// line, blank lines allowed, "#"-prefixed lines are comments.
func readSetFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	return entries, sc.Err()
}

// Reconcile diffs the declarative set files under dir against the
// in-memory state for policy and applies minimal updates: entries
// present on disk but absent from the store are added; set-origin
// entries present in the store but absent from any file for that set are
// removed.
func (s *Service) Reconcile(policy common.Policy, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.couic"))
	if err != nil {
		return common.Internal(err.Error())
	}

	target := make(map[common.NormalizedCidr]common.Tag)
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".couic")
		setName, ce := common.ValidateSetNameFrom(name)
		if ce != nil {
			if s.logger != nil {
				s.logger.Warnf("reconcile: skipping invalid set file name %q: %v", name, ce)
			}
			continue
		}
		lines, err := readSetFile(f)
		if err != nil {
			return common.Internal("reading set file " + f + ": " + err.Error())
		}
		tag := setName.Tag()
		for _, raw := range lines {
			cidr, err := common.ParseNormalizedCidr(raw)
			if err != nil {
				return common.Internal("set " + name + ": " + err.Error())
			}
			target[cidr] = tag
		}
	}

	for _, fam := range []common.Family{common.FamilyV4, common.FamilyV6} {
		store := s.store(policy, fam)
		current := store.List()
		for cidr, tag := range target {
			if cidr.Family() != fam {
				continue
			}
			if existing, ok := current[cidr]; ok {
				if existingTag, _ := s.tags.GetTag(existing.TagID); existingTag == tag {
					continue
				}
			}
			tagID, err := s.tags.Acquire(tag)
			if err != nil {
				return common.Internal(err.Error())
			}
			stored := common.StoredEntry{Creation: nowUnix(), TagID: tagID, Expiration: common.NeverExpiration}
			prior, existed, err := store.AddOrUpdate(cidr, stored)
			if err != nil {
				s.tags.Release(tagID)
				return err
			}
			if existed {
				// the entry now references the freshly acquired tagID;
				// release whatever tag it held before this reconciliation pass.
				s.tags.Release(prior.TagID)
			}
		}
		for cidr, stored := range current {
			tag, _ := s.tags.GetTag(stored.TagID)
			if !tag.IsSetOrigin() {
				continue
			}
			if _, stillDeclared := target[cidr]; stillDeclared {
				continue
			}
			if prior, err := store.Remove(cidr); err == nil {
				s.tags.Release(prior.TagID)
			}
		}
	}
	return nil
}

func (s *Service) watchSetDirs() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range []string{s.cfg.DropSetDir(), s.cfg.IgnoreSetDir()} {
		if err := w.Add(dir); err != nil {
			w.Close()
			return err
		}
	}
	s.watcher = w
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				s.onSetDirEvent(ev)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if s.logger != nil {
					s.logger.Errorf("set directory watch error: %v", err)
				}
			}
		}
	}()
	return nil
}

func (s *Service) onSetDirEvent(ev fsnotify.Event) {
	dir := filepath.Dir(ev.Name)
	var policy common.Policy
	switch dir {
	case s.cfg.DropSetDir():
		policy = common.PolicyDrop
	case s.cfg.IgnoreSetDir():
		policy = common.PolicyIgnore
	default:
		return
	}
	if err := s.Reconcile(policy, dir); err != nil && s.logger != nil {
		s.logger.Errorf("reconciling %s after %s: %v", dir, ev.Name, err)
	}
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}
