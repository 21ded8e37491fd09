package cache

import (
	"fmt"
	"sort"
	"sync"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/qos"
)

// EvictablePredicate reports whether a given cache change may be
// removed to make room under KeepLast. A writer's HistoryCache passes
// a predicate that checks "acknowledged by every matched reliable
// reader proxy" (spec §4.2); a reader's HistoryCache passes a
// predicate that is unconditionally true (the oldest sample for the
// instance is simply dropped).
type EvictablePredicate func(Key) bool

// AlwaysEvictable is the reader-side EvictablePredicate.
func AlwaysEvictable(Key) bool { return true }

// instanceState tracks per-instance bookkeeping needed for KeepLast
// eviction and for the disposed/re-registered open-question
// resolution recorded in SPEC_FULL.md: disposing an instance resets
// its retained-sample count to zero, so a re-registered instance's
// first new sample is never evicted to make room for samples that
// predate the dispose.
type instanceState struct {
	seqsOldestFirst []rtps.SequenceNumber
}

// HistoryCache is the ordered store of CacheChanges described in spec
// §3/§4.2. It is not internally synchronized beyond what is needed for
// its own invariants — per §5 it is protected by its owning endpoint's
// mutex, so callers needing cross-field atomicity (e.g. reader proxy +
// cache) must hold their own lock around sequences of calls. The
// internal mutex here only guards against concurrent access to this
// cache's own maps from the receiver thread vs. a timer thread.
type HistoryCache struct {
	mu         sync.Mutex
	history    qos.HistoryQos
	limits     qos.ResourceLimitsQos
	changes    map[Key]CacheChange
	order      []Key // ascending by sequence number, maintained on add/remove
	instances  map[InstanceHandle]*instanceState
}

// New builds an empty HistoryCache governed by the given History and
// ResourceLimits QoS (spec §3).
func New(history qos.HistoryQos, limits qos.ResourceLimitsQos) *HistoryCache {
	return &HistoryCache{
		history:   history,
		limits:    limits,
		changes:   make(map[Key]CacheChange),
		instances: make(map[InstanceHandle]*instanceState),
	}
}

// Add inserts a change, applying KeepLast eviction (via evictable) and
// ResourceLimits enforcement. It returns ErrOutOfResources (without
// inserting) if the cache is at a ResourceLimits bound and nothing can
// be evicted — the caller (a reliable writer's `write`, or a reader
// surfacing SampleRejected) is responsible for the rest of spec §7's
// propagation policy.
func (h *HistoryCache) Add(change CacheChange, evictable EvictablePredicate) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := change.KeyOf()
	if _, exists := h.changes[key]; exists {
		return nil // duplicate suppression (spec §4.4, property P6)
	}

	if change.Kind == NotAliveDisposed {
		delete(h.instances, change.InstanceHandle)
	}
	inst, ok := h.instances[change.InstanceHandle]
	if !ok {
		inst = &instanceState{}
		h.instances[change.InstanceHandle] = inst
	}

	// Only Alive samples occupy the KeepLast/ResourceLimits window: a
	// dispose/unregister marker is a lifecycle event, not a retained
	// sample, and resetting inst above already cleared the window it
	// would otherwise have counted against (see SPEC_FULL.md open
	// question 3).
	if change.Kind == Alive {
		if h.history.Kind == qos.KeepLast && len(inst.seqsOldestFirst) >= max(1, h.history.Depth) {
			if !h.evictOldestForInstance(inst, evictable) {
				return fmt.Errorf("history depth exceeded and oldest sample not yet evictable: %w", rtps.ErrOutOfResources)
			}
		}
		if h.limits.MaxSamplesPerInstance > 0 && len(inst.seqsOldestFirst) >= h.limits.MaxSamplesPerInstance {
			if !h.evictOldestForInstance(inst, evictable) {
				return fmt.Errorf("resource limit MaxSamplesPerInstance reached: %w", rtps.ErrOutOfResources)
			}
		}
	}
	if h.limits.MaxSamples > 0 && len(h.changes) >= h.limits.MaxSamples {
		if !h.evictOldestGlobally(evictable) {
			return fmt.Errorf("resource limit MaxSamples reached: %w", rtps.ErrOutOfResources)
		}
	}

	h.changes[key] = change
	if change.Kind == Alive {
		inst.seqsOldestFirst = append(inst.seqsOldestFirst, change.SequenceNumber)
	}
	h.insertOrdered(key)
	return nil
}

func (h *HistoryCache) evictOldestForInstance(inst *instanceState, evictable EvictablePredicate) bool {
	for i, seq := range inst.seqsOldestFirst {
		for key := range h.changes {
			if key.SequenceNumber != seq {
				continue
			}
			if !evictable(key) {
				continue
			}
			h.removeLocked(key)
			inst.seqsOldestFirst = append(inst.seqsOldestFirst[:i], inst.seqsOldestFirst[i+1:]...)
			return true
		}
	}
	return false
}

func (h *HistoryCache) evictOldestGlobally(evictable EvictablePredicate) bool {
	for _, key := range h.order {
		if evictable(key) {
			h.removeLocked(key)
			if inst, ok := h.instances[h.changes[key].InstanceHandle]; ok {
				inst.seqsOldestFirst = removeSeq(inst.seqsOldestFirst, key.SequenceNumber)
			}
			return true
		}
	}
	return false
}

func removeSeq(s []rtps.SequenceNumber, seq rtps.SequenceNumber) []rtps.SequenceNumber {
	for i, v := range s {
		if v == seq {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (h *HistoryCache) insertOrdered(key Key) {
	i := sort.Search(len(h.order), func(i int) bool { return h.order[i].SequenceNumber >= key.SequenceNumber })
	h.order = append(h.order, Key{})
	copy(h.order[i+1:], h.order[i:])
	h.order[i] = key
}

// Remove deletes the change with the given key, if present.
func (h *HistoryCache) Remove(key Key) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(key)
}

func (h *HistoryCache) removeLocked(key Key) {
	if _, ok := h.changes[key]; !ok {
		return
	}
	delete(h.changes, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Get returns the change for the given key, if present.
func (h *HistoryCache) Get(key Key) (CacheChange, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.changes[key]
	return c, ok
}

// GetBySeq returns the change with the given sequence number
// belonging to writerGuid, if present.
func (h *HistoryCache) GetBySeq(writerGuid rtps.Guid, seq rtps.SequenceNumber) (CacheChange, bool) {
	return h.Get(Key{WriterGuid: writerGuid, SequenceNumber: seq})
}

// MinSeq returns the smallest sequence number present for writerGuid,
// or SequenceNumberZero if none.
func (h *HistoryCache) MinSeq(writerGuid rtps.Guid) rtps.SequenceNumber {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range h.order {
		if key.WriterGuid == writerGuid {
			return key.SequenceNumber
		}
	}
	return rtps.SequenceNumberZero
}

// MaxSeq returns the largest sequence number present for writerGuid,
// or SequenceNumberZero if none.
func (h *HistoryCache) MaxSeq(writerGuid rtps.Guid) rtps.SequenceNumber {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := rtps.SequenceNumberZero
	for _, key := range h.order {
		if key.WriterGuid == writerGuid && key.SequenceNumber > result {
			result = key.SequenceNumber
		}
	}
	return result
}

// Len returns the total number of changes currently stored.
func (h *HistoryCache) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.changes)
}

// Changes returns every stored change for writerGuid, in ascending
// sequence-number order.
func (h *HistoryCache) Changes(writerGuid rtps.Guid) []CacheChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []CacheChange
	for _, key := range h.order {
		if key.WriterGuid == writerGuid {
			out = append(out, h.changes[key])
		}
	}
	return out
}

// WriterGuids returns every distinct writer with at least one change
// currently stored, letting a caller enumerate Changes per writer
// without already knowing which writers it has matched.
func (h *HistoryCache) WriterGuids() []rtps.Guid {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[rtps.Guid]bool)
	var out []rtps.Guid
	for _, key := range h.order {
		if !seen[key.WriterGuid] {
			seen[key.WriterGuid] = true
			out = append(out, key.WriterGuid)
		}
	}
	return out
}
