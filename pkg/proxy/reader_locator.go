package proxy

import (
	"sync"

	"github.com/lumendds/rtps"
)

// ReaderLocator is the stateless-writer per-destination-locator state
// (spec §4.3): simpler than ReaderProxy since a stateless writer
// tracks no acknowledgement, only "have I sent this sequence number
// yet" and "has this sequence number been explicitly requested".
type ReaderLocator struct {
	mu               sync.Mutex
	Locator          rtps.Locator
	ExpectsInlineQos bool
	nextUnsentChange rtps.SequenceNumber
	requested        map[rtps.SequenceNumber]bool
}

// NewReaderLocator builds a ReaderLocator for a best-effort destination.
func NewReaderLocator(loc rtps.Locator, expectsInlineQos bool) *ReaderLocator {
	return &ReaderLocator{Locator: loc, ExpectsInlineQos: expectsInlineQos, requested: make(map[rtps.SequenceNumber]bool)}
}

// UnsentChanges returns every sequence number in
// (nextUnsentChange, maxSeq] that has not yet been sent (spec §4.3).
func (rl *ReaderLocator) UnsentChanges(maxSeq rtps.SequenceNumber) []rtps.SequenceNumber {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	var out []rtps.SequenceNumber
	for seq := rl.nextUnsentChange + 1; seq <= maxSeq; seq++ {
		out = append(out, seq)
	}
	return out
}

// AdvanceUnsent records that every sequence number up to and
// including seq has now been sent (or gapped).
func (rl *ReaderLocator) AdvanceUnsent(seq rtps.SequenceNumber) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if seq > rl.nextUnsentChange {
		rl.nextUnsentChange = seq
	}
}

// RequestChange marks seq as explicitly requested (best-effort readers
// do not send AckNacks, but a local API may still re-request a
// specific sample — kept symmetric with ReaderProxy.RequestedChanges).
func (rl *ReaderLocator) RequestChange(seq rtps.SequenceNumber) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.requested[seq] = true
}

// RequestedChanges returns and clears the set of explicitly requested
// sequence numbers.
func (rl *ReaderLocator) RequestedChanges() []rtps.SequenceNumber {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	out := make([]rtps.SequenceNumber, 0, len(rl.requested))
	for seq := range rl.requested {
		out = append(out, seq)
	}
	rl.requested = make(map[rtps.SequenceNumber]bool)
	sortSeqs(out)
	return out
}
