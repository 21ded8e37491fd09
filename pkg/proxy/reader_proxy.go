// Package proxy implements the writer-side ReaderProxy and reader-side
// WriterProxy (spec §3, component C3): per-remote-peer sequence-number
// tracking used by the stateful writer/reader behaviors.
//
// Grounded on the teacher's pkg/heartbeat per-peer bookkeeping (a
// small struct tracking per-remote-node liveliness/state, guarded by
// its own mutex) generalized to per-change status tracking.
package proxy

import (
	"sync"

	"github.com/lumendds/rtps"
)

// ChangeForReaderStatus is a writer-side per-(proxy,change) status
// (spec §3, §4.3).
type ChangeForReaderStatus int

const (
	Unsent ChangeForReaderStatus = iota
	Unacknowledged
	Requested
	Acknowledged
	Underway
)

// ReaderProxy is the writer-side per-matched-reader state (spec §3).
type ReaderProxy struct {
	mu                sync.Mutex
	RemoteReaderGuid  rtps.Guid
	UnicastLocators   []rtps.Locator
	MulticastLocators []rtps.Locator
	ExpectsInlineQos  bool
	IsActive          bool
	nextUnsentChange  rtps.SequenceNumber // stateless-writer cursor
	requestedChanges  map[rtps.SequenceNumber]bool
	status            map[rtps.SequenceNumber]ChangeForReaderStatus
	highestAckedSeq   rtps.SequenceNumber
}

// NewReaderProxy builds a ReaderProxy for a newly matched remote reader.
func NewReaderProxy(remote rtps.Guid, unicast, multicast []rtps.Locator, expectsInlineQos bool) *ReaderProxy {
	return &ReaderProxy{
		RemoteReaderGuid:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		ExpectsInlineQos:  expectsInlineQos,
		IsActive:          true,
		requestedChanges:  make(map[rtps.SequenceNumber]bool),
		status:            make(map[rtps.SequenceNumber]ChangeForReaderStatus),
	}
}

// NextUnsentChange returns the smallest sequence number this proxy has
// not yet been sent, given the writer cache's max sequence number
// (spec §4.3 stateless writer behavior); it does NOT advance the
// cursor — call AdvanceUnsent after actually sending.
func (rp *ReaderProxy) NextUnsentChange(maxSeq rtps.SequenceNumber) (rtps.SequenceNumber, bool) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	next := rp.nextUnsentChange + 1
	if next > maxSeq {
		return 0, false
	}
	return next, true
}

// AdvanceUnsent moves the stateless cursor past seq.
func (rp *ReaderProxy) AdvanceUnsent(seq rtps.SequenceNumber) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if seq > rp.nextUnsentChange {
		rp.nextUnsentChange = seq
	}
}

// SetStatus records the ChangeForReaderStatus transition for seq
// (spec §4.3 transition table).
func (rp *ReaderProxy) SetStatus(seq rtps.SequenceNumber, status ChangeForReaderStatus) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.status[seq] = status
	if status == Requested {
		rp.requestedChanges[seq] = true
	} else {
		delete(rp.requestedChanges, seq)
	}
}

// Status returns the recorded status for seq, defaulting to Unsent.
func (rp *ReaderProxy) Status(seq rtps.SequenceNumber) ChangeForReaderStatus {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	st, ok := rp.status[seq]
	if !ok {
		return Unsent
	}
	return st
}

// RequestedChanges returns every sequence number currently Requested,
// ascending.
func (rp *ReaderProxy) RequestedChanges() []rtps.SequenceNumber {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	out := make([]rtps.SequenceNumber, 0, len(rp.requestedChanges))
	for seq := range rp.requestedChanges {
		out = append(out, seq)
	}
	sortSeqs(out)
	return out
}

// AckedByAll reports whether no tracked change for this proxy is in
// {Unacknowledged, Requested, Underway, Unsent} up to maxSeq (spec §4.3
// is_acked_by_all, restricted to a known upper bound since this proxy
// does not itself know the writer's max sequence number).
func (rp *ReaderProxy) AckedByAll(maxSeq rtps.SequenceNumber) bool {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for seq := rtps.SequenceNumber(1); seq <= maxSeq; seq++ {
		st, ok := rp.status[seq]
		if !ok {
			return false // Unsent, implicitly
		}
		if st != Acknowledged {
			return false
		}
	}
	return true
}

// ProcessAckNack applies a reader's SequenceNumberSet to this proxy's
// per-change status (spec §4.3): sequence numbers below the set's base
// that this proxy had outstanding are implicitly acknowledged; members
// of the set are Requested; members not in the set but at/above base
// are Acknowledged.
func (rp *ReaderProxy) ProcessAckNack(set rtps.SequenceNumberSet, maxSeq rtps.SequenceNumber) {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for seq := rtps.SequenceNumber(1); seq < set.Base; seq++ {
		if st, ok := rp.status[seq]; ok && st != Acknowledged {
			rp.status[seq] = Acknowledged
			delete(rp.requestedChanges, seq)
		}
	}
	for seq := set.Base; seq <= maxSeq; seq++ {
		if set.Contains(seq) {
			rp.status[seq] = Requested
			rp.requestedChanges[seq] = true
		} else {
			rp.status[seq] = Acknowledged
			delete(rp.requestedChanges, seq)
		}
	}
}

func sortSeqs(s []rtps.SequenceNumber) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
