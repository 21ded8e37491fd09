package proxy

import (
	"sync"

	"github.com/lumendds/rtps"
)

// ChangeFromWriterStatus is a reader-side per-(proxy,change) status
// (spec §3, §4.4).
type ChangeFromWriterStatus int

const (
	Unknown ChangeFromWriterStatus = iota
	Missing
	Received
	Lost
)

// WriterProxy is the reader-side per-matched-writer state (spec §3).
type WriterProxy struct {
	mu                     sync.Mutex
	RemoteWriterGuid       rtps.Guid
	UnicastLocators        []rtps.Locator
	MulticastLocators      []rtps.Locator
	DataMaxSizeSerialized  int32
	status                 map[rtps.SequenceNumber]ChangeFromWriterStatus
	availableChangesMax    rtps.SequenceNumber
	ackNackCount           int32
}

// NewWriterProxy builds a WriterProxy for a newly matched remote writer.
func NewWriterProxy(remote rtps.Guid, unicast, multicast []rtps.Locator) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGuid:  remote,
		UnicastLocators:   unicast,
		MulticastLocators: multicast,
		status:            make(map[rtps.SequenceNumber]ChangeFromWriterStatus),
	}
}

// MarkReceived records seq as Received and advances
// AvailableChangesMax() as far as the now-contiguous run permits
// (spec §3: "largest seq N such that all seq <= N are Received or Lost").
func (wp *WriterProxy) MarkReceived(seq rtps.SequenceNumber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.status[seq] = Received
	wp.advanceLocked()
}

// MarkLost records seq as Lost (a Gap told us it will never arrive)
// and advances AvailableChangesMax().
func (wp *WriterProxy) MarkLost(seq rtps.SequenceNumber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.status[seq] = Lost
	wp.advanceLocked()
}

// MarkMissing records seq as Missing if it has no status yet (spec
// §4.4 Heartbeat processing never downgrades a Received/Lost change).
func (wp *WriterProxy) MarkMissing(seq rtps.SequenceNumber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if _, ok := wp.status[seq]; !ok {
		wp.status[seq] = Missing
	}
}

func (wp *WriterProxy) advanceLocked() {
	for {
		next := wp.availableChangesMax + 1
		st, ok := wp.status[next]
		if !ok || (st != Received && st != Lost) {
			return
		}
		wp.availableChangesMax = next
	}
}

// AvailableChangesMax returns the largest contiguous Received/Lost
// sequence number (spec §3).
func (wp *WriterProxy) AvailableChangesMax() rtps.SequenceNumber {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.availableChangesMax
}

// Status returns the recorded status for seq, defaulting to Unknown.
func (wp *WriterProxy) Status(seq rtps.SequenceNumber) ChangeFromWriterStatus {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	st, ok := wp.status[seq]
	if !ok {
		return Unknown
	}
	return st
}

// MissingChanges returns every sequence number marked Missing, ascending.
func (wp *WriterProxy) MissingChanges() []rtps.SequenceNumber {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	var out []rtps.SequenceNumber
	for seq, st := range wp.status {
		if st == Missing {
			out = append(out, seq)
		}
	}
	sortSeqs(out)
	return out
}

// ProcessHeartbeat applies a Heartbeat(first, last) to this proxy's
// status map (spec §4.4): every seq in
// [AvailableChangesMax()+1, last] not already known becomes Missing;
// every seq < first that is unknown or Missing becomes Lost (other
// states, such as Received, are kept).
func (wp *WriterProxy) ProcessHeartbeat(first, last rtps.SequenceNumber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	for seq := wp.availableChangesMax + 1; seq <= last; seq++ {
		if _, ok := wp.status[seq]; !ok {
			wp.status[seq] = Missing
		}
	}
	for seq := rtps.SequenceNumber(1); seq < first; seq++ {
		if st, ok := wp.status[seq]; !ok || st == Missing {
			wp.status[seq] = Lost
		}
	}
	wp.advanceLocked()
}

// ProcessGap applies a Gap(gapStart, gapList) to this proxy's status
// map (spec §4.4): gapStart..gapList.Base-1 and every member of
// gapList become Lost.
func (wp *WriterProxy) ProcessGap(gapStart rtps.SequenceNumber, gapList rtps.SequenceNumberSet) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	for seq := gapStart; seq < gapList.Base; seq++ {
		wp.status[seq] = Lost
	}
	for _, seq := range gapList.Seqs() {
		wp.status[seq] = Lost
	}
	wp.advanceLocked()
}

// NextAckNackCount returns the next monotonically-increasing AckNack
// count to use when this reader addresses this writer (spec §4.4).
func (wp *WriterProxy) NextAckNackCount() int32 {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.ackNackCount++
	return wp.ackNackCount
}
