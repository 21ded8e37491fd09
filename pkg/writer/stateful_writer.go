package writer

import (
	"sync"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
)

// StatefulWriter is the reliable writer behavior (spec §4.3): it
// tracks every matched reader's acknowledgement state via a
// proxy.ReaderProxy and drives Heartbeat/Data/Gap traffic until every
// matched reliable reader has acknowledged.
//
// Grounded on the teacher's pkg/sdo.SDOServer: a timer-driven loop that
// re-announces state at a fixed period and reacts to peer responses
// with a coalescing delay before replying, generalized here from one
// SDO client to an arbitrary set of matched ReaderProxies.
type StatefulWriter struct {
	base
	writerId rtps.EntityId

	mu          sync.Mutex
	proxies     map[rtps.Guid]*proxy.ReaderProxy
	hbCount     int32
	nackPending map[rtps.Guid]*time.Timer
	lastNackAt  map[rtps.Guid]time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStatefulWriter builds a StatefulWriter for the given entity.
func NewStatefulWriter(cfg Config, history qos.HistoryQos, limits qos.ResourceLimitsQos, sender Sender) *StatefulWriter {
	cfg.Reliability.Kind = qos.Reliable
	w := &StatefulWriter{
		base:        newBase(cfg, history, limits, sender),
		writerId:    cfg.Guid.EntityId,
		proxies:     make(map[rtps.Guid]*proxy.ReaderProxy),
		nackPending: make(map[rtps.Guid]*time.Timer),
		lastNackAt:  make(map[rtps.Guid]time.Time),
		stopCh:      make(chan struct{}),
	}
	return w
}

// MatchedReaderAdd registers rp as a matched reader (spec §4.3
// matched_reader_add). Every existing sample becomes unsent/
// unacknowledged for it.
func (w *StatefulWriter) MatchedReaderAdd(rp *proxy.ReaderProxy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proxies[rp.RemoteReaderGuid] = rp
}

// MatchedReaderRemove unregisters a reader by GUID.
func (w *StatefulWriter) MatchedReaderRemove(remote rtps.Guid) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.proxies, remote)
	if t, ok := w.nackPending[remote]; ok {
		t.Stop()
		delete(w.nackPending, remote)
	}
}

func (w *StatefulWriter) snapshotProxies() []*proxy.ReaderProxy {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*proxy.ReaderProxy, 0, len(w.proxies))
	for _, rp := range w.proxies {
		out = append(out, rp)
	}
	return out
}

// isAckedByAllProxies is the EvictablePredicate passed to the
// HistoryCache (spec §4.2): a change may be evicted under KeepLast
// only once every matched reader has acknowledged it.
func (w *StatefulWriter) isAckedByAllProxies(key cache.Key) bool {
	for _, rp := range w.snapshotProxies() {
		if !rp.AckedByAll(key.SequenceNumber) {
			return false
		}
	}
	return true
}

// Write stores a new Alive sample, marks it Unacknowledged for every
// matched reader, and pushes it immediately (spec §4.3 push mode).
func (w *StatefulWriter) Write(instance cache.InstanceHandle, payload []byte, inlineQos parameter.ParameterList) error {
	change, err := w.newChange(cache.Alive, instance, payload, inlineQos, w.isAckedByAllProxies)
	if err != nil {
		return err
	}
	for _, rp := range w.snapshotProxies() {
		rp.SetStatus(change.SequenceNumber, proxy.Unacknowledged)
		w.pushOne(rp, change)
	}
	return nil
}

// Dispose marks instance as disposed and pushes the disposal to every
// matched reader.
func (w *StatefulWriter) Dispose(instance cache.InstanceHandle) error {
	change, err := w.newChange(cache.NotAliveDisposed, instance, nil, parameter.ParameterList{}, w.isAckedByAllProxies)
	if err != nil {
		return err
	}
	for _, rp := range w.snapshotProxies() {
		rp.SetStatus(change.SequenceNumber, proxy.Unacknowledged)
		w.pushOne(rp, change)
	}
	return nil
}

func (w *StatefulWriter) pushOne(rp *proxy.ReaderProxy, change cache.CacheChange) {
	b := wire.NewBuilder(w.cfg.Guid.Prefix)
	if change.SourceTimestamp != nil {
		appendInfoTimestamp(b, *change.SourceTimestamp)
	}
	appendData(b, dataSubmessage(rp.RemoteReaderGuid.EntityId, w.writerId, change))
	loc := destinationOf(rp)
	if err := send(w.sender, loc, w.cfg.Guid.Prefix, b); err == nil {
		rp.SetStatus(change.SequenceNumber, proxy.Underway)
	}
}

func destinationOf(rp *proxy.ReaderProxy) rtps.Locator {
	if len(rp.UnicastLocators) > 0 {
		return rp.UnicastLocators[0]
	}
	if len(rp.MulticastLocators) > 0 {
		return rp.MulticastLocators[0]
	}
	return rtps.InvalidLocator
}

// Start launches the periodic Heartbeat goroutine (spec §4.3
// heartbeat_period) and runs until Stop is called.
func (w *StatefulWriter) Start() {
	if w.cfg.HeartbeatPeriod <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(w.cfg.HeartbeatPeriod)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				w.BroadcastHeartbeat(false)
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop halts the heartbeat goroutine and cancels any pending nack
// response timers.
func (w *StatefulWriter) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.nackPending {
		t.Stop()
	}
}

// BroadcastHeartbeat sends a Heartbeat to every matched reader
// advertising [MinSeq, MaxSeq] of this writer's cached samples, with
// FirstSn 1 when none are cached (spec §4.3). final=true suppresses
// the reader's obligation to respond (used when the writer has no
// unacknowledged data).
func (w *StatefulWriter) BroadcastHeartbeat(final bool) {
	maxSeq := w.MaxSequenceNumber()
	minSeq := w.cache.MinSeq(w.cfg.Guid)
	if minSeq == rtps.SequenceNumberZero {
		minSeq = 1
	}
	w.mu.Lock()
	w.hbCount++
	count := w.hbCount
	w.mu.Unlock()

	for _, rp := range w.snapshotProxies() {
		hb := wire.Heartbeat{
			ReaderId: rp.RemoteReaderGuid.EntityId,
			WriterId: w.writerId,
			FirstSn:  minSeq,
			LastSn:   maxSeq,
			Count:    count,
			Final:    final,
		}
		b := wire.NewBuilder(w.cfg.Guid.Prefix)
		appendHeartbeat(b, hb)
		_ = send(w.sender, destinationOf(rp), w.cfg.Guid.Prefix, b)
	}
}

// ReceiveAckNack applies an incoming AckNack from remoteReader to its
// ReaderProxy and schedules a coalesced response after
// nack_response_delay (spec §4.3), subject to nack_suppression_duration
// rate limiting so a burst of AckNacks from the same reader only
// produces one response per window.
func (w *StatefulWriter) ReceiveAckNack(remoteReader rtps.Guid, ack wire.AckNack) {
	w.mu.Lock()
	rp, ok := w.proxies[remoteReader]
	w.mu.Unlock()
	if !ok {
		return
	}
	rp.ProcessAckNack(ack.ReaderSnState, w.MaxSequenceNumber())
	if ack.Final && len(rp.RequestedChanges()) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if last, ok := w.lastNackAt[remoteReader]; ok && time.Since(last) < w.cfg.NackSuppressionDuration {
		return // within the suppression window: a response is already due or just sent
	}
	if _, pending := w.nackPending[remoteReader]; pending {
		return // already coalescing a response
	}
	w.nackPending[remoteReader] = time.AfterFunc(w.cfg.NackResponseDelay, func() {
		w.respondTo(remoteReader, rp)
	})
}

func (w *StatefulWriter) respondTo(remoteReader rtps.Guid, rp *proxy.ReaderProxy) {
	w.mu.Lock()
	delete(w.nackPending, remoteReader)
	w.lastNackAt[remoteReader] = time.Now()
	w.mu.Unlock()

	loc := destinationOf(rp)
	for _, seq := range rp.RequestedChanges() {
		change, ok := w.cache.GetBySeq(w.cfg.Guid, seq)
		if !ok {
			// the sample was already evicted: tell the reader it is
			// irrecoverably gone (spec §4.3/§4.4 Gap).
			b := wire.NewBuilder(w.cfg.Guid.Prefix)
			gapList := rtps.NewSequenceNumberSet(seq + 1)
			appendGap(b, wire.Gap{ReaderId: rp.RemoteReaderGuid.EntityId, WriterId: w.writerId, GapStart: seq, GapList: gapList})
			_ = send(w.sender, loc, w.cfg.Guid.Prefix, b)
			rp.SetStatus(seq, proxy.Acknowledged)
			continue
		}
		w.pushOne(rp, change)
	}
}

// IsAckedByAll reports whether every matched reader has acknowledged
// every sample up to this writer's current max sequence number (spec
// §4.3 is_acked_by_all).
func (w *StatefulWriter) IsAckedByAll() bool {
	maxSeq := w.MaxSequenceNumber()
	for _, rp := range w.snapshotProxies() {
		if !rp.AckedByAll(maxSeq) {
			return false
		}
	}
	return true
}

// WaitForAcknowledgments blocks until IsAckedByAll or timeout elapses,
// returning true if every matched reader acknowledged in time (spec
// §4.3 wait_for_acknowledgments).
func (w *StatefulWriter) WaitForAcknowledgments(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if w.IsAckedByAll() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
