package reader

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
)

var wireOrder = binary.LittleEndian

const eFlag = 0x01

// StatefulReader is the reliable reader behavior (spec §4.4): it
// tracks each matched writer's delivery state via a proxy.WriterProxy
// and sends coalesced AckNacks in response to Heartbeats, subject to
// heartbeat_response_delay and heartbeat_suppression_duration.
type StatefulReader struct {
	base
	readerId rtps.EntityId

	mu        sync.Mutex
	proxies   map[rtps.Guid]*proxy.WriterProxy
	hbPending map[rtps.Guid]*time.Timer
	lastHbAt  map[rtps.Guid]time.Time
}

// NewStatefulReader builds a StatefulReader for the given entity.
func NewStatefulReader(cfg Config, history qos.HistoryQos, limits qos.ResourceLimitsQos, sender Sender) *StatefulReader {
	return &StatefulReader{
		base:      base{cfg: cfg, cache: cache.New(history, limits), sender: sender},
		readerId:  cfg.Guid.EntityId,
		proxies:   make(map[rtps.Guid]*proxy.WriterProxy),
		hbPending: make(map[rtps.Guid]*time.Timer),
		lastHbAt:  make(map[rtps.Guid]time.Time),
	}
}

// MatchedWriterAdd registers wp as a matched writer (spec §4.4
// matched_writer_add).
func (r *StatefulReader) MatchedWriterAdd(wp *proxy.WriterProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proxies[wp.RemoteWriterGuid] = wp
}

// MatchedWriterRemove unregisters a writer by GUID.
func (r *StatefulReader) MatchedWriterRemove(remote rtps.Guid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.proxies, remote)
	if t, ok := r.hbPending[remote]; ok {
		t.Stop()
		delete(r.hbPending, remote)
	}
}

func (r *StatefulReader) proxyFor(remote rtps.Guid) (*proxy.WriterProxy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wp, ok := r.proxies[remote]
	return wp, ok
}

// ReceiveData applies an incoming Data submessage: stores the sample
// and marks it Received on the sending writer's proxy (spec §4.4).
func (r *StatefulReader) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	if wp, ok := r.proxyFor(writerGuid); ok {
		wp.MarkReceived(d.WriterSn)
	}
	return storeData(r.cache, writerGuid, d, sourceTimestamp)
}

// ReceiveHeartbeat applies an incoming Heartbeat and, unless it is
// final with nothing missing, schedules a coalesced AckNack after heartbeat_response_delay
// (spec §4.4), subject to heartbeat_suppression_duration rate
// limiting.
func (r *StatefulReader) ReceiveHeartbeat(writerGuid rtps.Guid, hb wire.Heartbeat) {
	wp, ok := r.proxyFor(writerGuid)
	if !ok {
		return
	}
	wp.ProcessHeartbeat(hb.FirstSn, hb.LastSn)
	if hb.Final && len(wp.MissingChanges()) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.lastHbAt[writerGuid]; ok && time.Since(last) < r.cfg.HeartbeatSuppression {
		return
	}
	if _, pending := r.hbPending[writerGuid]; pending {
		return
	}
	r.hbPending[writerGuid] = time.AfterFunc(r.cfg.HeartbeatResponseDelay, func() {
		r.sendAckNack(writerGuid, wp)
	})
}

// ReceiveGap applies an incoming Gap to the sending writer's proxy.
func (r *StatefulReader) ReceiveGap(writerGuid rtps.Guid, g wire.Gap) {
	if wp, ok := r.proxyFor(writerGuid); ok {
		wp.ProcessGap(g.GapStart, g.GapList)
	}
}

func (r *StatefulReader) sendAckNack(writerGuid rtps.Guid, wp *proxy.WriterProxy) {
	r.mu.Lock()
	delete(r.hbPending, writerGuid)
	r.lastHbAt[writerGuid] = time.Now()
	r.mu.Unlock()

	base := wp.AvailableChangesMax() + 1
	set := rtps.NewSequenceNumberSet(base)
	missing := wp.MissingChanges()
	for _, seq := range missing {
		set.Add(seq)
	}
	ack := wire.AckNack{
		ReaderId:      r.readerId,
		WriterId:      writerGuid.EntityId,
		ReaderSnState: set,
		Count:         wp.NextAckNackCount(),
		Final:         len(missing) == 0,
	}
	buf := make([]byte, ack.EncodedLen())
	n, err := ack.Encode(buf, wireOrder)
	if err != nil {
		return
	}
	b := wire.NewBuilder(r.cfg.Guid.Prefix)
	b.Add(wire.SubmessageIdAckNack, eFlag|ack.Flags(), buf[:n])
	msg := b.Build()
	out := make([]byte, msg.EncodedLen())
	n2, err := msg.Encode(out)
	if err != nil {
		return
	}
	loc := destinationOf(wp)
	_ = r.sender.Send(loc, out[:n2])
}

func destinationOf(wp *proxy.WriterProxy) rtps.Locator {
	if len(wp.UnicastLocators) > 0 {
		return wp.UnicastLocators[0]
	}
	if len(wp.MulticastLocators) > 0 {
		return wp.MulticastLocators[0]
	}
	return rtps.InvalidLocator
}
