// Package writer implements the RTPS writer behaviors (spec §4.3,
// component C4): StatelessWriter for best-effort/SPDP-style traffic
// and StatefulWriter for reliable, per-reader-tracked traffic.
//
// Grounded on the teacher's pkg/pdo.TPDO (a periodic/event-driven push
// producer with a single history slot) for the stateless half's
// push-on-write loop, and on pkg/sdo.SDOServer's timeout-driven
// request/response state machine for the stateful half's heartbeat/
// nack-response timing.
package writer

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/lumendds/rtps/transport"
)

// wireOrder is the byte order this module always encodes with; readers
// determine it from the E flag, so any fixed choice interoperates.
var wireOrder = binary.LittleEndian

const eFlag = 0x01

// appendData encodes d and appends it to b as a Data submessage.
func appendData(b *wire.Builder, d wire.Data) {
	buf := make([]byte, d.EncodedLen())
	n, err := d.Encode(buf, wireOrder)
	if err != nil {
		return
	}
	b.Add(wire.SubmessageIdData, eFlag|d.Flags(), buf[:n])
}

// appendHeartbeat encodes hb and appends it to b.
func appendHeartbeat(b *wire.Builder, hb wire.Heartbeat) {
	buf := make([]byte, wire.HeartbeatEncodedLen())
	n, err := hb.Encode(buf, wireOrder)
	if err != nil {
		return
	}
	b.Add(wire.SubmessageIdHeartbeat, eFlag|hb.Flags(), buf[:n])
}

// appendInfoTimestamp encodes an InfoTimestamp submessage carrying ts
// and appends it to b, ahead of the Data submessage it applies to
// (spec §4.5's source_timestamp context).
func appendInfoTimestamp(b *wire.Builder, ts time.Time) {
	it := wire.InfoTimestamp{Timestamp: rtps.Duration{Sec: int32(ts.Unix()), Nanosec: uint32(ts.Nanosecond())}}
	buf := make([]byte, 8)
	n, err := it.Encode(buf, wireOrder)
	if err != nil {
		return
	}
	b.Add(wire.SubmessageIdInfoTimestamp, eFlag|it.Flags(), buf[:n])
}

// appendGap encodes g and appends it to b.
func appendGap(b *wire.Builder, g wire.Gap) {
	buf := make([]byte, g.EncodedLen())
	n, err := g.Encode(buf, wireOrder)
	if err != nil {
		return
	}
	b.Add(wire.SubmessageIdGap, eFlag, buf[:n])
}

// Sender is the subset of transport.Transport a writer needs.
type Sender interface {
	Send(loc rtps.Locator, payload []byte) error
}

var _ Sender = (transport.Transport)(nil)

// Config describes the fixed, QoS-derived behavior of one writer
// (spec §3/§4.3).
type Config struct {
	Guid                    rtps.Guid
	TopicName               string
	TypeName                string
	Reliability             qos.ReliabilityQos
	PushMode                bool // recorded only: both writers send immediately on write whatever its value
	HeartbeatPeriod         time.Duration
	NackResponseDelay       time.Duration
	NackSuppressionDuration time.Duration
}

// base holds the fields and behavior shared by StatelessWriter and
// StatefulWriter (spec §3's common RTPS Writer attributes).
type base struct {
	mu     sync.Mutex
	cfg    Config
	cache  *cache.HistoryCache
	lastSn rtps.SequenceNumber
	sender Sender
}

func newBase(cfg Config, history qos.HistoryQos, limits qos.ResourceLimitsQos, sender Sender) base {
	return base{cfg: cfg, cache: cache.New(history, limits), sender: sender}
}

// NewChange allocates the next sequence number for this writer and
// stores the sample in its HistoryCache (spec §3 new_change/write).
// evictable governs KeepLast eviction eligibility — a stateful writer
// passes a predicate checking "acked by every matched reader", a
// stateless writer passes cache.AlwaysEvictable.
func (b *base) newChange(kind cache.ChangeKind, instance cache.InstanceHandle, payload []byte, inlineQos parameter.ParameterList, evictable cache.EvictablePredicate) (cache.CacheChange, error) {
	b.mu.Lock()
	b.lastSn++
	seq := b.lastSn
	b.mu.Unlock()

	now := time.Now()
	change := cache.CacheChange{
		Kind:              kind,
		WriterGuid:        b.cfg.Guid,
		InstanceHandle:    instance,
		SequenceNumber:    seq,
		SerializedPayload: payload,
		InlineQos:         inlineQos,
		SourceTimestamp:   &now,
	}
	if err := b.cache.Add(change, evictable); err != nil {
		return cache.CacheChange{}, err
	}
	return change, nil
}

// MaxSequenceNumber returns the highest sequence number currently held
// for this writer's own GUID.
func (b *base) MaxSequenceNumber() rtps.SequenceNumber {
	return b.cache.MaxSeq(b.cfg.Guid)
}

// History exposes the underlying HistoryCache (e.g. for a discovery
// agent publishing SEDP endpoint data through this writer).
func (b *base) History() *cache.HistoryCache { return b.cache }

// Guid is this writer's own GUID.
func (b *base) Guid() rtps.Guid { return b.cfg.Guid }

// dataSubmessage builds the wire.Data submessage for one cached change
// addressed to readerId (EntityIdUnknown for a multicast/any-reader send).
func dataSubmessage(readerId rtps.EntityId, writerId rtps.EntityId, change cache.CacheChange) wire.Data {
	return wire.Data{
		ReaderId:          readerId,
		WriterId:          writerId,
		WriterSn:          change.SequenceNumber,
		InlineQos:         change.InlineQos,
		HasInlineQos:      len(change.InlineQos.Parameters) > 0,
		SerializedPayload: change.SerializedPayload,
		HasPayload:        change.Kind == cache.Alive,
	}
}

// send encodes b's accumulated submessages into one Message addressed
// from sourcePrefix and writes it to loc.
func send(sender Sender, loc rtps.Locator, sourcePrefix rtps.GuidPrefix, b *wire.Builder) error {
	if b.Empty() {
		return nil
	}
	msg := b.Build()
	buf := make([]byte, msg.EncodedLen())
	n, err := msg.Encode(buf)
	if err != nil {
		return err
	}
	return sender.Send(loc, buf[:n])
}
