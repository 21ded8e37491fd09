// Package reader implements the RTPS reader behaviors (spec §4.4,
// component C5): StatelessReader for best-effort traffic and
// StatefulReader for reliable, per-writer-tracked traffic.
//
// Grounded on the teacher's pkg/pdo.RPDO for the stateless half
// (receive-and-store with duplicate suppression, no acknowledgement)
// and pkg/sdo.SDOClient + pkg/heartbeat.HBConsumer for the stateful
// half's per-peer outstanding-request/timeout tracking, generalized
// from one remote node to a set of matched WriterProxies.
package reader

import (
	"sync"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/wire"
)

// Sender is the subset of transport.Transport a reader needs to send
// AckNacks back to a writer.
type Sender interface {
	Send(loc rtps.Locator, payload []byte) error
}

// Config describes the fixed, QoS-derived behavior of one reader
// (spec §3/§4.4).
type Config struct {
	Guid                   rtps.Guid
	TopicName              string
	TypeName               string
	HeartbeatResponseDelay time.Duration
	HeartbeatSuppression   time.Duration
}

type base struct {
	mu     sync.Mutex
	cfg    Config
	cache  *cache.HistoryCache
	sender Sender
}

// History exposes the underlying HistoryCache.
func (b *base) History() *cache.HistoryCache { return b.cache }

// Guid is this reader's own GUID.
func (b *base) Guid() rtps.Guid { return b.cfg.Guid }

// instanceHandleOf derives the InstanceHandle for a change; callers
// that have type-specific key extraction should build the
// CacheChange's InstanceHandle themselves before calling into a
// reader. Here the writer GUID stands in for a topic-less instance key
// when no application-level key function is wired (spec §1 scopes key
// extraction to an external collaborator).
func instanceHandleOf(writerGuid rtps.Guid) cache.InstanceHandle {
	var h cache.InstanceHandle
	copy(h[:12], writerGuid.Prefix[:])
	h[12] = writerGuid.EntityId.EntityKey[0]
	h[13] = writerGuid.EntityId.EntityKey[1]
	h[14] = writerGuid.EntityId.EntityKey[2]
	h[15] = byte(writerGuid.EntityId.Kind)
	return h
}

func changeKindOf(d wire.Data) cache.ChangeKind {
	if d.HasPayload {
		return cache.Alive
	}
	return cache.NotAliveDisposed
}

func storeData(c *cache.HistoryCache, writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	change := cache.CacheChange{
		Kind:              changeKindOf(d),
		WriterGuid:        writerGuid,
		InstanceHandle:    instanceHandleOf(writerGuid),
		SequenceNumber:    d.WriterSn,
		SerializedPayload: d.SerializedPayload,
		InlineQos:         d.InlineQos,
		SourceTimestamp:   sourceTimestamp,
	}
	return c.Add(change, cache.AlwaysEvictable)
}
