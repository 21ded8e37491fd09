// Package status implements the RTPS status & waitset bus (spec §4.8,
// component C9): every entity's StatusCondition, the WaitSet blocking
// primitive, and a bounded listener dispatch queue so a slow user
// callback cannot stall the engine thread that raised the status.
//
// Grounded on the teacher's pkg/heartbeat.HBConsumer.OnEvent /
// HBEventCallback pattern (one callback invoked on state change) and
// pkg/emergency's error-bit bookkeeping, generalized here from one
// callback kind to the thirteen DDS status kinds of spec §4.8 and routed
// through a bounded channel rather than called synchronously from the
// producer.
package status

import (
	"log/slog"
	"sync"
)

// Kind is a bitmask of the DDS status kinds spec §4.8 requires the
// engine to publish.
type Kind uint32

const (
	DataAvailable Kind = 1 << iota
	DataOnReaders
	SampleLost
	SampleRejected
	LivelinessChanged
	RequestedDeadlineMissed
	RequestedIncompatibleQos
	SubscriptionMatched
	LivelinessLost
	OfferedDeadlineMissed
	OfferedIncompatibleQos
	PublicationMatched
	InconsistentTopic
)

// AllKinds is every status kind this bus knows about, the default
// enabled mask for a freshly-created StatusCondition.
const AllKinds = DataAvailable | DataOnReaders | SampleLost | SampleRejected |
	LivelinessChanged | RequestedDeadlineMissed | RequestedIncompatibleQos |
	SubscriptionMatched | LivelinessLost | OfferedDeadlineMissed |
	OfferedIncompatibleQos | PublicationMatched | InconsistentTopic

// Event is one status change, published by an endpoint or the
// matching engine (spec §4.6-§4.8) to the Bus.
type Event struct {
	Kind    Kind
	Payload any // e.g. qos.PolicyId for a *IncompatibleQos event
}

// Listener receives Events for one entity, synchronously from the
// Bus's dispatch goroutine (spec §4.8: "MUST NOT block the engine").
type Listener func(Event)

// Bus is a bounded, per-entity callback dispatcher. Publishers never
// block on a slow listener: Publish enqueues onto a bounded channel
// drained by one dispatch goroutine, dropping (and logging) the event
// if the queue is saturated rather than backing up the caller.
type Bus struct {
	mu        sync.RWMutex
	listeners map[any][]Listener
	queue     chan entry
	stopCh    chan struct{}
	logger    *slog.Logger
}

type entry struct {
	entityId any
	ev       Event
}

// NewBus builds a Bus with the given queue depth. Call Start to begin
// draining it.
func NewBus(queueDepth int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Bus{
		listeners: make(map[any][]Listener),
		queue:     make(chan entry, queueDepth),
		stopCh:    make(chan struct{}),
		logger:    logger.With("component", "status"),
	}
}

// Subscribe registers l to receive every Event published against entityId.
func (b *Bus) Subscribe(entityId any, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[entityId] = append(b.listeners[entityId], l)
}

// Unsubscribe removes every listener registered for entityId.
func (b *Bus) Unsubscribe(entityId any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, entityId)
}

// Publish enqueues ev for dispatch to entityId's listeners, dropping it
// (with a log line) if the queue is full rather than blocking the
// caller (spec §5: "no lock is held across... a user-listener callback").
func (b *Bus) Publish(entityId any, ev Event) {
	select {
	case b.queue <- entry{entityId: entityId, ev: ev}:
	default:
		b.logger.Warn("status queue full, dropping event", "kind", ev.Kind)
	}
}

// Start launches the dispatch goroutine.
func (b *Bus) Start() {
	go b.run()
}

// Stop halts the dispatch goroutine. Already-queued events are dropped.
func (b *Bus) Stop() {
	close(b.stopCh)
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(e)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) dispatch(e entry) {
	b.mu.RLock()
	ls := append([]Listener(nil), b.listeners[e.entityId]...)
	b.mu.RUnlock()
	for _, l := range ls {
		l(e.ev)
	}
}
