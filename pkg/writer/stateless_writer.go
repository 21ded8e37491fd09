package writer

import (
	"sync"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
)

// StatelessWriter is the best-effort writer behavior (spec §4.3): it
// tracks no reader acknowledgement, only a per-locator "last sent"
// cursor. SPDP uses one of these addressed at the well-known discovery
// multicast locator.
type StatelessWriter struct {
	base
	writerId rtps.EntityId
	mu       sync.Mutex
	locators []*proxy.ReaderLocator
}

// NewStatelessWriter builds a StatelessWriter for the given entity.
func NewStatelessWriter(cfg Config, history qos.HistoryQos, limits qos.ResourceLimitsQos, sender Sender) *StatelessWriter {
	cfg.Reliability.Kind = qos.BestEffort
	return &StatelessWriter{base: newBase(cfg, history, limits, sender), writerId: cfg.Guid.EntityId}
}

// ReaderLocatorAdd registers a destination for best-effort traffic
// (spec §4.3 reader_locator_add); the writer immediately catches the
// new locator up by treating every existing sample as unsent.
func (w *StatelessWriter) ReaderLocatorAdd(rl *proxy.ReaderLocator) {
	w.mu.Lock()
	w.locators = append(w.locators, rl)
	w.mu.Unlock()
	w.catchUp(rl, w.MaxSequenceNumber())
}

// ReaderLocatorRemove unregisters loc.
func (w *StatelessWriter) ReaderLocatorRemove(loc rtps.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, rl := range w.locators {
		if rl.Locator == loc {
			w.locators = append(w.locators[:i], w.locators[i+1:]...)
			return
		}
	}
}

// Write stores a new Alive sample and immediately pushes every unsent
// change to every registered locator (spec §4.3
// unsent_changes_to_reader_locator + send_changes, collapsed since
// this writer is always push-mode).
func (w *StatelessWriter) Write(instance cache.InstanceHandle, payload []byte, inlineQos parameter.ParameterList) error {
	if _, err := w.newChange(cache.Alive, instance, payload, inlineQos, cache.AlwaysEvictable); err != nil {
		return err
	}
	w.pushAll()
	return nil
}

// Dispose marks instance as disposed and pushes the disposal.
func (w *StatelessWriter) Dispose(instance cache.InstanceHandle) error {
	if _, err := w.newChange(cache.NotAliveDisposed, instance, nil, parameter.ParameterList{}, cache.AlwaysEvictable); err != nil {
		return err
	}
	w.pushAll()
	return nil
}

// pushAll catches up every registered locator to the writer's current
// max sequence number.
func (w *StatelessWriter) pushAll() {
	w.mu.Lock()
	locators := make([]*proxy.ReaderLocator, len(w.locators))
	copy(locators, w.locators)
	w.mu.Unlock()

	maxSeq := w.MaxSequenceNumber()
	for _, rl := range locators {
		w.catchUp(rl, maxSeq)
	}
}

// catchUp sends rl every sequence number in (rl's last sent, maxSeq]:
// a Data submessage for samples still held in the history cache, a
// Gap for samples that have already been evicted (spec §4.3
// unsent_changes_to_reader_locator). This is also how a locator
// registered after samples already exist gets caught up immediately.
func (w *StatelessWriter) catchUp(rl *proxy.ReaderLocator, maxSeq rtps.SequenceNumber) {
	unsent := rl.UnsentChanges(maxSeq)
	if len(unsent) == 0 {
		return
	}
	b := wire.NewBuilder(w.cfg.Guid.Prefix)
	for _, seq := range unsent {
		if change, ok := w.cache.GetBySeq(w.cfg.Guid, seq); ok {
			if change.SourceTimestamp != nil {
				appendInfoTimestamp(b, *change.SourceTimestamp)
			}
			appendData(b, dataSubmessage(rtps.EntityIdUnknown, w.writerId, change))
		} else {
			appendGap(b, wire.Gap{
				ReaderId: rtps.EntityIdUnknown,
				WriterId: w.writerId,
				GapStart: seq,
				GapList:  rtps.NewSequenceNumberSet(seq + 1),
			})
		}
	}
	_ = send(w.sender, rl.Locator, w.cfg.Guid.Prefix, b)
	rl.AdvanceUnsent(maxSeq)
}

// ResendRequested re-sends any sample a locator has explicitly
// requested (used by a local override of best-effort delivery; spec
// §4.3 does not require readers of a best-effort writer to send
// AckNacks, but nothing forbids a local API from doing so).
func (w *StatelessWriter) ResendRequested(rl *proxy.ReaderLocator) {
	for _, seq := range rl.RequestedChanges() {
		change, ok := w.cache.GetBySeq(w.cfg.Guid, seq)
		if !ok {
			continue
		}
		b := wire.NewBuilder(w.cfg.Guid.Prefix)
		if change.SourceTimestamp != nil {
			appendInfoTimestamp(b, *change.SourceTimestamp)
		}
		appendData(b, dataSubmessage(rtps.EntityIdUnknown, w.writerId, change))
		_ = send(w.sender, rl.Locator, w.cfg.Guid.Prefix, b)
	}
}
