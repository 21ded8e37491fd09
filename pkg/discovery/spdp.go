package discovery

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/lumendds/rtps/pkg/writer"
)

// SpdpDefaultPeriod is the default interval between SPDP announcements
// (spec §4.6.1), matching the OMG DDSI-RTPS recommended default.
const SpdpDefaultPeriod = 3 * time.Second

// ParticipantSink is notified when a new or refreshed participant is
// discovered, or a previously-discovered one's lease expires.
type ParticipantSink interface {
	OnParticipantDiscovered(DiscoveredParticipantData)
	OnParticipantLost(rtps.Guid)
}

// SpdpAgent drives the Simple Participant Discovery Protocol (spec
// §4.6.1): it periodically announces this participant's own
// DiscoveredParticipantData to the SPDP multicast locator and tracks
// every remote participant's lease, expiring it with a timer at
// 1.5x lease_duration.
//
// Grounded on the teacher's pkg/heartbeat.HBConsumer: a per-peer
// AfterFunc timer reset on every received announcement, firing
// NodeGuardingTimeout when a peer goes silent, generalized here from
// one CANopen node's heartbeat to an RTPS participant's SPDP lease.
type SpdpAgent struct {
	writer *writer.StatelessWriter
	self   func() DiscoveredParticipantData
	sink   ParticipantSink
	logger *logrus.Entry

	mu      sync.Mutex
	leases  map[rtps.Guid]*time.Timer
	stopCh  chan struct{}
	stopped sync.Once
}

// NewSpdpAgent builds an SpdpAgent that announces via w (a
// StatelessWriter addressed at the domain's SPDP multicast locator)
// and calls self to render the current announcement payload on every tick.
func NewSpdpAgent(w *writer.StatelessWriter, self func() DiscoveredParticipantData, sink ParticipantSink, logger *logrus.Entry) *SpdpAgent {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SpdpAgent{
		writer: w,
		self:   self,
		sink:   sink,
		logger: logger.WithField("component", "spdp"),
		leases: make(map[rtps.Guid]*time.Timer),
		stopCh: make(chan struct{}),
	}
}

// ReaderLocatorAdd registers the SPDP multicast destination this agent
// announces to.
func (a *SpdpAgent) ReaderLocatorAdd(rl *proxy.ReaderLocator) {
	a.writer.ReaderLocatorAdd(rl)
}

// Start announces immediately, then every period (SpdpDefaultPeriod if
// period <= 0), until Stop is called.
func (a *SpdpAgent) Start(period time.Duration) {
	if period <= 0 {
		period = SpdpDefaultPeriod
	}
	a.announce()
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				a.announce()
			case <-a.stopCh:
				return
			}
		}
	}()
}

// Stop halts announcement and cancels every outstanding lease timer.
func (a *SpdpAgent) Stop() {
	a.stopped.Do(func() { close(a.stopCh) })
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.leases {
		t.Stop()
	}
}

func (a *SpdpAgent) announce() {
	data := a.self()
	order := binary.ByteOrder(binary.LittleEndian)
	pl := data.Encode(order)
	payload := EncodePLCDR(pl, order)
	if err := a.writer.Write(instanceHandleFor(data.Guid), payload, parameter.ParameterList{}); err != nil {
		a.logger.WithError(err).Warn("failed to announce SPDP data")
	}
}

// ReceiveData decodes an inbound SPDP announcement and refreshes the
// sending participant's lease (spec §4.6.1). A Data without payload
// expires that participant's lease at once. The agent holds no reader
// and caches nothing: SPDP data is consumed directly.
func (a *SpdpAgent) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	if !d.HasPayload {
		a.expire(writerGuid)
		return nil
	}
	pl, err := DecodePLCDR(d.SerializedPayload)
	if err != nil {
		return err
	}
	order := binary.ByteOrder(binary.LittleEndian)
	data, err := DecodeDiscoveredParticipantData(pl, order)
	if err != nil {
		return err
	}
	a.trackLease(data)
	if a.sink != nil {
		a.sink.OnParticipantDiscovered(data)
	}
	return nil
}

func (a *SpdpAgent) trackLease(data DiscoveredParticipantData) {
	lease := data.LeaseDuration.AsTimeDuration()
	if data.LeaseDuration.Infinite() {
		a.mu.Lock()
		if t, ok := a.leases[data.Guid]; ok {
			t.Stop()
			delete(a.leases, data.Guid)
		}
		a.mu.Unlock()
		return
	}
	expiry := time.Duration(float64(lease) * 1.5)

	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.leases[data.Guid]; ok {
		t.Stop()
	}
	guid := data.Guid
	a.leases[guid] = time.AfterFunc(expiry, func() { a.expire(guid) })
}

func (a *SpdpAgent) expire(guid rtps.Guid) {
	a.mu.Lock()
	if t, ok := a.leases[guid]; ok {
		t.Stop()
		delete(a.leases, guid)
	}
	a.mu.Unlock()
	if a.sink != nil {
		a.sink.OnParticipantLost(guid)
	}
}

func instanceHandleFor(guid rtps.Guid) [16]byte {
	var h [16]byte
	copy(h[:12], guid.Prefix[:])
	h[12] = guid.EntityId.EntityKey[0]
	h[13] = guid.EntityId.EntityKey[1]
	h[14] = guid.EntityId.EntityKey[2]
	h[15] = byte(guid.EntityId.Kind)
	return h
}
