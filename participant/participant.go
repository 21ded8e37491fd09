// Package participant provides Participant, a thin composition root
// wiring the wire codec, history caches, reader/writer behaviors, the
// message receiver, discovery agents and the matching engine into one
// addressable RTPS domain participant (spec §1, §4.6) — not the full
// DDS entity facade (out of scope per §1), just enough to exercise the
// core end-to-end.
//
// It lives in its own package rather than the root rtps package: every
// package it wires (pkg/discovery, pkg/match, pkg/receiver, pkg/writer,
// pkg/reader, transport) already imports rtps for Guid/Locator/Duration,
// so hosting Participant in rtps itself would close an import cycle.
//
// Grounded on the teacher's canopen.Network: a composition root that
// owns a bus connection, a node table and the SDO/PDO/NMT/heartbeat
// subsystems, exposing CreateLocalNode-style constructors that wire a
// new entity into every subsystem at once.
package participant

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/discovery"
	"github.com/lumendds/rtps/pkg/match"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/reader"
	"github.com/lumendds/rtps/pkg/receiver"
	"github.com/lumendds/rtps/pkg/status"
	"github.com/lumendds/rtps/pkg/writer"
	"github.com/lumendds/rtps/transport"
)

// Config configures a Participant at construction (spec §4.6).
type Config struct {
	DomainId           uint32
	ParticipantId      uint32
	GuidPrefix         rtps.GuidPrefix
	Transport          transport.Transport
	MetatrafficUnicast rtps.Locator
	DefaultUnicast     rtps.Locator
	LeaseDuration      rtps.Duration // SPDP lease this participant advertises
	HeartbeatPeriod    time.Duration
	NackResponseDelay  time.Duration
	NackSuppression    time.Duration
	StatusQueueDepth   int
	Logger             *slog.Logger
}

// Participant is one RTPS domain participant: the built-in SPDP/SEDP
// endpoints, the matching directory, the status bus and every
// user-created reader/writer created through it (spec §4.6).
type Participant struct {
	cfg    Config
	guid   rtps.Guid
	logger *slog.Logger

	receiver  *receiver.MessageReceiver
	directory *match.Directory
	bus       *status.Bus
	spdp      *discovery.SpdpAgent
	sedp      *discovery.SedpAgent

	mu            sync.Mutex
	writers       map[rtps.EntityId]*writer.StatefulWriter
	readers       map[rtps.EntityId]*reader.StatefulReader
	nextEntityKey uint32
}

// New builds a Participant but does not start its background loops;
// call Start to begin announcing and processing inbound traffic.
func New(cfg Config) *Participant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HeartbeatPeriod <= 0 {
		cfg.HeartbeatPeriod = 1 * time.Second
	}
	if cfg.NackResponseDelay <= 0 {
		cfg.NackResponseDelay = 200 * time.Millisecond
	}
	if cfg.LeaseDuration.Sec == 0 && cfg.LeaseDuration.Nanosec == 0 {
		cfg.LeaseDuration = rtps.DurationFromTimeDuration(100 * time.Second)
	}

	guid := rtps.Guid{Prefix: cfg.GuidPrefix, EntityId: rtps.EntityIdParticipant}
	logrusEntry := logrus.NewEntry(logrus.StandardLogger()).WithField("participant", cfg.GuidPrefix.String())

	p := &Participant{
		cfg:      cfg,
		guid:     guid,
		logger:   cfg.Logger.With("participant", cfg.GuidPrefix.String()),
		receiver: receiver.New(cfg.GuidPrefix),
		bus:      status.NewBus(cfg.StatusQueueDepth, cfg.Logger),
		writers:  make(map[rtps.EntityId]*writer.StatefulWriter),
		readers:  make(map[rtps.EntityId]*reader.StatefulReader),
	}
	p.directory = match.NewDirectory(p.bus)

	spdpWriterCfg := writer.Config{
		Guid:      rtps.Guid{Prefix: cfg.GuidPrefix, EntityId: rtps.EntityIdSpdpBuiltinWriter},
		TopicName: "DCPSParticipant",
		TypeName:  "DiscoveredParticipantData",
		PushMode:  true,
	}
	spdpHistory := qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	spdpWriter := writer.NewStatelessWriter(spdpWriterCfg, spdpHistory, qos.ResourceLimitsQos{}, cfg.Transport)
	p.spdp = discovery.NewSpdpAgent(spdpWriter, p.selfParticipantData, p, logrusEntry)

	p.sedp = discovery.NewSedpAgent(cfg.GuidPrefix, cfg.Transport, p, cfg.HeartbeatPeriod, cfg.NackResponseDelay, cfg.NackSuppression, logrusEntry)

	p.receiver.RegisterReader(rtps.EntityIdSpdpBuiltinReader, p.spdp)
	p.receiver.RegisterReader(rtps.EntityIdSedpPubReader, p.sedp.PubReaderSink())
	p.receiver.RegisterReader(rtps.EntityIdSedpSubReader, p.sedp.SubReaderSink())
	p.receiver.RegisterWriter(rtps.EntityIdSedpPubWriter, p.sedp.PubWriter)
	p.receiver.RegisterWriter(rtps.EntityIdSedpSubWriter, p.sedp.SubWriter)

	return p
}

// Start subscribes the participant's MessageReceiver to its transport
// and begins the SPDP announce loop and SEDP heartbeat loops.
func (p *Participant) Start() {
	p.cfg.Transport.Subscribe(p.receiver)
	p.bus.Start()
	p.spdp.ReaderLocatorAdd(proxy.NewReaderLocator(rtps.NewLocatorUDPv4(rtps.SpdpMulticastAddress, rtps.SpdpMulticastPort(p.cfg.DomainId)), false))
	p.spdp.Start(discovery.SpdpDefaultPeriod)
	p.sedp.Start()
}

// Stop halts every background loop and the status bus. The transport
// itself is closed by the caller, which owns its lifetime.
func (p *Participant) Stop() {
	p.spdp.Stop()
	p.sedp.Stop()
	p.bus.Stop()
}

// Guid is this participant's own GUID.
func (p *Participant) Guid() rtps.Guid { return p.guid }

// Bus exposes the status bus for status-condition/waitset subscribers.
func (p *Participant) Bus() *status.Bus { return p.bus }

func (p *Participant) selfParticipantData() discovery.DiscoveredParticipantData {
	var unicast, multicast []rtps.Locator
	if p.cfg.MetatrafficUnicast.Kind != 0 {
		unicast = []rtps.Locator{p.cfg.MetatrafficUnicast}
	}
	return discovery.DiscoveredParticipantData{
		Guid:                      p.guid,
		ProtocolVersion:           [2]byte{2, 3},
		VendorId:                  [2]byte{0x01, 0xff},
		AvailableBuiltinEndpoints: discoveryBuiltinEndpoints,
		MetatrafficUnicastLocators: unicast,
		MetatrafficMulticastLocators: multicast,
		DefaultUnicastLocators:    []rtps.Locator{p.cfg.DefaultUnicast},
		LeaseDuration:             p.cfg.LeaseDuration,
	}
}

var discoveryBuiltinEndpoints = parameter.BuiltinEndpointParticipantAnnouncer |
	parameter.BuiltinEndpointParticipantDetector |
	parameter.BuiltinEndpointPublicationsAnnouncer |
	parameter.BuiltinEndpointPublicationsDetector |
	parameter.BuiltinEndpointSubscriptionsAnnouncer |
	parameter.BuiltinEndpointSubscriptionsDetector

// CreateDataWriter builds a reliable StatefulWriter for topic/typeName,
// registers it with the MessageReceiver and matching directory, and
// announces it over SEDP (spec §4.3, §4.6.2).
func (p *Participant) CreateDataWriter(topicName, typeName string, q qos.EndpointQos) (*writer.StatefulWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entityId := p.nextEntityId(rtps.EntityKindUserWriterWithKey)
	guid := rtps.Guid{Prefix: p.cfg.GuidPrefix, EntityId: entityId}

	cfg := writer.Config{
		Guid:                    guid,
		TopicName:               topicName,
		TypeName:                typeName,
		Reliability:             q.Reliability,
		PushMode:                true,
		HeartbeatPeriod:         p.cfg.HeartbeatPeriod,
		NackResponseDelay:       p.cfg.NackResponseDelay,
		NackSuppressionDuration: p.cfg.NackSuppression,
	}
	w := writer.NewStatefulWriter(cfg, q.History, q.ResourceLimits, p.cfg.Transport)
	w.Start()

	p.writers[entityId] = w
	p.receiver.RegisterWriter(entityId, w)
	p.directory.AddLocalWriter(match.Endpoint{
		Guid:              guid,
		TopicName:         topicName,
		TypeName:          typeName,
		Qos:               q,
		UnicastLocators:   []rtps.Locator{p.cfg.DefaultUnicast},
	}, w)

	if err := p.sedp.AnnounceWriter(discovery.DiscoveredWriterData{EndpointData: discovery.EndpointData{
		Guid:            guid,
		TopicName:       topicName,
		TypeName:        typeName,
		Qos:             q,
		UnicastLocators: []rtps.Locator{p.cfg.DefaultUnicast},
	}}); err != nil {
		return nil, fmt.Errorf("announcing writer %s: %w", guid, err)
	}
	return w, nil
}

// CreateDataReader builds a reliable StatefulReader for topic/typeName,
// registers it with the MessageReceiver and matching directory, and
// announces it over SEDP.
func (p *Participant) CreateDataReader(topicName, typeName string, q qos.EndpointQos) (*reader.StatefulReader, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entityId := p.nextEntityId(rtps.EntityKindUserReaderWithKey)
	guid := rtps.Guid{Prefix: p.cfg.GuidPrefix, EntityId: entityId}

	cfg := reader.Config{
		Guid:                   guid,
		TopicName:              topicName,
		TypeName:               typeName,
		HeartbeatResponseDelay: p.cfg.NackResponseDelay,
		HeartbeatSuppression:   p.cfg.NackSuppression,
	}
	r := reader.NewStatefulReader(cfg, q.History, q.ResourceLimits, p.cfg.Transport)

	p.readers[entityId] = r
	p.receiver.RegisterReader(entityId, r)
	p.directory.AddLocalReader(match.Endpoint{
		Guid:              guid,
		TopicName:         topicName,
		TypeName:          typeName,
		Qos:               q,
		UnicastLocators:   []rtps.Locator{p.cfg.DefaultUnicast},
	}, r)

	if err := p.sedp.AnnounceReader(discovery.DiscoveredReaderData{EndpointData: discovery.EndpointData{
		Guid:            guid,
		TopicName:       topicName,
		TypeName:        typeName,
		Qos:             q,
		UnicastLocators: []rtps.Locator{p.cfg.DefaultUnicast},
	}}); err != nil {
		return nil, fmt.Errorf("announcing reader %s: %w", guid, err)
	}
	return r, nil
}

func (p *Participant) nextEntityId(kind rtps.EntityKind) rtps.EntityId {
	p.nextEntityKey++
	n := p.nextEntityKey
	return rtps.EntityId{EntityKey: [3]byte{byte(n >> 16), byte(n >> 8), byte(n)}, Kind: kind}
}

// OnParticipantDiscovered implements discovery.ParticipantSink: a
// newly discovered remote participant gets its built-in SEDP
// endpoints matched against this participant's own.
func (p *Participant) OnParticipantDiscovered(d discovery.DiscoveredParticipantData) {
	if d.Guid == p.guid {
		return
	}
	p.logger.Debug("participant discovered", "guid", d.Guid.String())
	p.sedp.MatchedParticipant(d)
}

// OnParticipantLost implements discovery.ParticipantSink: every
// endpoint belonging to a participant whose SPDP lease expired is
// unmatched everywhere.
func (p *Participant) OnParticipantLost(guid rtps.Guid) {
	p.logger.Debug("participant lost", "guid", guid.String())
	p.sedp.LostParticipant(guid.Prefix)
	p.directory.OnWriterLost(guid)
	p.directory.OnReaderLost(guid)
}

// OnWriterDiscovered implements discovery.EndpointSink: a newly
// announced remote DataWriter is matched against local readers.
func (p *Participant) OnWriterDiscovered(d discovery.DiscoveredWriterData) {
	p.directory.OnDiscoveredWriter(endpointOf(d.EndpointData))
}

// OnReaderDiscovered implements discovery.EndpointSink: a newly
// announced remote DataReader is matched against local writers.
func (p *Participant) OnReaderDiscovered(d discovery.DiscoveredReaderData) {
	ep := endpointOf(d.EndpointData)
	ep.ExpectsInlineQos = d.ExpectsInlineQos
	p.directory.OnDiscoveredReader(ep)
}

func endpointOf(e discovery.EndpointData) match.Endpoint {
	return match.Endpoint{
		Guid:              e.Guid,
		TopicName:         e.TopicName,
		TypeName:          e.TypeName,
		Qos:               e.Qos,
		UnicastLocators:   e.UnicastLocators,
		MulticastLocators: e.MulticastLocators,
	}
}

