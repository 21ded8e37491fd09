package discovery

import (
	"encoding/binary"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/reader"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/lumendds/rtps/pkg/writer"
)

// EndpointSink is notified as SEDP publication/subscription
// announcements arrive.
type EndpointSink interface {
	OnWriterDiscovered(DiscoveredWriterData)
	OnReaderDiscovered(DiscoveredReaderData)
}

// pubReaderSink wraps the SEDP publications StatefulReader to decode
// Data submessages as DiscoveredWriterData before handing them to the
// matching engine, rather than leaving them as opaque payload bytes in
// the reader's own HistoryCache.
type pubReaderSink struct {
	*reader.StatefulReader
	sink EndpointSink
}

func (s *pubReaderSink) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	if err := s.StatefulReader.ReceiveData(writerGuid, d, sourceTimestamp); err != nil {
		return err
	}
	if !d.HasPayload {
		return nil
	}
	pl, err := DecodePLCDR(d.SerializedPayload)
	if err != nil {
		return err
	}
	data, err := DecodeDiscoveredWriterData(pl, binary.LittleEndian)
	if err != nil {
		return err
	}
	if s.sink != nil {
		s.sink.OnWriterDiscovered(data)
	}
	return nil
}

// subReaderSink is pubReaderSink's counterpart for the SEDP
// subscriptions channel.
type subReaderSink struct {
	*reader.StatefulReader
	sink EndpointSink
}

func (s *subReaderSink) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	if err := s.StatefulReader.ReceiveData(writerGuid, d, sourceTimestamp); err != nil {
		return err
	}
	if !d.HasPayload {
		return nil
	}
	pl, err := DecodePLCDR(d.SerializedPayload)
	if err != nil {
		return err
	}
	data, err := DecodeDiscoveredReaderData(pl, binary.LittleEndian)
	if err != nil {
		return err
	}
	if s.sink != nil {
		s.sink.OnReaderDiscovered(data)
	}
	return nil
}

// SedpAgent drives the Simple Endpoint Discovery Protocol (spec
// §4.6.2): four built-in reliable stateful endpoints (publication
// writer/reader, subscription writer/reader) that exchange
// DiscoveredWriterData/DiscoveredReaderData for every user endpoint the
// local participant creates.
//
// Grounded on the teacher's pkg/sdo reliable request/response channel
// pair, here doubled into the publication and subscription channels
// SEDP defines.
type SedpAgent struct {
	PubWriter *writer.StatefulWriter
	PubReader *reader.StatefulReader
	SubWriter *writer.StatefulWriter
	SubReader *reader.StatefulReader

	pubReaderSink *pubReaderSink
	subReaderSink *subReaderSink

	logger *logrus.Entry
}

// NewSedpAgent wires sender as the transport for all four built-in
// endpoints and returns an agent ready to register with a
// receiver.MessageReceiver (pub/sub writer/reader ids are the
// rtps.EntityIdSedp* constants) and to start heartbeating.
func NewSedpAgent(ownGuidPrefix rtps.GuidPrefix, sender writer.Sender, sink EndpointSink, heartbeatPeriod, nackResponseDelay, nackSuppression time.Duration, logger *logrus.Entry) *SedpAgent {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	reliability := qos.ReliabilityQos{Kind: qos.Reliable}

	pubWriterCfg := writer.Config{
		Guid:                    rtps.Guid{Prefix: ownGuidPrefix, EntityId: rtps.EntityIdSedpPubWriter},
		TopicName:               "DCPSPublication",
		TypeName:                "DiscoveredWriterData",
		Reliability:             reliability,
		PushMode:                true,
		HeartbeatPeriod:         heartbeatPeriod,
		NackResponseDelay:       nackResponseDelay,
		NackSuppressionDuration: nackSuppression,
	}
	subWriterCfg := pubWriterCfg
	subWriterCfg.Guid = rtps.Guid{Prefix: ownGuidPrefix, EntityId: rtps.EntityIdSedpSubWriter}
	subWriterCfg.TopicName = "DCPSSubscription"
	subWriterCfg.TypeName = "DiscoveredReaderData"

	pubReaderCfg := reader.Config{
		Guid:                   rtps.Guid{Prefix: ownGuidPrefix, EntityId: rtps.EntityIdSedpPubReader},
		TopicName:              "DCPSPublication",
		TypeName:               "DiscoveredWriterData",
		HeartbeatResponseDelay: nackResponseDelay,
		HeartbeatSuppression:   nackSuppression,
	}
	subReaderCfg := pubReaderCfg
	subReaderCfg.Guid = rtps.Guid{Prefix: ownGuidPrefix, EntityId: rtps.EntityIdSedpSubReader}
	subReaderCfg.TopicName = "DCPSSubscription"
	subReaderCfg.TypeName = "DiscoveredReaderData"

	history := qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	limits := qos.ResourceLimitsQos{}

	a := &SedpAgent{
		PubWriter: writer.NewStatefulWriter(pubWriterCfg, history, limits, sender),
		SubWriter: writer.NewStatefulWriter(subWriterCfg, history, limits, sender),
		logger:    logger.WithField("component", "sedp"),
	}
	a.PubReader = reader.NewStatefulReader(pubReaderCfg, history, limits, sender)
	a.SubReader = reader.NewStatefulReader(subReaderCfg, history, limits, sender)
	a.pubReaderSink = &pubReaderSink{StatefulReader: a.PubReader, sink: sink}
	a.subReaderSink = &subReaderSink{StatefulReader: a.SubReader, sink: sink}
	return a
}

// Start launches both writers' periodic Heartbeat loops (spec §4.3).
func (a *SedpAgent) Start() {
	a.PubWriter.Start()
	a.SubWriter.Start()
}

// Stop halts both writers' heartbeat loops.
func (a *SedpAgent) Stop() {
	a.PubWriter.Stop()
	a.SubWriter.Stop()
}

// PubReaderSink returns the decoding DataSink/HeartbeatSink/GapSink to
// register under rtps.EntityIdSedpPubReader.
func (a *SedpAgent) PubReaderSink() interface{} { return a.pubReaderSink }

// SubReaderSink returns the decoding DataSink/HeartbeatSink/GapSink to
// register under rtps.EntityIdSedpSubReader.
func (a *SedpAgent) SubReaderSink() interface{} { return a.subReaderSink }

// AnnounceWriter publishes local to the SEDP publications channel
// (spec §4.6.2), informing every matched remote participant.
func (a *SedpAgent) AnnounceWriter(local DiscoveredWriterData) error {
	pl := local.Encode(binary.LittleEndian)
	payload := EncodePLCDR(pl, binary.LittleEndian)
	return a.PubWriter.Write(instanceHandleFor(local.Guid), payload, parameter.ParameterList{})
}

// AnnounceReader publishes local to the SEDP subscriptions channel.
func (a *SedpAgent) AnnounceReader(local DiscoveredReaderData) error {
	pl := local.Encode(binary.LittleEndian)
	payload := EncodePLCDR(pl, binary.LittleEndian)
	return a.SubWriter.Write(instanceHandleFor(local.Guid), payload, parameter.ParameterList{})
}

// MatchedParticipant wires up reliable SEDP exchange with a newly
// discovered remote participant's built-in endpoints (spec §4.6.2):
// each local built-in endpoint gets a proxy addressed at the remote's
// metatraffic locators.
func (a *SedpAgent) MatchedParticipant(remote DiscoveredParticipantData) {
	unicast := remote.MetatrafficUnicastLocators
	multicast := remote.MetatrafficMulticastLocators

	remotePubWriter := rtps.Guid{Prefix: remote.Guid.Prefix, EntityId: rtps.EntityIdSedpPubWriter}
	remotePubReader := rtps.Guid{Prefix: remote.Guid.Prefix, EntityId: rtps.EntityIdSedpPubReader}
	remoteSubWriter := rtps.Guid{Prefix: remote.Guid.Prefix, EntityId: rtps.EntityIdSedpSubWriter}
	remoteSubReader := rtps.Guid{Prefix: remote.Guid.Prefix, EntityId: rtps.EntityIdSedpSubReader}

	if remote.AvailableBuiltinEndpoints&parameter.BuiltinEndpointPublicationsDetector != 0 {
		a.PubWriter.MatchedReaderAdd(proxy.NewReaderProxy(remotePubReader, unicast, multicast, false))
	}
	if remote.AvailableBuiltinEndpoints&parameter.BuiltinEndpointPublicationsAnnouncer != 0 {
		a.PubReader.MatchedWriterAdd(proxy.NewWriterProxy(remotePubWriter, unicast, multicast))
	}
	if remote.AvailableBuiltinEndpoints&parameter.BuiltinEndpointSubscriptionsDetector != 0 {
		a.SubWriter.MatchedReaderAdd(proxy.NewReaderProxy(remoteSubReader, unicast, multicast, false))
	}
	if remote.AvailableBuiltinEndpoints&parameter.BuiltinEndpointSubscriptionsAnnouncer != 0 {
		a.SubReader.MatchedWriterAdd(proxy.NewWriterProxy(remoteSubWriter, unicast, multicast))
	}
}

// LostParticipant unmatches every built-in endpoint belonging to a
// remote participant whose SPDP lease expired (spec §4.6.1).
func (a *SedpAgent) LostParticipant(remotePrefix rtps.GuidPrefix) {
	a.PubWriter.MatchedReaderRemove(rtps.Guid{Prefix: remotePrefix, EntityId: rtps.EntityIdSedpPubReader})
	a.PubReader.MatchedWriterRemove(rtps.Guid{Prefix: remotePrefix, EntityId: rtps.EntityIdSedpPubWriter})
	a.SubWriter.MatchedReaderRemove(rtps.Guid{Prefix: remotePrefix, EntityId: rtps.EntityIdSedpSubReader})
	a.SubReader.MatchedWriterRemove(rtps.Guid{Prefix: remotePrefix, EntityId: rtps.EntityIdSedpSubWriter})
}
