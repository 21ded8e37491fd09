// Package discovery implements the Simple Participant Discovery
// Protocol and Simple Endpoint Discovery Protocol (spec §4.6, component
// C7): the built-in data types participants exchange to learn about
// each other's endpoints, and the two agents (SpdpAgent, SedpAgent)
// that drive their periodic announcement, reception and lease tracking.
//
// Grounded on the teacher's pkg/nmt (periodic heartbeat announcement of
// node state) and pkg/heartbeat.HBConsumer (per-peer liveliness/lease
// tracking with an expiry timer), generalized from a single CANopen bus
// to RTPS's two discovery channels; field layout for the discovered
// data types confirmed against
// original_source/rtps/src/discovery/spdp_endpoints.rs and
// original_source/rtps/src/discovery/builtin_endpoints.rs.
package discovery

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/qos"
)

// RepresentationId is the 2-byte CDR representation identifier
// prefixing every discovery payload (spec §6).
type RepresentationId uint16

const (
	RepresentationCdrBE   RepresentationId = 0x0000
	RepresentationCdrLE   RepresentationId = 0x0001
	RepresentationPlCdrBE RepresentationId = 0x0002
	RepresentationPlCdrLE RepresentationId = 0x0003
)

// EncodePLCDR wraps pl's wire encoding with the 4-byte representation
// header (spec §6): 2-byte representation id plus 2 reserved option
// bytes (always zero here).
func EncodePLCDR(pl parameter.ParameterList, order binary.ByteOrder) []byte {
	repId := RepresentationPlCdrBE
	if order == binary.LittleEndian {
		repId = RepresentationPlCdrLE
	}
	body := make([]byte, 4+parameter.EncodedLen(pl))
	binary.BigEndian.PutUint16(body[0:2], uint16(repId))
	binary.BigEndian.PutUint16(body[2:4], 0)
	n, err := parameter.Encode(pl, body[4:], order)
	if err != nil {
		return body[:4]
	}
	return body[:4+n]
}

// DecodePLCDR strips the representation header from buf and parses the
// remainder as a ParameterList, using the byte order the header names.
func DecodePLCDR(buf []byte) (parameter.ParameterList, error) {
	if len(buf) < 4 {
		return parameter.ParameterList{}, fmt.Errorf("discovery payload too short for representation header: %w", rtps.ErrMalformedSubmessage)
	}
	repId := RepresentationId(binary.BigEndian.Uint16(buf[0:2]))
	order := binary.ByteOrder(binary.BigEndian)
	if repId == RepresentationPlCdrLE || repId == RepresentationCdrLE {
		order = binary.LittleEndian
	}
	pl, _, err := parameter.Decode(buf[4:], order)
	return pl, err
}

// DiscoveredParticipantData is the SPDP announcement payload (spec
// §4.6.1): everything a remote participant needs to start SEDP with us.
type DiscoveredParticipantData struct {
	Guid                         rtps.Guid
	ProtocolVersion              [2]byte
	VendorId                     [2]byte
	ExpectsInlineQos             bool
	AvailableBuiltinEndpoints    parameter.BuiltinEndpointSet
	MetatrafficUnicastLocators   []rtps.Locator
	MetatrafficMulticastLocators []rtps.Locator
	DefaultUnicastLocators       []rtps.Locator
	DefaultMulticastLocators     []rtps.Locator
	LeaseDuration                rtps.Duration
}

// Encode renders d as a ParameterList (spec §4.6.1, §6).
func (d DiscoveredParticipantData) Encode(order binary.ByteOrder) parameter.ParameterList {
	var pl parameter.ParameterList
	pl.AddGuid(parameter.PidParticipantGuid, d.Guid)
	proto := append([]byte(nil), d.ProtocolVersion[:]...)
	pl.Add(parameter.PidProtocolVersion, padTo4(proto))
	vendor := append([]byte(nil), d.VendorId[:]...)
	pl.Add(parameter.PidVendorId, padTo4(vendor))
	beSet := make([]byte, 4)
	order.PutUint32(beSet, uint32(d.AvailableBuiltinEndpoints))
	pl.Add(parameter.PidBuiltinEndpointSet, beSet)
	for _, loc := range d.MetatrafficUnicastLocators {
		pl.AddLocator(parameter.PidMetaUnicastLocator, order, loc)
	}
	for _, loc := range d.MetatrafficMulticastLocators {
		pl.AddLocator(parameter.PidMetaMulticastLocator, order, loc)
	}
	for _, loc := range d.DefaultUnicastLocators {
		pl.AddLocator(parameter.PidDefaultUnicastLocator, order, loc)
	}
	for _, loc := range d.DefaultMulticastLocators {
		pl.AddLocator(parameter.PidDefaultMulticastLocator, order, loc)
	}
	lease := make([]byte, 8)
	order.PutUint32(lease[0:4], uint32(d.LeaseDuration.Sec))
	order.PutUint32(lease[4:8], d.LeaseDuration.Nanosec)
	pl.Add(parameter.PidLeaseDuration, lease)
	return pl
}

// DecodeDiscoveredParticipantData parses pl into a
// DiscoveredParticipantData, using order for multi-byte fields.
func DecodeDiscoveredParticipantData(pl parameter.ParameterList, order binary.ByteOrder) (DiscoveredParticipantData, error) {
	var d DiscoveredParticipantData
	p, ok := pl.Get(parameter.PidParticipantGuid)
	if !ok {
		return d, fmt.Errorf("SPDP data missing participant guid: %w", rtps.ErrMalformedSubmessage)
	}
	guid, err := p.Guid()
	if err != nil {
		return d, err
	}
	d.Guid = guid

	if p, ok := pl.Get(parameter.PidProtocolVersion); ok && len(p.Value) >= 2 {
		copy(d.ProtocolVersion[:], p.Value[:2])
	}
	if p, ok := pl.Get(parameter.PidVendorId); ok && len(p.Value) >= 2 {
		copy(d.VendorId[:], p.Value[:2])
	}
	if p, ok := pl.Get(parameter.PidBuiltinEndpointSet); ok && len(p.Value) >= 4 {
		d.AvailableBuiltinEndpoints = parameter.BuiltinEndpointSet(order.Uint32(p.Value))
	}
	if _, ok := pl.Get(parameter.PidExpectsInlineQos); ok {
		d.ExpectsInlineQos = true
	}
	for _, p := range pl.GetAll(parameter.PidMetaUnicastLocator) {
		if loc, err := p.Locator(order); err == nil {
			d.MetatrafficUnicastLocators = append(d.MetatrafficUnicastLocators, loc)
		}
	}
	for _, p := range pl.GetAll(parameter.PidMetaMulticastLocator) {
		if loc, err := p.Locator(order); err == nil {
			d.MetatrafficMulticastLocators = append(d.MetatrafficMulticastLocators, loc)
		}
	}
	for _, p := range pl.GetAll(parameter.PidDefaultUnicastLocator) {
		if loc, err := p.Locator(order); err == nil {
			d.DefaultUnicastLocators = append(d.DefaultUnicastLocators, loc)
		}
	}
	for _, p := range pl.GetAll(parameter.PidDefaultMulticastLocator) {
		if loc, err := p.Locator(order); err == nil {
			d.DefaultMulticastLocators = append(d.DefaultMulticastLocators, loc)
		}
	}
	d.LeaseDuration = rtps.DurationInfinite
	if p, ok := pl.Get(parameter.PidLeaseDuration); ok && len(p.Value) >= 8 {
		d.LeaseDuration = rtps.Duration{
			Sec:     int32(order.Uint32(p.Value[0:4])),
			Nanosec: order.Uint32(p.Value[4:8]),
		}
	}
	return d, nil
}

// EndpointData is the field set shared by DiscoveredReaderData and
// DiscoveredWriterData (spec §4.6.2): both are announced over SEDP as
// one topic/type/QoS/locator descriptor.
type EndpointData struct {
	Guid              rtps.Guid
	TopicName         string
	TypeName          string
	Qos               qos.EndpointQos
	UnicastLocators   []rtps.Locator
	MulticastLocators []rtps.Locator
}

func encodeEndpointData(e EndpointData, order binary.ByteOrder) parameter.ParameterList {
	var pl parameter.ParameterList
	pl.AddGuid(parameter.PidEndpointGuid, e.Guid)
	pl.AddString(parameter.PidTopicName, order, e.TopicName)
	pl.AddString(parameter.PidTypeName, order, e.TypeName)

	rel := make([]byte, 12)
	order.PutUint32(rel[0:4], uint32(e.Qos.Reliability.Kind))
	order.PutUint32(rel[4:8], uint32(e.Qos.Reliability.MaxBlockingTime.Sec))
	order.PutUint32(rel[8:12], e.Qos.Reliability.MaxBlockingTime.Nanosec)
	pl.Add(parameter.PidReliability, rel)

	dur := make([]byte, 4)
	order.PutUint32(dur, uint32(e.Qos.Durability.Kind))
	pl.Add(parameter.PidDurability, dur)

	dl := make([]byte, 8)
	order.PutUint32(dl[0:4], uint32(e.Qos.Deadline.Period.Sec))
	order.PutUint32(dl[4:8], e.Qos.Deadline.Period.Nanosec)
	pl.Add(parameter.PidDeadline, dl)

	for _, name := range e.Qos.Partition.Names {
		pl.AddString(parameter.PidPartition, order, name)
	}
	for _, loc := range e.UnicastLocators {
		pl.AddLocator(parameter.PidUnicastLocator, order, loc)
	}
	for _, loc := range e.MulticastLocators {
		pl.AddLocator(parameter.PidMulticastLocator, order, loc)
	}
	return pl
}

func decodeEndpointData(pl parameter.ParameterList, order binary.ByteOrder) (EndpointData, error) {
	var e EndpointData
	e.Qos = qos.Default()

	p, ok := pl.Get(parameter.PidEndpointGuid)
	if !ok {
		return e, fmt.Errorf("SEDP data missing endpoint guid: %w", rtps.ErrMalformedSubmessage)
	}
	guid, err := p.Guid()
	if err != nil {
		return e, err
	}
	e.Guid = guid

	if p, ok := pl.Get(parameter.PidTopicName); ok {
		if s, err := p.String(order); err == nil {
			e.TopicName = s
		}
	}
	if p, ok := pl.Get(parameter.PidTypeName); ok {
		if s, err := p.String(order); err == nil {
			e.TypeName = s
		}
	}
	if p, ok := pl.Get(parameter.PidReliability); ok && len(p.Value) >= 12 {
		e.Qos.Reliability.Kind = qos.ReliabilityKind(order.Uint32(p.Value[0:4]))
		e.Qos.Reliability.MaxBlockingTime = rtps.Duration{
			Sec:     int32(order.Uint32(p.Value[4:8])),
			Nanosec: order.Uint32(p.Value[8:12]),
		}
	}
	if p, ok := pl.Get(parameter.PidDurability); ok && len(p.Value) >= 4 {
		e.Qos.Durability.Kind = qos.DurabilityKind(order.Uint32(p.Value[0:4]))
	}
	if p, ok := pl.Get(parameter.PidDeadline); ok && len(p.Value) >= 8 {
		e.Qos.Deadline.Period = rtps.Duration{
			Sec:     int32(order.Uint32(p.Value[0:4])),
			Nanosec: order.Uint32(p.Value[4:8]),
		}
	}
	for _, p := range pl.GetAll(parameter.PidPartition) {
		if s, err := p.String(order); err == nil {
			e.Qos.Partition.Names = append(e.Qos.Partition.Names, s)
		}
	}
	for _, p := range pl.GetAll(parameter.PidUnicastLocator) {
		if loc, err := p.Locator(order); err == nil {
			e.UnicastLocators = append(e.UnicastLocators, loc)
		}
	}
	for _, p := range pl.GetAll(parameter.PidMulticastLocator) {
		if loc, err := p.Locator(order); err == nil {
			e.MulticastLocators = append(e.MulticastLocators, loc)
		}
	}
	return e, nil
}

// DiscoveredWriterData is the SEDP publication announcement (spec §4.6.2).
type DiscoveredWriterData struct {
	EndpointData
}

// Encode renders w as a ParameterList.
func (w DiscoveredWriterData) Encode(order binary.ByteOrder) parameter.ParameterList {
	return encodeEndpointData(w.EndpointData, order)
}

// DecodeDiscoveredWriterData parses pl into a DiscoveredWriterData.
func DecodeDiscoveredWriterData(pl parameter.ParameterList, order binary.ByteOrder) (DiscoveredWriterData, error) {
	e, err := decodeEndpointData(pl, order)
	return DiscoveredWriterData{EndpointData: e}, err
}

// DiscoveredReaderData is the SEDP subscription announcement (spec §4.6.2).
type DiscoveredReaderData struct {
	EndpointData
	ExpectsInlineQos bool
}

// Encode renders r as a ParameterList.
func (r DiscoveredReaderData) Encode(order binary.ByteOrder) parameter.ParameterList {
	pl := encodeEndpointData(r.EndpointData, order)
	if r.ExpectsInlineQos {
		pl.Add(parameter.PidExpectsInlineQos, []byte{1, 0, 0, 0})
	}
	return pl
}

// DecodeDiscoveredReaderData parses pl into a DiscoveredReaderData.
func DecodeDiscoveredReaderData(pl parameter.ParameterList, order binary.ByteOrder) (DiscoveredReaderData, error) {
	e, err := decodeEndpointData(pl, order)
	if err != nil {
		return DiscoveredReaderData{}, err
	}
	_, expects := pl.Get(parameter.PidExpectsInlineQos)
	return DiscoveredReaderData{EndpointData: e, ExpectsInlineQos: expects}, nil
}

func padTo4(b []byte) []byte {
	if len(b)%4 == 0 {
		return b
	}
	out := make([]byte, (len(b)+3)&^3)
	copy(out, b)
	return out
}
