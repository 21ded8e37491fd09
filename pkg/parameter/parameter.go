// Package parameter implements the RTPS ParameterList wire type
// (spec §3): a sequence of (id, length, value) entries used both for
// inline QoS on Data submessages and for the built-in discovery types
// (SPDPdiscoveredParticipantData, DiscoveredReaderData,
// DiscoveredWriterData).
//
// Grounded on the teacher's pkg/od: a typed, indexed property bag
// with its own parser/streamer, generalized from (index, subindex) to
// a single ParameterId key.
package parameter

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// Parameter is one (id, value) entry of a ParameterList. Value is the
// raw, still-encoded payload bytes (4-byte aligned, per DDSI-RTPS
// §9.4.2.11); typed accessors decode it on demand.
type Parameter struct {
	Id    ParameterId
	Value []byte
}

// ParameterList is an ordered sequence of Parameters, terminated on
// the wire by a PID_SENTINEL entry.
type ParameterList struct {
	Parameters []Parameter
}

// Get returns the first Parameter with the given id, if present.
func (pl ParameterList) Get(id ParameterId) (Parameter, bool) {
	for _, p := range pl.Parameters {
		if p.Id == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// GetAll returns every Parameter with the given id, in order.
func (pl ParameterList) GetAll(id ParameterId) []Parameter {
	var out []Parameter
	for _, p := range pl.Parameters {
		if p.Id == id {
			out = append(out, p)
		}
	}
	return out
}

// Add appends a parameter.
func (pl *ParameterList) Add(id ParameterId, value []byte) {
	pl.Parameters = append(pl.Parameters, Parameter{Id: id, Value: value})
}

// AddString appends a length-prefixed CDR string parameter.
func (pl *ParameterList) AddString(id ParameterId, order binary.ByteOrder, s string) {
	buf := make([]byte, 4+len(s)+1)
	order.PutUint32(buf, uint32(len(s)+1))
	copy(buf[4:], s)
	pl.Add(id, buf)
}

// String decodes a length-prefixed CDR string parameter value.
func (p Parameter) String(order binary.ByteOrder) (string, error) {
	if len(p.Value) < 4 {
		return "", fmt.Errorf("parameter %v too short for string: %w", p.Id, rtps.ErrMalformedSubmessage)
	}
	n := order.Uint32(p.Value)
	if int(n) > len(p.Value)-4 || n == 0 {
		return "", fmt.Errorf("parameter %v string length out of range: %w", p.Id, rtps.ErrMalformedSubmessage)
	}
	return string(p.Value[4 : 4+n-1]), nil
}

// AddGuid appends a GUID parameter (16 bytes, prefix then entity id).
func (pl *ParameterList) AddGuid(id ParameterId, g rtps.Guid) {
	buf := make([]byte, rtps.GuidLength)
	copy(buf[:rtps.GuidPrefixLength], g.Prefix[:])
	copy(buf[rtps.GuidPrefixLength:rtps.GuidPrefixLength+3], g.EntityId.EntityKey[:])
	buf[rtps.GuidPrefixLength+3] = byte(g.EntityId.Kind)
	pl.Add(id, buf)
}

// Guid decodes a GUID parameter value.
func (p Parameter) Guid() (rtps.Guid, error) {
	if len(p.Value) < rtps.GuidLength {
		return rtps.Guid{}, fmt.Errorf("parameter %v too short for guid: %w", p.Id, rtps.ErrMalformedSubmessage)
	}
	var g rtps.Guid
	copy(g.Prefix[:], p.Value[:rtps.GuidPrefixLength])
	copy(g.EntityId.EntityKey[:], p.Value[rtps.GuidPrefixLength:rtps.GuidPrefixLength+3])
	g.EntityId.Kind = rtps.EntityKind(p.Value[rtps.GuidPrefixLength+3])
	return g, nil
}

// AddLocator appends a Locator parameter (24 bytes: kind, port, address).
func (pl *ParameterList) AddLocator(id ParameterId, order binary.ByteOrder, loc rtps.Locator) {
	buf := make([]byte, 24)
	order.PutUint32(buf[0:4], uint32(loc.Kind))
	order.PutUint32(buf[4:8], loc.Port)
	copy(buf[8:24], loc.Address[:])
	pl.Add(id, buf)
}

// Locator decodes a Locator parameter value.
func (p Parameter) Locator(order binary.ByteOrder) (rtps.Locator, error) {
	if len(p.Value) < 24 {
		return rtps.Locator{}, fmt.Errorf("parameter %v too short for locator: %w", p.Id, rtps.ErrMalformedSubmessage)
	}
	var loc rtps.Locator
	loc.Kind = rtps.LocatorKind(int32(order.Uint32(p.Value[0:4])))
	loc.Port = order.Uint32(p.Value[4:8])
	copy(loc.Address[:], p.Value[8:24])
	return loc, nil
}

// align4 rounds n up to the next multiple of 4.
func align4(n int) int {
	return (n + 3) &^ 3
}
