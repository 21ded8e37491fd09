package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
)

// DataFrag flags: bit0=E, bit1=Q (inline qos present), bit2=K (key fragment), bit3=N.
const (
	DataFragFlagQ = 1 << 1
	DataFragFlagK = 1 << 2
)

// DataFrag is the decoded DataFrag submessage (spec §4.1): one
// fragment of a serialized payload too large for a single Data
// submessage.
type DataFrag struct {
	ReaderId          rtps.EntityId
	WriterId          rtps.EntityId
	WriterSn          rtps.SequenceNumber
	FragmentStartingNum uint32 // 1-based index of the first fragment in this submessage
	FragmentsInSubmessage uint16
	FragmentSize        uint16
	SampleSize          uint32
	InlineQos           []byte // raw, undecoded parameter list bytes (if Q flag set)
	HasInlineQos        bool
	FragmentData        []byte
}

const dataFragFixedLen = 2 + 2 + 4 + 4 + 8 + 4 + 2 + 2 + 4

// DecodeDataFrag parses a DataFrag submessage payload.
func DecodeDataFrag(payload []byte, flags byte) (DataFrag, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < dataFragFixedLen {
		return DataFrag{}, fmt.Errorf("data_frag submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	octetsToInlineQos := order.Uint16(payload[2:4])
	var d DataFrag
	d.ReaderId = GetEntityId(payload[4:8])
	d.WriterId = GetEntityId(payload[8:12])
	d.WriterSn = GetSequenceNumber(payload[12:20], order)
	d.FragmentStartingNum = order.Uint32(payload[20:24])
	d.FragmentsInSubmessage = order.Uint16(payload[24:26])
	d.FragmentSize = order.Uint16(payload[26:28])
	d.SampleSize = order.Uint32(payload[28:32])

	afterFixed := 4 + int(octetsToInlineQos)
	if afterFixed > len(payload) {
		return DataFrag{}, fmt.Errorf("octets_to_inline_qos exceeds submessage: %w", rtps.ErrMalformedSubmessage)
	}
	pos := afterFixed
	if flags&DataFragFlagQ != 0 {
		// The parameter list is decoded only to find where it ends, so
		// the fragment bytes start after it; InlineQos keeps it raw.
		_, n, err := parameter.Decode(payload[pos:], order)
		if err != nil {
			return DataFrag{}, err
		}
		d.InlineQos = payload[pos : pos+n]
		d.HasInlineQos = true
		pos += n
	}
	d.FragmentData = payload[pos:]
	return d, nil
}

// NackFrag is the decoded NackFrag submessage (spec §4.1): a reader
// requesting retransmission of specific fragments of one sequence number.
type NackFrag struct {
	ReaderId      rtps.EntityId
	WriterId      rtps.EntityId
	WriterSn      rtps.SequenceNumber
	FragmentNumberState rtps.SequenceNumberSet // reused as a fragment-number set
	Count         int32
}

// DecodeNackFrag parses a NackFrag submessage payload.
func DecodeNackFrag(payload []byte, flags byte) (NackFrag, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < 8+8 {
		return NackFrag{}, fmt.Errorf("nackfrag submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var n NackFrag
	n.ReaderId = GetEntityId(payload[0:4])
	n.WriterId = GetEntityId(payload[4:8])
	n.WriterSn = GetSequenceNumber(payload[8:16], order)
	set, consumed, err := GetSequenceNumberSet(payload[16:], order)
	if err != nil {
		return NackFrag{}, err
	}
	n.FragmentNumberState = set
	pos := 16 + consumed
	if len(payload) < pos+4 {
		return NackFrag{}, fmt.Errorf("nackfrag submessage missing count: %w", rtps.ErrMalformedSubmessage)
	}
	n.Count = int32(order.Uint32(payload[pos : pos+4]))
	return n, nil
}

// Encode writes the NackFrag submessage payload into buf.
func (n NackFrag) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	need := 16 + SequenceNumberSetEncodedLen(n.FragmentNumberState.NumBits) + 4
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small for nackfrag submessage: %w", rtps.ErrBadParameter)
	}
	PutEntityId(buf[0:4], n.ReaderId)
	PutEntityId(buf[4:8], n.WriterId)
	PutSequenceNumber(buf[8:16], order, n.WriterSn)
	pos := 16 + PutSequenceNumberSet(buf[16:], order, n.FragmentNumberState)
	order.PutUint32(buf[pos:pos+4], uint32(n.Count))
	return pos + 4, nil
}

// HeartbeatFrag is the decoded HeartbeatFrag submessage: announces the
// last fragment number sent for a writer_sn that is still fragmenting.
type HeartbeatFrag struct {
	ReaderId           rtps.EntityId
	WriterId           rtps.EntityId
	WriterSn           rtps.SequenceNumber
	LastFragmentNumber uint32
	Count              int32
}

const heartbeatFragEncodedLen = 8 + 8 + 4 + 4

// DecodeHeartbeatFrag parses a HeartbeatFrag submessage payload.
func DecodeHeartbeatFrag(payload []byte, flags byte) (HeartbeatFrag, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < heartbeatFragEncodedLen {
		return HeartbeatFrag{}, fmt.Errorf("heartbeatfrag submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var h HeartbeatFrag
	h.ReaderId = GetEntityId(payload[0:4])
	h.WriterId = GetEntityId(payload[4:8])
	h.WriterSn = GetSequenceNumber(payload[8:16], order)
	h.LastFragmentNumber = order.Uint32(payload[16:20])
	h.Count = int32(order.Uint32(payload[20:24]))
	return h, nil
}

// Encode writes the HeartbeatFrag submessage payload into buf.
func (h HeartbeatFrag) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	if len(buf) < heartbeatFragEncodedLen {
		return 0, fmt.Errorf("buffer too small for heartbeatfrag submessage: %w", rtps.ErrBadParameter)
	}
	PutEntityId(buf[0:4], h.ReaderId)
	PutEntityId(buf[4:8], h.WriterId)
	PutSequenceNumber(buf[8:16], order, h.WriterSn)
	order.PutUint32(buf[16:20], h.LastFragmentNumber)
	order.PutUint32(buf[20:24], uint32(h.Count))
	return heartbeatFragEncodedLen, nil
}
