package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
)

// Data submessage flags (spec §4.1): bit0=E, bit1=Q (inline qos
// present), bit2=D (data payload present), bit3=K (key payload), bit4=N
// (non-standard payload encoding).
const (
	DataFlagQ = 1 << 1
	DataFlagD = 1 << 2
	DataFlagK = 1 << 3
	DataFlagN = 1 << 4
)

// Data is the decoded Data submessage (spec §4.1). SerializedPayload
// and InlineQos borrow the input buffer.
type Data struct {
	ReaderId          rtps.EntityId
	WriterId          rtps.EntityId
	WriterSn          rtps.SequenceNumber
	InlineQos         parameter.ParameterList
	HasInlineQos      bool
	SerializedPayload []byte
	HasPayload        bool
}

// fixedDataFieldsLen is the size of extra_flags + octets_to_inline_qos
// + reader_id + writer_id + writer_sn, i.e. everything up to where
// octets_to_inline_qos points.
const fixedDataFieldsLen = 2 + 2 + 4 + 4 + 8

// DecodeData parses a Data submessage payload. It uses
// octets_to_inline_qos to skip any unknown trailing fixed fields,
// per spec §4.1's forward-compatibility requirement.
func DecodeData(payload []byte, flags byte) (Data, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < fixedDataFieldsLen {
		return Data{}, fmt.Errorf("data submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	octetsToInlineQos := order.Uint16(payload[2:4])
	var d Data
	d.ReaderId = GetEntityId(payload[4:8])
	d.WriterId = GetEntityId(payload[8:12])
	d.WriterSn = GetSequenceNumber(payload[12:20], order)

	afterFixed := 4 + int(octetsToInlineQos)
	if afterFixed > len(payload) {
		return Data{}, fmt.Errorf("octets_to_inline_qos %d exceeds submessage: %w", octetsToInlineQos, rtps.ErrMalformedSubmessage)
	}
	pos := afterFixed

	if flags&DataFlagQ != 0 {
		pl, n, err := parameter.Decode(payload[pos:], order)
		if err != nil {
			return Data{}, err
		}
		d.InlineQos = pl
		d.HasInlineQos = true
		pos += n
	}
	if flags&(DataFlagD|DataFlagK) != 0 {
		d.SerializedPayload = payload[pos:]
		d.HasPayload = true
	}
	return d, nil
}

// EncodedLen returns the number of bytes Encode will write.
func (d Data) EncodedLen() int {
	n := fixedDataFieldsLen
	if d.HasInlineQos {
		n += parameter.EncodedLen(d.InlineQos)
	}
	if d.HasPayload {
		n += len(d.SerializedPayload)
	}
	return n
}

// Flags returns the flags octet (excluding the E bit, which the
// caller ORs in based on the chosen byte order).
func (d Data) Flags() byte {
	var f byte
	if d.HasInlineQos {
		f |= DataFlagQ
	}
	if d.HasPayload {
		f |= DataFlagD
	}
	return f
}

// Encode writes the Data submessage payload (after the 4-byte
// submessage header) into buf.
func (d Data) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	if len(buf) < d.EncodedLen() {
		return 0, fmt.Errorf("buffer too small for data submessage: %w", rtps.ErrBadParameter)
	}
	order.PutUint16(buf[0:2], 0) // extra_flags, reserved
	order.PutUint16(buf[2:4], fixedDataFieldsLen-4)
	PutEntityId(buf[4:8], d.ReaderId)
	PutEntityId(buf[8:12], d.WriterId)
	PutSequenceNumber(buf[12:20], order, d.WriterSn)
	pos := fixedDataFieldsLen
	if d.HasInlineQos {
		n, err := parameter.Encode(d.InlineQos, buf[pos:], order)
		if err != nil {
			return 0, err
		}
		pos += n
	}
	if d.HasPayload {
		pos += copy(buf[pos:], d.SerializedPayload)
	}
	return pos, nil
}
