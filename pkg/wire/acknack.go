package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// AckNack flags: bit0=E, bit1=F (final — no response expected by sender).
const AckNackFlagFinal = 1 << 1

// AckNack is the decoded AckNack submessage (spec §4.4): a reader
// acknowledging/requesting sequence numbers from a writer.
type AckNack struct {
	ReaderId   rtps.EntityId
	WriterId   rtps.EntityId
	ReaderSnState rtps.SequenceNumberSet
	Count      int32
	Final      bool
}

// DecodeAckNack parses an AckNack submessage payload.
func DecodeAckNack(payload []byte, flags byte) (AckNack, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < 8+12 {
		return AckNack{}, fmt.Errorf("acknack submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var a AckNack
	a.ReaderId = GetEntityId(payload[0:4])
	a.WriterId = GetEntityId(payload[4:8])
	set, n, err := GetSequenceNumberSet(payload[8:], order)
	if err != nil {
		return AckNack{}, err
	}
	a.ReaderSnState = set
	pos := 8 + n
	if len(payload) < pos+4 {
		return AckNack{}, fmt.Errorf("acknack submessage missing count: %w", rtps.ErrMalformedSubmessage)
	}
	a.Count = int32(order.Uint32(payload[pos : pos+4]))
	a.Final = flags&AckNackFlagFinal != 0
	return a, nil
}

// EncodedLen returns the number of bytes Encode will write.
func (a AckNack) EncodedLen() int {
	return 8 + SequenceNumberSetEncodedLen(a.ReaderSnState.NumBits) + 4
}

// Flags returns the flags octet (excluding E).
func (a AckNack) Flags() byte {
	if a.Final {
		return AckNackFlagFinal
	}
	return 0
}

// Encode writes the AckNack submessage payload into buf.
func (a AckNack) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	need := a.EncodedLen()
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small for acknack submessage: %w", rtps.ErrBadParameter)
	}
	PutEntityId(buf[0:4], a.ReaderId)
	PutEntityId(buf[4:8], a.WriterId)
	pos := 8 + PutSequenceNumberSet(buf[8:], order, a.ReaderSnState)
	order.PutUint32(buf[pos:pos+4], uint32(a.Count))
	return pos + 4, nil
}
