package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// Heartbeat flags: bit0=E, bit1=F (final — no response solicited),
// bit2=L (liveliness).
const (
	HeartbeatFlagFinal      = 1 << 1
	HeartbeatFlagLiveliness = 1 << 2
)

// Heartbeat is the decoded Heartbeat submessage (spec §4.3).
type Heartbeat struct {
	ReaderId rtps.EntityId
	WriterId rtps.EntityId
	FirstSn  rtps.SequenceNumber
	LastSn   rtps.SequenceNumber
	Count    int32
	Final    bool
	Liveliness bool
}

const heartbeatEncodedLen = 4 + 4 + 8 + 8 + 4

// HeartbeatEncodedLen returns the fixed encoded length of a Heartbeat submessage.
func HeartbeatEncodedLen() int { return heartbeatEncodedLen }

// DecodeHeartbeat parses a Heartbeat submessage payload.
func DecodeHeartbeat(payload []byte, flags byte) (Heartbeat, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < heartbeatEncodedLen {
		return Heartbeat{}, fmt.Errorf("heartbeat submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var h Heartbeat
	h.ReaderId = GetEntityId(payload[0:4])
	h.WriterId = GetEntityId(payload[4:8])
	h.FirstSn = GetSequenceNumber(payload[8:16], order)
	h.LastSn = GetSequenceNumber(payload[16:24], order)
	h.Count = int32(order.Uint32(payload[24:28]))
	h.Final = flags&HeartbeatFlagFinal != 0
	h.Liveliness = flags&HeartbeatFlagLiveliness != 0
	return h, nil
}

// Flags returns the flags octet (excluding E).
func (h Heartbeat) Flags() byte {
	var f byte
	if h.Final {
		f |= HeartbeatFlagFinal
	}
	if h.Liveliness {
		f |= HeartbeatFlagLiveliness
	}
	return f
}

// Encode writes the Heartbeat submessage payload into buf.
func (h Heartbeat) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	if len(buf) < heartbeatEncodedLen {
		return 0, fmt.Errorf("buffer too small for heartbeat submessage: %w", rtps.ErrBadParameter)
	}
	PutEntityId(buf[0:4], h.ReaderId)
	PutEntityId(buf[4:8], h.WriterId)
	PutSequenceNumber(buf[8:16], order, h.FirstSn)
	PutSequenceNumber(buf[16:24], order, h.LastSn)
	order.PutUint32(buf[24:28], uint32(h.Count))
	return heartbeatEncodedLen, nil
}
