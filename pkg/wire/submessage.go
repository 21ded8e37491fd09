package wire

import (
	"fmt"

	"github.com/lumendds/rtps"
)

// SubmessageId names a submessage kind (spec §4.1).
type SubmessageId byte

const (
	SubmessageIdPad            SubmessageId = 0x01
	SubmessageIdAckNack        SubmessageId = 0x06
	SubmessageIdHeartbeat      SubmessageId = 0x07
	SubmessageIdGap            SubmessageId = 0x08
	SubmessageIdInfoTimestamp  SubmessageId = 0x09
	SubmessageIdInfoSource     SubmessageId = 0x0c
	SubmessageIdInfoReplyIP4   SubmessageId = 0x0d
	SubmessageIdInfoDestination SubmessageId = 0x0e
	SubmessageIdInfoReply      SubmessageId = 0x0f
	SubmessageIdNackFrag       SubmessageId = 0x12
	SubmessageIdHeartbeatFrag  SubmessageId = 0x13
	SubmessageIdData           SubmessageId = 0x15
	SubmessageIdDataFrag       SubmessageId = 0x16
)

// submessageHeaderLength is the fixed size of a submessage's own
// header: id(1) + flags(1) + octets_to_next_header(2).
const submessageHeaderLength = 4

// RawSubmessage is a decoded-but-not-yet-interpreted submessage: its
// id, flags, and the endianness-ordered payload bytes that follow the
// 4-byte submessage header. Payload is a borrowed slice of the input
// datagram (zero-copy), per the codec contract in spec §4.1.
type RawSubmessage struct {
	Id      SubmessageId
	Flags   byte
	Payload []byte
}

// Endianness reports the E flag (bit 0).
func (r RawSubmessage) Endianness() bool { return r.Flags&0x01 != 0 }

// Flag reports whether bit position p (0 = E, per-submessage meaning
// beyond that) is set.
func (r RawSubmessage) Flag(p uint) bool { return r.Flags&(1<<p) != 0 }

// SplitSubmessages walks buf (a full datagram body, after the message
// header) into a sequence of RawSubmessages. Unknown submessage ids
// are preserved, not dropped — the caller decides whether to
// interpret or skip them, following octets_to_next_header in either
// case (spec §4.1). A final submessage with octets_to_next_header==0
// extends to the end of the datagram, per DDSI-RTPS §9.4.1.
func SplitSubmessages(buf []byte) ([]RawSubmessage, error) {
	var out []RawSubmessage
	pos := 0
	for pos < len(buf) {
		if pos+submessageHeaderLength > len(buf) {
			return nil, fmt.Errorf("truncated submessage header: %w", rtps.ErrMalformedSubmessage)
		}
		id := SubmessageId(buf[pos])
		flags := buf[pos+1]
		order := ByteOrder(flags&0x01 != 0)
		octets := int(order.Uint16(buf[pos+2 : pos+4]))
		pos += submessageHeaderLength
		var payload []byte
		if octets == 0 {
			payload = buf[pos:]
			pos = len(buf)
		} else {
			if pos+octets > len(buf) {
				return nil, fmt.Errorf("submessage length %d exceeds datagram: %w", octets, rtps.ErrMalformedSubmessage)
			}
			payload = buf[pos : pos+octets]
			pos += octets
		}
		out = append(out, RawSubmessage{Id: id, Flags: flags, Payload: payload})
	}
	return out, nil
}

// EncodeSubmessageHeader writes a submessage's 4-byte header into buf.
// octets is the payload length that follows; pass 0 only for the last
// submessage in a message, per DDSI-RTPS §9.4.1.
func EncodeSubmessageHeader(buf []byte, id SubmessageId, flags byte, octets uint16) {
	order := ByteOrder(flags&0x01 != 0)
	buf[0] = byte(id)
	buf[1] = flags
	order.PutUint16(buf[2:4], octets)
}
