package parameter

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// Decode parses a ParameterList from buf using the given byte order,
// stopping at PID_SENTINEL (or end of buffer, for inline QoS lists
// that are not sentinel-terminated when octets_to_next_header bounds
// them exactly). It borrows buf for each Parameter's Value slice
// (zero-copy), per the codec contract in spec §4.1.
func Decode(buf []byte, order binary.ByteOrder) (ParameterList, int, error) {
	var pl ParameterList
	pos := 0
	for {
		if pos+4 > len(buf) {
			// No sentinel found before running out of bytes: treat the
			// consumed prefix as the whole list, matching inline-QoS
			// lists bounded by octets_to_next_header rather than a
			// sentinel.
			return pl, pos, nil
		}
		id := ParameterId(order.Uint16(buf[pos : pos+2]))
		length := int(int16(order.Uint16(buf[pos+2 : pos+4])))
		pos += 4
		if id == PidSentinel {
			return pl, pos, nil
		}
		if length < 0 || pos+length > len(buf) {
			return pl, pos, fmt.Errorf("parameter %v length %d exceeds buffer: %w", id, length, rtps.ErrMalformedSubmessage)
		}
		pl.Parameters = append(pl.Parameters, Parameter{Id: id, Value: buf[pos : pos+length]})
		pos += length
	}
}

// Encode writes the ParameterList (terminated by PID_SENTINEL) into
// buf using the given byte order, returning the number of bytes
// written. buf must have enough capacity; EncodedLen reports the
// required size.
func Encode(pl ParameterList, buf []byte, order binary.ByteOrder) (int, error) {
	need := EncodedLen(pl)
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small for parameter list: %w", rtps.ErrBadParameter)
	}
	pos := 0
	for _, p := range pl.Parameters {
		padded := align4(len(p.Value))
		order.PutUint16(buf[pos:pos+2], uint16(p.Id))
		order.PutUint16(buf[pos+2:pos+4], uint16(int16(padded)))
		pos += 4
		copy(buf[pos:pos+len(p.Value)], p.Value)
		pos += padded
	}
	order.PutUint16(buf[pos:pos+2], uint16(PidSentinel))
	order.PutUint16(buf[pos+2:pos+4], 0)
	pos += 4
	return pos, nil
}

// EncodedLen returns the number of bytes Encode will write, including
// the terminating sentinel.
func EncodedLen(pl ParameterList) int {
	n := 4 // sentinel
	for _, p := range pl.Parameters {
		n += 4 + align4(len(p.Value))
	}
	return n
}
