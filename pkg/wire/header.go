// Package wire implements the RTPS wire codec (spec §4.1, component
// C1): bit-exact encode/decode of the message header, submessage
// framing, and submessage elements, parameterized at runtime by
// endianness.
//
// Grounded on original_source/rtps_udp_psm/src/message_header.rs for
// field layout and on the teacher's pkg/sdo/io.go + internal/fifo for
// the incremental-byte-cursor encode/decode style used throughout
// this package.
package wire

import (
	"fmt"

	"github.com/lumendds/rtps"
)

// ProtocolIdBytes is the fixed 4-byte magic that opens every RTPS message.
var ProtocolIdBytes = [4]byte{'R', 'T', 'P', 'S'}

// ProtocolVersion is the 2-byte RTPS protocol version field.
type ProtocolVersion struct {
	Major, Minor byte
}

// ProtocolVersion23 is the version this module implements (DDSI-RTPS 2.3).
var ProtocolVersion23 = ProtocolVersion{Major: 2, Minor: 3}

// VendorId is the 2-byte vendor identifier field.
type VendorId [2]byte

// VendorIdUnknown is the sentinel "unidentified vendor" id.
var VendorIdUnknown = VendorId{0x00, 0x00}

// VendorIdThis is the vendor id this implementation announces.
var VendorIdThis = VendorId{0x01, 0x21}

// HeaderLength is the fixed size in bytes of the RTPS message header.
const HeaderLength = 20

// Header is the 20-byte header that opens every RTPS message (spec §4.1).
type Header struct {
	Version     ProtocolVersion
	Vendor      VendorId
	GuidPrefix  rtps.GuidPrefix
}

// Encode writes the header into buf (which must be at least HeaderLength
// bytes) and returns the number of bytes written. The header itself
// carries no endianness-sensitive multi-byte integers beyond single
// bytes, so unlike the other codec calls it takes no byte order.
func (h Header) Encode(buf []byte) (int, error) {
	if len(buf) < HeaderLength {
		return 0, fmt.Errorf("buffer too small for message header: %w", rtps.ErrBadParameter)
	}
	copy(buf[0:4], ProtocolIdBytes[:])
	buf[4] = h.Version.Major
	buf[5] = h.Version.Minor
	buf[6] = h.Vendor[0]
	buf[7] = h.Vendor[1]
	copy(buf[8:20], h.GuidPrefix[:])
	return HeaderLength, nil
}

// DecodeHeader parses a Header from the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLength {
		return Header{}, fmt.Errorf("datagram shorter than message header: %w", rtps.ErrMalformedSubmessage)
	}
	if string(buf[0:4]) != string(ProtocolIdBytes[:]) {
		return Header{}, fmt.Errorf("bad protocol id %q: %w", buf[0:4], rtps.ErrMalformedSubmessage)
	}
	var h Header
	h.Version = ProtocolVersion{Major: buf[4], Minor: buf[5]}
	h.Vendor = VendorId{buf[6], buf[7]}
	copy(h.GuidPrefix[:], buf[8:20])
	return h, nil
}
