package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// InfoTimestampFlagInvalidate, when set, clears any timestamp context
// (spec §4.5) instead of carrying a new one; in that case the
// submessage carries no payload.
const InfoTimestampFlagInvalidate = 1 << 1

// InfoTimestamp is the decoded InfoTimestamp submessage.
type InfoTimestamp struct {
	Invalidate bool
	Timestamp  rtps.Duration // seconds since epoch, then nanoseconds (not a 2^-32 fraction) in the second word
}

// DecodeInfoTimestamp parses an InfoTimestamp submessage payload.
func DecodeInfoTimestamp(payload []byte, flags byte) (InfoTimestamp, error) {
	if flags&InfoTimestampFlagInvalidate != 0 {
		return InfoTimestamp{Invalidate: true}, nil
	}
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < 8 {
		return InfoTimestamp{}, fmt.Errorf("info_ts submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	return InfoTimestamp{
		Timestamp: rtps.Duration{
			Sec:     int32(order.Uint32(payload[0:4])),
			Nanosec: order.Uint32(payload[4:8]),
		},
	}, nil
}

// Encode writes the InfoTimestamp submessage payload into buf (empty
// if Invalidate is set).
func (t InfoTimestamp) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	if t.Invalidate {
		return 0, nil
	}
	if len(buf) < 8 {
		return 0, fmt.Errorf("buffer too small for info_ts submessage: %w", rtps.ErrBadParameter)
	}
	order.PutUint32(buf[0:4], uint32(t.Timestamp.Sec))
	order.PutUint32(buf[4:8], t.Timestamp.Nanosec)
	return 8, nil
}

// Flags returns the flags octet (excluding E).
func (t InfoTimestamp) Flags() byte {
	if t.Invalidate {
		return InfoTimestampFlagInvalidate
	}
	return 0
}

// InfoSource carries the protocol version/vendor/guid prefix of the
// *original* source of a relayed message (spec §4.5).
type InfoSource struct {
	Version    ProtocolVersion
	Vendor     VendorId
	GuidPrefix rtps.GuidPrefix
}

// DecodeInfoSource parses an InfoSource submessage payload.
func DecodeInfoSource(payload []byte) (InfoSource, error) {
	if len(payload) < 4+2+2+12 {
		return InfoSource{}, fmt.Errorf("info_src submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var s InfoSource
	s.Version = ProtocolVersion{Major: payload[4], Minor: payload[5]}
	s.Vendor = VendorId{payload[6], payload[7]}
	copy(s.GuidPrefix[:], payload[8:20])
	return s, nil
}

// Encode writes the InfoSource submessage payload into buf.
func (s InfoSource) Encode(buf []byte) (int, error) {
	if len(buf) < 20 {
		return 0, fmt.Errorf("buffer too small for info_src submessage: %w", rtps.ErrBadParameter)
	}
	buf[0], buf[1], buf[2], buf[3] = 0, 0, 0, 0 // unused/reserved
	buf[4], buf[5] = s.Version.Major, s.Version.Minor
	buf[6], buf[7] = s.Vendor[0], s.Vendor[1]
	copy(buf[8:20], s.GuidPrefix[:])
	return 20, nil
}

// InfoDestination carries the guid prefix submessages from here on
// should be considered addressed to (spec §4.5).
type InfoDestination struct {
	GuidPrefix rtps.GuidPrefix
}

// DecodeInfoDestination parses an InfoDestination submessage payload.
func DecodeInfoDestination(payload []byte) (InfoDestination, error) {
	if len(payload) < 12 {
		return InfoDestination{}, fmt.Errorf("info_dst submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var d InfoDestination
	copy(d.GuidPrefix[:], payload[0:12])
	return d, nil
}

// Encode writes the InfoDestination submessage payload into buf.
func (d InfoDestination) Encode(buf []byte) (int, error) {
	if len(buf) < 12 {
		return 0, fmt.Errorf("buffer too small for info_dst submessage: %w", rtps.ErrBadParameter)
	}
	copy(buf[0:12], d.GuidPrefix[:])
	return 12, nil
}

// InfoReplyFlagMulticast, when set, means InfoReply carries a
// multicast reply locator list in addition to the unicast one.
const InfoReplyFlagMulticast = 1 << 1

// InfoReply carries locators the receiver should use when replying
// (spec §4.5): unicast always, multicast when the M flag is set.
type InfoReply struct {
	UnicastLocatorList   []rtps.Locator
	MulticastLocatorList []rtps.Locator
}

// DecodeInfoReply parses an InfoReply submessage payload.
func DecodeInfoReply(payload []byte, flags byte) (InfoReply, error) {
	order := ByteOrder(flags&0x01 != 0)
	var r InfoReply
	pos := 0
	list, n, err := decodeLocatorList(payload[pos:], order)
	if err != nil {
		return InfoReply{}, err
	}
	r.UnicastLocatorList = list
	pos += n
	if flags&InfoReplyFlagMulticast != 0 {
		list, _, err := decodeLocatorList(payload[pos:], order)
		if err != nil {
			return InfoReply{}, err
		}
		r.MulticastLocatorList = list
	}
	return r, nil
}

func decodeLocatorList(buf []byte, order binary.ByteOrder) ([]rtps.Locator, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("locator list too short: %w", rtps.ErrMalformedSubmessage)
	}
	count := int(order.Uint32(buf[0:4]))
	pos := 4
	out := make([]rtps.Locator, 0, count)
	for i := 0; i < count; i++ {
		if pos+24 > len(buf) {
			return nil, 0, fmt.Errorf("locator list truncated: %w", rtps.ErrMalformedSubmessage)
		}
		var loc rtps.Locator
		loc.Kind = rtps.LocatorKind(int32(order.Uint32(buf[pos : pos+4])))
		loc.Port = order.Uint32(buf[pos+4 : pos+8])
		copy(loc.Address[:], buf[pos+8:pos+24])
		out = append(out, loc)
		pos += 24
	}
	return out, pos, nil
}
