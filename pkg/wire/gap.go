package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/lumendds/rtps"
)

// Gap is the decoded Gap submessage (spec §4.4): tells a reader that
// sequence numbers [GapStart, GapList.Base-1] plus every number in
// GapList were removed/irrelevant and will never be sent.
//
// Per SPEC_FULL.md open-question resolution, GapList.Base < GapStart
// is rejected as malformed rather than composed — the ranges are
// specified as non-overlapping and increasing and original_source has
// no test exercising the overlapping case.
type Gap struct {
	ReaderId rtps.EntityId
	WriterId rtps.EntityId
	GapStart rtps.SequenceNumber
	GapList  rtps.SequenceNumberSet
}

// DecodeGap parses a Gap submessage payload.
func DecodeGap(payload []byte, flags byte) (Gap, error) {
	order := ByteOrder(flags&0x01 != 0)
	if len(payload) < 8+8 {
		return Gap{}, fmt.Errorf("gap submessage too short: %w", rtps.ErrMalformedSubmessage)
	}
	var g Gap
	g.ReaderId = GetEntityId(payload[0:4])
	g.WriterId = GetEntityId(payload[4:8])
	g.GapStart = GetSequenceNumber(payload[8:16], order)
	set, _, err := GetSequenceNumberSet(payload[16:], order)
	if err != nil {
		return Gap{}, err
	}
	if set.Base < g.GapStart {
		return Gap{}, fmt.Errorf("gap_list.base < gap_start: %w", rtps.ErrMalformedSubmessage)
	}
	g.GapList = set
	return g, nil
}

// EncodedLen returns the number of bytes Encode will write.
func (g Gap) EncodedLen() int {
	return 16 + SequenceNumberSetEncodedLen(g.GapList.NumBits)
}

// Encode writes the Gap submessage payload into buf.
func (g Gap) Encode(buf []byte, order binary.ByteOrder) (int, error) {
	if len(buf) < g.EncodedLen() {
		return 0, fmt.Errorf("buffer too small for gap submessage: %w", rtps.ErrBadParameter)
	}
	PutEntityId(buf[0:4], g.ReaderId)
	PutEntityId(buf[4:8], g.WriterId)
	PutSequenceNumber(buf[8:16], order, g.GapStart)
	n := PutSequenceNumberSet(buf[16:], order, g.GapList)
	return 16 + n, nil
}
