package wire

import (
	"fmt"

	"github.com/lumendds/rtps"
)

// Message is a full decoded RTPS datagram: the fixed header plus the
// raw submessage stream. Submessages are not yet interpreted (that is
// the message receiver's job, spec §4.5); this keeps pkg/wire free of
// any endpoint-dispatch concern.
type Message struct {
	Header      Header
	Submessages []RawSubmessage
}

// Decode parses a full RTPS datagram.
func Decode(buf []byte) (Message, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Message{}, err
	}
	subs, err := SplitSubmessages(buf[HeaderLength:])
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, Submessages: subs}, nil
}

// EncodedLen returns the number of bytes Encode will write.
func (m Message) EncodedLen() int {
	n := HeaderLength
	for _, s := range m.Submessages {
		n += submessageHeaderLength + len(s.Payload)
	}
	return n
}

// Encode writes the full message (header + every raw submessage) into buf.
func (m Message) Encode(buf []byte) (int, error) {
	need := m.EncodedLen()
	if len(buf) < need {
		return 0, fmt.Errorf("buffer too small for message: %w", rtps.ErrBadParameter)
	}
	n, err := m.Header.Encode(buf)
	if err != nil {
		return 0, err
	}
	pos := n
	for _, s := range m.Submessages {
		EncodeSubmessageHeader(buf[pos:], s.Id, s.Flags, uint16(len(s.Payload)))
		pos += submessageHeaderLength
		pos += copy(buf[pos:], s.Payload)
	}
	return pos, nil
}

// Builder accumulates RawSubmessages for a single outbound message.
// Grounded on the teacher's pkg/sdo/io.go incremental-cursor style:
// callers append fully-encoded submessage payloads rather than
// re-deriving offsets by hand.
type Builder struct {
	header rtps.GuidPrefix
	vendor VendorId
	subs   []RawSubmessage
}

// NewBuilder starts a message addressed from the given source guid prefix.
func NewBuilder(sourcePrefix rtps.GuidPrefix) *Builder {
	return &Builder{header: sourcePrefix, vendor: VendorIdThis}
}

// Add appends one submessage's already-encoded payload.
func (b *Builder) Add(id SubmessageId, flags byte, payload []byte) {
	b.subs = append(b.subs, RawSubmessage{Id: id, Flags: flags, Payload: payload})
}

// Empty reports whether no submessages have been added yet.
func (b *Builder) Empty() bool { return len(b.subs) == 0 }

// Build finalizes the Message.
func (b *Builder) Build() Message {
	return Message{
		Header: Header{
			Version:    ProtocolVersion23,
			Vendor:     b.vendor,
			GuidPrefix: b.header,
		},
		Submessages: b.subs,
	}
}
