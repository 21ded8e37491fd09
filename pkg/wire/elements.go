package wire

import (
	"encoding/binary"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/internal/bitset"
)

// PutSequenceNumber writes a SequenceNumber as its two wire words.
func PutSequenceNumber(buf []byte, order binary.ByteOrder, s rtps.SequenceNumber) {
	order.PutUint32(buf[0:4], uint32(s.High()))
	order.PutUint32(buf[4:8], s.Low())
}

// GetSequenceNumber reads a SequenceNumber from its two wire words.
func GetSequenceNumber(buf []byte, order binary.ByteOrder) rtps.SequenceNumber {
	high := int32(order.Uint32(buf[0:4]))
	low := order.Uint32(buf[4:8])
	return rtps.SequenceNumberFromWords(high, low)
}

// PutEntityId writes an EntityId as its 4 wire bytes (key then kind;
// not endianness-sensitive, each is a single byte).
func PutEntityId(buf []byte, e rtps.EntityId) {
	copy(buf[0:3], e.EntityKey[:])
	buf[3] = byte(e.Kind)
}

// GetEntityId reads an EntityId from its 4 wire bytes.
func GetEntityId(buf []byte) rtps.EntityId {
	var e rtps.EntityId
	copy(e.EntityKey[:], buf[0:3])
	e.Kind = rtps.EntityKind(buf[3])
	return e
}

// SequenceNumberSetEncodedLen returns the wire size in bytes of a
// SequenceNumberSet with the given NumBits: base(8) + num_bits(4) + bitmap words*4.
func SequenceNumberSetEncodedLen(numBits uint32) int {
	return 8 + 4 + int((numBits+31)/32)*4
}

// PutSequenceNumberSet writes a SequenceNumberSet (spec §4.1).
func PutSequenceNumberSet(buf []byte, order binary.ByteOrder, s rtps.SequenceNumberSet) int {
	PutSequenceNumber(buf[0:8], order, s.Base)
	order.PutUint32(buf[8:12], s.NumBits)
	bs := bitset.New(int(s.NumBits))
	for _, seq := range s.Seqs() {
		bs.Set(int(seq - s.Base))
	}
	pos := 12
	for _, w := range bs.Words() {
		order.PutUint32(buf[pos:pos+4], w)
		pos += 4
	}
	return pos
}

// GetSequenceNumberSet reads a SequenceNumberSet, returning it and the
// number of bytes consumed. Per spec property P4 the caller should
// check Valid() before trusting the result.
func GetSequenceNumberSet(buf []byte, order binary.ByteOrder) (rtps.SequenceNumberSet, int, error) {
	if len(buf) < 12 {
		return rtps.SequenceNumberSet{}, 0, rtps.ErrMalformedSubmessage
	}
	base := GetSequenceNumber(buf[0:8], order)
	numBits := order.Uint32(buf[8:12])
	if numBits > rtps.MaxSequenceNumberSetBits {
		return rtps.SequenceNumberSet{}, 0, rtps.ErrMalformedSubmessage
	}
	nWords := int((numBits + 31) / 32)
	pos := 12
	if len(buf) < pos+nWords*4 {
		return rtps.SequenceNumberSet{}, 0, rtps.ErrMalformedSubmessage
	}
	words := make([]uint32, nWords)
	for i := 0; i < nWords; i++ {
		words[i] = order.Uint32(buf[pos : pos+4])
		pos += 4
	}
	bs := bitset.FromWords(words, int(numBits))
	set := rtps.NewSequenceNumberSet(base)
	for i := 0; i < int(numBits); i++ {
		if bs.Test(i) {
			set.Add(base + rtps.SequenceNumber(i))
		}
	}
	return set, pos, nil
}
