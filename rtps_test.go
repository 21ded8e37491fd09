package rtps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSequenceNumberWireRoundTrip(t *testing.T) {
	s := SequenceNumber(0x1_0000_0002)
	got := SequenceNumberFromWords(s.High(), s.Low())
	assert.Equal(t, s, got)
}

func TestSequenceNumberSetAddContains(t *testing.T) {
	set := NewSequenceNumberSet(10)
	set.Add(10)
	set.Add(12)
	set.Add(15)

	assert.True(t, set.Contains(10))
	assert.False(t, set.Contains(11))
	assert.True(t, set.Contains(12))
	assert.True(t, set.Contains(15))
	assert.False(t, set.Contains(9))
	assert.Equal(t, []SequenceNumber{10, 12, 15}, set.Seqs())
}

func TestSequenceNumberSetIgnoresBelowBase(t *testing.T) {
	set := NewSequenceNumberSet(10)
	set.Add(5)
	assert.False(t, set.Contains(5))
	assert.Equal(t, uint32(0), set.NumBits)
}

func TestSequenceNumberSetValid(t *testing.T) {
	set := NewSequenceNumberSet(1)
	assert.True(t, set.Valid())

	zeroBase := NewSequenceNumberSet(0)
	assert.False(t, zeroBase.Valid())
}

func TestDurationInfiniteSentinel(t *testing.T) {
	assert.True(t, DurationInfinite.Infinite())
	assert.False(t, DurationZero.Infinite())

	// Sec alone at the sentinel value marks infinite regardless of Nanosec.
	d := Duration{Sec: 0x7fffffff, Nanosec: 0}
	assert.True(t, d.Infinite())
}

func TestDurationLessEqual(t *testing.T) {
	small := DurationFromTimeDuration(1 * time.Second)
	big := DurationFromTimeDuration(2 * time.Second)

	assert.True(t, small.LessEqual(big))
	assert.False(t, big.LessEqual(small))
	assert.True(t, small.LessEqual(DurationInfinite))
	assert.False(t, DurationInfinite.LessEqual(big))
}

func TestDurationRoundTrip(t *testing.T) {
	d := 3*time.Second + 250*time.Millisecond
	rt := DurationFromTimeDuration(d).AsTimeDuration()
	assert.Equal(t, d, rt)
}

func TestGuidString(t *testing.T) {
	g := Guid{
		Prefix:   GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		EntityId: EntityIdParticipant,
	}
	assert.NotEmpty(t, g.String())
}

func TestEntityIdWriterReaderClassification(t *testing.T) {
	assert.True(t, EntityIdSpdpBuiltinWriter.IsWriter())
	assert.False(t, EntityIdSpdpBuiltinWriter.IsReader())
	assert.True(t, EntityIdSpdpBuiltinReader.IsReader())
	assert.False(t, EntityIdSpdpBuiltinReader.IsWriter())
}

func TestGuidUnknown(t *testing.T) {
	assert.True(t, Guid{}.Unknown())
	assert.False(t, Guid{EntityId: EntityIdParticipant}.Unknown())
}
