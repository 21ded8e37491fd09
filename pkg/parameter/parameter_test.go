package parameter

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumendds/rtps"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var pl ParameterList
	pl.AddString(PidTopicName, binary.LittleEndian, "weather")
	pl.AddGuid(PidEndpointGuid, rtps.Guid{
		Prefix:   rtps.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		EntityId: rtps.EntityIdParticipant,
	})

	buf := make([]byte, EncodedLen(pl))
	n, err := Encode(pl, buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	decoded, consumed, err := Decode(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, n, consumed)

	topic, ok := decoded.Get(PidTopicName)
	require.True(t, ok)
	topicName, err := topic.String(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, "weather", topicName)

	guidParam, ok := decoded.Get(PidEndpointGuid)
	require.True(t, ok)
	guid, err := guidParam.Guid()
	require.NoError(t, err)
	assert.Equal(t, rtps.EntityIdParticipant, guid.EntityId)
}

func TestDecodeStopsAtSentinel(t *testing.T) {
	var pl ParameterList
	pl.Add(ParameterId(0x1000), []byte{1, 2, 3, 4})

	buf := make([]byte, EncodedLen(pl)+8)
	n, err := Encode(pl, buf, binary.LittleEndian)
	require.NoError(t, err)
	// Garbage past the sentinel must not be parsed.
	buf[n] = 0xff
	buf[n+1] = 0xff

	decoded, consumed, err := Decode(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Len(t, decoded.Parameters, 1)
}

func TestDecodeRejectsLengthPastBuffer(t *testing.T) {
	buf := []byte{0x00, 0x10, 0xff, 0x7f} // absurd length field
	_, _, err := Decode(buf, binary.LittleEndian)
	assert.ErrorIs(t, err, rtps.ErrMalformedSubmessage)
}

func TestLocatorRoundTrip(t *testing.T) {
	var pl ParameterList
	loc := rtps.NewLocatorUDPv4([]byte{239, 255, 0, 1}, 7400)
	pl.AddLocator(PidDefaultUnicastLocator, binary.LittleEndian, loc)

	p, ok := pl.Get(PidDefaultUnicastLocator)
	require.True(t, ok)
	decoded, err := p.Locator(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, loc, decoded)
}

func TestGetAllReturnsEveryMatch(t *testing.T) {
	var pl ParameterList
	pl.Add(ParameterId(0x2000), []byte{1})
	pl.Add(ParameterId(0x2000), []byte{2})
	pl.Add(ParameterId(0x3000), []byte{3})

	all := pl.GetAll(ParameterId(0x2000))
	assert.Len(t, all, 2)
}
