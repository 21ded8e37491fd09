package discovery

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/lumendds/rtps/pkg/writer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReaderLocatorForTest(loc rtps.Locator) *proxy.ReaderLocator {
	return proxy.NewReaderLocator(loc, false)
}

func fakeDataWithPayload(payload []byte) wire.Data {
	return wire.Data{SerializedPayload: payload, HasPayload: true}
}

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(loc rtps.Locator, payload []byte) error {
	f.sent = append(f.sent, payload)
	return nil
}

func testGuid(key byte) rtps.Guid {
	return rtps.Guid{
		Prefix:   rtps.GuidPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		EntityId: rtps.EntityId{EntityKey: [3]byte{0, 0, key}, Kind: rtps.EntityKindBuiltinParticipant},
	}
}

func TestParticipantDataRoundTrip(t *testing.T) {
	orig := DiscoveredParticipantData{
		Guid:                      testGuid(1),
		ProtocolVersion:           [2]byte{2, 3},
		VendorId:                  [2]byte{0x01, 0x0f},
		AvailableBuiltinEndpoints: parameter.BuiltinEndpointParticipantAnnouncer | parameter.BuiltinEndpointPublicationsAnnouncer,
		MetatrafficUnicastLocators: []rtps.Locator{
			rtps.NewLocatorUDPv4([]byte{192, 168, 1, 1}, 7411),
		},
		LeaseDuration: rtps.DurationFromTimeDuration(10 * time.Second),
	}

	pl := orig.Encode(binary.LittleEndian)
	decoded, err := DecodeDiscoveredParticipantData(pl, binary.LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, orig.Guid, decoded.Guid)
	assert.Equal(t, orig.ProtocolVersion, decoded.ProtocolVersion)
	assert.Equal(t, orig.VendorId, decoded.VendorId)
	assert.Equal(t, orig.AvailableBuiltinEndpoints, decoded.AvailableBuiltinEndpoints)
	require.Len(t, decoded.MetatrafficUnicastLocators, 1)
	assert.Equal(t, orig.MetatrafficUnicastLocators[0].Port, decoded.MetatrafficUnicastLocators[0].Port)
	assert.Equal(t, orig.LeaseDuration, decoded.LeaseDuration)
}

func TestPLCDRWrapperRoundTrip(t *testing.T) {
	var pl parameter.ParameterList
	pl.AddString(parameter.PidTopicName, binary.LittleEndian, "weather")

	buf := EncodePLCDR(pl, binary.LittleEndian)
	decoded, err := DecodePLCDR(buf)
	require.NoError(t, err)

	p, ok := decoded.Get(parameter.PidTopicName)
	require.True(t, ok)
	s, err := p.String(binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, "weather", s)
}

func TestDiscoveredWriterDataRoundTrip(t *testing.T) {
	q := qos.Default()
	q.Reliability.Kind = qos.Reliable
	q.Partition.Names = []string{"sensors/*"}

	orig := DiscoveredWriterData{EndpointData: EndpointData{
		Guid:      testGuid(2),
		TopicName: "temperature",
		TypeName:  "Temperature",
		Qos:       q,
	}}

	pl := orig.Encode(binary.LittleEndian)
	decoded, err := DecodeDiscoveredWriterData(pl, binary.LittleEndian)
	require.NoError(t, err)

	assert.Equal(t, orig.Guid, decoded.Guid)
	assert.Equal(t, orig.TopicName, decoded.TopicName)
	assert.Equal(t, orig.TypeName, decoded.TypeName)
	assert.Equal(t, qos.Reliable, decoded.Qos.Reliability.Kind)
	assert.Equal(t, []string{"sensors/*"}, decoded.Qos.Partition.Names)
}

func TestDiscoveredReaderDataExpectsInlineQos(t *testing.T) {
	orig := DiscoveredReaderData{
		EndpointData:     EndpointData{Guid: testGuid(3), TopicName: "t", TypeName: "T", Qos: qos.Default()},
		ExpectsInlineQos: true,
	}
	pl := orig.Encode(binary.LittleEndian)
	decoded, err := DecodeDiscoveredReaderData(pl, binary.LittleEndian)
	require.NoError(t, err)
	assert.True(t, decoded.ExpectsInlineQos)
}

func TestSpdpAgentAnnounceSendsData(t *testing.T) {
	sender := &fakeSender{}
	self := func() DiscoveredParticipantData {
		return DiscoveredParticipantData{Guid: testGuid(1), LeaseDuration: rtps.DurationInfinite}
	}
	w := writer.NewStatelessWriter(writer.Config{Guid: testGuid(1), TopicName: "x", TypeName: "y"}, qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimitsQos{}, sender)

	agent := NewSpdpAgent(w, self, nil, nil)
	w.ReaderLocatorAdd(newReaderLocatorForTest(rtps.NewLocatorUDPv4([]byte{239, 255, 0, 1}, 7400)))
	agent.announce()

	require.Len(t, sender.sent, 1)
}

func TestSpdpAgentTracksAndExpiresLease(t *testing.T) {
	type lostEvent struct{ guid rtps.Guid }
	lost := make(chan lostEvent, 1)
	sink := fakeParticipantSink{
		onLost: func(g rtps.Guid) { lost <- lostEvent{guid: g} },
	}

	sender := &fakeSender{}
	w := writer.NewStatelessWriter(writer.Config{Guid: testGuid(1), TopicName: "x", TypeName: "y"}, qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}, qos.ResourceLimitsQos{}, sender)
	agent := NewSpdpAgent(w, func() DiscoveredParticipantData { return DiscoveredParticipantData{} }, sink, nil)

	remote := DiscoveredParticipantData{Guid: testGuid(9), LeaseDuration: rtps.DurationFromTimeDuration(10 * time.Millisecond)}
	pl := remote.Encode(binary.LittleEndian)
	payload := EncodePLCDR(pl, binary.LittleEndian)

	err := agent.ReceiveData(testGuid(9), fakeDataWithPayload(payload), nil)
	require.NoError(t, err)

	select {
	case ev := <-lost:
		assert.Equal(t, remote.Guid, ev.guid)
	case <-time.After(time.Second):
		t.Fatal("lease never expired")
	}
}

type fakeParticipantSink struct {
	onDiscovered func(DiscoveredParticipantData)
	onLost       func(rtps.Guid)
}

func (f fakeParticipantSink) OnParticipantDiscovered(d DiscoveredParticipantData) {
	if f.onDiscovered != nil {
		f.onDiscovered(d)
	}
}

func (f fakeParticipantSink) OnParticipantLost(g rtps.Guid) {
	if f.onLost != nil {
		f.onLost(g)
	}
}
