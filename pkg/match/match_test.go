package match

import (
	"testing"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocalWriter struct {
	added   []*proxy.ReaderProxy
	removed []rtps.Guid
}

func (f *fakeLocalWriter) MatchedReaderAdd(rp *proxy.ReaderProxy) { f.added = append(f.added, rp) }
func (f *fakeLocalWriter) MatchedReaderRemove(g rtps.Guid)        { f.removed = append(f.removed, g) }

type fakeLocalReader struct {
	added   []*proxy.WriterProxy
	removed []rtps.Guid
}

func (f *fakeLocalReader) MatchedWriterAdd(wp *proxy.WriterProxy) { f.added = append(f.added, wp) }
func (f *fakeLocalReader) MatchedWriterRemove(g rtps.Guid)        { f.removed = append(f.removed, g) }

func guidWithKey(key byte, isWriter bool) rtps.Guid {
	kind := rtps.EntityKindUserReaderWithKey
	if isWriter {
		kind = rtps.EntityKindUserWriterWithKey
	}
	return rtps.Guid{
		Prefix:   rtps.GuidPrefix{1, 2, 3},
		EntityId: rtps.EntityId{EntityKey: [3]byte{0, 0, key}, Kind: kind},
	}
}

func TestMatchesTopicMismatch(t *testing.T) {
	w := Endpoint{TopicName: "a", TypeName: "T", Qos: qos.Default()}
	r := Endpoint{TopicName: "b", TypeName: "T", Qos: qos.Default()}
	ok, qosMismatch, _ := Matches(w, r)
	assert.False(t, ok)
	assert.False(t, qosMismatch)
}

func TestMatchesQosMismatch(t *testing.T) {
	w := Endpoint{TopicName: "a", TypeName: "T", Qos: qos.Default()}
	rq := qos.Default()
	rq.Reliability.Kind = qos.Reliable
	r := Endpoint{TopicName: "a", TypeName: "T", Qos: rq}
	ok, qosMismatch, pid := Matches(w, r)
	assert.False(t, ok)
	assert.True(t, qosMismatch)
	assert.Equal(t, qos.PolicyReliability, pid)
}

func TestMatchesCompatible(t *testing.T) {
	w := Endpoint{TopicName: "a", TypeName: "T", Qos: qos.Default()}
	r := Endpoint{TopicName: "a", TypeName: "T", Qos: qos.Default()}
	ok, qosMismatch, _ := Matches(w, r)
	assert.True(t, ok)
	assert.False(t, qosMismatch)
}

func TestDirectoryOnDiscoveredWriterMatchesAndPublishes(t *testing.T) {
	bus := status.NewBus(8, nil)
	bus.Start()
	defer bus.Stop()

	readerGuid := guidWithKey(1, false)
	received := make(chan status.Event, 1)
	bus.Subscribe(readerGuid, func(ev status.Event) { received <- ev })

	d := NewDirectory(bus)
	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: readerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fr)

	writerGuid := guidWithKey(2, true)
	d.OnDiscoveredWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()})

	require.Len(t, fr.added, 1)
	assert.Equal(t, writerGuid, fr.added[0].RemoteWriterGuid)

	ev := <-received
	assert.Equal(t, status.SubscriptionMatched, ev.Kind)
}

func TestDirectoryOnDiscoveredReaderIncompatibleQosPublishesEvent(t *testing.T) {
	bus := status.NewBus(8, nil)
	bus.Start()
	defer bus.Stop()

	writerGuid := guidWithKey(1, true)
	received := make(chan status.Event, 1)
	bus.Subscribe(writerGuid, func(ev status.Event) { received <- ev })

	d := NewDirectory(bus)
	fw := &fakeLocalWriter{}
	d.AddLocalWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fw)

	reqQos := qos.Default()
	reqQos.Reliability.Kind = qos.Reliable
	readerGuid := guidWithKey(2, false)
	d.OnDiscoveredReader(Endpoint{Guid: readerGuid, TopicName: "t", TypeName: "T", Qos: reqQos})

	assert.Empty(t, fw.added)
	ev := <-received
	assert.Equal(t, status.OfferedIncompatibleQos, ev.Kind)
	assert.Equal(t, qos.PolicyReliability, ev.Payload)
}

func TestDirectoryOnWriterLostUnmatchesAllReaders(t *testing.T) {
	d := NewDirectory(nil)
	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: guidWithKey(1, false)}, fr)

	writerGuid := guidWithKey(2, true)
	d.OnWriterLost(writerGuid)

	require.Len(t, fr.removed, 1)
	assert.Equal(t, writerGuid, fr.removed[0])
}

// TestDirectorySameParticipantReaderThenWriter covers spec §8 scenario
// 1: a reliable writer and reliable reader created on the same
// participant must match each other directly, with no SEDP round trip
// involved (self-discovery is suppressed upstream).
func TestDirectorySameParticipantReaderThenWriter(t *testing.T) {
	d := NewDirectory(nil)

	readerGuid := guidWithKey(1, false)
	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: readerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fr)

	writerGuid := guidWithKey(2, true)
	fw := &fakeLocalWriter{}
	d.AddLocalWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fw)

	require.Len(t, fr.added, 1)
	assert.Equal(t, writerGuid, fr.added[0].RemoteWriterGuid)
	require.Len(t, fw.added, 1)
	assert.Equal(t, readerGuid, fw.added[0].RemoteReaderGuid)
}

// TestDirectorySameParticipantWriterThenReader is the order-reversed
// twin of the above: matching must not depend on which local endpoint
// was registered first (spec property P5).
func TestDirectorySameParticipantWriterThenReader(t *testing.T) {
	d := NewDirectory(nil)

	writerGuid := guidWithKey(1, true)
	fw := &fakeLocalWriter{}
	d.AddLocalWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fw)

	readerGuid := guidWithKey(2, false)
	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: readerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fr)

	require.Len(t, fr.added, 1)
	assert.Equal(t, writerGuid, fr.added[0].RemoteWriterGuid)
	require.Len(t, fw.added, 1)
	assert.Equal(t, readerGuid, fw.added[0].RemoteReaderGuid)
}

// TestDirectoryDiscoveredPeerTablePersistsAcrossLocalCreation covers
// the discovered-peer table: a remote writer discovered before any
// local reader exists must still be matched once a local reader
// appears later, since OnDiscoveredWriter has no local reader to loop
// over at the time it runs.
func TestDirectoryDiscoveredPeerTablePersistsAcrossLocalCreation(t *testing.T) {
	d := NewDirectory(nil)

	writerGuid := guidWithKey(1, true)
	d.OnDiscoveredWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()})

	readerGuid := guidWithKey(2, false)
	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: readerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()}, fr)

	require.Len(t, fr.added, 1)
	assert.Equal(t, writerGuid, fr.added[0].RemoteWriterGuid)
}

// TestDirectoryDiscoveredPeerTableForgetsLostWriter ensures a lost
// remote writer is dropped from the discovered-peer table so it is
// not replayed against endpoints created afterwards.
func TestDirectoryDiscoveredPeerTableForgetsLostWriter(t *testing.T) {
	d := NewDirectory(nil)

	writerGuid := guidWithKey(1, true)
	d.OnDiscoveredWriter(Endpoint{Guid: writerGuid, TopicName: "t", TypeName: "T", Qos: qos.Default()})
	d.OnWriterLost(writerGuid)

	fr := &fakeLocalReader{}
	d.AddLocalReader(Endpoint{Guid: guidWithKey(2, false), TopicName: "t", TypeName: "T", Qos: qos.Default()}, fr)

	assert.Empty(t, fr.added)
}
