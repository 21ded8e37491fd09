package participant

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/discovery"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/status"
	"github.com/lumendds/rtps/transport"
)

// fakeTransport is an in-memory transport.Transport that records every
// send and never delivers anything back, enough to exercise
// Participant's wiring without a real socket.
type fakeTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeTransport) Send(loc rtps.Locator, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeTransport) Subscribe(l transport.Listener) {}
func (f *fakeTransport) JoinMulticast(mcast rtps.Locator) error { return nil }
func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testGuidPrefix(b byte) rtps.GuidPrefix {
	return rtps.GuidPrefix{b, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
}

func newTestParticipant(t *testing.T, prefixByte byte) (*Participant, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	p := New(Config{
		DomainId:       0,
		ParticipantId:  uint32(prefixByte),
		GuidPrefix:     testGuidPrefix(prefixByte),
		Transport:      ft,
		DefaultUnicast: rtps.NewLocatorUDPv4([]byte{127, 0, 0, 1}, 7411),
	})
	return p, ft
}

func TestNewParticipantBuildsWithoutError(t *testing.T) {
	p, _ := newTestParticipant(t, 1)
	assert.Equal(t, rtps.EntityIdParticipant, p.Guid().EntityId)
}

// discoverRemoteParticipant makes a remote participant with every
// built-in SEDP endpoint known to p, so SEDP announcements have a
// matched reader to be sent to.
func discoverRemoteParticipant(p *Participant, prefixByte byte) {
	p.OnParticipantDiscovered(discovery.DiscoveredParticipantData{
		Guid:                       rtps.Guid{Prefix: testGuidPrefix(prefixByte), EntityId: rtps.EntityIdParticipant},
		AvailableBuiltinEndpoints:  discoveryBuiltinEndpoints,
		MetatrafficUnicastLocators: []rtps.Locator{rtps.NewLocatorUDPv4([]byte{127, 0, 0, 1}, 7410)},
	})
}

func TestCreateDataWriterAssignsUniqueEntityIdsAndAnnounces(t *testing.T) {
	p, ft := newTestParticipant(t, 2)
	discoverRemoteParticipant(p, 98)

	w1, err := p.CreateDataWriter("weather", "Temperature", qos.Default())
	require.NoError(t, err)
	w2, err := p.CreateDataWriter("weather", "Temperature", qos.Default())
	require.NoError(t, err)

	assert.NotEqual(t, w1, w2)
	assert.Greater(t, ft.count(), 0)
}

func TestCreateDataReaderAnnounces(t *testing.T) {
	p, ft := newTestParticipant(t, 3)
	discoverRemoteParticipant(p, 98)

	before := ft.count()
	_, err := p.CreateDataReader("weather", "Temperature", qos.Default())
	require.NoError(t, err)

	assert.Greater(t, ft.count(), before)
}

func TestOnWriterDiscoveredMatchesLocalReaderAndPublishesEvent(t *testing.T) {
	p, _ := newTestParticipant(t, 4)
	p.bus.Start()
	defer p.bus.Stop()

	q := qos.Default()
	r, err := p.CreateDataReader("weather", "Temperature", q)
	require.NoError(t, err)

	matched := make(chan status.Event, 1)
	p.bus.Subscribe(r.Guid(), func(ev status.Event) { matched <- ev })

	remoteGuid := rtps.Guid{Prefix: testGuidPrefix(99), EntityId: rtps.EntityId{EntityKey: [3]byte{0, 0, 1}, Kind: rtps.EntityKindUserWriterWithKey}}
	p.OnWriterDiscovered(discovery.DiscoveredWriterData{EndpointData: discovery.EndpointData{
		Guid:      remoteGuid,
		TopicName: "weather",
		TypeName:  "Temperature",
		Qos:       q,
	}})

	select {
	case ev := <-matched:
		assert.Equal(t, status.SubscriptionMatched, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected SubscriptionMatched event")
	}
}

func TestOnParticipantLostUnmatchesEverywhere(t *testing.T) {
	p, _ := newTestParticipant(t, 5)
	q := qos.Default()
	_, err := p.CreateDataReader("weather", "Temperature", q)
	require.NoError(t, err)

	remotePrefix := testGuidPrefix(77)
	remoteGuid := rtps.Guid{Prefix: remotePrefix, EntityId: rtps.EntityIdParticipant}

	assert.NotPanics(t, func() { p.OnParticipantLost(remoteGuid) })
}
