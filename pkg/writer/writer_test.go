package writer

import (
	"sync"
	"testing"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/parameter"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records every datagram sent, keyed by destination locator.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentDatagram
}

type sentDatagram struct {
	loc     rtps.Locator
	payload []byte
}

func (f *fakeSender) Send(loc rtps.Locator, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, sentDatagram{loc: loc, payload: cp})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) last() sentDatagram {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// decodeSoleData extracts the single Data submessage from payload,
// tolerating a leading InfoTimestamp (spec §4.5: every Data carrying a
// source timestamp is preceded by one in the same datagram).
func decodeSoleData(t *testing.T, payload []byte) wire.Data {
	t.Helper()
	msg, err := wire.Decode(payload)
	require.NoError(t, err)
	for _, sub := range msg.Submessages {
		if sub.Id != wire.SubmessageIdData {
			continue
		}
		d, err := wire.DecodeData(sub.Payload, sub.Flags)
		require.NoError(t, err)
		return d
	}
	t.Fatal("no Data submessage found")
	return wire.Data{}
}

func testConfig(guid rtps.Guid) Config {
	return Config{
		Guid:                    guid,
		TopicName:               "Square",
		TypeName:                "ShapeType",
		HeartbeatPeriod:         50 * time.Millisecond,
		NackResponseDelay:       5 * time.Millisecond,
		NackSuppressionDuration: 0,
	}
}

func TestStatelessWriterPushesToEveryLocator(t *testing.T) {
	guid := rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinWriter}
	sender := &fakeSender{}
	w := NewStatelessWriter(testConfig(guid), qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)

	loc1 := rtps.NewLocatorUDPv4([]byte{239, 255, 0, 1}, 7400)
	loc2 := rtps.NewLocatorUDPv4([]byte{10, 0, 0, 5}, 7411)
	w.ReaderLocatorAdd(proxy.NewReaderLocator(loc1, false))
	w.ReaderLocatorAdd(proxy.NewReaderLocator(loc2, false))

	err := w.Write(cache.InstanceHandle{}, []byte("hello"), parameter.ParameterList{})
	require.NoError(t, err)

	assert.Equal(t, 2, sender.count())
	d := decodeSoleData(t, sender.sent[0].payload)
	assert.Equal(t, rtps.SequenceNumber(1), d.WriterSn)
	assert.Equal(t, []byte("hello"), d.SerializedPayload)
}

// TestStatelessWriterReaderLocatorAddCatchesUpExistingSamples covers
// spec §4.3 unsent_changes_to_reader_locator: a locator registered
// after samples already exist must be sent every one of them, not just
// whatever is written from that point on.
func TestStatelessWriterReaderLocatorAddCatchesUpExistingSamples(t *testing.T) {
	guid := rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinWriter}
	sender := &fakeSender{}
	w := NewStatelessWriter(testConfig(guid), qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)

	require.NoError(t, w.Write(cache.InstanceHandle{1}, []byte("a"), parameter.ParameterList{}))
	require.NoError(t, w.Write(cache.InstanceHandle{2}, []byte("b"), parameter.ParameterList{}))

	loc := rtps.NewLocatorUDPv4([]byte{10, 0, 0, 9}, 7411)
	w.ReaderLocatorAdd(proxy.NewReaderLocator(loc, false))

	require.Equal(t, 1, sender.count())
	msg, err := wire.Decode(sender.last().payload)
	require.NoError(t, err)

	var seqs []rtps.SequenceNumber
	for _, sub := range msg.Submessages {
		if sub.Id != wire.SubmessageIdData {
			continue
		}
		d, err := wire.DecodeData(sub.Payload, sub.Flags)
		require.NoError(t, err)
		seqs = append(seqs, d.WriterSn)
	}
	assert.ElementsMatch(t, []rtps.SequenceNumber{1, 2}, seqs)
}

// TestStatelessWriterCatchUpGapsEvictedSamples covers the other half of
// spec §4.3's algorithm: a sample already evicted from the history
// cache by the time a locator catches up must produce a Gap, not be
// silently skipped.
func TestStatelessWriterCatchUpGapsEvictedSamples(t *testing.T) {
	guid := rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinWriter}
	sender := &fakeSender{}
	history := qos.HistoryQos{Kind: qos.KeepLast, Depth: 1}
	w := NewStatelessWriter(testConfig(guid), history, qos.ResourceLimitsQos{}, sender)

	instance := cache.InstanceHandle{1}
	require.NoError(t, w.Write(instance, []byte("a"), parameter.ParameterList{}))
	require.NoError(t, w.Write(instance, []byte("b"), parameter.ParameterList{}))

	loc := rtps.NewLocatorUDPv4([]byte{10, 0, 0, 10}, 7411)
	w.ReaderLocatorAdd(proxy.NewReaderLocator(loc, false))

	require.Equal(t, 1, sender.count())
	msg, err := wire.Decode(sender.last().payload)
	require.NoError(t, err)

	var sawGap, sawData bool
	for _, sub := range msg.Submessages {
		switch sub.Id {
		case wire.SubmessageIdGap:
			g, err := wire.DecodeGap(sub.Payload, sub.Flags)
			require.NoError(t, err)
			assert.Equal(t, rtps.SequenceNumber(1), g.GapStart)
			sawGap = true
		case wire.SubmessageIdData:
			d, err := wire.DecodeData(sub.Payload, sub.Flags)
			require.NoError(t, err)
			assert.Equal(t, rtps.SequenceNumber(2), d.WriterSn)
			sawData = true
		}
	}
	assert.True(t, sawGap, "expected a Gap for the evicted sequence number")
	assert.True(t, sawData, "expected Data for the still-cached sequence number")
}

func TestStatefulWriterUnacknowledgedUntilAckNack(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserWriterWithKey}}
	readerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserReaderWithKey, EntityKey: [3]byte{1, 2, 3}}}
	sender := &fakeSender{}
	w := NewStatefulWriter(testConfig(writerGuid), qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)

	loc := rtps.NewLocatorUDPv4([]byte{10, 0, 0, 7}, 7411)
	rp := proxy.NewReaderProxy(readerGuid, []rtps.Locator{loc}, nil, false)
	w.MatchedReaderAdd(rp)

	require.NoError(t, w.Write(cache.InstanceHandle{}, []byte("sample-1"), parameter.ParameterList{}))
	assert.Equal(t, proxy.Underway, rp.Status(1))
	assert.False(t, w.IsAckedByAll())

	set := rtps.NewSequenceNumberSet(2)
	w.ReceiveAckNack(readerGuid, wire.AckNack{ReaderId: writerGuid.EntityId, WriterId: writerGuid.EntityId, ReaderSnState: set, Count: 1, Final: true})

	assert.True(t, w.IsAckedByAll())
}

func TestStatefulWriterResendsOnNegativeAcknowledgement(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserWriterWithKey}}
	readerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserReaderWithKey, EntityKey: [3]byte{9, 9, 9}}}
	sender := &fakeSender{}
	cfg := testConfig(writerGuid)
	cfg.NackResponseDelay = 5 * time.Millisecond
	w := NewStatefulWriter(cfg, qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)

	loc := rtps.NewLocatorUDPv4([]byte{10, 0, 0, 8}, 7411)
	rp := proxy.NewReaderProxy(readerGuid, []rtps.Locator{loc}, nil, false)
	w.MatchedReaderAdd(rp)
	require.NoError(t, w.Write(cache.InstanceHandle{}, []byte("sample-1"), parameter.ParameterList{}))

	initialSends := sender.count()

	set := rtps.NewSequenceNumberSet(1)
	set.Add(1)
	w.ReceiveAckNack(readerGuid, wire.AckNack{ReaderId: writerGuid.EntityId, WriterId: writerGuid.EntityId, ReaderSnState: set, Count: 1, Final: false})

	require.Eventually(t, func() bool {
		return sender.count() > initialSends
	}, 200*time.Millisecond, 5*time.Millisecond)

	d := decodeSoleData(t, sender.last().payload)
	assert.Equal(t, rtps.SequenceNumber(1), d.WriterSn)
}

func TestStatefulWriterWaitForAcknowledgmentsTimesOut(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserWriterWithKey}}
	readerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserReaderWithKey, EntityKey: [3]byte{1, 1, 1}}}
	sender := &fakeSender{}
	w := NewStatefulWriter(testConfig(writerGuid), qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)
	rp := proxy.NewReaderProxy(readerGuid, nil, nil, false)
	w.MatchedReaderAdd(rp)
	require.NoError(t, w.Write(cache.InstanceHandle{}, []byte("x"), parameter.ParameterList{}))

	ok := w.WaitForAcknowledgments(20 * time.Millisecond)
	assert.False(t, ok)
}
