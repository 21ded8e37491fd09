package reader

import (
	"sync"
	"testing"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeSender) Send(loc rtps.Locator, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestStatelessReaderStoresAndSuppressesDuplicates(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinWriter}
	r := NewStatelessReader(Config{Guid: rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinReader}}, qos.DefaultHistoryQos, qos.ResourceLimitsQos{})

	d := wire.Data{WriterSn: 1, HasPayload: true, SerializedPayload: []byte("hi")}
	require.NoError(t, r.ReceiveData(writerGuid, d, nil))
	require.NoError(t, r.ReceiveData(writerGuid, d, nil))

	assert.Equal(t, 1, r.History().Len())
}

func TestStatelessReaderStoresSourceTimestamp(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinWriter}
	r := NewStatelessReader(Config{Guid: rtps.Guid{EntityId: rtps.EntityIdSpdpBuiltinReader}}, qos.DefaultHistoryQos, qos.ResourceLimitsQos{})

	ts := time.Unix(1, 500000000).UTC()
	d := wire.Data{WriterSn: 1, HasPayload: true, SerializedPayload: []byte("hi")}
	require.NoError(t, r.ReceiveData(writerGuid, d, &ts))

	change, ok := r.History().GetBySeq(writerGuid, 1)
	require.True(t, ok)
	require.NotNil(t, change.SourceTimestamp)
	assert.True(t, ts.Equal(*change.SourceTimestamp))
}

func TestStatefulReaderSendsAckNackAfterHeartbeat(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserWriterWithKey}}
	readerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserReaderWithKey}}
	sender := &fakeSender{}
	cfg := Config{Guid: readerGuid, HeartbeatResponseDelay: 5 * time.Millisecond}
	r := NewStatefulReader(cfg, qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)

	wp := proxy.NewWriterProxy(writerGuid, []rtps.Locator{rtps.NewLocatorUDPv4([]byte{10, 0, 0, 1}, 7411)}, nil)
	r.MatchedWriterAdd(wp)

	r.ReceiveHeartbeat(writerGuid, wire.Heartbeat{ReaderId: readerGuid.EntityId, WriterId: writerGuid.EntityId, FirstSn: 1, LastSn: 3, Count: 1, Final: false})

	require.Eventually(t, func() bool { return sender.count() > 0 }, 200*time.Millisecond, 5*time.Millisecond)

	msg, err := wire.Decode(sender.sent[0])
	require.NoError(t, err)
	require.Len(t, msg.Submessages, 1)
	assert.Equal(t, wire.SubmessageIdAckNack, msg.Submessages[0].Id)

	ack, err := wire.DecodeAckNack(msg.Submessages[0].Payload, msg.Submessages[0].Flags)
	require.NoError(t, err)
	assert.ElementsMatch(t, []rtps.SequenceNumber{1, 2, 3}, ack.ReaderSnState.Seqs())
}

func TestStatefulReaderGapMarksLostAndAdvances(t *testing.T) {
	writerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserWriterWithKey}}
	readerGuid := rtps.Guid{EntityId: rtps.EntityId{Kind: rtps.EntityKindUserReaderWithKey}}
	sender := &fakeSender{}
	r := NewStatefulReader(Config{Guid: readerGuid}, qos.DefaultHistoryQos, qos.ResourceLimitsQos{}, sender)
	wp := proxy.NewWriterProxy(writerGuid, nil, nil)
	r.MatchedWriterAdd(wp)

	gapList := rtps.NewSequenceNumberSet(4)
	r.ReceiveGap(writerGuid, wire.Gap{ReaderId: readerGuid.EntityId, WriterId: writerGuid.EntityId, GapStart: 1, GapList: gapList})

	assert.Equal(t, rtps.SequenceNumber(3), wp.AvailableChangesMax())
}
