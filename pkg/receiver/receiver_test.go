package receiver

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wireTestOrder = binary.LittleEndian

type recordingDataSink struct {
	writerGuid rtps.Guid
	data       wire.Data
	timestamp  *time.Time
	called     bool
}

func (r *recordingDataSink) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	r.writerGuid = writerGuid
	r.data = d
	r.timestamp = sourceTimestamp
	r.called = true
	return nil
}

func encodeTestMessage(t *testing.T, sourcePrefix rtps.GuidPrefix, d wire.Data) []byte {
	t.Helper()
	b := wire.NewBuilder(sourcePrefix)
	buf := make([]byte, d.EncodedLen())
	n, err := d.Encode(buf, wireTestOrder)
	require.NoError(t, err)
	b.Add(wire.SubmessageIdData, 0x01|d.Flags(), buf[:n])
	msg := b.Build()
	out := make([]byte, msg.EncodedLen())
	n2, err := msg.Encode(out)
	require.NoError(t, err)
	return out[:n2]
}

func TestMessageReceiverDispatchesDataToRegisteredReader(t *testing.T) {
	var ownPrefix rtps.GuidPrefix
	m := New(ownPrefix)
	readerId := rtps.EntityId{EntityKey: [3]byte{1, 2, 3}, Kind: rtps.EntityKindUserReaderWithKey}
	writerId := rtps.EntityId{EntityKey: [3]byte{4, 5, 6}, Kind: rtps.EntityKindUserWriterWithKey}
	sink := &recordingDataSink{}
	m.RegisterReader(readerId, sink)

	var srcPrefix rtps.GuidPrefix
	srcPrefix[0] = 0xaa
	d := wire.Data{ReaderId: readerId, WriterId: writerId, WriterSn: 7, HasPayload: true, SerializedPayload: []byte("payload")}
	buf := encodeTestMessage(t, srcPrefix, d)

	require.NoError(t, m.Process(buf))
	require.True(t, sink.called)
	assert.Equal(t, srcPrefix, sink.writerGuid.Prefix)
	assert.Equal(t, writerId, sink.writerGuid.EntityId)
	assert.Equal(t, rtps.SequenceNumber(7), sink.data.WriterSn)
	assert.Equal(t, []byte("payload"), sink.data.SerializedPayload)
}

// TestMessageReceiverAppliesInfoTimestampToData covers spec §4.5/
// concrete scenario 6: an InfoTimestamp ahead of a Data submessage in
// the same datagram must surface as that Data's source timestamp.
func TestMessageReceiverAppliesInfoTimestampToData(t *testing.T) {
	var ownPrefix rtps.GuidPrefix
	m := New(ownPrefix)
	readerId := rtps.EntityId{EntityKey: [3]byte{1, 2, 3}, Kind: rtps.EntityKindUserReaderWithKey}
	writerId := rtps.EntityId{EntityKey: [3]byte{4, 5, 6}, Kind: rtps.EntityKindUserWriterWithKey}
	sink := &recordingDataSink{}
	m.RegisterReader(readerId, sink)

	var srcPrefix rtps.GuidPrefix
	srcPrefix[0] = 0xaa

	it := wire.InfoTimestamp{Timestamp: rtps.Duration{Sec: 1, Nanosec: 500000000}}
	itBuf := make([]byte, 8)
	itn, err := it.Encode(itBuf, wireTestOrder)
	require.NoError(t, err)

	d := wire.Data{ReaderId: readerId, WriterId: writerId, WriterSn: 7, HasPayload: true, SerializedPayload: []byte("payload")}
	dBuf := make([]byte, d.EncodedLen())
	dn, err := d.Encode(dBuf, wireTestOrder)
	require.NoError(t, err)

	b := wire.NewBuilder(srcPrefix)
	b.Add(wire.SubmessageIdInfoTimestamp, 0x01|it.Flags(), itBuf[:itn])
	b.Add(wire.SubmessageIdData, 0x01|d.Flags(), dBuf[:dn])
	msg := b.Build()
	buf := make([]byte, msg.EncodedLen())
	n, err := msg.Encode(buf)
	require.NoError(t, err)

	require.NoError(t, m.Process(buf[:n]))
	require.True(t, sink.called)
	require.NotNil(t, sink.timestamp)
	assert.Equal(t, int64(1), sink.timestamp.Unix())
	assert.Equal(t, 500000000, sink.timestamp.Nanosecond())
}

func TestMessageReceiverSkipsUnregisteredReader(t *testing.T) {
	m := New(rtps.GuidPrefix{})
	d := wire.Data{ReaderId: rtps.EntityId{EntityKey: [3]byte{9, 9, 9}}, WriterId: rtps.EntityId{}, WriterSn: 1}
	buf := encodeTestMessage(t, rtps.GuidPrefix{}, d)
	assert.NoError(t, m.Process(buf))
}
