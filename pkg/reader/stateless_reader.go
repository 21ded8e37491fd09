package reader

import (
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/cache"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/wire"
)

// StatelessReader is the best-effort reader behavior (spec §4.4): it
// stores every Data submessage it receives (duplicate suppression is
// handled by HistoryCache.Add's key-uniqueness check) and never sends
// AckNacks.
type StatelessReader struct {
	base
}

// NewStatelessReader builds a StatelessReader for the given entity.
func NewStatelessReader(cfg Config, history qos.HistoryQos, limits qos.ResourceLimitsQos) *StatelessReader {
	return &StatelessReader{base: base{cfg: cfg, cache: cache.New(history, limits)}}
}

// ReceiveData stores a Data submessage addressed to this reader (spec
// §4.4 stateless_reader: receive_change).
func (r *StatelessReader) ReceiveData(writerGuid rtps.Guid, d wire.Data, sourceTimestamp *time.Time) error {
	return storeData(r.cache, writerGuid, d, sourceTimestamp)
}
