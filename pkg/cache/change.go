// Package cache implements the RTPS HistoryCache (spec §3, §4.2,
// component C2): an ordered store of CacheChanges keyed by
// (writer GUID, sequence number), with min/max queries and KeepLast/
// KeepAll eviction.
//
// Grounded on original_source/rtps_pim/src/structure/history_cache.rs
// for the operation surface, and on the teacher's pkg/od entry storage
// (map + ordering) for the Go idiom.
package cache

import (
	"time"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/parameter"
)

// ChangeKind is the sample disposition (spec §3).
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposed
	NotAliveUnregistered
)

// InstanceHandle identifies a keyed instance within a topic. The
// derive-macro-generated key extraction is an external collaborator
// (spec §1); this module only stores and compares the resulting handle.
type InstanceHandle [16]byte

// CacheChange is one published sample plus its metadata (spec §3),
// the unit of storage in a HistoryCache.
type CacheChange struct {
	Kind              ChangeKind
	WriterGuid        rtps.Guid
	InstanceHandle    InstanceHandle
	SequenceNumber    rtps.SequenceNumber
	SerializedPayload []byte
	InlineQos         parameter.ParameterList
	SourceTimestamp   *time.Time
}

// Key identifies a CacheChange within a reader's history cache:
// (writer_guid, sequence_number) is unique there by construction
// (spec §3 invariant).
type Key struct {
	WriterGuid     rtps.Guid
	SequenceNumber rtps.SequenceNumber
}

// KeyOf returns c's cache key.
func (c CacheChange) KeyOf() Key {
	return Key{WriterGuid: c.WriterGuid, SequenceNumber: c.SequenceNumber}
}
