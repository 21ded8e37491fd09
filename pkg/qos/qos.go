// Package qos implements the QoS policy types referenced by the
// matching engine (spec §4.7) and by reader/writer history behavior
// (spec §4.2), grounded on the shape of the teacher's pkg/config
// parameter-rules: small value types plus a pure compatibility check
// over two descriptor structs.
package qos

import "github.com/lumendds/rtps"

// ReliabilityKind selects best-effort or reliable delivery.
type ReliabilityKind int

const (
	BestEffort ReliabilityKind = iota
	Reliable
)

// DurabilityKind is ordered VOLATILE < TRANSIENT_LOCAL < TRANSIENT < PERSISTENT (spec §4.7.2).
type DurabilityKind int

const (
	Volatile DurabilityKind = iota
	TransientLocal
	Transient
	Persistent
)

// HistoryKind selects the History QoS eviction strategy (spec §3).
type HistoryKind int

const (
	KeepLast HistoryKind = iota
	KeepAll
)

// HistoryQos bounds per-instance retained samples.
type HistoryQos struct {
	Kind  HistoryKind
	Depth int // only meaningful for KeepLast
}

// DefaultHistoryQos is KeepLast(1), the OMG DDS default.
var DefaultHistoryQos = HistoryQos{Kind: KeepLast, Depth: 1}

// ResourceLimitsQos bounds absolute cache size regardless of History.
type ResourceLimitsQos struct {
	MaxSamples             int // <=0 means unlimited
	MaxInstances           int
	MaxSamplesPerInstance  int
}

// ReliabilityQos pairs a ReliabilityKind with its max_blocking_time.
type ReliabilityQos struct {
	Kind            ReliabilityKind
	MaxBlockingTime rtps.Duration
}

// DeadlineQos bounds the maximum period between samples of an instance.
type DeadlineQos struct {
	Period rtps.Duration
}

// LatencyBudgetQos is the tolerated delay from write to receipt.
type LatencyBudgetQos struct {
	Duration rtps.Duration
}

// LivelinessKind selects how liveliness is asserted.
type LivelinessKind int

const (
	Automatic LivelinessKind = iota
	ManualByParticipant
	ManualByTopic
)

// LivelinessQos bounds the lease duration for liveliness assertions.
type LivelinessQos struct {
	Kind          LivelinessKind
	LeaseDuration rtps.Duration
}

// OwnershipKind selects shared or exclusive instance ownership.
type OwnershipKind int

const (
	Shared OwnershipKind = iota
	Exclusive
)

// OwnershipQos selects the ownership model.
type OwnershipQos struct {
	Kind OwnershipKind
}

// PresentationAccessScope bounds the scope of presentation ordering/coherency.
type PresentationAccessScope int

const (
	InstancePresentation PresentationAccessScope = iota
	TopicPresentation
	GroupPresentation
)

// PresentationQos controls coherent/ordered access scope.
type PresentationQos struct {
	AccessScope     PresentationAccessScope
	CoherentAccess  bool
	OrderedAccess   bool
}

// PartitionQos is a set of partition name expressions (spec §4.7.3);
// names may contain '*' and '?' wildcards.
type PartitionQos struct {
	Names []string
}

// EndpointQos aggregates the policies the matching engine compares
// (spec §4.7); it stands in for the fuller DataWriterQos/DataReaderQos
// the external DDS facade would expose.
type EndpointQos struct {
	Reliability   ReliabilityQos
	Durability    DurabilityQos
	Deadline      DeadlineQos
	LatencyBudget LatencyBudgetQos
	Liveliness    LivelinessQos
	Ownership     OwnershipQos
	Presentation  PresentationQos
	Partition     PartitionQos
	History       HistoryQos
	ResourceLimits ResourceLimitsQos
}

// DurabilityQos selects the durability model.
type DurabilityQos struct {
	Kind DurabilityKind
}

// Default returns a reasonable default EndpointQos: best-effort,
// volatile, KeepLast(1), no deadline/liveliness bound.
func Default() EndpointQos {
	return EndpointQos{
		Reliability:   ReliabilityQos{Kind: BestEffort, MaxBlockingTime: rtps.DurationFromTimeDuration(0)},
		Durability:    DurabilityQos{Kind: Volatile},
		Deadline:      DeadlineQos{Period: rtps.DurationInfinite},
		LatencyBudget: LatencyBudgetQos{Duration: rtps.DurationZero},
		Liveliness:    LivelinessQos{Kind: Automatic, LeaseDuration: rtps.DurationInfinite},
		Ownership:     OwnershipQos{Kind: Shared},
		Presentation:  PresentationQos{AccessScope: InstancePresentation},
		History:       DefaultHistoryQos,
	}
}
