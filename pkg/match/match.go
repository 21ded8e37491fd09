// Package match implements the RTPS matching engine & QoS
// compatibility component (spec §4.7, component C8): it pairs local
// endpoints with remote endpoints discovered by SEDP, checks
// topic/type/QoS/partition compatibility, and wires the resulting
// proxy into the local endpoint, publishing the SubscriptionMatched/
// PublicationMatched/*IncompatibleQos status events to the status bus.
//
// Grounded on the teacher's pkg/config rules engine (a pure function
// over two descriptor structs, `NodeConfigurator` style) for the
// shape of Compatible/Matches; the QoS compatibility table itself is
// spec §4.7 domain logic with no teacher analog.
package match

import (
	"sync"

	"github.com/lumendds/rtps"
	"github.com/lumendds/rtps/pkg/proxy"
	"github.com/lumendds/rtps/pkg/qos"
	"github.com/lumendds/rtps/pkg/status"
)

// Endpoint is the descriptor the matching engine compares: everything
// about a local or discovered remote endpoint relevant to spec §4.7's
// three match conditions.
type Endpoint struct {
	Guid              rtps.Guid
	TopicName         string
	TypeName          string
	Qos               qos.EndpointQos
	UnicastLocators   []rtps.Locator
	MulticastLocators []rtps.Locator
	ExpectsInlineQos  bool
}

// LocalWriter is the subset of *writer.StatefulWriter the matching
// engine drives when a compatible remote reader is discovered.
type LocalWriter interface {
	MatchedReaderAdd(*proxy.ReaderProxy)
	MatchedReaderRemove(rtps.Guid)
}

// LocalReader is the subset of *reader.StatefulReader the matching
// engine drives when a compatible remote writer is discovered.
type LocalReader interface {
	MatchedWriterAdd(*proxy.WriterProxy)
	MatchedWriterRemove(rtps.Guid)
}

type localWriterEntry struct {
	ep Endpoint
	w  LocalWriter
}

type localReaderEntry struct {
	ep Endpoint
	r  LocalReader
}

// Directory tracks every locally-created endpoint plus every
// remote endpoint discovered so far (spec §5's "endpoint directory,
// discovered-peer table" pair), and wires matching pairs together
// regardless of which side was registered first or whether both sides
// belong to this same participant (spec §4.7, §8 scenario 1).
// One Directory serves one participant.
type Directory struct {
	mu      sync.Mutex
	writers map[rtps.Guid]localWriterEntry
	readers map[rtps.Guid]localReaderEntry

	// remoteWriters/remoteReaders is the discovered-peer table: every
	// remote endpoint learned over SEDP, retained so a local endpoint
	// created after the remote was already discovered still gets
	// matched against it.
	remoteWriters map[rtps.Guid]Endpoint
	remoteReaders map[rtps.Guid]Endpoint

	bus *status.Bus
}

// NewDirectory builds a Directory that publishes match/incompatible-QoS
// status events to bus.
func NewDirectory(bus *status.Bus) *Directory {
	return &Directory{
		writers:       make(map[rtps.Guid]localWriterEntry),
		readers:       make(map[rtps.Guid]localReaderEntry),
		remoteWriters: make(map[rtps.Guid]Endpoint),
		remoteReaders: make(map[rtps.Guid]Endpoint),
		bus:           bus,
	}
}

// AddLocalWriter registers a local writer as eligible for matching,
// then matches it against every local reader already registered on
// this same participant and every remote reader already discovered
// over SEDP (spec §8 scenario 1: same-participant matching needs no
// SEDP round trip, since self-discovery is intentionally suppressed).
func (d *Directory) AddLocalWriter(ep Endpoint, w LocalWriter) {
	d.mu.Lock()
	d.writers[ep.Guid] = localWriterEntry{ep: ep, w: w}
	readers := make([]localReaderEntry, 0, len(d.readers))
	for _, re := range d.readers {
		readers = append(readers, re)
	}
	remotes := make([]Endpoint, 0, len(d.remoteReaders))
	for _, re := range d.remoteReaders {
		remotes = append(remotes, re)
	}
	d.mu.Unlock()

	we := localWriterEntry{ep: ep, w: w}
	for _, re := range readers {
		d.matchLocalPair(we, re)
	}
	for _, remote := range remotes {
		d.matchWriterAgainstRemoteReader(we, remote)
	}
}

// AddLocalReader registers a local reader as eligible for matching,
// then matches it against every local writer already registered on
// this same participant and every remote writer already discovered
// over SEDP.
func (d *Directory) AddLocalReader(ep Endpoint, r LocalReader) {
	d.mu.Lock()
	d.readers[ep.Guid] = localReaderEntry{ep: ep, r: r}
	writers := make([]localWriterEntry, 0, len(d.writers))
	for _, we := range d.writers {
		writers = append(writers, we)
	}
	remotes := make([]Endpoint, 0, len(d.remoteWriters))
	for _, we := range d.remoteWriters {
		remotes = append(remotes, we)
	}
	d.mu.Unlock()

	re := localReaderEntry{ep: ep, r: r}
	for _, we := range writers {
		d.matchLocalPair(we, re)
	}
	for _, remote := range remotes {
		d.matchReaderAgainstRemoteWriter(re, remote)
	}
}

// RemoveLocalWriter unregisters a local writer by GUID.
func (d *Directory) RemoveLocalWriter(guid rtps.Guid) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.writers, guid)
}

// RemoveLocalReader unregisters a local reader by GUID.
func (d *Directory) RemoveLocalReader(guid rtps.Guid) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.readers, guid)
}

// Matches reports whether a writer offering offered and a reader
// requesting requested satisfy spec §4.7's three match conditions.
// offending is only meaningful when ok is false and is a QoS mismatch
// (a topic/type/partition mismatch yields ok=false with no QoS
// policy id, since it is not a QoS incompatibility in OMG terms).
func Matches(writerEp, readerEp Endpoint) (ok bool, qosMismatch bool, offending qos.PolicyId) {
	if writerEp.TopicName != readerEp.TopicName || writerEp.TypeName != readerEp.TypeName {
		return false, false, 0
	}
	if !qos.PartitionsMatch(writerEp.Qos.Partition, readerEp.Qos.Partition) {
		return false, false, 0
	}
	compatible, pid := qos.Compatible(writerEp.Qos, readerEp.Qos)
	if !compatible {
		return false, true, pid
	}
	return true, false, 0
}

// matchLocalPair matches a local writer against a local reader
// registered on this same participant. Self-discovery never runs
// over SEDP (a participant does not announce its own endpoints back
// to itself), so this is the only path that ever connects two
// endpoints of one participant (spec §8 scenario 1); both sides get
// their proxy and status event, since neither side will see the other
// announced remotely.
func (d *Directory) matchLocalPair(we localWriterEntry, re localReaderEntry) {
	ok, qosMismatch, pid := Matches(we.ep, re.ep)
	if !ok {
		if qosMismatch {
			d.publish(re.ep.Guid, status.Event{Kind: status.RequestedIncompatibleQos, Payload: pid})
			d.publish(we.ep.Guid, status.Event{Kind: status.OfferedIncompatibleQos, Payload: pid})
		}
		return
	}
	wp := proxy.NewWriterProxy(we.ep.Guid, we.ep.UnicastLocators, we.ep.MulticastLocators)
	re.r.MatchedWriterAdd(wp)
	d.publish(re.ep.Guid, status.Event{Kind: status.SubscriptionMatched})

	rp := proxy.NewReaderProxy(re.ep.Guid, re.ep.UnicastLocators, re.ep.MulticastLocators, re.ep.ExpectsInlineQos)
	we.w.MatchedReaderAdd(rp)
	d.publish(we.ep.Guid, status.Event{Kind: status.PublicationMatched})
}

// matchReaderAgainstRemoteWriter matches a local reader against a
// remote writer endpoint, whether that endpoint was just announced
// over SEDP or was already sitting in the discovered-peer table when
// the reader was created.
func (d *Directory) matchReaderAgainstRemoteWriter(re localReaderEntry, remote Endpoint) {
	ok, qosMismatch, pid := Matches(remote, re.ep)
	if !ok {
		if qosMismatch {
			d.publish(re.ep.Guid, status.Event{Kind: status.RequestedIncompatibleQos, Payload: pid})
		}
		return
	}
	wp := proxy.NewWriterProxy(remote.Guid, remote.UnicastLocators, remote.MulticastLocators)
	re.r.MatchedWriterAdd(wp)
	d.publish(re.ep.Guid, status.Event{Kind: status.SubscriptionMatched})
}

// matchWriterAgainstRemoteReader matches a local writer against a
// remote reader endpoint, whether just announced or already known.
func (d *Directory) matchWriterAgainstRemoteReader(we localWriterEntry, remote Endpoint) {
	ok, qosMismatch, pid := Matches(we.ep, remote)
	if !ok {
		if qosMismatch {
			d.publish(we.ep.Guid, status.Event{Kind: status.OfferedIncompatibleQos, Payload: pid})
		}
		return
	}
	rp := proxy.NewReaderProxy(remote.Guid, remote.UnicastLocators, remote.MulticastLocators, remote.ExpectsInlineQos)
	we.w.MatchedReaderAdd(rp)
	d.publish(we.ep.Guid, status.Event{Kind: status.PublicationMatched})
}

// OnDiscoveredWriter records remote (learned via SEDP) in the
// discovered-peer table, then matches it against every registered
// local reader of the same topic (spec §4.7). Retaining remote marks
// it known even if no local reader exists yet, so a reader created
// later by AddLocalReader still matches it.
func (d *Directory) OnDiscoveredWriter(remote Endpoint) {
	d.mu.Lock()
	d.remoteWriters[remote.Guid] = remote
	readers := make([]localReaderEntry, 0, len(d.readers))
	for _, re := range d.readers {
		readers = append(readers, re)
	}
	d.mu.Unlock()

	for _, re := range readers {
		d.matchReaderAgainstRemoteWriter(re, remote)
	}
}

// OnDiscoveredReader records remote in the discovered-peer table, then
// matches it against every registered local writer of the same topic
// (spec §4.7).
func (d *Directory) OnDiscoveredReader(remote Endpoint) {
	d.mu.Lock()
	d.remoteReaders[remote.Guid] = remote
	writers := make([]localWriterEntry, 0, len(d.writers))
	for _, we := range d.writers {
		writers = append(writers, we)
	}
	d.mu.Unlock()

	for _, we := range writers {
		d.matchWriterAgainstRemoteReader(we, remote)
	}
}

// OnWriterLost drops remoteGuid from the discovered-peer table and
// unmatches it from every local reader (spec §4.6 lease expiration /
// explicit unmatch).
func (d *Directory) OnWriterLost(remoteGuid rtps.Guid) {
	d.mu.Lock()
	delete(d.remoteWriters, remoteGuid)
	readers := make([]localReaderEntry, 0, len(d.readers))
	for _, re := range d.readers {
		readers = append(readers, re)
	}
	d.mu.Unlock()
	for _, re := range readers {
		re.r.MatchedWriterRemove(remoteGuid)
	}
}

// OnReaderLost drops remoteGuid from the discovered-peer table and
// unmatches it from every local writer.
func (d *Directory) OnReaderLost(remoteGuid rtps.Guid) {
	d.mu.Lock()
	delete(d.remoteReaders, remoteGuid)
	writers := make([]localWriterEntry, 0, len(d.writers))
	for _, we := range d.writers {
		writers = append(writers, we)
	}
	d.mu.Unlock()
	for _, we := range writers {
		we.w.MatchedReaderRemove(remoteGuid)
	}
}

func (d *Directory) publish(entityGuid rtps.Guid, ev status.Event) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(entityGuid, ev)
}
