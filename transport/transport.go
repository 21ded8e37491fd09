// Package transport implements the OS-level UDP socket wrapper this
// module references as an external collaborator (spec §1, §6): it
// only needs to satisfy the send/receive/multicast-join contract the
// RTPS core drives it through.
//
// Grounded on the teacher's pkg/can.Bus interface (Connect/Disconnect/
// Send/Subscribe) for the shape of a thin, swappable transport
// boundary.
package transport

import (
	"github.com/lumendds/rtps"
)

// Datagram is one received UDP packet plus the locator it arrived from.
type Datagram struct {
	Payload []byte
	From    rtps.Locator
}

// Listener receives datagrams off a Transport.
type Listener interface {
	Handle(Datagram)
}

// Transport is the send/receive contract the RTPS core needs from the
// OS socket layer (spec §1 scopes the socket wrapper itself out of
// core; only this contract is referenced).
type Transport interface {
	// Send writes payload to the given locator.
	Send(loc rtps.Locator, payload []byte) error
	// Subscribe registers a Listener invoked for every inbound datagram.
	Subscribe(l Listener)
	// JoinMulticast binds the transport to receive traffic sent to mcast.
	JoinMulticast(mcast rtps.Locator) error
	// Close releases the underlying socket(s).
	Close() error
}
