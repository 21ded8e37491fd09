package rtps

import "net"

// LocatorKind names the transport kind a Locator addresses.
type LocatorKind int32

const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
)

// Locator is a (kind, port, address) tuple naming a transport endpoint
// (DDSI-RTPS §9.3.2). Address is always stored as 16 bytes; UDPv4
// addresses occupy the last 4.
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte
}

// InvalidLocator is the sentinel "no locator".
var InvalidLocator = Locator{Kind: LocatorKindInvalid}

// NewLocatorUDPv4 builds a UDPv4 locator from an IPv4 address and port.
func NewLocatorUDPv4(ip net.IP, port uint32) Locator {
	var loc Locator
	loc.Kind = LocatorKindUDPv4
	loc.Port = port
	ip4 := ip.To4()
	if ip4 != nil {
		copy(loc.Address[12:], ip4)
	}
	return loc
}

// IP returns the address as a net.IP, interpreting it per Kind.
func (l Locator) IP() net.IP {
	switch l.Kind {
	case LocatorKindUDPv4:
		return net.IPv4(l.Address[12], l.Address[13], l.Address[14], l.Address[15])
	case LocatorKindUDPv6:
		ip := make(net.IP, 16)
		copy(ip, l.Address[:])
		return ip
	default:
		return nil
	}
}

// UDPAddr renders the locator as a *net.UDPAddr, or nil if not a UDP kind.
func (l Locator) UDPAddr() *net.UDPAddr {
	ip := l.IP()
	if ip == nil {
		return nil
	}
	return &net.UDPAddr{IP: ip, Port: int(l.Port)}
}

func (l Locator) String() string {
	if a := l.UDPAddr(); a != nil {
		return a.String()
	}
	return "invalid-locator"
}

// Well-known SPDP multicast address (DDSI-RTPS §9.6.1.1).
var SpdpMulticastAddress = net.IPv4(239, 255, 0, 1)

// Domain port offsets (DDSI-RTPS §9.6.1.1 / §9.6.1.3).
const (
	PortBase           = 7400
	PortDomainGain     = 250
	PortParticipantGain = 2
	offsetSpdpMulticast = 0
	offsetMetaUnicast   = 10
	offsetUserMulticast = 1
	offsetUserUnicast   = 11
)

// SpdpMulticastPort returns the well-known SPDP multicast port for a domain.
func SpdpMulticastPort(domainId uint32) uint32 {
	return PortBase + PortDomainGain*domainId + offsetSpdpMulticast
}

// UserMulticastPort returns the well-known user-traffic multicast port for a domain.
func UserMulticastPort(domainId uint32) uint32 {
	return PortBase + PortDomainGain*domainId + offsetUserMulticast
}

// MetatrafficUnicastPort returns the metatraffic (discovery) unicast port
// for a domain and participant id.
func MetatrafficUnicastPort(domainId, participantId uint32) uint32 {
	return PortBase + PortDomainGain*domainId + offsetMetaUnicast + PortParticipantGain*participantId
}

// UserUnicastPort returns the user-traffic unicast port for a domain and participant id.
func UserUnicastPort(domainId, participantId uint32) uint32 {
	return PortBase + PortDomainGain*domainId + offsetUserUnicast + PortParticipantGain*participantId
}
