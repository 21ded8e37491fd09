//go:build linux || freebsd || openbsd || darwin || netbsd || dragonfly
// +build linux freebsd openbsd darwin netbsd dragonfly

package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/lumendds/rtps"
)

// JoinMulticast joins mcast's multicast group on the bound socket via
// IP_ADD_MEMBERSHIP, so the SPDP and user-traffic multicast locators
// (spec §6) are actually received. Grounded on the pack's
// runZeroInc-sockstats repo for direct golang.org/x/sys/unix socket
// option usage gated by a unix build tag.
func (t *UDPTransport) JoinMulticast(mcast rtps.Locator) error {
	ip := mcast.IP()
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("locator is not a joinable ipv4 multicast address: %w", rtps.ErrBadParameter)
	}
	sc, err := t.conn.SyscallConn()
	if err != nil {
		return err
	}
	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], ip.To4())
	if iface := defaultMulticastInterfaceAddr(); iface != nil {
		copy(mreq.Interface[:], iface)
	}
	var sockErr error
	err = sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	})
	if err != nil {
		return err
	}
	return sockErr
}

func defaultMulticastInterfaceAddr() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipNet, ok := a.(*net.IPNet); ok && ipNet.IP.To4() != nil {
				return ipNet.IP.To4()
			}
		}
	}
	return nil
}
