package transport

import (
	"net"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lumendds/rtps"
)

const maxDatagramSize = 65507

// UDPTransport implements Transport over a single bound UDP socket,
// the RTPS core's default collaborator for §6. Multicast group
// membership is joined through udp_unix.go's golang.org/x/sys/unix
// call, the same boundary-adapter shape as the teacher's
// pkg/can/socketcan adapter around a concrete OS transport.
type UDPTransport struct {
	conn      *net.UDPConn
	mu        sync.Mutex
	listeners []Listener
	closed    bool
}

// Bind opens a UDP socket on the given local locator (port 0 lets the
// OS choose an ephemeral unicast port).
func Bind(local rtps.Locator) (*UDPTransport, error) {
	addr := local.UDPAddr()
	if addr == nil {
		addr = &net.UDPAddr{Port: int(local.Port)}
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	t := &UDPTransport{conn: conn}
	go t.recvLoop()
	return t, nil
}

func (t *UDPTransport) recvLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if t.isClosed() {
				return
			}
			log.WithError(err).Warn("rtps: udp read failed")
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		dgram := Datagram{
			Payload: payload,
			From:    rtps.NewLocatorUDPv4(from.IP, uint32(from.Port)),
		}
		t.dispatch(dgram)
	}
}

func (t *UDPTransport) dispatch(d Datagram) {
	t.mu.Lock()
	ls := make([]Listener, len(t.listeners))
	copy(ls, t.listeners)
	t.mu.Unlock()
	for _, l := range ls {
		l.Handle(d)
	}
}

func (t *UDPTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send implements Transport.
func (t *UDPTransport) Send(loc rtps.Locator, payload []byte) error {
	addr := loc.UDPAddr()
	if addr == nil {
		return rtps.ErrBadParameter
	}
	_, err := t.conn.WriteToUDP(payload, addr)
	if err != nil {
		log.WithError(err).WithField("to", loc.String()).Warn("rtps: udp send failed")
	}
	return err
}

// Subscribe implements Transport.
func (t *UDPTransport) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// Close implements Transport.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}
