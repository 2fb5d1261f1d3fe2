package notify

import (
	"net"

	"github.com/sirupsen/logrus"
)

// defaultMulticastGroup is the fixed group address every MulticastBus
// joins; only the port is chosen by the caller. It follows the original
// source's fixed group address (udp_multicast.rs uses 239.255.50.10) but
// with a last octet of 11.
var defaultMulticastGroup = &net.UDPAddr{IP: net.IPv4(239, 255, 50, 11), Port: 0}

// MulticastBus is the UDP multicast notification transport (spec.md §6).
// Go's standard library exposes multicast datagram sockets directly via
// net.ListenMulticastUDP/net.DialUDP, so no third-party socket wrapper is
// needed here (see SPEC_FULL.md "UDP multicast ... standard library").
type MulticastBus struct {
	port int
	conn *net.UDPConn
	send *net.UDPConn
	log  *logrus.Logger
}

// NewMulticastBus joins the notification multicast group on port and
// prepares a send socket for Emit.
func NewMulticastBus(port int, log *logrus.Logger) (*MulticastBus, error) {
	if log == nil {
		log = logrus.New()
	}
	group := &net.UDPAddr{IP: defaultMulticastGroup.IP, Port: port}
	conn, err := net.ListenMulticastUDP("udp4", nil, group)
	if err != nil {
		return nil, err
	}
	send, err := net.DialUDP("udp4", nil, group)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &MulticastBus{port: port, conn: conn, send: send, log: log}, nil
}

// Emit broadcasts m to the multicast group.
func (b *MulticastBus) Emit(m Message) error {
	_, err := b.send.Write(m.Encode())
	return err
}

// Recv blocks until one message arrives, decodes it, and returns it.
// Callers typically loop calling Recv in a dedicated goroutine.
func (b *MulticastBus) Recv() (Message, error) {
	buf := make([]byte, MessageSize+16)
	for {
		n, _, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			return Message{}, err
		}
		if n != MessageSize {
			b.log.WithField("n", n).Debug("notify: dropping malformed multicast datagram")
			continue
		}
		return Decode(buf[:n])
	}
}

// Close releases both sockets.
func (b *MulticastBus) Close() error {
	sendErr := b.send.Close()
	recvErr := b.conn.Close()
	if recvErr != nil {
		return recvErr
	}
	return sendErr
}
