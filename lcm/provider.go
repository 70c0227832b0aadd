package lcm

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
)

// errProviderClosed is returned by a provider after close.
var errProviderClosed = errors.New("LCM provider closed")

// provider moves datagrams between the bus and the network.
type provider interface {
	// write sends one datagram.
	write(pkt []byte) error
	// read blocks for the next datagram and reports who sent it.
	read() (pkt []byte, sender string, err error)
	close() error
}

func newProvider(u *URL) (provider, error) {
	switch u.Provider {
	case ProviderUDPM:
		return newUDPMProvider(u)
	case ProviderMemQ:
		return newMemQProvider(), nil
	default:
		return nil, NewURLError(u.String(), "unsupported provider %q", u.Provider)
	}
}

// udpmProvider sends and receives on a UDP multicast group.
type udpmProvider struct {
	group *net.UDPAddr
	recv  *net.UDPConn
	send  *ipv4.PacketConn
	buf   []byte
}

func newUDPMProvider(u *URL) (*udpmProvider, error) {
	recv, err := net.ListenMulticastUDP("udp4", nil, u.Addr())
	if err != nil {
		return nil, errors.Wrapf(err, "joining multicast group %s", u.Addr())
	}
	if u.RecvBufSize > 0 {
		if err := recv.SetReadBuffer(u.RecvBufSize); err != nil {
			return nil, errors.Wrap(closeAfter(err, recv), "setting receive buffer size")
		}
	}
	if err := ipv4.NewPacketConn(recv).SetMulticastLoopback(true); err != nil {
		return nil, errors.Wrap(closeAfter(err, recv), "enabling multicast loopback")
	}

	sendConn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(closeAfter(err, recv), "opening send socket")
	}
	send := ipv4.NewPacketConn(sendConn)
	if err := send.SetMulticastTTL(u.TTL); err != nil {
		return nil, errors.Wrap(closeAfter(err, recv, sendConn), "setting multicast ttl")
	}
	if err := send.SetMulticastLoopback(true); err != nil {
		return nil, errors.Wrap(closeAfter(err, recv, sendConn), "enabling multicast loopback")
	}

	return &udpmProvider{
		group: u.Addr(),
		recv:  recv,
		send:  send,
		buf:   make([]byte, 65536),
	}, nil
}

func closeAfter(err error, closers ...interface{ Close() error }) error {
	for _, c := range closers {
		//nolint:errcheck
		c.Close()
	}
	return err
}

func (p *udpmProvider) write(pkt []byte) error {
	_, err := p.send.WriteTo(pkt, nil, p.group)
	return err
}

func (p *udpmProvider) read() ([]byte, string, error) {
	n, from, err := p.recv.ReadFromUDP(p.buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, "", errProviderClosed
		}
		return nil, "", err
	}
	pkt := make([]byte, n)
	copy(pkt, p.buf[:n])
	return pkt, from.String(), nil
}

func (p *udpmProvider) close() error {
	return errors.Wrap(closeAfter(p.recv.Close(), p.send), "closing udpm provider")
}

// memQueueSize bounds the datagrams in flight on an in-process bus.
const memQueueSize = 4096

// errMemQueueFull is returned when an in-process bus is not being drained.
var errMemQueueFull = errors.New("memq queue full")

// memqProvider loops datagrams back inside the process.
type memqProvider struct {
	queue     chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

func newMemQProvider() *memqProvider {
	return &memqProvider{
		queue:  make(chan []byte, memQueueSize),
		closed: make(chan struct{}),
	}
}

func (p *memqProvider) write(pkt []byte) error {
	select {
	case <-p.closed:
		return errProviderClosed
	default:
	}
	select {
	case p.queue <- append([]byte(nil), pkt...):
		return nil
	default:
		return errMemQueueFull
	}
}

func (p *memqProvider) read() ([]byte, string, error) {
	select {
	case pkt := <-p.queue:
		return pkt, ProviderMemQ, nil
	case <-p.closed:
		return nil, "", errProviderClosed
	}
}

func (p *memqProvider) close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}
