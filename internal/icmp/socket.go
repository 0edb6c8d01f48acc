package icmp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	xicmp "golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Socket mode. Chosen once at creation; callers branch on it only where
// fallback semantics differ (TTL observability, address-family support).
type mode int

const (
	modeRaw mode = iota
	modeDatagram
)

var (
	rawProto = map[bool]string{false: "ip4:icmp", true: "ip6:ipv6-icmp"}

	// ErrTimeout means no matching reply arrived inside the probe timeout.
	ErrTimeout = errors.New("icmp: request timed out")
)

const (
	ipv4HeaderLen = 20
	// minWrapped is the smallest buffer that can hold an IPv4 header plus
	// an echo header; anything shorter is decoded as bare ICMP.
	minWrapped = ipv4HeaderLen + headerLen
	ttlOffset  = 8 // TTL field inside the IPv4 header

	// defaultTTL is substituted when the reply's real TTL is not
	// observable (no IP header on the wire, or IPv6 raw path).
	defaultTTL = 64
	// fallbackTTL is reported by the datagram socket when no TTL was ever
	// configured; it cannot see the observed one.
	fallbackTTL = 128

	maxPacket = 65536
)

// Response is the outcome of one successful echo exchange.
type Response struct {
	Source netip.Addr
	Bytes  int
	RTT    float64 // round trip, milliseconds
	TTL    int
	Seq    uint16
}

// Socket sends echo requests and waits for the matching replies. A raw
// socket covers both address families; the unprivileged datagram fallback
// is IPv4 only.
type Socket struct {
	conn   *xicmp.PacketConn
	mode   mode
	v6     bool
	source string // bound source address, empty = any
	ttl    int    // last configured TTL, 0 = never set
}

// NewRawSocket opens a raw ICMP socket for the given address family.
// Failure here (typically EPERM for unprivileged processes) is not fatal to
// probing: callers are expected to try NewFallbackSocket next.
func NewRawSocket(v6 bool) (*Socket, error) {
	conn, err := xicmp.ListenPacket(rawProto[v6], "")
	if err != nil {
		return nil, fmt.Errorf("icmp: raw socket: %w", err)
	}
	// Best effort: ask the kernel to attach TTL / hop-limit metadata to
	// received datagrams. Not all platforms honor it.
	if v6 {
		conn.IPv6PacketConn().SetControlMessage(ipv6.FlagHopLimit, true)
	} else {
		conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL, true)
	}
	return &Socket{conn: conn, mode: modeRaw, v6: v6}, nil
}

// NewFallbackSocket opens an unprivileged datagram echo socket. The kernel
// demultiplexes replies and rewrites the echo identifier, so matching on
// this path is by sequence number only. IPv4 only.
func NewFallbackSocket() (*Socket, error) {
	conn, err := xicmp.ListenPacket("udp4", "")
	if err != nil {
		return nil, fmt.Errorf("icmp: datagram socket: %w", err)
	}
	return &Socket{conn: conn, mode: modeDatagram, v6: false}, nil
}

// RawCapable reports whether the process can open raw ICMP sockets, used
// as a pre-flight privilege check.
func RawCapable() bool {
	s, err := NewRawSocket(false)
	if err != nil {
		return false
	}
	s.Close()
	return true
}

// SetTTL configures the outgoing TTL (IPv4) or hop limit (IPv6).
func (s *Socket) SetTTL(ttl int) error {
	var err error
	if s.v6 {
		err = s.conn.IPv6PacketConn().SetHopLimit(ttl)
	} else {
		err = s.conn.IPv4PacketConn().SetTTL(ttl)
	}
	if err != nil {
		return fmt.Errorf("icmp: set ttl %d: %w", ttl, err)
	}
	s.ttl = ttl
	return nil
}

// BindSource rebinds the socket to the given source address. The listener
// owns its bind address, so this reopens the underlying socket in the same
// mode and reapplies any configured TTL.
func (s *Socket) BindSource(addr netip.Addr) error {
	network := rawProto[s.v6]
	if s.mode == modeDatagram {
		network = "udp4"
	}
	conn, err := xicmp.ListenPacket(network, addr.String())
	if err != nil {
		return fmt.Errorf("icmp: bind source %s: %w", addr, err)
	}
	s.conn.Close()
	s.conn = conn
	s.source = addr.String()
	if s.ttl > 0 {
		return s.SetTTL(s.ttl)
	}
	return nil
}

// Close releases the socket. Safe to call more than once.
func (s *Socket) Close() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Ping transmits one Echo Request to target and waits up to timeout for the
// matching reply. It returns ErrTimeout when nothing matched in time; any
// other error is a socket-level failure.
func (s *Socket) Ping(ctx context.Context, target netip.Addr, id, seq uint16, payloadSize int, timeout time.Duration) (*Response, error) {
	if s.mode == modeDatagram && target.Is6() {
		return nil, fmt.Errorf("icmp: fallback socket cannot reach IPv6 target %s", target)
	}

	req := NewEchoRequest(id, seq, payloadSize, s.v6)
	var dst net.Addr
	if s.mode == modeRaw {
		dst = &net.IPAddr{IP: target.AsSlice()}
	} else {
		dst = &net.UDPAddr{IP: target.AsSlice()}
	}

	start := time.Now()
	if _, err := s.conn.WriteTo(req.Marshal(), dst); err != nil {
		return nil, fmt.Errorf("icmp: send to %s: %w", target, err)
	}

	resp, err := s.awaitReply(ctx, id, seq, start.Add(timeout))
	if err != nil {
		return nil, err
	}
	resp.RTT = float64(time.Since(start)) / float64(time.Millisecond)
	resp.Bytes = payloadSize
	resp.Seq = seq
	return resp, nil
}

// awaitReply reads datagrams until one matches the outstanding probe or the
// deadline expires. Unrelated traffic, runts and undecodable buffers are
// discarded without escalating; only the timeout is observable.
func (s *Socket) awaitReply(ctx context.Context, id, seq uint16, deadline time.Time) (*Response, error) {
	buf := make([]byte, maxPacket)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := s.conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("icmp: set read deadline: %w", err)
		}
		n, peer, err := s.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("icmp: receive: %w", err)
		}

		// The raw channel may deliver the ICMP message still wrapped in
		// its IPv4 header, depending on platform. Classify by version
		// nibble and strip it before decoding.
		data, wrapped := buf[:n], false
		if !s.v6 {
			data, wrapped = stripIPv4Header(buf[:n])
		}
		ttl := s.replyTTL(buf[:n], wrapped)

		pkt, err := Parse(data)
		if err != nil {
			continue
		}
		if !pkt.IsEchoReply(s.v6) {
			continue
		}
		if s.mode == modeRaw && pkt.ID != id {
			continue
		}
		if pkt.Seq != seq {
			continue
		}
		return &Response{Source: peerAddr(peer), TTL: ttl}, nil
	}
}

// stripIPv4Header classifies a received buffer: a leading IPv4 version
// nibble on a buffer big enough to wrap an echo message means the first 20
// bytes are an IP header to skip.
func stripIPv4Header(data []byte) ([]byte, bool) {
	if len(data) >= minWrapped && data[0]>>4 == 4 {
		return data[ipv4HeaderLen:], true
	}
	return data, false
}

// replyTTL extracts the response TTL. Only an IPv4 header on the raw
// channel carries an observable value; everywhere else a default stands in.
func (s *Socket) replyTTL(raw []byte, wrapped bool) int {
	if s.mode == modeDatagram {
		if s.ttl > 0 {
			return s.ttl
		}
		return fallbackTTL
	}
	if wrapped {
		return int(raw[ttlOffset])
	}
	return defaultTTL
}

func peerAddr(a net.Addr) netip.Addr {
	var ip net.IP
	switch v := a.(type) {
	case *net.IPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	default:
		return netip.Addr{}
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}
	return addr.Unmap()
}
