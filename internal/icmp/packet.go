package icmp

import (
	"encoding/binary"
	"fmt"
)

// ICMP message types used by echo probing. IPv6 echo types live in a
// separate numbering space (RFC 4443).
const (
	TypeEchoRequest   = 8
	TypeEchoReply     = 0
	TypeEchoRequestV6 = 128
	TypeEchoReplyV6   = 129
)

// headerLen is the fixed ICMP echo header size: type, code, checksum,
// identifier, sequence.
const headerLen = 8

// payloadFill is the byte the echo payload is padded with, matching the
// classic Windows ping pattern of repeating 'a'.
const payloadFill = 0x61

// Packet is a decoded ICMP echo message. It is built immediately before a
// send or parsed immediately after a receive and carries no state across
// probes.
type Packet struct {
	Type     uint8
	Code     uint8
	Checksum uint16
	ID       uint16
	Seq      uint16
	Payload  []byte
}

// NewEchoRequest builds an Echo Request with a payloadSize-byte filler
// payload and a valid checksum.
func NewEchoRequest(id, seq uint16, payloadSize int, v6 bool) *Packet {
	typ := uint8(TypeEchoRequest)
	if v6 {
		typ = TypeEchoRequestV6
	}
	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = payloadFill
	}
	p := &Packet{
		Type:    typ,
		Code:    0,
		ID:      id,
		Seq:     seq,
		Payload: payload,
	}
	p.Checksum = 0
	p.Checksum = checksum(p.Marshal())
	return p
}

// Parse decodes b into a Packet. It fails on anything shorter than the
// 8-byte echo header. The checksum is read but not validated; use
// VerifyChecksum for that.
func Parse(b []byte) (*Packet, error) {
	if len(b) < headerLen {
		return nil, fmt.Errorf("icmp: packet too short: %d bytes", len(b))
	}
	return &Packet{
		Type:     b[0],
		Code:     b[1],
		Checksum: binary.BigEndian.Uint16(b[2:4]),
		ID:       binary.BigEndian.Uint16(b[4:6]),
		Seq:      binary.BigEndian.Uint16(b[6:8]),
		Payload:  append([]byte(nil), b[headerLen:]...),
	}, nil
}

// Marshal serializes the packet with all multi-byte fields big-endian.
func (p *Packet) Marshal() []byte {
	b := make([]byte, headerLen+len(p.Payload))
	b[0] = p.Type
	b[1] = p.Code
	binary.BigEndian.PutUint16(b[2:4], p.Checksum)
	binary.BigEndian.PutUint16(b[4:6], p.ID)
	binary.BigEndian.PutUint16(b[6:8], p.Seq)
	copy(b[headerLen:], p.Payload)
	return b
}

// VerifyChecksum recomputes the Internet checksum over the serialized
// packet. A message whose stored checksum is correct sums to zero.
func (p *Packet) VerifyChecksum() bool {
	return checksum(p.Marshal()) == 0
}

// IsEchoReply reports whether the packet is an Echo Reply for the given
// address family. The code field is not checked.
func (p *Packet) IsEchoReply(v6 bool) bool {
	if v6 {
		return p.Type == TypeEchoReplyV6
	}
	return p.Type == TypeEchoReply
}

// checksum computes the RFC 1071 Internet checksum: one's complement of the
// one's-complement sum of the data as big-endian 16-bit words. An odd
// trailing byte is treated as the high byte of a zero-padded word.
func checksum(b []byte) uint16 {
	var sum uint32
	i := 0
	for ; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if i < len(b) {
		sum += uint32(b[i]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
