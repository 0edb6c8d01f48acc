package icmp

import (
	"bytes"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func TestNewEchoRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		v6       bool
		wantType uint8
	}{
		{name: "IPv4 echo request", v6: false, wantType: TypeEchoRequest},
		{name: "IPv6 echo request", v6: true, wantType: TypeEchoRequestV6},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := NewEchoRequest(1234, 1, 32, tt.v6)
			if p.Type != tt.wantType {
				t.Errorf("Type = %d, want %d", p.Type, tt.wantType)
			}
			if p.Code != 0 {
				t.Errorf("Code = %d, want 0", p.Code)
			}
			if p.ID != 1234 || p.Seq != 1 {
				t.Errorf("ID/Seq = %d/%d, want 1234/1", p.ID, p.Seq)
			}
			if len(p.Payload) != 32 {
				t.Errorf("payload length = %d, want 32", len(p.Payload))
			}
			if !p.VerifyChecksum() {
				t.Error("freshly built request does not verify")
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 7, 32, 33, 1472} {
		p := NewEchoRequest(0xbeef, 77, size, false)
		parsed, err := Parse(p.Marshal())
		if err != nil {
			t.Fatalf("Parse(size %d): %v", size, err)
		}
		if parsed.Type != p.Type || parsed.Code != p.Code ||
			parsed.ID != p.ID || parsed.Seq != p.Seq ||
			parsed.Checksum != p.Checksum {
			t.Errorf("size %d: header fields changed after round trip: %+v vs %+v", size, parsed, p)
		}
		if !bytes.Equal(parsed.Payload, p.Payload) {
			t.Errorf("size %d: payload changed after round trip", size)
		}
		if !parsed.VerifyChecksum() {
			t.Errorf("size %d: checksum does not verify after round trip", size)
		}
	}
}

func TestParseTooShort(t *testing.T) {
	t.Parallel()

	for n := 0; n < 8; n++ {
		if _, err := Parse(make([]byte, n)); err == nil {
			t.Errorf("Parse of %d bytes succeeded, want error", n)
		}
	}
	if _, err := Parse(make([]byte, 8)); err != nil {
		t.Errorf("Parse of 8 bytes failed: %v", err)
	}
}

// Flipping any single bit of an encoded message must break the checksum.
func TestChecksumSensitivity(t *testing.T) {
	t.Parallel()

	encoded := NewEchoRequest(4242, 9, 13, false).Marshal() // odd payload length on purpose
	for byteIdx := range encoded {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), encoded...)
			mutated[byteIdx] ^= 1 << bit
			p, err := Parse(mutated)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if p.VerifyChecksum() {
				t.Fatalf("flip of byte %d bit %d still verifies", byteIdx, bit)
			}
		}
	}
}

func TestIsEchoReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  uint8
		code uint8
		v6   bool
		want bool
	}{
		{"v4 reply", TypeEchoReply, 0, false, true},
		{"v4 reply nonzero code still matches", TypeEchoReply, 3, false, true},
		{"v4 request is not a reply", TypeEchoRequest, 0, false, false},
		{"v6 reply", TypeEchoReplyV6, 0, true, true},
		{"v6 request is not a reply", TypeEchoRequestV6, 0, true, false},
		{"v4 reply checked as v6", TypeEchoReply, 0, true, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := &Packet{Type: tt.typ, Code: tt.code}
			if got := p.IsEchoReply(tt.v6); got != tt.want {
				t.Errorf("IsEchoReply(%v) = %v, want %v", tt.v6, got, tt.want)
			}
		})
	}
}

// The hand-rolled wire format must be byte-identical to gopacket's ICMPv4
// serialization with computed checksums.
func TestMarshalMatchesGopacket(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 31, 32, 56} {
		ours := NewEchoRequest(1234, 1, size, false).Marshal()

		payload := bytes.Repeat([]byte{payloadFill}, size)
		icmpLayer := layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
			Id:       1234,
			Seq:      1,
		}
		buf := gopacket.NewSerializeBuffer()
		err := gopacket.SerializeLayers(buf,
			gopacket.SerializeOptions{ComputeChecksums: true},
			&icmpLayer, gopacket.Payload(payload))
		if err != nil {
			t.Fatalf("gopacket serialize (size %d): %v", size, err)
		}

		if !bytes.Equal(ours, buf.Bytes()) {
			t.Errorf("size %d: wire bytes differ from gopacket\nours:     %x\ngopacket: %x",
				size, ours, buf.Bytes())
		}
	}
}
