package icmp

import (
	"bytes"
	"testing"
)

// wrapInIPv4 builds a minimal IPv4 header (version nibble 4, given TTL)
// around an ICMP message, the way some platforms deliver raw reads.
func wrapInIPv4(ttl byte, icmpData []byte) []byte {
	header := make([]byte, ipv4HeaderLen)
	header[0] = 0x45 // version 4, IHL 5
	header[ttlOffset] = ttl
	return append(header, icmpData...)
}

func TestStripIPv4Header(t *testing.T) {
	t.Parallel()

	reply := NewEchoRequest(7, 1, 16, false)
	reply.Type = TypeEchoReply
	replyBytes := reply.Marshal()

	tests := []struct {
		name        string
		buf         []byte
		wantData    []byte
		wantWrapped bool
	}{
		{
			name:        "wrapped reply",
			buf:         wrapInIPv4(57, replyBytes),
			wantData:    replyBytes,
			wantWrapped: true,
		},
		{
			name:        "bare reply",
			buf:         replyBytes,
			wantData:    replyBytes,
			wantWrapped: false,
		},
		{
			name:        "runt shorter than wrapped minimum passes through",
			buf:         []byte{0x45, 0, 0, 0, 0, 0, 0, 0},
			wantData:    []byte{0x45, 0, 0, 0, 0, 0, 0, 0},
			wantWrapped: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, wrapped := stripIPv4Header(tt.buf)
			if wrapped != tt.wantWrapped {
				t.Errorf("wrapped = %v, want %v", wrapped, tt.wantWrapped)
			}
			if !bytes.Equal(data, tt.wantData) {
				t.Errorf("data = %x, want %x", data, tt.wantData)
			}
		})
	}
}

func TestReplyTTL(t *testing.T) {
	t.Parallel()

	wrapped := wrapInIPv4(57, make([]byte, headerLen))

	tests := []struct {
		name    string
		sock    *Socket
		raw     []byte
		wrapped bool
		want    int
	}{
		{
			name:    "raw path reads TTL from the IP header",
			sock:    &Socket{mode: modeRaw},
			raw:     wrapped,
			wrapped: true,
			want:    57,
		},
		{
			name: "raw path without header substitutes the default",
			sock: &Socket{mode: modeRaw},
			raw:  make([]byte, headerLen),
			want: defaultTTL,
		},
		{
			name: "IPv6 raw path substitutes the default hop limit",
			sock: &Socket{mode: modeRaw, v6: true},
			raw:  make([]byte, headerLen),
			want: defaultTTL,
		},
		{
			name: "fallback reports the configured TTL",
			sock: &Socket{mode: modeDatagram, ttl: 99},
			raw:  wrapped,
			want: 99,
		},
		{
			name: "fallback with no TTL configured reports 128",
			sock: &Socket{mode: modeDatagram},
			raw:  wrapped,
			want: fallbackTTL,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.sock.replyTTL(tt.raw, tt.wrapped); got != tt.want {
				t.Errorf("replyTTL = %d, want %d", got, tt.want)
			}
		})
	}
}
