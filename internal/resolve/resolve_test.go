package resolve

import (
	"context"
	"net/netip"
	"testing"
)

// Literal IPs never hit DNS, so these cases are fully deterministic.
func TestResolveLiterals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		force4  bool
		force6  bool
		want    string
		wantErr bool
	}{
		{name: "IPv4 literal", input: "8.8.8.8", want: "8.8.8.8"},
		{name: "IPv6 literal", input: "2001:db8::1", want: "2001:db8::1"},
		{name: "IPv4 literal with -4", input: "8.8.8.8", force4: true, want: "8.8.8.8"},
		{name: "IPv6 literal with -6", input: "2001:db8::1", force6: true, want: "2001:db8::1"},
		{name: "IPv4 literal conflicts with -6", input: "8.8.8.8", force6: true, wantErr: true},
		{name: "IPv6 literal conflicts with -4", input: "2001:db8::1", force4: true, wantErr: true},
		{name: "v4-mapped literal unmaps to IPv4", input: "::ffff:192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(context.Background(), tt.input, tt.force4, tt.force6)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Resolve(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.input, err)
			}
			if got != netip.MustParseAddr(tt.want) {
				t.Errorf("Resolve(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveLocalhost(t *testing.T) {
	t.Parallel()

	addr, err := Resolve(context.Background(), "localhost", false, false)
	if err != nil {
		t.Skipf("localhost did not resolve: %v", err)
	}
	if !addr.IsLoopback() {
		t.Errorf("localhost resolved to %v, want a loopback address", addr)
	}
}
