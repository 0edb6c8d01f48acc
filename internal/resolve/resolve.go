// Package resolve maps target names to probe addresses, honoring forced
// address families the same way classic ping does.
package resolve

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Resolve turns name into a single probe address. Literal IPs bypass the
// lookup but still fail when their family conflicts with a forced one.
// Lookups prefer IPv4 unless IPv6 is forced.
func Resolve(ctx context.Context, name string, force4, force6 bool) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(name); err == nil {
		addr = addr.Unmap()
		if force6 && addr.Is4() {
			return netip.Addr{}, fmt.Errorf("resolve: %s is IPv4 but IPv6 was forced", name)
		}
		if force4 && addr.Is6() {
			return netip.Addr{}, fmt.Errorf("resolve: %s is IPv6 but IPv4 was forced", name)
		}
		return addr, nil
	}

	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", name)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve: lookup %s: %w", name, err)
	}

	var candidates []netip.Addr
	for _, ip := range ips {
		ip = ip.Unmap()
		if force4 && ip.Is6() {
			continue
		}
		if force6 && ip.Is4() {
			continue
		}
		candidates = append(candidates, ip)
	}
	if len(candidates) == 0 {
		family := "IPv6"
		if force4 {
			family = "IPv4"
		}
		return netip.Addr{}, fmt.Errorf("resolve: no %s address for %s", family, name)
	}

	// Classic ping picks IPv4 first unless told otherwise.
	want6 := force6
	for _, ip := range candidates {
		if ip.Is6() == want6 {
			return ip, nil
		}
	}
	return candidates[0], nil
}

// ReverseLookup resolves addr back to a hostname, best effort. The trailing
// dot of the PTR answer is trimmed for display.
func ReverseLookup(ctx context.Context, addr netip.Addr) (string, bool) {
	names, err := net.DefaultResolver.LookupAddr(ctx, addr.String())
	if err != nil || len(names) == 0 {
		return "", false
	}
	return strings.TrimSuffix(names[0], "."), true
}
