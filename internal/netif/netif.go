// Package netif picks a probe source address from a local interface, used
// when the user names an interface instead of a source IP.
package netif

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// SourceAddr returns a source address of the wanted family from the
// interface given by name or numeric index. Routable addresses win over
// loopback (IPv4) and link-local (IPv6) ones.
func SourceAddr(nameOrIndex string, want6 bool) (netip.Addr, error) {
	ifi, err := lookupInterface(nameOrIndex)
	if err != nil {
		return netip.Addr{}, err
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("netif: addresses of %s: %w", ifi.Name, err)
	}

	var candidates []netip.Addr
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() != want6 {
			continue
		}
		candidates = append(candidates, addr)
	}
	if len(candidates) == 0 {
		family := "IPv4"
		if want6 {
			family = "IPv6"
		}
		return netip.Addr{}, fmt.Errorf("netif: no usable %s address on %s", family, ifi.Name)
	}

	for _, addr := range candidates {
		if routable(addr) {
			return addr, nil
		}
	}
	return candidates[0], nil
}

func routable(addr netip.Addr) bool {
	if addr.Is4() {
		return !addr.IsLoopback()
	}
	return !addr.IsLinkLocalUnicast() && !addr.IsLoopback()
}

func lookupInterface(nameOrIndex string) (*net.Interface, error) {
	if idx, err := strconv.Atoi(nameOrIndex); err == nil {
		ifi, err := net.InterfaceByIndex(idx)
		if err != nil {
			return nil, fmt.Errorf("netif: no interface with index %d: %w", idx, err)
		}
		return ifi, nil
	}
	if ifi, err := net.InterfaceByName(nameOrIndex); err == nil {
		return ifi, nil
	}
	// Second chance: case-insensitive name match.
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("netif: list interfaces: %w", err)
	}
	for i := range ifaces {
		if strings.EqualFold(ifaces[i].Name, nameOrIndex) {
			return &ifaces[i], nil
		}
	}
	return nil, fmt.Errorf("netif: no interface matching %q", nameOrIndex)
}
