// Package targets turns the user-supplied target specs (literals, list
// files, CIDR ranges) into a flat, de-duplicated list of probe targets.
package targets

import (
	"bufio"
	"fmt"
	"net/netip"
	"os"
	"strings"
)

// Expand merges literal specs and an optional newline-delimited list file
// into one target list, de-duplicated preserving first-seen order. A spec
// containing '/' is treated as an IPv4 CIDR block and expanded to every
// address in it, network and broadcast included; anything else passes
// through untouched for the resolver to deal with.
func Expand(literals []string, listFile string) ([]string, error) {
	var specs []string
	specs = append(specs, literals...)

	if listFile != "" {
		fromFile, err := readList(listFile)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fromFile...)
	}

	var out []string
	seen := make(map[string]bool)
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		expanded, err := expandOne(spec)
		if err != nil {
			return nil, err
		}
		for _, t := range expanded {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func expandOne(spec string) ([]string, error) {
	if !strings.Contains(spec, "/") {
		return []string{spec}, nil
	}
	prefix, err := netip.ParsePrefix(spec)
	if err != nil {
		return nil, fmt.Errorf("targets: invalid CIDR %q: %w", spec, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("targets: CIDR expansion is IPv4 only, got %q", spec)
	}
	var out []string
	for addr := prefix.Masked().Addr(); prefix.Contains(addr); addr = addr.Next() {
		out = append(out, addr.String())
	}
	return out, nil
}

// readList reads one target spec per line; blank lines and lines starting
// with '#' are ignored.
func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("targets: open list file: %w", err)
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("targets: read list file: %w", err)
	}
	return out, nil
}
