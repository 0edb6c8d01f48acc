// Package config holds the command-line surface of ruping and its
// validation rules.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"time"
)

// ErrValidation marks bad command-line values; main maps it to exit code 1.
var ErrValidation = errors.New("invalid argument")

const (
	// MaxPayload mirrors the classic ping send-buffer ceiling.
	MaxPayload = 65500
	MaxTTL     = 255

	DefaultCount    = 4
	DefaultSize     = 32
	DefaultTimeout  = 4000 * time.Millisecond
	DefaultInterval = time.Second
)

// Config holds all settings for one run.
type Config struct {
	Targets    []string // literal targets: hosts, IPs, CIDR blocks
	TargetFile string

	Continuous bool // probe until interrupted
	Resolve    bool // reverse-resolve reply sources
	Count      int  // probes per host; 0 = continuous
	Size       int  // payload bytes
	TTL        int  // 0 = leave the OS default
	Timeout    time.Duration
	Interval   time.Duration

	Source    string // explicit source address
	Interface string // interface name/index when no Source given
	Force4    bool
	Force6    bool

	Workers  int
	Rate     float64 // global probes/sec, 0 = unlimited
	Deadline time.Duration

	Output   string // results file; empty = stdout
	Format   string // text, json or csv
	LogLevel string
}

// Load parses command-line flags and validates them.
func Load() (*Config, error) {
	continuous := flag.Bool("t", false, "Probe each host until stopped.")
	resolveAddrs := flag.Bool("a", false, "Resolve reply addresses to hostnames.")
	count := flag.Int("n", DefaultCount, "Number of echo requests to send per host.")
	size := flag.Int("l", DefaultSize, "Send buffer size in bytes.")
	ttl := flag.Int("i", 0, "Time to live (1-255, 0 uses the OS default).")
	timeoutMS := flag.Int("w", int(DefaultTimeout/time.Millisecond), "Timeout in milliseconds to wait for each reply.")
	intervalMS := flag.Int("interval", int(DefaultInterval/time.Millisecond), "Milliseconds between probes to the same host.")
	source := flag.String("S", "", "Source address to use.")
	iface := flag.String("iface", "", "Interface name or index to pick the source address from.")
	force4 := flag.Bool("4", false, "Force IPv4.")
	force6 := flag.Bool("6", false, "Force IPv6.")
	workers := flag.Int("worker", 16, "Number of hosts probed concurrently (1-256).")
	rateLimit := flag.Float64("rate", 0, "Global probe rate cap in probes/sec (0 = unlimited).")
	deadlineSec := flag.Int("deadline", 0, "Abort the whole run after this many seconds (0 = none).")
	targetFile := flag.String("file", "", "File with one target per line ('#' comments allowed).")
	output := flag.String("output", "", "Write results to this file instead of stdout.")
	format := flag.String("format", "text", "Result format: text, json or csv.")
	logLevel := flag.String("loglevel", "INFO", "Log level: DEBUG, INFO, WARN or ERROR.")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] target [target ...]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Probe one or many hosts with ICMP echo requests.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := &Config{
		Targets:    flag.Args(),
		TargetFile: *targetFile,
		Continuous: *continuous,
		Resolve:    *resolveAddrs,
		Count:      *count,
		Size:       *size,
		TTL:        *ttl,
		Timeout:    time.Duration(*timeoutMS) * time.Millisecond,
		Interval:   time.Duration(*intervalMS) * time.Millisecond,
		Source:     *source,
		Interface:  *iface,
		Force4:     *force4,
		Force6:     *force6,
		Workers:    *workers,
		Rate:       *rateLimit,
		Deadline:   time.Duration(*deadlineSec) * time.Second,
		Output:     *output,
		Format:     *format,
		LogLevel:   *logLevel,
	}
	if cfg.Continuous {
		cfg.Count = 0
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Targets) == 0 && c.TargetFile == "" {
		return fmt.Errorf("%w: at least one target or -file is required", ErrValidation)
	}
	if c.Size < 0 || c.Size > MaxPayload {
		return fmt.Errorf("%w: payload size must be between 0 and %d", ErrValidation, MaxPayload)
	}
	if !c.Continuous && c.Count <= 0 {
		return fmt.Errorf("%w: count must be greater than 0", ErrValidation)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be greater than 0", ErrValidation)
	}
	if c.TTL < 0 || c.TTL > MaxTTL {
		return fmt.Errorf("%w: TTL must be between 1 and %d", ErrValidation, MaxTTL)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: worker count must be a positive integer", ErrValidation)
	}
	if c.Rate < 0 {
		return fmt.Errorf("%w: rate cannot be negative", ErrValidation)
	}
	if c.Force4 && c.Force6 {
		return fmt.Errorf("%w: cannot force both IPv4 and IPv6", ErrValidation)
	}
	if c.Source != "" {
		if _, err := netip.ParseAddr(c.Source); err != nil {
			return fmt.Errorf("%w: bad source address %q", ErrValidation, c.Source)
		}
	}
	switch c.Format {
	case "text", "json", "csv":
	default:
		return fmt.Errorf("%w: format must be text, json or csv", ErrValidation)
	}
	return nil
}
