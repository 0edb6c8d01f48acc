package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/CyberLife7766/ruping/internal/config"
	"github.com/CyberLife7766/ruping/internal/icmp"
	"github.com/CyberLife7766/ruping/internal/logger"
	"github.com/CyberLife7766/ruping/internal/netif"
	"github.com/CyberLife7766/ruping/internal/report"
	"github.com/CyberLife7766/ruping/internal/resolve"
	"github.com/CyberLife7766/ruping/internal/sched"
	"github.com/CyberLife7766/ruping/internal/stats"
	"github.com/CyberLife7766/ruping/internal/targets"
	"github.com/CyberLife7766/ruping/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruping: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	slog.SetDefault(appLogger)

	utils.CheckPrivileges(appLogger)
	utils.CheckFileDescriptorLimit(appLogger, cfg.Workers)

	// Interrupts cancel the run; host tasks notice at their next loop
	// boundary and whatever finished is still reported.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Deadline)
		defer cancel()
	}

	specs, err := targets.Expand(cfg.Targets, cfg.TargetFile)
	if err != nil {
		appLogger.Error("Could not build target list.", "error", err)
		os.Exit(1)
	}

	jobs := resolveJobs(ctx, specs, cfg, appLogger)
	if len(jobs) == 0 {
		appLogger.Error("No resolvable targets.")
		os.Exit(1)
	}

	if !transportAvailable() {
		appLogger.Error("No usable ICMP transport: both raw and datagram sockets were refused.")
		os.Exit(1)
	}

	source := pickSource(cfg, appLogger)

	opts := sched.Options{
		Concurrency: cfg.Workers,
		Count:       cfg.Count,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		PayloadSize: cfg.Size,
		ID:          uint16(rand.Intn(0xffff) + 1),
		Rate:        cfg.Rate,
		Logger:      appLogger,
		NewProber:   sched.NewSocketFactory(cfg.TTL, source, appLogger),
	}

	appLogger.Info("Starting probe run.", "hosts", len(jobs), "workers", cfg.Workers, "count", cfg.Count)
	results := sched.Run(ctx, jobs, opts)

	aggregate := stats.New()
	for _, res := range results {
		aggregate.Merge(res.Stats)
	}

	var reverse report.ReverseFunc
	if cfg.Resolve {
		reverse = reverseCached()
	}
	if err := report.Write(cfg.Output, cfg.Format, results, aggregate, reverse); err != nil {
		appLogger.Error("Could not write results.", "error", err)
		os.Exit(1)
	}
}

// resolveJobs maps target specs to host jobs. A failed resolution drops
// that one target with a warning instead of aborting the run.
func resolveJobs(ctx context.Context, specs []string, cfg *config.Config, log *slog.Logger) []sched.HostJob {
	jobs := make([]sched.HostJob, 0, len(specs))
	seen := make(map[netip.Addr]bool)
	for _, spec := range specs {
		addr, err := resolve.Resolve(ctx, spec, cfg.Force4, cfg.Force6)
		if err != nil {
			log.Warn("Skipping unresolvable target.", "target", spec, "error", err)
			continue
		}
		if seen[addr] {
			log.Debug("Skipping duplicate address.", "target", spec, "address", addr)
			continue
		}
		seen[addr] = true
		jobs = append(jobs, sched.HostJob{Name: spec, Addr: addr, V6: addr.Is6()})
	}
	return jobs
}

// transportAvailable is the pre-flight permission check: probing can start
// as long as either a raw or a datagram ICMP socket can be opened.
func transportAvailable() bool {
	if icmp.RawCapable() {
		return true
	}
	sock, err := icmp.NewFallbackSocket()
	if err != nil {
		return false
	}
	sock.Close()
	return true
}

func pickSource(cfg *config.Config, log *slog.Logger) netip.Addr {
	if cfg.Source != "" {
		addr, err := netip.ParseAddr(cfg.Source)
		if err == nil {
			return addr
		}
		log.Warn("Ignoring bad source address.", "source", cfg.Source, "error", err)
		return netip.Addr{}
	}
	if cfg.Interface != "" {
		addr, err := netif.SourceAddr(cfg.Interface, cfg.Force6)
		if err != nil {
			log.Warn("Could not pick a source address from interface.", "iface", cfg.Interface, "error", err)
			return netip.Addr{}
		}
		return addr
	}
	return netip.Addr{}
}

// reverseCached memoizes reverse lookups; multiple replies from the same
// host should not trigger repeated PTR queries.
func reverseCached() report.ReverseFunc {
	cache := make(map[netip.Addr]string)
	return func(addr netip.Addr) (string, bool) {
		if name, ok := cache[addr]; ok {
			return name, name != ""
		}
		name, ok := resolve.ReverseLookup(context.Background(), addr)
		if !ok {
			name = ""
		}
		cache[addr] = name
		return name, ok
	}
}
