// Package sched fans a target list out across a bounded pool of host
// tasks. Each host runs its own strictly sequential probe loop; the pool
// size only limits how many hosts are in flight at once.
package sched

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/CyberLife7766/ruping/internal/icmp"
	"github.com/CyberLife7766/ruping/internal/stats"
)

const (
	minConcurrency = 1
	maxConcurrency = 256
)

// HostJob is one resolved probe target, consumed exactly once.
type HostJob struct {
	Name string // what the user typed
	Addr netip.Addr
	V6   bool
}

// Outcome tags one reply-log entry.
type Outcome string

const (
	OutcomeReceived  Outcome = "received"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeSendError Outcome = "send-error"
)

// Reply is one ordered reply-log entry. RTT, Source, TTL and Bytes are
// meaningful only for OutcomeReceived.
type Reply struct {
	Seq     uint16
	Outcome Outcome
	RTT     float64
	Source  netip.Addr
	TTL     int
	Bytes   int
}

// HostResult pairs a job with its accumulator and reply log. Complete is
// false when cancellation stopped the loop before the configured count.
type HostResult struct {
	Job      HostJob
	Stats    *stats.Accumulator
	Log      []Reply
	Complete bool
}

// Prober sends one probe and blocks until the matching reply or timeout.
type Prober interface {
	Ping(ctx context.Context, target netip.Addr, id, seq uint16, payloadSize int, timeout time.Duration) (*icmp.Response, error)
	Close()
}

// Options configures one scheduler run.
type Options struct {
	Concurrency int           // host tasks in flight, clamped to [1,256]
	Count       int           // probes per host, 0 means continuous
	Interval    time.Duration // per-host spacing between probes
	Timeout     time.Duration // per-probe reply wait
	PayloadSize int
	ID          uint16  // session echo identifier
	Rate        float64 // global probes per second, 0 = unlimited
	Logger      *slog.Logger

	// NewProber allocates the transport for one host. Nil selects real
	// ICMP sockets via NewSocketFactory.
	NewProber func(HostJob) (Prober, error)
}

// NewSocketFactory returns the production transport factory: raw socket
// first, unprivileged datagram fallback next (IPv4 only). TTL and source
// binding are applied best effort; their failures only warn.
func NewSocketFactory(ttl int, source netip.Addr, logger *slog.Logger) func(HostJob) (Prober, error) {
	return func(job HostJob) (Prober, error) {
		sock, rawErr := icmp.NewRawSocket(job.V6)
		if rawErr != nil {
			if job.V6 {
				return nil, rawErr
			}
			logger.Warn("raw socket unavailable, using datagram fallback",
				"host", job.Name, "error", rawErr)
			var err error
			sock, err = icmp.NewFallbackSocket()
			if err != nil {
				return nil, errors.Join(rawErr, err)
			}
		}
		if ttl > 0 {
			if err := sock.SetTTL(ttl); err != nil {
				logger.Warn("could not set TTL", "host", job.Name, "ttl", ttl, "error", err)
			}
		}
		if source.IsValid() {
			if err := sock.BindSource(source); err != nil {
				logger.Warn("could not bind source address", "host", job.Name, "source", source, "error", err)
			}
		}
		return sock, nil
	}
}

// Run probes every job and returns one HostResult per host task that was
// started, in input order. Hosts still queued when ctx is cancelled are
// excluded; hosts already finished always keep their results.
func Run(ctx context.Context, jobs []HostJob, opts Options) []HostResult {
	n := opts.Concurrency
	if n < minConcurrency {
		n = minConcurrency
	}
	if n > maxConcurrency {
		n = maxConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	newProber := opts.NewProber
	if newProber == nil {
		newProber = NewSocketFactory(0, netip.Addr{}, logger)
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	type indexed struct {
		idx int
		res HostResult
	}
	results := make(chan indexed, len(jobs))

	g := &errgroup.Group{}
	g.SetLimit(n)
	for i, job := range jobs {
		if ctx.Err() != nil {
			break // still-queued hosts are abandoned
		}
		i, job := i, job
		g.Go(func() error {
			if ctx.Err() != nil {
				// Admission can outlive cancellation by one slot; a host
				// that never started stays out of the result set.
				return nil
			}
			results <- indexed{i, runHost(ctx, job, opts, newProber, limiter, logger)}
			return nil
		})
	}
	g.Wait()
	close(results)

	collected := make([]indexed, 0, len(jobs))
	for r := range results {
		collected = append(collected, r)
	}
	sort.Slice(collected, func(a, b int) bool { return collected[a].idx < collected[b].idx })
	out := make([]HostResult, 0, len(collected))
	for _, r := range collected {
		out = append(out, r.res)
	}
	return out
}

// runHost is the sequential per-host loop: send, await or time out, record,
// sleep the interval, repeat. Cancellation is honored at iteration
// boundaries only, so a probe already in flight finishes normally.
func runHost(ctx context.Context, job HostJob, opts Options, newProber func(HostJob) (Prober, error), limiter *rate.Limiter, logger *slog.Logger) HostResult {
	acc := stats.New()
	res := HostResult{Job: job, Stats: acc}

	prober, err := newProber(job)
	if err != nil {
		// No usable transport for this host: every probe is recorded as
		// lost instead of aborting the whole run.
		logger.Warn("no transport for host, recording all probes as lost",
			"host", job.Name, "error", err)
	} else {
		defer prober.Close()
	}

	seq := uint16(1)
	for i := 0; opts.Count == 0 || i < opts.Count; i++ {
		if ctx.Err() != nil {
			return res
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return res
			}
		}

		acc.RecordSent()
		switch {
		case prober == nil:
			acc.RecordLost()
			res.Log = append(res.Log, Reply{Seq: seq, Outcome: OutcomeSendError})
		default:
			resp, err := prober.Ping(ctx, job.Addr, opts.ID, seq, opts.PayloadSize, opts.Timeout)
			switch {
			case err == nil:
				acc.RecordReceived(resp.RTT)
				res.Log = append(res.Log, Reply{
					Seq:     seq,
					Outcome: OutcomeReceived,
					RTT:     resp.RTT,
					Source:  resp.Source,
					TTL:     resp.TTL,
					Bytes:   resp.Bytes,
				})
			case errors.Is(err, icmp.ErrTimeout):
				acc.RecordLost()
				res.Log = append(res.Log, Reply{Seq: seq, Outcome: OutcomeTimeout})
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				acc.RecordLost()
				res.Log = append(res.Log, Reply{Seq: seq, Outcome: OutcomeTimeout})
				return res
			default:
				// Could not even send; counts as loss like a timeout but
				// is worth a warning line.
				acc.RecordLost()
				res.Log = append(res.Log, Reply{Seq: seq, Outcome: OutcomeSendError})
				logger.Warn("probe send failed", "host", job.Name, "seq", seq, "error", err)
			}
		}
		seq++ // wraps modulo 65536 by construction

		last := opts.Count != 0 && i == opts.Count-1
		if !last && opts.Interval > 0 {
			select {
			case <-ctx.Done():
				return res
			case <-time.After(opts.Interval):
			}
		}
	}
	res.Complete = true
	return res
}
