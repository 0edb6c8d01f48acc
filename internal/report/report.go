// Package report renders finished probe runs as human text, JSON or CSV.
// Everything here is read-only over the scheduler's results.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/netip"
	"os"
	"strconv"

	"github.com/CyberLife7766/ruping/internal/sched"
	"github.com/CyberLife7766/ruping/internal/stats"
)

// ReverseFunc optionally maps a reply source address to a display name.
type ReverseFunc func(netip.Addr) (string, bool)

// Write renders results in the given format to path, or to stdout when path
// is empty.
func Write(path, format string, results []sched.HostResult, agg *stats.Accumulator, reverse ReverseFunc) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("report: create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	switch format {
	case "json":
		return RenderJSON(w, results, agg)
	case "csv":
		return RenderCSV(w, results)
	default:
		return RenderText(w, results, agg, reverse)
	}
}

// RenderText writes the classic ping presentation: per host a header, one
// line per probe, and a summary block; a merged aggregate block follows
// when more than one host was probed.
func RenderText(w io.Writer, results []sched.HostResult, agg *stats.Accumulator, reverse ReverseFunc) error {
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		header := res.Job.Name
		if res.Job.Addr.IsValid() && res.Job.Name != res.Job.Addr.String() {
			header = fmt.Sprintf("%s [%s]", res.Job.Name, res.Job.Addr)
		}
		fmt.Fprintf(w, "Pinging %s:\n", header)

		for _, reply := range res.Log {
			switch reply.Outcome {
			case sched.OutcomeReceived:
				source := reply.Source.String()
				if reverse != nil {
					if name, ok := reverse(reply.Source); ok {
						source = fmt.Sprintf("%s [%s]", name, reply.Source)
					}
				}
				fmt.Fprintf(w, "Reply from %s: bytes=%d time=%s TTL=%d seq=%d\n",
					source, reply.Bytes, formatTime(reply.RTT), reply.TTL, reply.Seq)
			case sched.OutcomeSendError:
				fmt.Fprintf(w, "Transmit failed. seq=%d\n", reply.Seq)
			default:
				fmt.Fprintln(w, "Request timed out.")
			}
		}
		writeSummary(w, "Ping statistics for "+res.Job.Name, res.Stats, !res.Complete)
	}

	if len(results) > 1 && agg != nil {
		fmt.Fprintln(w)
		writeSummary(w, fmt.Sprintf("Aggregate statistics for %d hosts", len(results)), agg, false)
	}
	return nil
}

func writeSummary(w io.Writer, title string, acc *stats.Accumulator, incomplete bool) {
	suffix := ""
	if incomplete {
		suffix = " (incomplete)"
	}
	fmt.Fprintf(w, "\n%s%s:\n", title, suffix)
	fmt.Fprintf(w, "    Packets: Sent = %d, Received = %d, Lost = %d (%.0f%% loss),\n",
		acc.Sent, acc.Received, acc.Lost, acc.LossPercentage())
	if acc.Received == 0 {
		return
	}
	min := acc.Min
	if math.IsInf(min, 1) {
		min = 0
	}
	fmt.Fprintln(w, "Approximate round trip times in milli-seconds:")
	fmt.Fprintf(w, "    Minimum = %.0fms, Maximum = %.0fms, Average = %.0fms\n",
		min, acc.Max, acc.Average())
	fmt.Fprintf(w, "    P50 = %.0fms, P90 = %.0fms, P99 = %.0fms",
		acc.Percentile(0.50), acc.Percentile(0.90), acc.Percentile(0.99))
	if acc.Received >= 2 {
		fmt.Fprintf(w, ", Jitter = %.1fms, StdDev = %.1fms", acc.Jitter(), acc.StdDeviation())
	}
	fmt.Fprintln(w)
}

// formatTime renders a round trip the way ping does: sub-millisecond values
// collapse to "<1ms".
func formatTime(ms float64) string {
	if ms < 1.0 {
		return "<1ms"
	}
	return fmt.Sprintf("%.0fms", ms)
}

type jsonStats struct {
	Sent         uint32  `json:"sent"`
	Received     uint32  `json:"received"`
	Lost         uint32  `json:"lost"`
	LossPercent  float64 `json:"loss_percent"`
	MinMS        float64 `json:"min_ms"`
	MaxMS        float64 `json:"max_ms"`
	AvgMS        float64 `json:"avg_ms"`
	P50MS        float64 `json:"p50_ms"`
	P90MS        float64 `json:"p90_ms"`
	P99MS        float64 `json:"p99_ms"`
	JitterMS     float64 `json:"jitter_ms"`
	StdDevMS     float64 `json:"stddev_ms"`
}

type jsonReply struct {
	Seq     uint16  `json:"seq"`
	Outcome string  `json:"outcome"`
	RTTMS   float64 `json:"rtt_ms,omitempty"`
	TTL     int     `json:"ttl,omitempty"`
	Source  string  `json:"source,omitempty"`
}

type jsonHost struct {
	Host     string      `json:"host"`
	Address  string      `json:"address"`
	Complete bool        `json:"complete"`
	Stats    jsonStats   `json:"stats"`
	Replies  []jsonReply `json:"replies"`
}

type jsonDoc struct {
	Hosts     []jsonHost `json:"hosts"`
	Aggregate *jsonStats `json:"aggregate,omitempty"`
}

// RenderJSON writes the whole result set as one JSON document.
func RenderJSON(w io.Writer, results []sched.HostResult, agg *stats.Accumulator) error {
	doc := jsonDoc{Hosts: make([]jsonHost, 0, len(results))}
	for _, res := range results {
		h := jsonHost{
			Host:     res.Job.Name,
			Address:  res.Job.Addr.String(),
			Complete: res.Complete,
			Stats:    toJSONStats(res.Stats),
			Replies:  make([]jsonReply, 0, len(res.Log)),
		}
		for _, reply := range res.Log {
			jr := jsonReply{Seq: reply.Seq, Outcome: string(reply.Outcome)}
			if reply.Outcome == sched.OutcomeReceived {
				jr.RTTMS = reply.RTT
				jr.TTL = reply.TTL
				jr.Source = reply.Source.String()
			}
			h.Replies = append(h.Replies, jr)
		}
		doc.Hosts = append(doc.Hosts, h)
	}
	if len(results) > 1 && agg != nil {
		s := toJSONStats(agg)
		doc.Aggregate = &s
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func toJSONStats(acc *stats.Accumulator) jsonStats {
	min := acc.Min
	if math.IsInf(min, 1) {
		min = 0
	}
	return jsonStats{
		Sent:        acc.Sent,
		Received:    acc.Received,
		Lost:        acc.Lost,
		LossPercent: acc.LossPercentage(),
		MinMS:       min,
		MaxMS:       acc.Max,
		AvgMS:       acc.Average(),
		P50MS:       acc.Percentile(0.50),
		P90MS:       acc.Percentile(0.90),
		P99MS:       acc.Percentile(0.99),
		JitterMS:    acc.Jitter(),
		StdDevMS:    acc.StdDeviation(),
	}
}

// CSVHeader returns the header row for CSV output.
func CSVHeader() []string {
	return []string{"host", "address", "seq", "outcome", "rtt_ms", "ttl"}
}

// RenderCSV writes one row per reply-log entry.
func RenderCSV(w io.Writer, results []sched.HostResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return fmt.Errorf("report: write CSV header: %w", err)
	}
	for _, res := range results {
		for _, reply := range res.Log {
			rtt, ttl := "", ""
			if reply.Outcome == sched.OutcomeReceived {
				rtt = fmt.Sprintf("%.2f", reply.RTT)
				ttl = strconv.Itoa(reply.TTL)
			}
			row := []string{
				res.Job.Name,
				res.Job.Addr.String(),
				strconv.Itoa(int(reply.Seq)),
				string(reply.Outcome),
				rtt,
				ttl,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("report: write CSV row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
