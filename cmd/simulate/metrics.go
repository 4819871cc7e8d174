package main

import (
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

type outcome int

const (
	outcomeOK outcome = iota
	outcomeConflict
	outcomeError
)

// Operation collects per-request outcomes and latencies for one endpoint.
type Operation struct {
	mu        sync.Mutex
	counts    [3]int
	latencies []time.Duration
}

func (o *Operation) Record(latency time.Duration, result outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counts[result]++
	o.latencies = append(o.latencies, latency)
}

type summary struct {
	total, ok, conflict, failed int
	avg, min, max, p50, p95     time.Duration
}

func (o *Operation) summarize() summary {
	o.mu.Lock()
	sorted := slices.Clone(o.latencies)
	sum := summary{ok: o.counts[outcomeOK], conflict: o.counts[outcomeConflict], failed: o.counts[outcomeError]}
	o.mu.Unlock()

	sum.total = len(sorted)
	if sum.total == 0 {
		return sum
	}
	slices.Sort(sorted)

	var total time.Duration
	for _, l := range sorted {
		total += l
	}
	sum.avg = total / time.Duration(sum.total)
	sum.min = sorted[0]
	sum.max = sorted[sum.total-1]
	sum.p50 = sorted[min(sum.total*50/100, sum.total-1)]
	sum.p95 = sorted[min(sum.total*95/100, sum.total-1)]
	return sum
}

func (o *Operation) Print(w io.Writer, name string) {
	s := o.summarize()
	if s.total == 0 {
		return
	}
	pct := func(n int) float64 { return float64(n) / float64(s.total) * 100 }

	fmt.Fprintf(w, "%s:\n", name)
	fmt.Fprintf(w, "  Total: %d\n", s.total)
	fmt.Fprintf(w, "  Success: %d (%.1f%%)\n", s.ok, pct(s.ok))
	if s.conflict > 0 {
		fmt.Fprintf(w, "  Conflicts: %d (%.1f%%)\n", s.conflict, pct(s.conflict))
	}
	if s.failed > 0 {
		fmt.Fprintf(w, "  Errors: %d (%.1f%%)\n", s.failed, pct(s.failed))
	}
	ms := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }
	fmt.Fprintf(w, "  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n\n",
		ms(s.avg), ms(s.min), ms(s.max), ms(s.p50), ms(s.p95))
}
