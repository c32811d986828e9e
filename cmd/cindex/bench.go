// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/gbdtkit/cindex"
	"github.com/gbdtkit/cindex/device"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	minLatency = 1 * time.Microsecond
	maxLatency = 100 * time.Second
)

var benchConfig struct {
	concurrency int
	iterations  int
	metrics     bool
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "benchmark building and populating compressed indexes",
	Long: `
Repeatedly build a compressed index for synthetic features, write every
column and finalize the blocks. Each worker uses its own device manager.
Latencies are reported per step: "build" lays the blocks out and allocates
the index, "write" writes one column and "finalize" waits for the writes to
reach the device.
`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func initBench() {
	benchCmd.Flags().IntVarP(
		&benchConfig.concurrency, "concurrency", "c", 1, "number of concurrent workers")
	benchCmd.Flags().IntVarP(
		&benchConfig.iterations, "iterations", "i", 10, "number of indexes built by each worker")
	benchCmd.Flags().BoolVar(
		&benchConfig.metrics, "metrics", false, "print the device metrics at the end of the run")
}

func clampLatency(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}

// latencies records the latencies of the benchmark steps. It is safe for
// concurrent use.
type latencies struct {
	mu    sync.Mutex
	hists map[string]*hdrhistogram.Histogram
}

func newLatencies() *latencies {
	return &latencies{hists: make(map[string]*hdrhistogram.Histogram)}
}

func (l *latencies) record(name string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h := l.hists[name]
	if h == nil {
		h = hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 1)
		l.hists[name] = h
	}
	_ = h.RecordValue(clampLatency(d, minLatency, maxLatency).Nanoseconds())
}

func (l *latencies) print(w io.Writer, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.hists))
	for name := range l.hists {
		names = append(names, name)
	}
	sort.Strings(names)

	ms := func(v float64) string {
		return fmt.Sprintf("%.3f", time.Duration(v).Seconds()*1000)
	}
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Step", "Ops", "Ops/sec", "Avg(ms)", "p50(ms)", "p95(ms)", "p99(ms)", "pMax(ms)"})
	for _, name := range names {
		h := l.hists[name]
		tbl.Append([]string{
			name,
			fmt.Sprint(h.TotalCount()),
			fmt.Sprintf("%.1f", float64(h.TotalCount())/elapsed.Seconds()),
			ms(h.Mean()),
			ms(float64(h.ValueAtQuantile(50))),
			ms(float64(h.ValueAtQuantile(95))),
			ms(float64(h.ValueAtQuantile(99))),
			ms(float64(h.ValueAtQuantile(100))),
		})
	}
	tbl.Render()
}

func runBench(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	ds, err := makeDataset(seed, featureCount, sampleCount, maxBins, oneHotPercent)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	opts.Metrics = device.NewMetrics("cindex")
	for _, c := range opts.Metrics.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	lat := newLatencies()
	start := crtime.NowMono()
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < benchConfig.concurrency; i++ {
		g.Go(func() error {
			return benchWorker(ctx, opts.Clone(), lat, ds)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := start.Elapsed()

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d workers x %d iterations, %d features x %d samples (%.1fs)\n",
		benchConfig.concurrency, benchConfig.iterations, len(ds.ids), ds.samples, elapsed.Seconds())
	lat.print(w, elapsed)
	if benchConfig.metrics {
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		printMetrics(w, families)
	}
	return nil
}

func benchWorker(ctx context.Context, opts *cindex.Options, lat *latencies, ds *dataset) error {
	mgr, err := opts.NewDeviceManager()
	if err != nil {
		return err
	}
	defer mgr.Close()

	for i := 0; i < benchConfig.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := crtime.NowMono()
		ix, err := buildIndex(mgr, opts, ds)
		if err != nil {
			return err
		}
		lat.record("build", start.Elapsed())

		for j, id := range ds.ids {
			start = crtime.NowMono()
			if err := ix.WriteColumn(id, ds.columns[j]); err != nil {
				ix.Close()
				return err
			}
			lat.record("write", start.Elapsed())
		}
		start = crtime.NowMono()
		if err := ix.Finalize(); err != nil {
			ix.Close()
			return err
		}
		lat.record("finalize", start.Elapsed())
		ix.Close()
	}
	return mgr.Synchronize()
}

// printMetrics prints one row per metric and label set.
func printMetrics(w io.Writer, families []*dto.MetricFamily) {
	tbl := tablewriter.NewWriter(w)
	tbl.SetHeader([]string{"Metric", "Labels", "Value"})
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			var value string
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				value = fmt.Sprintf("%.0f", m.GetCounter().GetValue())
			case dto.MetricType_GAUGE:
				value = fmt.Sprintf("%.0f", m.GetGauge().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}
			tbl.Append([]string{f.GetName(), strings.Join(labels, ","), value})
		}
	}
	tbl.Render()
}
