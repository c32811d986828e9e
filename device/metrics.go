// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package device

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors updated by devices. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	// AllocatedBytes is the number of bytes currently allocated, per device.
	AllocatedBytes *prometheus.GaugeVec
	// TransferredBytes counts bytes copied between host and device, per
	// device and direction ("h2d" or "d2h").
	TransferredBytes *prometheus.CounterVec
	// KernelLaunches counts kernels issued, per device and kernel name.
	KernelLaunches *prometheus.CounterVec
	// TaskLatency measures how long stream tasks take to run.
	TaskLatency prometheus.Histogram
}

// NewMetrics returns unregistered collectors whose names start with
// namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AllocatedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "allocated_bytes",
			Help:      "Bytes of device memory currently allocated.",
		}, []string{"device"}),
		TransferredBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "transferred_bytes_total",
			Help:      "Bytes copied between host and device memory.",
		}, []string{"device", "direction"}),
		KernelLaunches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "kernel_launches_total",
			Help:      "Kernels issued to device streams.",
		}, []string{"device", "kernel"}),
		TaskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "stream_task_seconds",
			Help:      "Time spent running one stream task.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
}

// Collectors returns the collectors so that they can be registered.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.AllocatedBytes, m.TransferredBytes, m.KernelLaunches, m.TaskLatency,
	}
}

func deviceLabel(id int) string {
	return strconv.Itoa(id)
}

func (m *Metrics) setAllocated(dev int, bytes uint64) {
	if m == nil {
		return
	}
	m.AllocatedBytes.WithLabelValues(deviceLabel(dev)).Set(float64(bytes))
}

func (m *Metrics) transferred(dev int, direction string, bytes uint64) {
	if m == nil {
		return
	}
	m.TransferredBytes.WithLabelValues(deviceLabel(dev), direction).Add(float64(bytes))
}

func (m *Metrics) launched(dev int, kernel string) {
	if m == nil {
		return
	}
	m.KernelLaunches.WithLabelValues(deviceLabel(dev), kernel).Inc()
}

func (m *Metrics) observeTask(d time.Duration) {
	if m == nil {
		return
	}
	m.TaskLatency.Observe(d.Seconds())
}
