// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports the counters of an xuckoo table through
// OpenTelemetry instruments or a Prometheus collector. Both read a Stats
// snapshot at collection time.
package metrics

import (
	"context"
	"fmt"

	"github.com/cockroachdb/xuckoo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricKeys         = "xuckoo.directory.keys"
	metricBuckets      = "xuckoo.directory.buckets"
	metricDepth        = "xuckoo.directory.depth"
	metricSize         = "xuckoo.directory.size"
	metricEvictions    = "xuckoo.evictions"
	metricForcedSplits = "xuckoo.forced_splits"

	attrDirectory = "directory"
)

// StatsSource is implemented by xuckoo.Table and xuckoo.SyncTable. A plain
// Table must not be mutated while metrics are being collected, so
// concurrent collection requires a SyncTable.
type StatsSource interface {
	Stats() xuckoo.Stats
}

// TableMetrics exposes the counters of a table as OTel instruments. The
// meter's reader invokes the callback on each collection cycle.
type TableMetrics struct {
	src          StatsSource
	keys         metric.Int64ObservableGauge
	buckets      metric.Int64ObservableGauge
	depth        metric.Int64ObservableGauge
	size         metric.Int64ObservableGauge
	evictions    metric.Int64ObservableCounter
	forcedSplits metric.Int64ObservableCounter
	reg          metric.Registration
}

// NewTableMetrics creates the instruments and registers a callback reading
// src.
func NewTableMetrics(mt metric.Meter, src StatsSource) (*TableMetrics, error) {
	tm := &TableMetrics{src: src}

	var err error
	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
		unit string
	}{
		{&tm.keys, metricKeys, "Number of keys stored in the directory", "{key}"},
		{&tm.buckets, metricBuckets, "Number of distinct buckets in the directory", "{bucket}"},
		{&tm.depth, metricDepth, "Number of hash bits used to address the directory", "{bit}"},
		{&tm.size, metricSize, "Number of directory slots", "{slot}"},
	}
	for _, g := range gauges {
		*g.dst, err = mt.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithUnit(g.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", g.name, err)
		}
	}

	tm.evictions, err = mt.Int64ObservableCounter(metricEvictions,
		metric.WithDescription("Keys displaced by inserts"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEvictions, err)
	}

	tm.forcedSplits, err = mt.Int64ObservableCounter(metricForcedSplits,
		metric.WithDescription("Bucket splits forced by eviction cycles"),
		metric.WithUnit("{split}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricForcedSplits, err)
	}

	tm.reg, err = mt.RegisterCallback(tm.observe,
		tm.keys, tm.buckets, tm.depth, tm.size, tm.evictions, tm.forcedSplits)
	if err != nil {
		return nil, fmt.Errorf("register table metrics callback: %w", err)
	}

	return tm, nil
}

// Unregister stops the instruments from reporting.
func (tm *TableMetrics) Unregister() error {
	if tm == nil || tm.reg == nil {
		return nil
	}
	return tm.reg.Unregister()
}

func (tm *TableMetrics) observe(_ context.Context, obs metric.Observer) error {
	s := tm.src.Stats()
	for _, d := range directories(s) {
		attrs := metric.WithAttributes(attribute.String(attrDirectory, d.name))
		obs.ObserveInt64(tm.keys, int64(d.stats.Keys), attrs)
		obs.ObserveInt64(tm.buckets, int64(d.stats.Buckets), attrs)
		obs.ObserveInt64(tm.depth, int64(d.stats.Depth), attrs)
		obs.ObserveInt64(tm.size, int64(d.stats.Size), attrs)
	}
	obs.ObserveInt64(tm.evictions, int64(s.Evictions))
	obs.ObserveInt64(tm.forcedSplits, int64(s.ForcedSplits))
	return nil
}

type namedStats struct {
	name  string
	stats xuckoo.DirectoryStats
}

// directories returns the directories in use. Directory B has no slots when
// the table runs with a single directory.
func directories(s xuckoo.Stats) []namedStats {
	dirs := []namedStats{{"a", s.A}}
	if s.B.Size > 0 {
		dirs = append(dirs, namedStats{"b", s.B})
	}
	return dirs
}
