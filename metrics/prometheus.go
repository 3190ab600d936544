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

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector is a prometheus.Collector reporting the counters of a table.
type Collector struct {
	src          StatsSource
	keys         *prometheus.Desc
	buckets      *prometheus.Desc
	depth        *prometheus.Desc
	size         *prometheus.Desc
	evictions    *prometheus.Desc
	forcedSplits *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector reading src on every scrape.
func NewCollector(src StatsSource) *Collector {
	dirLabels := []string{attrDirectory}
	return &Collector{
		src: src,
		keys: prometheus.NewDesc("xuckoo_directory_keys",
			"Number of keys stored in the directory.", dirLabels, nil),
		buckets: prometheus.NewDesc("xuckoo_directory_buckets",
			"Number of distinct buckets in the directory.", dirLabels, nil),
		depth: prometheus.NewDesc("xuckoo_directory_depth",
			"Number of hash bits used to address the directory.", dirLabels, nil),
		size: prometheus.NewDesc("xuckoo_directory_size",
			"Number of directory slots.", dirLabels, nil),
		evictions: prometheus.NewDesc("xuckoo_evictions_total",
			"Keys displaced by inserts.", nil, nil),
		forcedSplits: prometheus.NewDesc("xuckoo_forced_splits_total",
			"Bucket splits forced by eviction cycles.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.buckets
	ch <- c.depth
	ch <- c.size
	ch <- c.evictions
	ch <- c.forcedSplits
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	for _, d := range directories(s) {
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(d.stats.Keys), d.name)
		ch <- prometheus.MustNewConstMetric(c.buckets, prometheus.GaugeValue, float64(d.stats.Buckets), d.name)
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(d.stats.Depth), d.name)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(d.stats.Size), d.name)
	}
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(c.forcedSplits, prometheus.CounterValue, float64(s.ForcedSplits))
}
