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

package metrics_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/xuckoo"
	"github.com/cockroachdb/xuckoo/metrics"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func identity(key int64) uint64 { return uint64(key) }

func newTable(t *testing.T) *xuckoo.Table {
	t.Helper()
	tbl, err := xuckoo.New(1, xuckoo.WithHashes(identity, identity))
	require.NoError(t, err)
	// 0 goes to A, 1 to B, and 2 cuckoos around the pair until a forced split
	// of A makes room for 1 at A's address 1.
	for _, k := range []int64{0, 1, 2} {
		ok, err := tbl.Insert(k)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return tbl
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func gaugeValues(t *testing.T, m *metricdata.Metrics) map[string]int64 {
	t.Helper()
	require.NotNil(t, m)
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "expected Gauge data type")
	vals := make(map[string]int64)
	for _, dp := range g.DataPoints {
		v, ok := dp.Attributes.Value(attribute.Key("directory"))
		require.True(t, ok)
		vals[v.AsString()] = dp.Value
	}
	return vals
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	s, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data type")
	require.Len(t, s.DataPoints, 1)
	return s.DataPoints[0].Value
}

func TestNewTableMetrics_NoopMeter(t *testing.T) {
	mt := noopmetric.NewMeterProvider().Meter("test")
	tm, err := metrics.NewTableMetrics(mt, newTable(t))
	require.NoError(t, err)
	require.NotNil(t, tm)
}

func TestTableMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tbl := newTable(t)

	tm, err := metrics.NewTableMetrics(mp.Meter("test"), tbl)
	require.NoError(t, err)

	rm := collect(t, reader)
	require.Equal(t, map[string]int64{"a": 2, "b": 1},
		gaugeValues(t, findMetric(rm, "xuckoo.directory.keys")))
	require.Equal(t, map[string]int64{"a": 2, "b": 1},
		gaugeValues(t, findMetric(rm, "xuckoo.directory.buckets")))
	require.Equal(t, map[string]int64{"a": 1, "b": 0},
		gaugeValues(t, findMetric(rm, "xuckoo.directory.depth")))
	require.Equal(t, map[string]int64{"a": 2, "b": 1},
		gaugeValues(t, findMetric(rm, "xuckoo.directory.size")))
	require.EqualValues(t, 1, sumValue(t, findMetric(rm, "xuckoo.forced_splits")))
	require.EqualValues(t, tbl.Stats().Evictions, sumValue(t, findMetric(rm, "xuckoo.evictions")))

	require.NoError(t, tm.Unregister())
}

func TestTableMetrics_SingleDirectory(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tbl, err := xuckoo.New(2, xuckoo.WithSingleDirectory())
	require.NoError(t, err)
	for i := int64(0); i < 10; i++ {
		_, err := tbl.Insert(i)
		require.NoError(t, err)
	}

	_, err = metrics.NewTableMetrics(mp.Meter("test"), tbl)
	require.NoError(t, err)

	rm := collect(t, reader)
	require.Equal(t, map[string]int64{"a": 10},
		gaugeValues(t, findMetric(rm, "xuckoo.directory.keys")))
}

func TestTableMetrics_NilUnregister(t *testing.T) {
	var tm *metrics.TableMetrics
	require.NoError(t, tm.Unregister())
}
