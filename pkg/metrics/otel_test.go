/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestRecorder(t *testing.T) (*OTel, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	rec, err := NewOTel(provider.Meter(MeterName))
	require.NoError(t, err)

	return rec, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64

	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			total += dp.Value
		}
	}

	return total
}

func TestCacheCounters(t *testing.T) {
	rec, reader := newTestRecorder(t)

	rec.RecordCacheHit("device")
	rec.RecordCacheHit("device")
	rec.RecordCacheMiss("driver")
	rec.RecordSyntheticEntity("driver")
	rec.RecordCacheFetchError("diagnostic")
	rec.RecordCacheReload("device", 10, true)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, got[metricCacheHitsName], attrKind, "device"))
	assert.Equal(t, int64(1), sumFor(t, got[metricCacheMissesName], attrKind, "driver"))
	assert.Equal(t, int64(1), sumFor(t, got[metricCacheSyntheticName], attrKind, "driver"))
	assert.Equal(t, int64(1), sumFor(t, got[metricCacheFetchErrorsName], attrKind, "diagnostic"))
	assert.Equal(t, int64(1), sumFor(t, got[metricCacheReloadsName], attrResult, "success"))
}

func TestFeedAndAPICounters(t *testing.T) {
	rec, reader := newTestRecorder(t)

	rec.RecordPass(1500*time.Millisecond, false)
	rec.RecordPullFailure("StatusData", "over_limit")
	rec.RecordRecords("LogRecord", 7)
	rec.RecordRecords("Trip", 0)
	rec.RecordAPICall("GetFeed", 20*time.Millisecond, errors.New("boom"))
	rec.RecordCircuitBreakerStateChange("geotab", "closed", "open")

	got := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, got[metricPassesName], attrResult, "failure"))
	assert.Equal(t, int64(1), sumFor(t, got[metricPullFailuresName], attrClass, "over_limit"))
	assert.Equal(t, int64(7), sumFor(t, got[metricRecordsName], attrFeedType, "LogRecord"))
	assert.Equal(t, int64(0), sumFor(t, got[metricRecordsName], attrFeedType, "Trip"))
	assert.Equal(t, int64(1), sumFor(t, got[metricAPICallsName], attrResult, "failure"))
	assert.Equal(t, int64(1), sumFor(t, got[metricCircuitTransitionsName], attrTo, "open"))
}

func TestGauges(t *testing.T) {
	rec, reader := newTestRecorder(t)

	rec.ObserveCacheSizes(func() map[string]int {
		return map[string]int{"device": 42}
	})
	rec.RecordPass(250*time.Millisecond, true)

	got := collect(t, reader)

	duration, ok := got[metricPassDurationMsName].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.Equal(t, int64(250), duration.DataPoints[0].Value)

	success, ok := got[metricPassSuccessName].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), success.DataPoints[0].Value)

	entries, ok := got[metricCacheEntriesName].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, entries.DataPoints, 1)
	assert.Equal(t, int64(42), entries.DataPoints[0].Value)

	require.NoError(t, rec.Close())
}
