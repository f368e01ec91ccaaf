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

// Package metrics records fleetfeed runtime metrics through OpenTelemetry.
package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MeterName = "fleetfeed"

	metricCacheHitsName          = "fleetfeed_cache_hits_total"
	metricCacheMissesName        = "fleetfeed_cache_misses_total"
	metricCacheSyntheticName     = "fleetfeed_cache_synthetic_total"
	metricCacheFetchErrorsName   = "fleetfeed_cache_fetch_errors_total"
	metricCacheReloadsName       = "fleetfeed_cache_reloads_total"
	metricCacheEntriesName       = "fleetfeed_cache_entries"
	metricPassesName             = "fleetfeed_sync_passes_total"
	metricPullFailuresName       = "fleetfeed_pull_failures_total"
	metricRecordsName            = "fleetfeed_records_total"
	metricPassDurationMsName     = "fleetfeed_sync_last_duration_ms"
	metricPassTimestampName      = "fleetfeed_sync_last_timestamp_ms"
	metricPassSuccessName        = "fleetfeed_sync_last_success"
	metricAPICallsName           = "fleetfeed_api_calls_total"
	metricAPIDurationName        = "fleetfeed_api_call_duration_seconds"
	metricCircuitTransitionsName = "fleetfeed_circuit_breaker_transitions_total"

	attrKind     = "kind"
	attrResult   = "result"
	attrFeedType = "feed_type"
	attrClass    = "class"
	attrMethod   = "method"
	attrName     = "name"
	attrTo       = "to"
)

// OTel implements the cache, feed and platform-client metrics interfaces on
// top of an OpenTelemetry meter.
type OTel struct {
	cacheHits        metric.Int64Counter
	cacheMisses      metric.Int64Counter
	cacheSynthetic   metric.Int64Counter
	cacheFetchErrors metric.Int64Counter
	cacheReloads     metric.Int64Counter
	passes           metric.Int64Counter
	pullFailures     metric.Int64Counter
	records          metric.Int64Counter
	apiCalls         metric.Int64Counter
	apiDuration      metric.Float64Histogram
	circuitChanges   metric.Int64Counter

	passDurationMs  atomic.Int64
	passTimestampMs atomic.Int64
	passSuccess     atomic.Int64

	mu           sync.RWMutex
	cacheSizes   func() map[string]int
	registration metric.Registration
}

// NewOTel creates every instrument on meter and registers the gauge callback.
func NewOTel(meter metric.Meter) (*OTel, error) {
	m := &OTel{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.cacheHits, metricCacheHitsName, "Reference cache lookups served from memory"},
		{&m.cacheMisses, metricCacheMissesName, "Reference cache lookups that fetched from the platform"},
		{&m.cacheSynthetic, metricCacheSyntheticName, "Synthetic entities created for ids the platform did not return"},
		{&m.cacheFetchErrors, metricCacheFetchErrorsName, "Reference fetches that failed and fell back to the sentinel"},
		{&m.cacheReloads, metricCacheReloadsName, "Bulk cache reloads by outcome"},
		{&m.passes, metricPassesName, "Synchronization passes by outcome"},
		{&m.pullFailures, metricPullFailuresName, "Feed pulls that failed, by failure class"},
		{&m.records, metricRecordsName, "Feed records pulled and enriched"},
		{&m.apiCalls, metricAPICallsName, "Platform API calls by method and outcome"},
		{&m.circuitChanges, metricCircuitTransitionsName, "Circuit breaker state transitions"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}

		*c.dst = counter
	}

	var err error

	m.apiDuration, err = meter.Float64Histogram(
		metricAPIDurationName,
		metric.WithDescription("Platform API call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	passDuration, err := meter.Int64ObservableGauge(
		metricPassDurationMsName,
		metric.WithDescription("Duration of the last synchronization pass in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	passTimestamp, err := meter.Int64ObservableGauge(
		metricPassTimestampName,
		metric.WithDescription("Unix epoch milliseconds of the last synchronization pass"),
	)
	if err != nil {
		return nil, err
	}

	passSuccess, err := meter.Int64ObservableGauge(
		metricPassSuccessName,
		metric.WithDescription("1 if the last synchronization pass succeeded, 0 otherwise"),
	)
	if err != nil {
		return nil, err
	}

	cacheEntries, err := meter.Int64ObservableGauge(
		metricCacheEntriesName,
		metric.WithDescription("Resident entries per reference cache"),
	)
	if err != nil {
		return nil, err
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(passDuration, m.passDurationMs.Load())
		observer.ObserveInt64(passTimestamp, m.passTimestampMs.Load())
		observer.ObserveInt64(passSuccess, m.passSuccess.Load())

		m.mu.RLock()
		sizes := m.cacheSizes
		m.mu.RUnlock()

		if sizes != nil {
			for kind, n := range sizes() {
				observer.ObserveInt64(cacheEntries, int64(n), metric.WithAttributes(attribute.String(attrKind, kind)))
			}
		}

		return nil
	}, passDuration, passTimestamp, passSuccess, cacheEntries)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ObserveCacheSizes sets the function reporting resident entries per cache kind.
func (m *OTel) ObserveCacheSizes(sizes func() map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cacheSizes = sizes
}

// Close unregisters the gauge callback.
func (m *OTel) Close() error {
	return m.registration.Unregister()
}

func (m *OTel) RecordCacheHit(kind string) {
	m.cacheHits.Add(context.Background(), 1, kindAttr(kind))
}

func (m *OTel) RecordCacheMiss(kind string) {
	m.cacheMisses.Add(context.Background(), 1, kindAttr(kind))
}

func (m *OTel) RecordSyntheticEntity(kind string) {
	m.cacheSynthetic.Add(context.Background(), 1, kindAttr(kind))
}

func (m *OTel) RecordCacheFetchError(kind string) {
	m.cacheFetchErrors.Add(context.Background(), 1, kindAttr(kind))
}

func (m *OTel) RecordCacheReload(kind string, _ int, ok bool) {
	m.cacheReloads.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrKind, kind),
		attribute.String(attrResult, result(ok)),
	))
}

func (m *OTel) RecordPass(duration time.Duration, ok bool) {
	m.passes.Add(context.Background(), 1, metric.WithAttributes(attribute.String(attrResult, result(ok))))

	m.passDurationMs.Store(duration.Milliseconds())
	m.passTimestampMs.Store(time.Now().UnixMilli())

	if ok {
		m.passSuccess.Store(1)
	} else {
		m.passSuccess.Store(0)
	}
}

func (m *OTel) RecordPullFailure(feedType, class string) {
	m.pullFailures.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrFeedType, feedType),
		attribute.String(attrClass, class),
	))
}

func (m *OTel) RecordRecords(feedType string, count int) {
	if count == 0 {
		return
	}

	m.records.Add(context.Background(), int64(count), metric.WithAttributes(attribute.String(attrFeedType, feedType)))
}

func (m *OTel) RecordAPICall(method string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrResult, result(err == nil)),
	)

	m.apiCalls.Add(context.Background(), 1, attrs)
	m.apiDuration.Record(context.Background(), duration.Seconds(), attrs)
}

func (m *OTel) RecordCircuitBreakerStateChange(name, _, to string) {
	m.circuitChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String(attrName, name),
		attribute.String(attrTo, to),
	))
}

func kindAttr(kind string) metric.AddOption {
	return metric.WithAttributes(attribute.String(attrKind, kind))
}

func result(ok bool) string {
	if ok {
		return "success"
	}

	return "failure"
}
