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

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPlatformDown = errors.New("platform down")

// deviceSource is a hand-rolled fetcher that counts calls per id.
type deviceSource struct {
	mu       sync.Mutex
	devices  map[string]*models.Device
	calls    map[string]int
	allCalls int
	fetchErr error
	allErr   error
	delay    time.Duration
}

func newDeviceSource(devices ...*models.Device) *deviceSource {
	src := &deviceSource{devices: make(map[string]*models.Device), calls: make(map[string]int)}
	for _, d := range devices {
		src.devices[d.ID] = d
	}

	return src
}

func (s *deviceSource) fetchByID(_ context.Context, id string) (*models.Device, error) {
	s.mu.Lock()
	s.calls[id]++
	delay := s.delay
	err := s.fetchErr
	d := s.devices[id]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if err != nil {
		return nil, err
	}

	return d, nil
}

func (s *deviceSource) fetchAll(context.Context) ([]*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allCalls++

	if s.allErr != nil {
		return nil, s.allErr
	}

	out := make([]*models.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}

	return out, nil
}

func (s *deviceSource) callsFor(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[id]
}

func newDeviceCache(t *testing.T, src *deviceSource, size int) *EntityCache[models.Device] {
	t.Helper()

	c, err := New(Config[models.Device]{
		Kind:       models.KindDevice,
		Size:       size,
		FetchByID:  src.fetchByID,
		FetchAll:   src.fetchAll,
		Synthesize: func(id string) *models.Device { return &models.Device{ID: id} },
		ID:         (*models.Device).EntityID,
		Sentinel:   models.NoDevice,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	return c
}

func TestNewRequiresFunctions(t *testing.T) {
	_, err := New(Config[models.Device]{}, logger.NewTestLogger())
	assert.ErrorIs(t, err, errMissingFetchByID)

	src := newDeviceSource()
	_, err = New(Config[models.Device]{FetchByID: src.fetchByID, FetchAll: src.fetchAll}, logger.NewTestLogger())
	assert.ErrorIs(t, err, errMissingSynthesize)
}

func TestGetEmptyIDReturnsSentinelWithoutFetch(t *testing.T) {
	src := newDeviceSource()
	c := newDeviceCache(t, src, 0)

	assert.Same(t, models.NoDevice, c.Get(context.Background(), ""))
	assert.Equal(t, 0, src.callsFor(""))
	assert.Equal(t, 0, c.Len())
}

func TestGetCachesFetchedEntity(t *testing.T) {
	dev := &models.Device{ID: "b1", Name: "Truck 1", SerialNumber: "G9000001"}
	src := newDeviceSource(dev)
	c := newDeviceCache(t, src, 0)

	first := c.Get(context.Background(), "b1")
	second := c.Get(context.Background(), "b1")

	assert.Same(t, dev, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.callsFor("b1"))
}

func TestGetSynthesizesMissingEntityOnce(t *testing.T) {
	src := newDeviceSource()
	c := newDeviceCache(t, src, 0)

	first := c.Get(context.Background(), "X")
	require.NotNil(t, first)
	assert.Equal(t, "X", first.ID)
	assert.Empty(t, first.Name)

	second := c.Get(context.Background(), "X")
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.callsFor("X"))
}

func TestGetFetchErrorReturnsSentinelAndDoesNotStore(t *testing.T) {
	src := newDeviceSource()
	src.fetchErr = errPlatformDown
	c := newDeviceCache(t, src, 0)

	assert.Same(t, models.NoDevice, c.Get(context.Background(), "b2"))
	assert.False(t, c.Contains("b2"))

	src.mu.Lock()
	src.fetchErr = nil
	src.devices["b2"] = &models.Device{ID: "b2", Name: "Van"}
	src.mu.Unlock()

	assert.Equal(t, "Van", c.Get(context.Background(), "b2").Name)
	assert.Equal(t, 2, src.callsFor("b2"))
}

func TestGetSingleFlightPerKey(t *testing.T) {
	src := newDeviceSource(&models.Device{ID: "b1"})
	src.delay = 50 * time.Millisecond
	c := newDeviceCache(t, src, 0)

	const callers = 32

	var (
		wg      sync.WaitGroup
		results [callers]*models.Device
		start   = make(chan struct{})
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			<-start
			results[i] = c.Get(context.Background(), "b1")
		}(i)
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, src.callsFor("b1"))

	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestGetFlightSurvivesCancelledFirstCaller(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	var calls atomic.Int32

	c, err := New(Config[models.Device]{
		Kind: models.KindDevice,
		FetchByID: func(ctx context.Context, id string) (*models.Device, error) {
			calls.Add(1)
			close(entered)
			<-release

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			return &models.Device{ID: id, Name: "Truck 7"}, nil
		},
		FetchAll:   func(context.Context) ([]*models.Device, error) { return nil, nil },
		Synthesize: func(id string) *models.Device { return &models.Device{ID: id} },
		ID:         (*models.Device).EntityID,
		Sentinel:   models.NoDevice,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	firstCtx, cancel := context.WithCancel(context.Background())

	var first, second *models.Device

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		first = c.Get(firstCtx, "b1")
	}()

	<-entered

	wg.Add(1)

	go func() {
		defer wg.Done()

		second = c.Get(context.Background(), "b1")
	}()

	cancel()
	// Give the second caller time to join the flight before it completes.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Truck 7", first.Name)
	assert.Equal(t, "Truck 7", second.Name)
	assert.True(t, c.Contains("b1"))
}

func TestGetDistinctKeysFetchIndependently(t *testing.T) {
	src := newDeviceSource()
	c := newDeviceCache(t, src, 0)

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			c.Get(context.Background(), fmt.Sprintf("d%d", i))
		}(i)
	}

	wg.Wait()

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, src.callsFor(fmt.Sprintf("d%d", i)))
	}

	assert.Equal(t, 10, c.Len())
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	src := newDeviceSource()
	c := newDeviceCache(t, src, 0)
	ctx := context.Background()

	for i := 0; i < DefaultSize; i++ {
		c.Get(ctx, fmt.Sprintf("id-%d", i))
	}

	// Touch id-0 so id-1 becomes the least recently used entry.
	c.Get(ctx, "id-0")
	c.Get(ctx, "id-new")

	assert.Equal(t, DefaultSize, c.Len())
	assert.True(t, c.Contains("id-0"))
	assert.False(t, c.Contains("id-1"))
	assert.True(t, c.Contains("id-new"))
}

func TestLRUBoundWith601Inserts(t *testing.T) {
	src := newDeviceSource()
	c := newDeviceCache(t, src, 0)
	ctx := context.Background()

	for i := 0; i <= DefaultSize; i++ {
		c.Get(ctx, fmt.Sprintf("id-%d", i))
	}

	assert.Equal(t, DefaultSize, c.Len())
	assert.False(t, c.Contains("id-0"))
	assert.True(t, c.Contains(fmt.Sprintf("id-%d", DefaultSize)))
}

func TestReloadAllReplacesContents(t *testing.T) {
	dev := &models.Device{ID: "b1", Name: "Truck"}
	src := newDeviceSource(dev)
	c := newDeviceCache(t, src, 0)
	ctx := context.Background()

	stale := c.Get(ctx, "gone")
	require.NotNil(t, stale)

	require.True(t, c.ReloadAll(ctx))
	assert.False(t, c.Contains("gone"))

	assert.Same(t, dev, c.Get(ctx, "b1"))
	assert.Equal(t, 0, src.callsFor("b1"))
	assert.Same(t, models.NoDevice, c.Get(ctx, models.NoDeviceID))
	assert.Equal(t, 0, src.callsFor(models.NoDeviceID))
}

func TestReloadAllFailureLeavesOnlySentinels(t *testing.T) {
	src := newDeviceSource(&models.Device{ID: "b1"})
	c := newDeviceCache(t, src, 0)
	ctx := context.Background()

	require.True(t, c.ReloadAll(ctx))
	require.True(t, c.Contains("b1"))

	src.mu.Lock()
	src.allErr = errPlatformDown
	src.mu.Unlock()

	assert.False(t, c.ReloadAll(ctx))
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(models.NoDeviceID))
	assert.False(t, c.Contains("b1"))
}

func TestGetNotBlockedByReload(t *testing.T) {
	src := newDeviceSource(&models.Device{ID: "b1"})
	c := newDeviceCache(t, src, 0)
	ctx := context.Background()

	require.True(t, c.ReloadAll(ctx))

	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	done := make(chan *models.Device, 1)

	go func() { done <- c.Get(ctx, "b1") }()

	select {
	case d := <-done:
		assert.Equal(t, "b1", d.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("Get blocked while a reload held the reload lock")
	}
}

type countingMetrics struct {
	hits, misses, synthetic, fetchErrors, reloads atomic.Int64
}

func (m *countingMetrics) RecordCacheHit(string)              { m.hits.Add(1) }
func (m *countingMetrics) RecordCacheMiss(string)             { m.misses.Add(1) }
func (m *countingMetrics) RecordSyntheticEntity(string)       { m.synthetic.Add(1) }
func (m *countingMetrics) RecordCacheFetchError(string)       { m.fetchErrors.Add(1) }
func (m *countingMetrics) RecordCacheReload(string, int, bool) { m.reloads.Add(1) }

func TestMetricsRecorded(t *testing.T) {
	src := newDeviceSource(&models.Device{ID: "b1"})
	m := &countingMetrics{}

	c, err := New(Config[models.Device]{
		Kind:       models.KindDevice,
		FetchByID:  src.fetchByID,
		FetchAll:   src.fetchAll,
		Synthesize: func(id string) *models.Device { return &models.Device{ID: id} },
		ID:         (*models.Device).EntityID,
		Sentinel:   models.NoDevice,
	}, logger.NewTestLogger(), WithMetrics(m))
	require.NoError(t, err)

	ctx := context.Background()
	c.Get(ctx, "b1")
	c.Get(ctx, "b1")
	c.Get(ctx, "missing")
	c.ReloadAll(ctx)

	assert.Equal(t, int64(1), m.hits.Load())
	assert.Equal(t, int64(2), m.misses.Load())
	assert.Equal(t, int64(1), m.synthetic.Load())
	assert.Equal(t, int64(0), m.fetchErrors.Load())
	assert.Equal(t, int64(1), m.reloads.Load())
}
