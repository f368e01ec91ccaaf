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

package feed

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/carverauto/fleetfeed/pkg/cache"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/stretchr/testify/require"
)

// fakeClock advances simulated time by the requested duration whenever a
// sleep starts, unless block is set.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	block  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sleeps = append(c.sleeps, d)
	ch := make(chan time.Time, 1)

	if !c.block {
		c.now = c.now.Add(d)
		ch <- c.now
	}

	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.sleeps...)
}

// fakeLookup serves reference entities from memory and counts bulk fetches.
type fakeLookup struct {
	mu       sync.Mutex
	entities map[string][]models.Entity
	allCalls map[string]int
	idCalls  map[string]int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		entities: make(map[string][]models.Entity),
		allCalls: make(map[string]int),
		idCalls:  make(map[string]int),
	}
}

func (l *fakeLookup) add(typeName string, entities ...models.Entity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entities[typeName] = append(l.entities[typeName], entities...)
}

func (l *fakeLookup) Get(_ context.Context, typeName string, search, result any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var id string

	switch s := search.(type) {
	case cache.IDSearch:
		id = s.ID
	case cache.DriverSearch:
		id = s.ID
	}

	if id == "" {
		l.allCalls[typeName]++
	} else {
		l.idCalls[typeName+"/"+id]++
	}

	matches := make([]models.Entity, 0)

	for _, e := range l.entities[typeName] {
		if id == "" || e.EntityID() == id {
			matches = append(matches, e)
		}
	}

	raw, err := json.Marshal(matches)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, result)
}

func (l *fakeLookup) bulkCalls(typeName string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.allCalls[typeName]
}

func (l *fakeLookup) idCallsFor(typeName, id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.idCalls[typeName+"/"+id]
}

// page fills a FeedPage[T] with items and toVersion.
func page[T any](toVersion string, items ...*T) func(context.Context, models.FeedType, string, any) error {
	return func(_ context.Context, _ models.FeedType, _ string, result any) error {
		p := result.(*models.FeedPage[T])
		p.Data = items
		p.ToVersion = toVersion

		return nil
	}
}

func newTestSynchronizer(
	t *testing.T,
	src Source,
	lookup cache.Lookup,
	cursors *Cursors,
	clock Clock,
	opts ...Option,
) *Synchronizer {
	t.Helper()

	caches, err := cache.NewSet(lookup, logger.NewTestLogger())
	require.NoError(t, err)

	s, err := NewSynchronizer(src, caches, cursors, logger.NewTestLogger(),
		append([]Option{WithClock(clock)}, opts...)...)
	require.NoError(t, err)

	return s
}

// classedError carries the failure class methods a platform client exposes.
type classedError struct {
	db, over, transport bool
}

func (classedError) Error() string         { return "platform error" }
func (e classedError) DBUnavailable() bool { return e.db }
func (e classedError) OverLimit() bool     { return e.over }
func (e classedError) Transport() bool     { return e.transport }
