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

// Package cache resolves reference-entity identifiers into full entities,
// fetching lazily from the platform and bounding memory with an LRU.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/metrics"
	"github.com/carverauto/fleetfeed/pkg/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the maximum number of entries held per entity kind.
const DefaultSize = 600

var (
	errMissingFetchByID  = errors.New("cache: FetchByID is required")
	errMissingFetchAll   = errors.New("cache: FetchAll is required")
	errMissingSynthesize = errors.New("cache: Synthesize is required")
	errMissingID         = errors.New("cache: ID is required")
)

// Metrics receives cache lookups and reload outcomes.
type Metrics interface {
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordSyntheticEntity(kind string)
	RecordCacheFetchError(kind string)
	RecordCacheReload(kind string, entries int, ok bool)
}

// Config describes how an EntityCache obtains and identifies entities of one kind.
type Config[T any] struct {
	Kind models.EntityKind
	// Size bounds the cache; DefaultSize when zero.
	Size int

	FetchByID  func(ctx context.Context, id string) (*T, error)
	FetchAll   func(ctx context.Context) ([]*T, error)
	Synthesize func(id string) *T
	ID         func(entity *T) string

	// Resolve, when set, runs on every non-empty Get and may return a
	// different value with nested references resolved.
	Resolve func(ctx context.Context, entity *T) *T

	// Sentinel is returned for empty ids and failed fetches. Sentinels
	// (together with Extra) are re-inserted after every reload.
	Sentinel *T
	Extra    []*T
}

// Option configures an EntityCache.
type Option func(*options)

type options struct {
	metrics Metrics
}

// WithMetrics records hits, misses and reloads to m.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// EntityCache is an LRU-bounded, single-flight cache of one entity kind.
type EntityCache[T any] struct {
	cfg      Config[T]
	store    *lru.Cache[string, *T]
	group    singleflight.Group
	reloadMu sync.Mutex
	logger   logger.Logger
	metrics  Metrics
}

// New creates an EntityCache. FetchByID, FetchAll, Synthesize and ID are required.
func New[T any](cfg Config[T], log logger.Logger, opts ...Option) (*EntityCache[T], error) {
	switch {
	case cfg.FetchByID == nil:
		return nil, errMissingFetchByID
	case cfg.FetchAll == nil:
		return nil, errMissingFetchAll
	case cfg.Synthesize == nil:
		return nil, errMissingSynthesize
	case cfg.ID == nil:
		return nil, errMissingID
	}

	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}

	o := &options{metrics: metrics.NoOp{}}
	for _, opt := range opts {
		opt(o)
	}

	store, err := lru.New[string, *T](cfg.Size)
	if err != nil {
		return nil, err
	}

	return &EntityCache[T]{
		cfg:     cfg,
		store:   store,
		logger:  log,
		metrics: o.metrics,
	}, nil
}

// Kind returns the entity kind this cache holds.
func (c *EntityCache[T]) Kind() models.EntityKind {
	return c.cfg.Kind
}

// Sentinel returns the "no entity" value of this cache, possibly nil.
func (c *EntityCache[T]) Sentinel() *T {
	return c.cfg.Sentinel
}

// Get returns the entity for id. An empty id yields the sentinel without a
// fetch. A miss fetches once per id across concurrent callers; a fetch that
// finds nothing stores a synthetic entity, and a failed fetch returns the
// sentinel without storing anything.
func (c *EntityCache[T]) Get(ctx context.Context, id string) *T {
	if id == "" {
		return c.cfg.Sentinel
	}

	entity, ok := c.store.Get(id)
	if ok {
		c.metrics.RecordCacheHit(string(c.cfg.Kind))
	} else {
		entity = c.load(ctx, id)
	}

	if c.cfg.Resolve != nil && entity != nil {
		entity = c.cfg.Resolve(ctx, entity)
	}

	return entity
}

func (c *EntityCache[T]) load(ctx context.Context, id string) *T {
	// The flight is shared, so it must not end when the caller that started
	// it goes away. The platform client bounds every request with its own
	// timeout.
	fetchCtx := context.WithoutCancel(ctx)

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		// A caller that lost the race to an earlier flight finds the entry here.
		if entity, ok := c.store.Get(id); ok {
			return entity, nil
		}

		c.metrics.RecordCacheMiss(string(c.cfg.Kind))

		entity, err := c.cfg.FetchByID(fetchCtx, id)
		if err != nil {
			return nil, err
		}

		if entity == nil {
			c.metrics.RecordSyntheticEntity(string(c.cfg.Kind))
			c.logger.Debug().
				Str("kind", string(c.cfg.Kind)).
				Str("id", id).
				Msg("Entity not found, caching synthetic entity")

			entity = c.cfg.Synthesize(id)
		}

		c.store.Add(id, entity)

		return entity, nil
	})
	if err != nil {
		c.metrics.RecordCacheFetchError(string(c.cfg.Kind))
		c.logger.Warn().
			Err(err).
			Str("kind", string(c.cfg.Kind)).
			Str("id", id).
			Msg("Failed to load entity, using sentinel")

		return c.cfg.Sentinel
	}

	return v.(*T)
}

// ReloadAll replaces the cache contents with a fresh bulk fetch and then
// re-inserts the sentinels. It reports false when the bulk fetch failed, in
// which case only the sentinels remain.
func (c *EntityCache[T]) ReloadAll(ctx context.Context) bool {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	c.store.Purge()

	ok := true

	entities, err := c.cfg.FetchAll(ctx)
	if err != nil {
		ok = false

		c.logger.Error().
			Err(err).
			Str("kind", string(c.cfg.Kind)).
			Msg("Failed to reload entity cache")
	} else {
		for _, entity := range entities {
			if entity == nil {
				continue
			}

			if id := c.cfg.ID(entity); id != "" {
				c.store.Add(id, entity)
			}
		}
	}

	c.cacheSentinels()

	c.metrics.RecordCacheReload(string(c.cfg.Kind), c.store.Len(), ok)
	c.logger.Debug().
		Str("kind", string(c.cfg.Kind)).
		Int("entries", c.store.Len()).
		Bool("success", ok).
		Msg("Entity cache reloaded")

	return ok
}

func (c *EntityCache[T]) cacheSentinels() {
	if c.cfg.Sentinel != nil {
		c.store.Add(c.cfg.ID(c.cfg.Sentinel), c.cfg.Sentinel)
	}

	for _, extra := range c.cfg.Extra {
		if extra != nil {
			c.store.Add(c.cfg.ID(extra), extra)
		}
	}
}

// Len returns the number of resident entries.
func (c *EntityCache[T]) Len() int {
	return c.store.Len()
}

// Contains reports whether id is resident without touching its recency.
func (c *EntityCache[T]) Contains(id string) bool {
	return c.store.Contains(id)
}
