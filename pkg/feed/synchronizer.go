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

// Package feed implements the incremental feed synchronization pass: cache
// reload scheduling, per-type cursor pulls, record enrichment and classified
// backoff on failure.
package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/carverauto/fleetfeed/pkg/cache"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/metrics"
	"github.com/carverauto/fleetfeed/pkg/models"
)

//go:generate mockgen -destination=mock_feed.go -package=feed github.com/carverauto/fleetfeed/pkg/feed Source,CheckpointStore

const (
	// DefaultReloadInterval is how often the reference caches are rebuilt.
	DefaultReloadInterval = 12 * time.Hour
)

var errNilCaches = errors.New("feed: reference caches are required")

// Source returns one page of a feed starting at fromVersion. result points
// to a models.FeedPage of the record type named by feedType.
type Source interface {
	GetFeed(ctx context.Context, feedType models.FeedType, fromVersion string, result interface{}) error
}

// CheckpointStore persists the cursor set after passes that advanced it.
type CheckpointStore interface {
	Save(ctx context.Context, tokens map[models.FeedType]string) error
}

// Metrics receives pass outcomes and record counts.
type Metrics interface {
	RecordPass(duration time.Duration, ok bool)
	RecordPullFailure(feedType, class string)
	RecordRecords(feedType string, count int)
}

// Backoff is the sleep applied after a failed pull, per failure class.
type Backoff struct {
	DBUnavailable time.Duration
	OverLimit     time.Duration
	Transport     time.Duration
	Other         time.Duration
}

// DefaultBackoff returns the standard per-class sleeps. Unclassified
// failures do not sleep.
func DefaultBackoff() Backoff {
	return Backoff{
		DBUnavailable: 5 * time.Minute,
		OverLimit:     time.Minute,
		Transport:     5 * time.Second,
	}
}

func (b Backoff) For(class FailureClass) time.Duration {
	switch class {
	case FailureDBUnavailable:
		return b.DBUnavailable
	case FailureOverLimit:
		return b.OverLimit
	case FailureTransport:
		return b.Transport
	case FailureOther:
		return b.Other
	default:
		return b.Other
	}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithClock(clock Clock) Option {
	return func(s *Synchronizer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Synchronizer) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithCheckpointStore(store CheckpointStore) Option {
	return func(s *Synchronizer) {
		s.checkpoints = store
	}
}

func WithReloadInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.reloadInterval = d
		}
	}
}

func WithBackoff(b Backoff) Option {
	return func(s *Synchronizer) {
		s.backoff = b
	}
}

// Synchronizer runs synchronization passes. It is driven by a single
// goroutine; Sync must not be called concurrently.
type Synchronizer struct {
	source         Source
	caches         *cache.Set
	cursors        *Cursors
	clock          Clock
	logger         logger.Logger
	metrics        Metrics
	checkpoints    CheckpointStore
	backoff        Backoff
	reloadInterval time.Duration
	reloadAt       time.Time
	unsaved        atomic.Bool
}

// NewSynchronizer creates a Synchronizer. The first Sync reloads the caches.
func NewSynchronizer(source Source, caches *cache.Set, cursors *Cursors, log logger.Logger, opts ...Option) (*Synchronizer, error) {
	if caches == nil {
		return nil, errNilCaches
	}

	if cursors == nil {
		cursors = NewCursors(nil)
	}

	s := &Synchronizer{
		source:         source,
		caches:         caches,
		cursors:        cursors,
		clock:          realClock{},
		logger:         log,
		metrics:        metrics.NoOp{},
		backoff:        DefaultBackoff(),
		reloadInterval: DefaultReloadInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Cursors returns the cursor set the synchronizer advances.
func (s *Synchronizer) Cursors() *Cursors {
	return s.cursors
}

// Sync runs one pass. It reloads the reference caches when due, pulls each
// feed type in turn from its cursor and enriches the records. Cursor advances
// are committed only when every pull succeeded. A failed pass sleeps for the
// backoff of its failure class and returns an empty result.
func (s *Synchronizer) Sync(ctx context.Context) *Result {
	start := s.clock.Now()

	s.reloadIfDue(ctx, start)

	result, tokens, err := s.pull(ctx)
	if err != nil {
		s.metrics.RecordPass(s.clock.Now().Sub(start), false)
		s.handleFailure(ctx, err)

		return &Result{}
	}

	if s.cursors.Commit(tokens) {
		s.unsaved.Store(true)
	}

	s.metrics.RecordPass(s.clock.Now().Sub(start), true)
	s.logger.Debug().
		Int("log_records", len(result.LogRecords)).
		Int("status_data", len(result.StatusData)).
		Int("fault_data", len(result.FaultData)).
		Int("trips", len(result.Trips)).
		Msg("Synchronization pass complete")

	return result
}

func (s *Synchronizer) reloadIfDue(ctx context.Context, now time.Time) {
	if now.Before(s.reloadAt) {
		return
	}

	s.logger.Info().Msg("Reloading reference caches")

	if !s.caches.ReloadAll(ctx) {
		s.logger.Warn().Msg("Reference cache reload incomplete, continuing with partial caches")
	}

	s.reloadAt = now.Add(s.reloadInterval)
}

func (s *Synchronizer) pull(ctx context.Context) (*Result, map[models.FeedType]string, error) {
	tokens := s.cursors.Snapshot()
	result := &Result{}

	var err error

	result.LogRecords, tokens[models.FeedLogRecord], err = pullFeed(ctx, s, models.FeedLogRecord,
		tokens[models.FeedLogRecord], s.enrichLogRecord)
	if err != nil {
		return nil, nil, err
	}

	result.StatusData, tokens[models.FeedStatusData], err = pullFeed(ctx, s, models.FeedStatusData,
		tokens[models.FeedStatusData], s.enrichStatusData)
	if err != nil {
		return nil, nil, err
	}

	result.FaultData, tokens[models.FeedFaultData], err = pullFeed(ctx, s, models.FeedFaultData,
		tokens[models.FeedFaultData], s.enrichFaultData)
	if err != nil {
		return nil, nil, err
	}

	result.Trips, tokens[models.FeedTrip], err = pullFeed(ctx, s, models.FeedTrip,
		tokens[models.FeedTrip], s.enrichTrip)
	if err != nil {
		return nil, nil, err
	}

	return result, tokens, nil
}

// pullFeed fetches one page and enriches every record. The returned token is
// the page's toVersion, or fromVersion when the page carries none.
func pullFeed[T any](
	ctx context.Context,
	s *Synchronizer,
	feedType models.FeedType,
	fromVersion string,
	enrich func(context.Context, *T),
) ([]*T, string, error) {
	s.logger.Debug().
		Str("feed_type", string(feedType)).
		Str("from_version", fromVersion).
		Msg("Getting data feed")

	var page models.FeedPage[T]
	if err := s.source.GetFeed(ctx, feedType, fromVersion, &page); err != nil {
		return nil, fromVersion, &PullError{FeedType: feedType, Err: err}
	}

	records := make([]*T, 0, len(page.Data))

	for _, record := range page.Data {
		if record == nil {
			continue
		}

		enrich(ctx, record)
		records = append(records, record)
	}

	s.metrics.RecordRecords(string(feedType), len(records))

	toVersion := page.ToVersion
	if toVersion == "" {
		toVersion = fromVersion
	}

	return records, toVersion, nil
}

func (s *Synchronizer) handleFailure(ctx context.Context, err error) {
	class := Classify(err)
	wait := s.backoff.For(class)

	feedType := ""

	var pullErr *PullError
	if errors.As(err, &pullErr) {
		feedType = string(pullErr.FeedType)
	}

	s.metrics.RecordPullFailure(feedType, class.String())

	event := s.logger.Error()
	if class == FailureOverLimit {
		event = s.logger.Warn()
	}

	event.Err(err).
		Str("feed_type", feedType).
		Str("failure_class", class.String()).
		Dur("backoff", wait).
		Msg("Feed pull failed")

	sleep(ctx, s.clock, wait)
}

// Checkpoint saves the cursors if they advanced since the last successful
// save. Call it once the records of the pass have been exported; a failed
// save is logged and retried on the next call.
func (s *Synchronizer) Checkpoint(ctx context.Context) {
	if s.checkpoints == nil || !s.unsaved.Load() {
		return
	}

	if err := s.checkpoints.Save(ctx, s.cursors.Snapshot()); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save feed cursors")

		return
	}

	s.unsaved.Store(false)
}
