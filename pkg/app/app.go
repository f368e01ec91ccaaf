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

// Package app wires the platform client, caches, synchronizer, exporter and
// worker into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/carverauto/fleetfeed/pkg/cache"
	"github.com/carverauto/fleetfeed/pkg/checkpoint"
	"github.com/carverauto/fleetfeed/pkg/export"
	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/geotab"
	"github.com/carverauto/fleetfeed/pkg/lifecycle"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/metrics"
	"github.com/carverauto/fleetfeed/pkg/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const serviceName = "fleetfeed"

type options struct {
	meter      metric.Meter
	httpClient geotab.HTTPClient
	clock      feed.Clock
}

// Option customizes Build.
type Option func(*options)

// WithMeter replaces the global OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

func WithHTTPClient(c geotab.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithClock replaces the synchronizer clock.
func WithClock(c feed.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// App is a fully wired fleetfeed instance.
type App struct {
	cfg          *Config
	logger       logger.Logger
	client       *geotab.Client
	caches       *cache.Set
	synchronizer *feed.Synchronizer
	worker       *worker.Worker
	metrics      *metrics.OTel
	closers      []io.Closer
}

// Build validates cfg and constructs every component. Nothing talks to the
// platform until the worker starts.
func Build(ctx context.Context, cfg *Config, log logger.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.meter == nil {
		o.meter = otel.Meter(metrics.MeterName)
	}

	a := &App{cfg: cfg, logger: log}

	ok := false

	defer func() {
		if ok {
			return
		}

		_ = a.Close()

		if a.client != nil {
			_ = a.client.Close()
		}
	}()

	m, err := metrics.NewOTel(o.meter)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a.metrics = m
	a.closers = append(a.closers, m)

	clientOpts := []geotab.Option{geotab.WithMetrics(m)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, geotab.WithHTTPClient(o.httpClient))
	}

	a.client, err = geotab.NewClient(cfg.geotabConfig(), component(log, "geotab"), clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("platform client: %w", err)
	}

	a.caches, err = cache.NewSet(a.client, component(log, "cache"), cache.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("caches: %w", err)
	}

	m.ObserveCacheSizes(a.caches.Sizes)

	syncOpts := []feed.Option{
		feed.WithMetrics(m),
		feed.WithBackoff(cfg.Backoff.resolve()),
	}

	if cfg.ReloadInterval > 0 {
		syncOpts = append(syncOpts, feed.WithReloadInterval(cfg.ReloadInterval.Std()))
	}

	if o.clock != nil {
		syncOpts = append(syncOpts, feed.WithClock(o.clock))
	}

	tokens := cfg.Tokens.Map()

	store, err := checkpoint.Open(ctx, cfg.Checkpoint, component(log, "checkpoint"))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}

	if store != nil {
		a.addCloser(store)

		stored, err := store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}

		tokens = checkpoint.Merge(stored, tokens)
		syncOpts = append(syncOpts, feed.WithCheckpointStore(store))

		log.Info().Interface("cursors", tokens).Msg("Resuming from checkpoint")
	}

	a.synchronizer, err = feed.NewSynchronizer(a.client, a.caches, feed.NewCursors(tokens),
		component(log, "feed"), syncOpts...)
	if err != nil {
		return nil, fmt.Errorf("synchronizer: %w", err)
	}

	exporter, err := export.New(ctx, cfg.Export, component(log, "export"))
	if err != nil {
		return nil, fmt.Errorf("exporter: %w", err)
	}

	a.addCloser(exporter)

	a.worker = worker.New(a.synchronizer, exporter, a.client, component(log, "worker"),
		worker.WithCheckpointer(a.synchronizer))

	ok = true

	return a, nil
}

func (a *App) addCloser(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

func component(log logger.Logger, name string) logger.Logger {
	return logger.FromZerolog(log.WithComponent(name))
}

// Worker returns the worker driving the passes.
func (a *App) Worker() *worker.Worker {
	return a.worker
}

func (a *App) Synchronizer() *feed.Synchronizer {
	return a.synchronizer
}

// RunOnce performs exactly one pass and returns after the worker exits.
func (a *App) RunOnce(ctx context.Context) error {
	if err := a.worker.StartOnce(ctx); err != nil {
		return err
	}

	select {
	case <-a.worker.Started():
	case <-a.worker.Done():
	}

	a.worker.Shutdown()
	a.worker.Wait()

	return ctx.Err()
}

// RunContinuous runs passes until ctx ends or a shutdown signal arrives,
// then waits for the pass in progress.
func (a *App) RunContinuous(ctx context.Context) error {
	timeout := a.cfg.ShutdownTimeout.Std()
	if timeout <= 0 {
		timeout = time.Minute
	}

	return lifecycle.Run(ctx, &lifecycle.RunOptions{
		ServiceName:     serviceName,
		Service:         a.worker,
		Logger:          a.logger,
		ShutdownTimeout: timeout,
	})
}

// Run picks RunOnce or RunContinuous from the configuration.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Continuous {
		return a.RunContinuous(ctx)
	}

	return a.RunOnce(ctx)
}

// Close releases the exporter, checkpoint store and metric registration.
// The platform client is closed by the worker.
func (a *App) Close() error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.closers = nil

	return errors.Join(errs...)
}
