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

// Package worker drives synchronization passes on a background goroutine
// and hands every result to an exporter.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/google/uuid"
)

//go:generate mockgen -destination=mock_worker.go -package=worker github.com/carverauto/fleetfeed/pkg/worker Syncer,Exporter,Checkpointer

var (
	errAlreadyStarted = errors.New("worker already started")
	errIterationPanic = errors.New("iteration panicked")
)

// Syncer runs one synchronization pass.
type Syncer interface {
	Sync(ctx context.Context) *feed.Result
}

// Exporter receives the result of every pass.
type Exporter interface {
	Export(ctx context.Context, result *feed.Result) error
}

// Checkpointer persists the synchronizer's cursors. It is called only after
// a pass has been exported successfully.
type Checkpointer interface {
	Checkpoint(ctx context.Context)
}

// Option configures a Worker.
type Option func(*Worker)

// WithMaxPasses ends the loop after n iterations. Zero means no limit.
func WithMaxPasses(n int64) Option {
	return func(w *Worker) {
		w.maxPasses = n
	}
}

// WithCheckpointer saves cursors after every successfully exported pass.
func WithCheckpointer(c Checkpointer) Option {
	return func(w *Worker) {
		w.checkpointer = c
	}
}

// Worker repeatedly syncs and exports until Shutdown is called or the
// context passed to Start is cancelled. The iteration in progress always
// completes; the platform connection is closed exactly once on exit.
type Worker struct {
	syncer   Syncer
	exporter Exporter
	conn     io.Closer
	logger   logger.Logger
	runID    string

	checkpointer Checkpointer
	maxPasses    int64

	stopRequested atomic.Bool
	processing    atomic.Bool
	passes        atomic.Int64

	startOnce   sync.Once
	startedOnce sync.Once
	closeOnce   sync.Once
	started     chan struct{}
	done        chan struct{}
}

// New creates a Worker. conn may be nil when there is nothing to release.
func New(syncer Syncer, exporter Exporter, conn io.Closer, log logger.Logger, opts ...Option) *Worker {
	w := &Worker{
		syncer:   syncer,
		exporter: exporter,
		conn:     conn,
		logger:   log,
		runID:    uuid.NewString(),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start launches the loop. It returns an error if called more than once.
func (w *Worker) Start(ctx context.Context) error {
	return w.start(ctx, w.maxPasses)
}

// StartOnce launches the loop limited to a single iteration, whatever
// WithMaxPasses said. Shutdown is not needed to end it.
func (w *Worker) StartOnce(ctx context.Context) error {
	return w.start(ctx, 1)
}

func (w *Worker) start(ctx context.Context, maxPasses int64) error {
	err := errAlreadyStarted

	w.startOnce.Do(func() {
		err = nil
		w.maxPasses = maxPasses

		go w.run(ctx)
	})

	return err
}

// Shutdown asks the loop to exit after the current iteration.
func (w *Worker) Shutdown() {
	if !w.stopRequested.Swap(true) {
		w.logger.Info().Str("run_id", w.runID).Msg("Feed worker shutdown requested")
	}
}

// Stop requests shutdown and waits for the loop to exit or ctx to end.
func (w *Worker) Stop(ctx context.Context) error {
	w.Shutdown()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsProcessing reports whether the loop has begun its first iteration and
// has not yet exited.
func (w *Worker) IsProcessing() bool {
	return w.processing.Load()
}

// Started is closed when the first iteration begins. It stays open if the
// loop exits before iterating.
func (w *Worker) Started() <-chan struct{} {
	return w.started
}

// Done is closed after the loop has exited and the connection is released.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the loop has exited.
func (w *Worker) Wait() {
	<-w.done
}

// Passes returns the number of completed iterations.
func (w *Worker) Passes() int64 {
	return w.passes.Load()
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	defer w.processing.Store(false)
	defer w.release()

	w.logger.Info().Str("run_id", w.runID).Msg("Feed worker started")

	for !w.stopRequested.Load() && ctx.Err() == nil {
		w.processing.Store(true)
		w.startedOnce.Do(func() { close(w.started) })

		if err := w.iterate(ctx); err != nil {
			w.logger.Error().
				Err(err).
				Str("run_id", w.runID).
				Msg("Worker exception while processing")
		}

		if n := w.passes.Add(1); w.maxPasses > 0 && n >= w.maxPasses {
			break
		}
	}

	w.logger.Info().
		Str("run_id", w.runID).
		Int64("passes", w.passes.Load()).
		Msg("Feed worker stopped")
}

// iterate runs one sync and export, then checkpoints the cursors. A panic
// anywhere is reported as an error so the loop keeps going.
func (w *Worker) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errIterationPanic, r)
		}
	}()

	result := w.syncer.Sync(ctx)

	if err := w.exporter.Export(ctx, result); err != nil {
		return fmt.Errorf("export %d records: %w", result.Len(), err)
	}

	if w.checkpointer != nil {
		w.checkpointer.Checkpoint(ctx)
	}

	return nil
}

func (w *Worker) release() {
	w.closeOnce.Do(func() {
		if w.conn == nil {
			return
		}

		if err := w.conn.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing platform connection")
		}
	})
}
