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

package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/fleetfeed/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

var errShutdownTimeout = errors.New("timed out waiting for service to stop")

// Service is a long-running component driven by Run.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Done is closed once the service has stopped on its own.
	Done() <-chan struct{}
}

// RunOptions configures Run.
type RunOptions struct {
	ServiceName     string
	Service         Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
	// Signals defaults to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run starts the service and blocks until it finishes by itself, the context
// is cancelled, or a shutdown signal arrives. In the latter two cases the
// service is asked to stop and given ShutdownTimeout to do so.
func Run(ctx context.Context, opts *RunOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	if err := opts.Service.Start(ctx); err != nil {
		return err
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	select {
	case <-opts.Service.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Service finished")

		return nil
	case sig := <-sigCh:
		log.Info().Str("service", opts.ServiceName).Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Context cancelled, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := opts.Service.Stop(stopCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errShutdownTimeout
		}

		return err
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return nil
}
