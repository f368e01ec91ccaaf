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
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carverauto/fleetfeed/pkg/app"
	"github.com/carverauto/fleetfeed/pkg/config"
	"github.com/carverauto/fleetfeed/pkg/export"
	"github.com/carverauto/fleetfeed/pkg/lifecycle"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/metrics"
	"github.com/carverauto/fleetfeed/pkg/version"
)

const metricsShutdownTimeout = 5 * time.Second

// options holds the command-line flags. Flags that were set explicitly
// override the values loaded from the config file or environment.
type options struct {
	configPath string

	server   string
	database string
	user     string
	password string

	gpsToken       string
	statusToken    string
	faultToken     string
	tripToken      string
	exceptionToken string

	exportType string
	output     string
	continuous bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:               "fleetfeed",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Incremental telemetry feed sync for Geotab fleets",
		Long: `fleetfeed pulls GPS logs, status data, faults and trips from a Geotab
database through the data feed API, resolves their reference entities and
hands each pass to an exporter (console, csv or nats).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd, opts)
		},
	}

	opts.bind(cmd)
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (o *options) bind(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringVar(&o.configPath, "config", "", "Path to a JSON config file")
	flags.StringVarP(&o.server, "server", "s", "", "Geotab server, e.g. my.geotab.com")
	flags.StringVarP(&o.database, "database", "d", "", "Geotab database name")
	flags.StringVarP(&o.user, "user", "u", "", "Geotab user name")
	flags.StringVarP(&o.password, "password", "p", "", "Geotab password")
	flags.StringVar(&o.gpsToken, "gps-token", "", "Initial LogRecord feed version")
	flags.StringVar(&o.statusToken, "status-token", "", "Initial StatusData feed version")
	flags.StringVar(&o.faultToken, "fault-token", "", "Initial FaultData feed version")
	flags.StringVar(&o.tripToken, "trip-token", "", "Initial Trip feed version")
	flags.StringVar(&o.exceptionToken, "exception-token", "", "Initial ExceptionEvent feed version")
	flags.StringVar(&o.exportType, "export", "", "Exporter: console, csv or nats")
	flags.StringVarP(&o.output, "output", "f", "", "Output directory for the csv exporter")
	flags.BoolVarP(&o.continuous, "continuous", "c", false, "Keep pulling until interrupted")
}

// apply copies every explicitly set flag onto cfg.
func (o *options) apply(cmd *cobra.Command, cfg *app.Config) {
	flags := cmd.Flags()

	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}

	set("server", &cfg.Server, o.server)
	set("database", &cfg.Database, o.database)
	set("user", &cfg.User, o.user)
	set("password", &cfg.Password, o.password)
	set("gps-token", &cfg.Tokens.LogRecord, o.gpsToken)
	set("status-token", &cfg.Tokens.StatusData, o.statusToken)
	set("fault-token", &cfg.Tokens.FaultData, o.faultToken)
	set("trip-token", &cfg.Tokens.Trip, o.tripToken)
	set("exception-token", &cfg.Tokens.ExceptionEvent, o.exceptionToken)
	set("output", &cfg.Export.OutputDir, o.output)

	if flags.Changed("export") {
		cfg.Export.Type = export.Type(o.exportType)
	}

	if flags.Changed("continuous") {
		cfg.Continuous = o.continuous
	}
}

// loadConfig reads the config file (or environment, per CONFIG_SOURCE),
// applies flag overrides and validates the result.
func loadConfig(ctx context.Context, cmd *cobra.Command, opts *options, log logger.Logger) (*app.Config, error) {
	var cfg app.Config

	if err := config.NewConfig(log).Load(ctx, opts.configPath, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	opts.apply(cmd, &cfg)

	if err := config.ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loggingConfig keeps log lines off standard output unless asked otherwise,
// since the console exporter writes there.
func loggingConfig(cfg *app.Config) *logger.Config {
	if cfg.Logging != nil {
		if cfg.Logging.OTel == nil {
			cfg.Logging.OTel = logger.DefaultOTelConfig()
		}

		return cfg.Logging
	}

	lc := logger.DefaultConfig()
	if os.Getenv("LOG_OUTPUT") == "" {
		lc.Output = "stderr"
	}

	return lc
}

// initMetrics starts the OTLP metrics pipeline when one is configured and
// returns the app option that routes instruments to it. The returned
// shutdown flushes the last export.
func initMetrics(ctx context.Context, lc *logger.Config, log logger.Logger) ([]app.Option, func(), error) {
	provider, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceVersion: version.Get().Version,
		OTel:           lc.OTel,
	})
	if errors.Is(err, logger.ErrOTelMetricsDisabled) {
		return nil, func() {}, nil
	}

	if err != nil {
		return nil, nil, fmt.Errorf("initialize metrics: %w", err)
	}

	log.Info().Str("endpoint", lc.OTel.Endpoint).Msg("Exporting metrics over OTLP")

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		if err := provider.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush metrics")
		}
	}

	return []app.Option{app.WithMeter(provider.Meter(metrics.MeterName))}, shutdown, nil
}

func run(ctx context.Context, cmd *cobra.Command, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	boot, err := lifecycle.CreateLogger(&logger.Config{Level: "info", Output: "stderr"})
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx, cmd, opts, boot)
	if err != nil {
		return err
	}

	if cfg.Export.Writer == nil {
		cfg.Export.Writer = cmd.OutOrStdout()
	}

	lc := loggingConfig(cfg)

	log, err := lifecycle.CreateLogger(lc)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	buildOpts, shutdownMetrics, err := initMetrics(ctx, lc, log)
	if err != nil {
		return err
	}

	defer shutdownMetrics()

	a, err := app.Build(ctx, cfg, log, buildOpts...)
	if err != nil {
		return err
	}

	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to release resources")
		}
	}()

	if !cfg.Continuous {
		defer holdSignals(log)()
	}

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// holdSignals keeps SIGINT and SIGTERM from killing a one-shot run while
// its single pass is in flight; shutdown has already been requested.
func holdSignals(log logger.Logger) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigCh:
				log.Info().Str("signal", sig.String()).Msg("Waiting for the current pass to finish")
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}

			info := version.Get()

			if format == "json" {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))

				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "fleetfeed", info.String())

			return err
		},
	}

	cmd.Flags().String("format", "", "Output format (json)")

	return cmd
}
