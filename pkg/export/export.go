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

// Package export writes synchronization results to the console, CSV files
// or a NATS JetStream stream.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/logger"
)

// Exporter receives the enriched records of every pass.
type Exporter interface {
	Export(ctx context.Context, result *feed.Result) error
}

// Type selects an exporter implementation.
type Type string

const (
	TypeConsole Type = "console"
	TypeCSV     Type = "csv"
	TypeNATS    Type = "nats"
)

var errUnknownType = errors.New("unknown exporter type")

// Config selects and configures the exporter.
type Config struct {
	Type      Type       `json:"type"`
	OutputDir string     `json:"output_dir,omitempty"`
	NATS      NATSConfig `json:"nats"`

	// Writer receives console output. Defaults to standard output.
	Writer io.Writer `json:"-"`
}

// Validate checks the exporter type and its settings.
func (c *Config) Validate() error {
	switch c.Type {
	case "", TypeConsole, TypeCSV:
		return nil
	case TypeNATS:
		return c.NATS.Validate()
	default:
		return fmt.Errorf("%w: %q", errUnknownType, c.Type)
	}
}

// New builds the exporter named by cfg.Type. Exporters holding a connection
// also implement io.Closer.
func New(ctx context.Context, cfg Config, log logger.Logger) (Exporter, error) {
	switch cfg.Type {
	case "", TypeConsole:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}

		return NewConsoleExporter(w), nil
	case TypeCSV:
		return NewCSVExporter(cfg.OutputDir, log)
	case TypeNATS:
		return NewNATSExporter(ctx, cfg.NATS, log)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, cfg.Type)
	}
}
