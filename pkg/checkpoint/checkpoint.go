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

// Package checkpoint persists the cursor set between runs.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
)

var (
	errUnknownType     = errors.New("unknown checkpoint store type")
	errMissingPath     = errors.New("checkpoint path is required")
	errMissingPostgres = errors.New("postgres settings are required")
	errMissingHost     = errors.New("postgres host is required")
	errMissingDatabase = errors.New("postgres database is required")
)

// Store loads and saves feed cursors.
type Store interface {
	Load(ctx context.Context) (map[models.FeedType]string, error)
	Save(ctx context.Context, cursors map[models.FeedType]string) error
}

// Type selects a Store implementation.
type Type string

const (
	TypeNone     Type = ""
	TypeFile     Type = "file"
	TypePostgres Type = "postgres"
)

// Config selects the checkpoint store. An empty type disables checkpoints.
type Config struct {
	Type     Type            `json:"type,omitempty"`
	Path     string          `json:"path,omitempty"`
	Postgres *PostgresConfig `json:"postgres,omitempty"`
}

func (c *Config) Validate() error {
	switch c.Type {
	case TypeNone:
		return nil
	case TypeFile:
		if c.Path == "" {
			return errMissingPath
		}

		return nil
	case TypePostgres:
		if c.Postgres == nil {
			return errMissingPostgres
		}

		return c.Postgres.Validate()
	default:
		return fmt.Errorf("%w: %q", errUnknownType, c.Type)
	}
}

// Open builds the configured store. It returns nil when checkpoints are
// disabled. Stores holding a connection also implement io.Closer.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeFile:
		return NewFileStore(cfg.Path), nil
	case TypePostgres:
		pool, err := NewPool(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, err
		}

		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()

			return nil, err
		}

		store.closer = pool.Close

		return store, nil
	case TypeNone:
	}

	return nil, nil
}

// Merge overlays explicit tokens on stored ones. Empty explicit tokens do
// not replace a stored value.
func Merge(stored, explicit map[models.FeedType]string) map[models.FeedType]string {
	out := make(map[models.FeedType]string, len(models.FeedTypes()))

	for _, ft := range models.FeedTypes() {
		out[ft] = stored[ft]

		if token := explicit[ft]; token != "" {
			out[ft] = token
		}
	}

	return out
}

func keyToFeedType() map[string]models.FeedType {
	m := make(map[string]models.FeedType, len(models.FeedTypes()))
	for _, ft := range models.FeedTypes() {
		m[ft.Key()] = ft
	}

	return m
}
