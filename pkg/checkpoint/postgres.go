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

package checkpoint

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPort    = 5432
	defaultSSLMode = "disable"
	applicationTag = "fleetfeed"
)

const createCursorsTable = `
CREATE TABLE IF NOT EXISTS fleetfeed_cursors (
	feed_type  TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertCursor = `
INSERT INTO fleetfeed_cursors (feed_type, token, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (feed_type) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`

const selectCursors = `SELECT feed_type, token FROM fleetfeed_cursors`

// PostgresConfig describes the database holding the cursor table.
type PostgresConfig struct {
	Host             string          `json:"host"`
	Port             int             `json:"port,omitempty"`
	Database         string          `json:"database"`
	Username         string          `json:"username,omitempty"`
	Password         string          `json:"password,omitempty"`
	SSLMode          string          `json:"ssl_mode,omitempty"`
	SSLRootCert      string          `json:"ssl_root_cert,omitempty"`
	MaxConnections   int32           `json:"max_connections,omitempty"`
	MaxConnLifetime  models.Duration `json:"max_conn_lifetime,omitempty"`
	StatementTimeout models.Duration `json:"statement_timeout,omitempty"`
}

func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return errMissingHost
	}

	if c.Database == "" {
		return errMissingDatabase
	}

	return nil
}

func buildConnURL(cfg *PostgresConfig) *url.URL {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	connURL := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	query.Set("sslmode", sslMode)
	query.Set("application_name", applicationTag)

	if cfg.SSLRootCert != "" {
		query.Set("sslrootcert", cfg.SSLRootCert)
	}

	connURL.RawQuery = query.Encode()

	return connURL
}

// NewPool dials the database and returns a pgx pool.
func NewPool(ctx context.Context, cfg *PostgresConfig, log logger.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(buildConnURL(cfg).String())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = time.Duration(cfg.MaxConnLifetime)
	}

	if cfg.StatementTimeout > 0 {
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
		}

		ms := time.Duration(cfg.StatementTimeout) / time.Millisecond
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(int64(ms), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to initialize pool: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to checkpoint database")

	return pool, nil
}

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps one row per feed type in fleetfeed_cursors.
type PostgresStore struct {
	db     DB
	now    func() time.Time
	closer func()
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the cursor table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createCursorsTable); err != nil {
		return fmt.Errorf("create fleetfeed_cursors: %w", err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (map[models.FeedType]string, error) {
	rows, err := s.db.Query(ctx, selectCursors)
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	byKey := keyToFeedType()
	out := make(map[models.FeedType]string)

	for rows.Next() {
		var key, token string
		if err := rows.Scan(&key, &token); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}

		if ft, ok := byKey[key]; ok {
			out[ft] = token
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cursors: %w", err)
	}

	return out, nil
}

// Save upserts every non-empty token.
func (s *PostgresStore) Save(ctx context.Context, cursors map[models.FeedType]string) error {
	now := s.now().UTC()

	for _, ft := range models.FeedTypes() {
		token := cursors[ft]
		if token == "" {
			continue
		}

		if _, err := s.db.Exec(ctx, upsertCursor, ft.Key(), token, now); err != nil {
			return fmt.Errorf("save %s cursor: %w", ft, err)
		}
	}

	return nil
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closer != nil {
		s.closer()
		s.closer = nil
	}

	return nil
}
