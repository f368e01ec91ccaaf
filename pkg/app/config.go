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

package app

import (
	"errors"
	"time"

	"github.com/carverauto/fleetfeed/pkg/checkpoint"
	"github.com/carverauto/fleetfeed/pkg/export"
	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/geotab"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
)

var (
	errMissingServer   = errors.New("server is required")
	errMissingDatabase = errors.New("database is required")
	errMissingUser     = errors.New("user is required")
	errMissingPassword = errors.New("password is required")
	errNegativeReload  = errors.New("reload_interval must not be negative")
)

// Tokens are the initial feed versions, one per feed type.
type Tokens struct {
	LogRecord      string `json:"log_record,omitempty"`
	StatusData     string `json:"status_data,omitempty"`
	FaultData      string `json:"fault_data,omitempty"`
	Trip           string `json:"trip,omitempty"`
	ExceptionEvent string `json:"exception_event,omitempty"`
}

func (t Tokens) Map() map[models.FeedType]string {
	return map[models.FeedType]string{
		models.FeedLogRecord:      t.LogRecord,
		models.FeedStatusData:     t.StatusData,
		models.FeedFaultData:      t.FaultData,
		models.FeedTrip:           t.Trip,
		models.FeedExceptionEvent: t.ExceptionEvent,
	}
}

// BackoffConfig overrides the per-class sleeps. Unset fields keep the defaults.
type BackoffConfig struct {
	DBUnavailable *models.Duration `json:"db_unavailable,omitempty"`
	OverLimit     *models.Duration `json:"over_limit,omitempty"`
	Transport     *models.Duration `json:"transport,omitempty"`
	Other         *models.Duration `json:"other,omitempty"`
}

func (b BackoffConfig) resolve() feed.Backoff {
	out := feed.DefaultBackoff()

	pick := func(dst *time.Duration, v *models.Duration) {
		if v != nil {
			*dst = v.Std()
		}
	}

	pick(&out.DBUnavailable, b.DBUnavailable)
	pick(&out.OverLimit, b.OverLimit)
	pick(&out.Transport, b.Transport)
	pick(&out.Other, b.Other)

	return out
}

type CircuitBreakerConfig struct {
	FailureThreshold int             `json:"failure_threshold"`
	SuccessThreshold int             `json:"success_threshold"`
	Timeout          models.Duration `json:"timeout"`
	ResetTimeout     models.Duration `json:"reset_timeout"`
}

// Config is the fleetfeed configuration document.
type Config struct {
	Server          string                `json:"server"`
	Database        string                `json:"database"`
	User            string                `json:"user"`
	Password        string                `json:"password"`
	Tokens          Tokens                `json:"tokens"`
	Continuous      bool                  `json:"continuous"`
	ReloadInterval  models.Duration       `json:"reload_interval,omitempty"`
	RequestTimeout  models.Duration       `json:"request_timeout,omitempty"`
	ShutdownTimeout models.Duration       `json:"shutdown_timeout,omitempty"`
	Backoff         BackoffConfig         `json:"backoff"`
	CircuitBreaker  *CircuitBreakerConfig `json:"circuit_breaker,omitempty"`
	Export          export.Config         `json:"export"`
	Checkpoint      checkpoint.Config     `json:"checkpoint"`
	Logging         *logger.Config        `json:"logging,omitempty"`
}

func (c *Config) Validate() error {
	switch {
	case c.Server == "":
		return errMissingServer
	case c.Database == "":
		return errMissingDatabase
	case c.User == "":
		return errMissingUser
	case c.Password == "":
		return errMissingPassword
	case c.ReloadInterval < 0:
		return errNegativeReload
	}

	if err := c.Export.Validate(); err != nil {
		return err
	}

	return c.Checkpoint.Validate()
}

func (c *Config) geotabConfig() geotab.Config {
	cfg := geotab.Config{
		Server:   c.Server,
		Database: c.Database,
		User:     c.User,
		Password: c.Password,
		Timeout:  c.RequestTimeout.Std(),
	}

	if cb := c.CircuitBreaker; cb != nil {
		cfg.CircuitBreaker = geotab.CircuitBreakerConfig{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          cb.Timeout.Std(),
			ResetTimeout:     cb.ResetTimeout.Std(),
		}
	}

	return cfg
}
