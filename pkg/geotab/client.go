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

// Package geotab is a JSON-RPC client for the fleet telemetry platform.
package geotab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/metrics"
	"github.com/carverauto/fleetfeed/pkg/models"
)

const (
	apiPath        = "/apiv1"
	thisServer     = "ThisServer"
	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 4096

	methodAuthenticate = "Authenticate"
	methodGet          = "Get"
	methodGetFeed      = "GetFeed"
)

// Config holds connection settings.
type Config struct {
	Server         string
	Database       string
	User           string
	Password       string
	Timeout        time.Duration
	CircuitBreaker CircuitBreakerConfig
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	switch {
	case c.Server == "":
		return errMissingServer
	case c.Database == "":
		return errMissingDatabase
	case c.User == "":
		return errMissingUser
	default:
		return nil
	}
}

// Metrics receives per-call measurements.
type Metrics interface {
	RecordAPICall(method string, duration time.Duration, err error)
	RecordCircuitBreakerStateChange(name, from, to string)
}

// Credentials identify an authenticated session.
type Credentials struct {
	Database  string `json:"database"`
	UserName  string `json:"userName"`
	SessionID string `json:"sessionId,omitempty"`
	Password  string `json:"password,omitempty"`
}

type options struct {
	httpClient HTTPClient
	metrics    Metrics
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*options)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock replaces time.Now in the circuit breaker.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Client talks to one platform database. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *CircuitBreakerHTTPClient
	base    HTTPClient
	metrics Metrics
	logger  logger.Logger

	mu          sync.RWMutex
	endpoint    string
	credentials *Credentials
	closed      bool
}

// NewClient creates an unauthenticated client. The first call authenticates.
func NewClient(cfg Config, log logger.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.CircuitBreaker.FailureThreshold <= 0 {
		cfg.CircuitBreaker = DefaultCircuitBreakerConfig()
	}

	o := &options{
		metrics: metrics.NoOp{},
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	breaker := NewCircuitBreaker("geotab", cfg.CircuitBreaker, log,
		WithBreakerClock(o.now),
		WithStateChangeHook(func(name string, from, to CircuitBreakerState) {
			o.metrics.RecordCircuitBreakerStateChange(name, from.String(), to.String())
		}),
	)

	return &Client{
		cfg:      cfg,
		http:     NewCircuitBreakerHTTPClient(o.httpClient, breaker),
		base:     o.httpClient,
		metrics:  o.metrics,
		logger:   log,
		endpoint: endpointFor(cfg.Server, ""),
	}, nil
}

// endpointFor builds the API URL for server. A bare host gets the scheme of
// origin, or https when origin has none.
func endpointFor(server, origin string) string {
	server = strings.TrimRight(server, "/")

	if strings.Contains(server, "://") {
		return strings.TrimSuffix(server, apiPath) + apiPath
	}

	scheme := "https"
	if i := strings.Index(origin, "://"); i > 0 {
		scheme = origin[:i]
	}

	return scheme + "://" + server + apiPath
}

type authenticateResult struct {
	Credentials Credentials `json:"credentials"`
	Path        string      `json:"path"`
}

// Authenticate opens a session and follows a server redirect if the
// platform returns one.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}

	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	params := map[string]interface{}{
		"database": c.cfg.Database,
		"userName": c.cfg.User,
		"password": c.cfg.Password,
	}

	var result authenticateResult
	if err := c.rpc(ctx, c.endpoint, methodAuthenticate, params, &result); err != nil {
		return fmt.Errorf("authenticate %s@%s: %w", c.cfg.User, c.cfg.Database, err)
	}

	if result.Path != "" && !strings.EqualFold(result.Path, thisServer) {
		next := endpointFor(result.Path, c.endpoint)
		if next != c.endpoint {
			c.logger.Info().
				Str("from", c.endpoint).
				Str("to", next).
				Msg("Following server redirect")

			c.endpoint = next
		}
	}

	creds := result.Credentials
	c.credentials = &creds

	c.logger.Info().
		Str("database", creds.Database).
		Str("user", creds.UserName).
		Msg("Authenticated")

	return nil
}

// session returns the endpoint and credentials, authenticating if needed.
func (c *Client) session(ctx context.Context, stale *Credentials) (string, *Credentials, error) {
	c.mu.RLock()
	endpoint, creds, closed := c.endpoint, c.credentials, c.closed
	c.mu.RUnlock()

	if closed {
		return "", nil, errClientClosed
	}

	if creds != nil && creds != stale {
		return endpoint, creds, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", nil, errClientClosed
	}

	// another caller may have authenticated while we waited
	if c.credentials != nil && c.credentials != stale {
		return c.endpoint, c.credentials, nil
	}

	if err := c.authenticateLocked(ctx); err != nil {
		return "", nil, err
	}

	return c.endpoint, c.credentials, nil
}

// call runs an authenticated method, re-authenticating once if the
// session has expired.
func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, result interface{}) error {
	var stale *Credentials

	for attempt := 0; ; attempt++ {
		endpoint, creds, err := c.session(ctx, stale)
		if err != nil {
			return err
		}

		params["credentials"] = creds

		err = c.rpc(ctx, endpoint, method, params, result)
		if err == nil || attempt > 0 || !errors.Is(err, ErrInvalidUser) {
			return err
		}

		c.logger.Warn().Str("method", method).Msg("Session expired, re-authenticating")

		stale = creds
	}
}

// Get returns entities of typeName matching search. A nil search returns
// every entity.
func (c *Client) Get(ctx context.Context, typeName string, search, result interface{}) error {
	params := map[string]interface{}{"typeName": typeName}
	if search != nil {
		params["search"] = search
	}

	return c.call(ctx, methodGet, params, result)
}

// GetFeed returns the records of feedType after fromVersion. An empty
// fromVersion reads from the beginning of the history the server retains.
func (c *Client) GetFeed(ctx context.Context, feedType models.FeedType, fromVersion string, result interface{}) error {
	params := map[string]interface{}{"typeName": string(feedType)}
	if fromVersion != "" {
		params["fromVersion"] = fromVersion
	}

	return c.call(ctx, methodGetFeed, params, result)
}

// Close drops the session. Later calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.credentials = nil

	if hc, ok := c.base.(*http.Client); ok {
		hc.CloseIdleConnections()
	}

	c.logger.Info().Msg("Platform client closed")

	return nil
}

// CircuitState reports the transport circuit breaker state.
func (c *Client) CircuitState() CircuitBreakerState {
	return c.http.CircuitBreaker().GetState()
}

type rpcRequest struct {
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Errors  []struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *rpcError) toAPIError(method string) *APIError {
	apiErr := &APIError{Method: method, Name: e.Name, Message: e.Message}

	if len(e.Errors) > 0 && e.Errors[0].Name != "" {
		apiErr.Name = e.Errors[0].Name

		if e.Errors[0].Message != "" {
			apiErr.Message = e.Errors[0].Message
		}
	}

	return apiErr
}

func (c *Client) rpc(ctx context.Context, endpoint, method string, params map[string]interface{}, result interface{}) (err error) {
	start := time.Now()

	defer func() {
		c.metrics.RecordAPICall(method, time.Since(start), err)
	}()

	body, err := json.Marshal(rpcRequest{Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &TransportError{
			Method: method,
			Err:    fmt.Errorf("%w: %d, response: %s", errUnexpectedStatusCode, resp.StatusCode, string(bodyBytes)),
		}
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if envelope.Error != nil {
		return envelope.Error.toAPIError(method)
	}

	if result == nil {
		return nil
	}

	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return fmt.Errorf("%s: %w", method, errEmptyResult)
	}

	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}

	return nil
}
