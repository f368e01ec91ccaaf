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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetfeed/pkg/app"
	"github.com/carverauto/fleetfeed/pkg/export"
	"github.com/carverauto/fleetfeed/pkg/logger"
)

func parse(t *testing.T, args ...string) (*cobra.Command, *options) {
	t.Helper()

	opts := &options{}
	cmd := &cobra.Command{Use: "fleetfeed"}
	opts.bind(cmd)

	require.NoError(t, cmd.ParseFlags(args))

	return cmd, opts
}

func writeConfig(t *testing.T, v interface{}) string {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fleetfeed.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeConfig(t, map[string]interface{}{
		"server":   "my.geotab.com",
		"database": "fleet",
		"user":     "ops",
		"password": "from-file",
		"tokens":   map[string]string{"trip": "t0", "fault_data": "f0"},
		"export":   map[string]string{"type": "console"},
	})

	cmd, opts := parse(t,
		"--config", path,
		"-s", "other.geotab.com",
		"--trip-token", "t9",
		"--export", "csv",
		"-f", "/tmp/out",
		"-c",
	)

	cfg, err := loadConfig(context.Background(), cmd, opts, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "other.geotab.com", cfg.Server)
	assert.Equal(t, "fleet", cfg.Database)
	assert.Equal(t, "from-file", cfg.Password)
	assert.Equal(t, "t9", cfg.Tokens.Trip)
	assert.Equal(t, "f0", cfg.Tokens.FaultData)
	assert.Equal(t, export.TypeCSV, cfg.Export.Type)
	assert.Equal(t, "/tmp/out", cfg.Export.OutputDir)
	assert.True(t, cfg.Continuous)
}

func TestLoadConfigFromFlagsOnly(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cmd, opts := parse(t, "-s", "my.geotab.com", "-d", "fleet", "-u", "ops", "-p", "secret", "--gps-token", "g1")

	cfg, err := loadConfig(context.Background(), cmd, opts, logger.NewTestLogger())
	require.NoError(t, err)

	assert.Equal(t, "g1", cfg.Tokens.LogRecord)
	assert.False(t, cfg.Continuous)
}

func TestLoadConfigRequiresPassword(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cmd, opts := parse(t, "-s", "my.geotab.com", "-d", "fleet", "-u", "ops")

	_, err := loadConfig(context.Background(), cmd, opts, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestLoadConfigRejectsUnknownExporter(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cmd, opts := parse(t, "-s", "a", "-d", "b", "-u", "c", "-p", "d", "--export", "kafka")

	_, err := loadConfig(context.Background(), cmd, opts, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka")
}

func TestLoggingConfigDefaultsToStderr(t *testing.T) {
	t.Setenv("LOG_OUTPUT", "")

	lc := loggingConfig(&app.Config{})
	assert.Equal(t, "stderr", lc.Output)

	t.Setenv("LOG_OUTPUT", "stdout")

	lc = loggingConfig(&app.Config{})
	assert.Equal(t, "stdout", lc.Output)
}

func TestLoggingConfigFillsOTelFromEnv(t *testing.T) {
	t.Setenv("OTEL_METRICS_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "otel-collector:4317")

	lc := loggingConfig(&app.Config{Logging: &logger.Config{Level: "warn"}})
	require.NotNil(t, lc.OTel)
	assert.True(t, lc.OTel.Enabled)
	assert.Equal(t, "otel-collector:4317", lc.OTel.Endpoint)
	assert.Equal(t, "warn", lc.Level)
}

func TestInitMetrics(t *testing.T) {
	opts, shutdown, err := initMetrics(context.Background(), &logger.Config{}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Empty(t, opts)
	shutdown()

	lc := &logger.Config{OTel: &logger.OTelConfig{Enabled: true, Endpoint: "127.0.0.1:4317", Insecure: true}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	opts, shutdown, err = initMetrics(ctx, lc, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Len(t, opts, 1)
	shutdown()
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--format", "json"})

	require.NoError(t, cmd.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["go_version"])
}

// emptyFeed answers authentication and returns no records for every feed.
type emptyFeed struct {
	mu      sync.Mutex
	methods map[string]int
}

func (e *emptyFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var call struct {
		Method string `json:"method"`
		Params struct {
			TypeName string `json:"typeName"`
		} `json:"params"`
	}

	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	e.mu.Lock()
	e.methods[call.Method]++
	e.mu.Unlock()

	var result interface{}

	switch call.Method {
	case "Authenticate":
		result = map[string]interface{}{
			"credentials": map[string]string{"database": "fleet", "userName": "ops", "sessionId": "s1"},
			"path":        "ThisServer",
		}
	case "Get":
		result = []interface{}{}
	case "GetFeed":
		result = map[string]interface{}{"data": []interface{}{}, "toVersion": call.Params.TypeName + "-1"}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
}

func TestRootCommandRunsOnePass(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")
	t.Setenv("OTEL_METRICS_ENABLED", "")
	t.Setenv("LOG_OUTPUT", "")

	feed := &emptyFeed{methods: map[string]int{}}
	srv := httptest.NewServer(feed)
	defer srv.Close()

	cmd := newRootCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-s", srv.URL, "-d", "fleet", "-u", "ops", "-p", "secret"})

	require.NoError(t, cmd.ExecuteContext(context.Background()))

	feed.mu.Lock()
	defer feed.mu.Unlock()

	assert.Equal(t, 1, feed.methods["Authenticate"])
	assert.Equal(t, 4, feed.methods["GetFeed"])
	assert.Empty(t, strings.TrimSpace(out.String()))
}
