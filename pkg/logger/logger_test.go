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

package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "warn"}, &buf)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("feed_type", "LogRecord").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "LogRecord", entry["feed_type"])
}

func TestNewWithWriterInvalidLevel(t *testing.T) {
	_, err := NewWithWriter(&Config{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "info"}, &buf)
	require.NoError(t, err)

	log.Debug().Msg("before")
	assert.Empty(t, buf.String())

	log.SetDebug(true)
	log.Debug().Msg("after")
	assert.Contains(t, buf.String(), "after")

	log.SetDebug(false)
	buf.Reset()
	log.Debug().Msg("again")
	assert.Empty(t, buf.String())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer

	log, err := NewWithWriter(&Config{Level: "info"}, &buf)
	require.NoError(t, err)

	FromZerolog(log.WithComponent("synchronizer")).Info().Msg("pass")
	assert.Contains(t, buf.String(), `"component":"synchronizer"`)
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG", "yes")
	t.Setenv("LOG_OUTPUT", "stderr")

	cfg := DefaultConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestNewTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()
	log.Error().Msg("nothing")
	log.SetLevel(zerolog.DebugLevel)
	assert.NotNil(t, log.With())
}
