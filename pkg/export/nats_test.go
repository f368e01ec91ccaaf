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

package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJetStreamServer(t *testing.T, configure ...func(*server.Options)) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	for _, fn := range configure {
		fn(opts)
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	t.Cleanup(srv.Shutdown)

	return srv
}

func openStream(t *testing.T, url, name string) jetstream.Stream {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	stream, err := js.Stream(context.Background(), name)
	require.NoError(t, err)

	return stream
}

func streamMsgs(t *testing.T, stream jetstream.Stream) uint64 {
	t.Helper()

	info, err := stream.Info(context.Background())
	require.NoError(t, err)

	return info.State.Msgs
}

func TestNATSExporterPublishesEvents(t *testing.T) {
	srv := runJetStreamServer(t)
	ctx := context.Background()

	e, err := NewNATSExporter(ctx, NATSConfig{URL: srv.ClientURL(), Stream: "TELEMETRY", SubjectPrefix: "fleet"},
		logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = e.Close() }()

	e.now = func() time.Time { return testTime }

	result := testResult()
	require.NoError(t, e.Export(ctx, result))

	stream := openStream(t, srv.ClientURL(), "TELEMETRY")
	assert.Equal(t, uint64(result.Len()), streamMsgs(t, stream))

	msg, err := stream.GetMsg(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fleet.log_record", msg.Subject)
	assert.Equal(t, "LogRecord:l1", msg.Header.Get(nats.MsgIdHdr))

	var event struct {
		Event
		Data models.LogRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "LogRecord:l1", event.ID)
	assert.Equal(t, "com.carverauto.fleetfeed.log_record", event.Type)
	assert.Equal(t, "G9A1B2C3D4", event.Data.Device.SerialNumber)
	assert.True(t, testTime.Equal(event.Time))

	last, err := stream.GetLastMsgForSubject(ctx, "fleet.trip")
	require.NoError(t, err)
	assert.Equal(t, "Trip:t1", last.Header.Get(nats.MsgIdHdr))
}

func TestNATSExporterDeduplicatesReplayedRecords(t *testing.T) {
	srv := runJetStreamServer(t)
	ctx := context.Background()

	e, err := NewNATSExporter(ctx, NATSConfig{URL: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = e.Close() }()

	result := &feed.Result{FaultData: testResult().FaultData}
	require.NoError(t, e.Export(ctx, result))
	require.NoError(t, e.Export(ctx, result))

	stream := openStream(t, srv.ClientURL(), defaultStream)
	assert.Equal(t, uint64(1), streamMsgs(t, stream))
	assert.Equal(t, "fleetfeed.fault_data", e.Subject(models.FeedFaultData))
}

func TestNATSExporterRecordsWithoutIDAreNotDeduplicated(t *testing.T) {
	srv := runJetStreamServer(t)
	ctx := context.Background()

	e, err := NewNATSExporter(ctx, NATSConfig{URL: srv.ClientURL()}, logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = e.Close() }()

	result := &feed.Result{Trips: []*models.Trip{{Device: models.NoDevice, Driver: models.NoDriver}}}
	require.NoError(t, e.Export(ctx, result))
	require.NoError(t, e.Export(ctx, result))
	require.NoError(t, e.Export(ctx, &feed.Result{}))

	assert.Equal(t, uint64(2), streamMsgs(t, openStream(t, srv.ClientURL(), defaultStream)))
}

func TestNATSConfigValidate(t *testing.T) {
	cfg := NATSConfig{}
	require.ErrorIs(t, cfg.Validate(), errMissingNATSURL)

	cfg = NATSConfig{URL: "nats://127.0.0.1:4222", TLS: &TLSConfig{CertFile: "client.pem"}}
	require.ErrorIs(t, cfg.Validate(), errIncompleteTLS)

	cfg.TLS = nil
	require.NoError(t, cfg.Validate())
}

func TestNewNATSExporterConnectionFailure(t *testing.T) {
	_, err := NewNATSExporter(context.Background(), NATSConfig{URL: "nats://127.0.0.1:1"}, logger.NewTestLogger())
	require.Error(t, err)
}

func writeSeed(t *testing.T, kp nkeys.KeyPair) string {
	t.Helper()

	seed, err := kp.Seed()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "user.nk")
	require.NoError(t, os.WriteFile(path, append(seed, '\n'), 0o600))

	return path
}

func TestNATSExporterNKeyAuthentication(t *testing.T) {
	user, err := nkeys.CreateUser()
	require.NoError(t, err)

	pub, err := user.PublicKey()
	require.NoError(t, err)

	srv := runJetStreamServer(t, func(o *server.Options) {
		o.Nkeys = []*server.NkeyUser{{Nkey: pub}}
	})
	ctx := context.Background()

	_, err = NewNATSExporter(ctx, NATSConfig{URL: srv.ClientURL()}, logger.NewTestLogger())
	require.Error(t, err, "anonymous connect must be rejected")

	e, err := NewNATSExporter(ctx, NATSConfig{URL: srv.ClientURL(), NKeySeedFile: writeSeed(t, user)},
		logger.NewTestLogger())
	require.NoError(t, err)

	defer func() { _ = e.Close() }()

	require.NoError(t, e.Export(ctx, testResult()))
}

func TestNKeyOptionRejectsNonUserSeed(t *testing.T) {
	account, err := nkeys.CreateAccount()
	require.NoError(t, err)

	_, err = nkeyOption(writeSeed(t, account))
	require.ErrorIs(t, err, errNotUserSeed)

	path := filepath.Join(t.TempDir(), "garbage.nk")
	require.NoError(t, os.WriteFile(path, []byte("not-a-seed"), 0o600))

	_, err = nkeyOption(path)
	require.Error(t, err)
}

func TestNATSConfigRejectsTwoAuthMethods(t *testing.T) {
	cfg := NATSConfig{URL: "nats://127.0.0.1:4222", CredsFile: "a.creds", NKeySeedFile: "a.nk"}
	require.ErrorIs(t, cfg.Validate(), errAuthConflict)
}
