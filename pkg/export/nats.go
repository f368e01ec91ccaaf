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
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nkeys"
)

const (
	defaultStream        = "FLEETFEED"
	defaultSubjectPrefix = "fleetfeed"
	eventSource          = "fleetfeed/worker"
	eventTypePrefix      = "com.carverauto.fleetfeed."
	cloudEventsVersion   = "1.0"
)

var (
	errMissingNATSURL  = errors.New("nats url is required")
	errCAParsingFailed = errors.New("failed to parse CA certificate")
	errIncompleteTLS   = errors.New("tls requires cert_file, key_file and ca_file")
	errAuthConflict    = errors.New("creds_file and nkey_seed_file are mutually exclusive")
	errNotUserSeed     = errors.New("nkey seed is not a user seed")
)

// NATSConfig configures the JetStream exporter.
type NATSConfig struct {
	URL           string     `json:"url"`
	Stream        string     `json:"stream,omitempty"`
	SubjectPrefix string     `json:"subject_prefix,omitempty"`
	CredsFile     string     `json:"creds_file,omitempty"`
	NKeySeedFile  string     `json:"nkey_seed_file,omitempty"`
	TLS           *TLSConfig `json:"tls,omitempty"`
}

// TLSConfig holds client certificate paths for mutual TLS.
type TLSConfig struct {
	CertFile   string `json:"cert_file"`
	KeyFile    string `json:"key_file"`
	CAFile     string `json:"ca_file"`
	ServerName string `json:"server_name,omitempty"`
}

func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return errMissingNATSURL
	}

	if c.CredsFile != "" && c.NKeySeedFile != "" {
		return errAuthConflict
	}

	if c.TLS != nil && (c.TLS.CertFile == "" || c.TLS.KeyFile == "" || c.TLS.CAFile == "") {
		return errIncompleteTLS
	}

	return nil
}

func (c *NATSConfig) stream() string {
	if c.Stream == "" {
		return defaultStream
	}

	return c.Stream
}

func (c *NATSConfig) subjectPrefix() string {
	if c.SubjectPrefix == "" {
		return defaultSubjectPrefix
	}

	return c.SubjectPrefix
}

func (c *TLSConfig) build() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, errCAParsingFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ServerName:   c.ServerName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// nkeyOption authenticates with the user seed stored at path. The seed stays
// in memory and signs the server nonce on every connect.
func nkeyOption(path string) (nats.Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read nkey seed: %w", err)
	}

	kp, err := nkeys.FromSeed(bytes.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nkey seed: %w", err)
	}

	pub, err := kp.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive nkey public key: %w", err)
	}

	if !nkeys.IsValidPublicUserKey(pub) {
		return nil, errNotUserSeed
	}

	return nats.Nkey(pub, kp.Sign), nil
}

// Event is the CloudEvents envelope published for every record.
type Event struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	Subject         string      `json:"subject"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// NATSExporter publishes each enriched record to <prefix>.<feed type>.
type NATSExporter struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
	logger logger.Logger
	now    func() time.Time
}

// NewNATSExporter connects and creates the stream if it is missing.
func NewNATSExporter(ctx context.Context, cfg NATSConfig, log logger.Logger) (*NATSExporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []nats.Option{nats.Name("fleetfeed")}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	if cfg.NKeySeedFile != "" {
		opt, err := nkeyOption(cfg.NKeySeedFile)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if cfg.TLS != nil {
		tlsConf, err := cfg.TLS.build()
		if err != nil {
			return nil, err
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	prefix := cfg.subjectPrefix()

	if _, err := js.Stream(ctx, cfg.stream()); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.stream(),
			Subjects: []string{prefix + ".>"},
		})
		if err != nil {
			nc.Close()

			return nil, fmt.Errorf("failed to create or get stream %s: %w", cfg.stream(), err)
		}
	}

	log.Info().
		Str("url", cfg.URL).
		Str("stream", cfg.stream()).
		Str("subject_prefix", prefix).
		Msg("Connected to NATS JetStream")

	return &NATSExporter{
		nc:     nc,
		js:     js,
		prefix: prefix,
		logger: log,
		now:    time.Now,
	}, nil
}

// Subject returns the subject records of feedType are published on.
func (e *NATSExporter) Subject(feedType models.FeedType) string {
	return e.prefix + "." + feedType.Key()
}

func (e *NATSExporter) Export(ctx context.Context, result *feed.Result) error {
	if result.Empty() {
		return nil
	}

	var errs []error

	published := 0

	publish := func(feedType models.FeedType, id string, record interface{}) {
		if err := e.publish(ctx, feedType, id, record); err != nil {
			errs = append(errs, err)

			return
		}

		published++
	}

	for _, r := range result.LogRecords {
		publish(models.FeedLogRecord, r.ID, r)
	}

	for _, r := range result.StatusData {
		publish(models.FeedStatusData, r.ID, r)
	}

	for _, r := range result.FaultData {
		publish(models.FeedFaultData, r.ID, r)
	}

	for _, r := range result.Trips {
		publish(models.FeedTrip, r.ID, r)
	}

	e.logger.Debug().
		Int("published", published).
		Int("failed", len(errs)).
		Msg("Exported records to NATS")

	return errors.Join(errs...)
}

// publish uses the record id as the JetStream message id so a replayed
// batch is de-duplicated. Records without an id get a random one.
func (e *NATSExporter) publish(ctx context.Context, feedType models.FeedType, id string, record interface{}) error {
	msgID := uuid.NewString()
	if id != "" {
		msgID = string(feedType) + ":" + id
	}

	event := Event{
		SpecVersion:     cloudEventsVersion,
		ID:              msgID,
		Source:          eventSource,
		Type:            eventTypePrefix + feedType.Key(),
		Subject:         e.Subject(feedType),
		Time:            e.now().UTC(),
		DataContentType: "application/json",
		Data:            record,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", feedType, err)
	}

	if _, err := e.js.Publish(ctx, event.Subject, payload, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", feedType, err)
	}

	return nil
}

// Close drains the connection.
func (e *NATSExporter) Close() error {
	if e.nc == nil || e.nc.IsClosed() {
		return nil
	}

	return e.nc.Drain()
}
