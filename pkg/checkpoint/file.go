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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carverauto/fleetfeed/pkg/models"
)

const fileFormatVersion = 1

type fileContents struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Cursors   map[string]string `json:"cursors"`
}

// FileStore keeps cursors in a JSON file, replaced atomically on every save.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Load returns an empty set when the file does not exist yet.
func (s *FileStore) Load(_ context.Context) (map[models.FeedType]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[models.FeedType]string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", s.path, err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}

	byKey := keyToFeedType()
	out := make(map[models.FeedType]string, len(contents.Cursors))

	for key, token := range contents.Cursors {
		if ft, ok := byKey[key]; ok {
			out[ft] = token
		}
	}

	return out, nil
}

func (s *FileStore) Save(_ context.Context, cursors map[models.FeedType]string) error {
	contents := fileContents{
		Version:   fileFormatVersion,
		UpdatedAt: s.now().UTC(),
		Cursors:   make(map[string]string, len(cursors)),
	}

	for ft, token := range cursors {
		if token != "" {
			contents.Cursors[ft.Key()] = token
		}
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint folder %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("write checkpoint: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("sync checkpoint: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close checkpoint: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("replace checkpoint %s: %w", s.path, err)
	}

	return nil
}
