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

package feed

import (
	"maps"
	"sync"

	"github.com/carverauto/fleetfeed/pkg/models"
)

// Cursors holds the continuation token of every feed type. An empty token
// means "start from the beginning".
type Cursors struct {
	mu     sync.RWMutex
	tokens map[models.FeedType]string
}

// NewCursors creates a cursor set with a slot for every feed type, seeded
// from initial.
func NewCursors(initial map[models.FeedType]string) *Cursors {
	c := &Cursors{tokens: make(map[models.FeedType]string, len(models.FeedTypes()))}

	for _, ft := range models.FeedTypes() {
		c.tokens[ft] = ""
	}

	for ft, token := range initial {
		c.tokens[ft] = token
	}

	return c
}

func (c *Cursors) Get(feedType models.FeedType) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tokens[feedType]
}

func (c *Cursors) Set(feedType models.FeedType, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[feedType] = token
}

// Snapshot returns a copy of every slot.
func (c *Cursors) Snapshot() map[models.FeedType]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.tokens)
}

// Commit stores every token in tokens and reports whether any slot changed.
func (c *Cursors) Commit(tokens map[models.FeedType]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false

	for ft, token := range tokens {
		if c.tokens[ft] != token {
			c.tokens[ft] = token
			changed = true
		}
	}

	return changed
}
