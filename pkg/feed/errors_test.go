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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/carverauto/fleetfeed/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"nil", nil, FailureOther},
		{"plain", errors.New("boom"), FailureOther},
		{"db", classedError{db: true}, FailureDBUnavailable},
		{"over limit wrapped", fmt.Errorf("call: %w", classedError{over: true}), FailureOverLimit},
		{"transport in pull error", &PullError{FeedType: models.FeedTrip, Err: classedError{transport: true}}, FailureTransport},
		{"all false", classedError{}, FailureOther},
		{"cancelled", context.Canceled, FailureOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFailureClassString(t *testing.T) {
	assert.Equal(t, "db_unavailable", FailureDBUnavailable.String())
	assert.Equal(t, "transport", FailureTransport.String())
	assert.Equal(t, "unknown", FailureClass(42).String())
}

func TestPullErrorUnwraps(t *testing.T) {
	inner := errors.New("inner")
	err := &PullError{FeedType: models.FeedFaultData, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "FaultData")
}

func TestCursors(t *testing.T) {
	c := NewCursors(map[models.FeedType]string{models.FeedTrip: "R1"})

	assert.Len(t, c.Snapshot(), 5)
	assert.Equal(t, "R1", c.Get(models.FeedTrip))
	assert.Empty(t, c.Get(models.FeedExceptionEvent))

	c.Set(models.FeedLogRecord, "T1")
	assert.Equal(t, "T1", c.Get(models.FeedLogRecord))

	snap := c.Snapshot()
	snap[models.FeedLogRecord] = "mutated"
	assert.Equal(t, "T1", c.Get(models.FeedLogRecord))

	assert.False(t, c.Commit(map[models.FeedType]string{models.FeedLogRecord: "T1"}))
	assert.True(t, c.Commit(map[models.FeedType]string{models.FeedLogRecord: "T2"}))
	assert.Equal(t, "T2", c.Get(models.FeedLogRecord))
}

func TestResultLen(t *testing.T) {
	var nilResult *Result

	assert.Equal(t, 0, nilResult.Len())
	assert.True(t, (&Result{}).Empty())
	assert.Equal(t, 2, (&Result{Trips: []*models.Trip{{}, {}}}).Len())
}
