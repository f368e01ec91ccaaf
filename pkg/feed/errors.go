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
	"errors"
	"fmt"

	"github.com/carverauto/fleetfeed/pkg/models"
)

// FailureClass selects the backoff applied after a failed pull.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureDBUnavailable
	FailureOverLimit
	FailureTransport
)

func (c FailureClass) String() string {
	switch c {
	case FailureDBUnavailable:
		return "db_unavailable"
	case FailureOverLimit:
		return "over_limit"
	case FailureTransport:
		return "transport"
	case FailureOther:
		return "other"
	default:
		return "unknown"
	}
}

// Errors returned by a Source opt into a failure class by implementing one
// of these methods anywhere in their chain.
type (
	dbUnavailable interface{ DBUnavailable() bool }
	overLimit     interface{ OverLimit() bool }
	transport     interface{ Transport() bool }
)

// Classify maps a pull error to its failure class. Classes are checked in
// the order database unavailable, over limit, transport.
func Classify(err error) FailureClass {
	if err == nil {
		return FailureOther
	}

	var db dbUnavailable
	if errors.As(err, &db) && db.DBUnavailable() {
		return FailureDBUnavailable
	}

	var ol overLimit
	if errors.As(err, &ol) && ol.OverLimit() {
		return FailureOverLimit
	}

	var tr transport
	if errors.As(err, &tr) && tr.Transport() {
		return FailureTransport
	}

	return FailureOther
}

// PullError reports which feed type failed.
type PullError struct {
	FeedType models.FeedType
	Err      error
}

func (e *PullError) Error() string {
	return fmt.Sprintf("pull %s: %v", e.FeedType, e.Err)
}

func (e *PullError) Unwrap() error {
	return e.Err
}
