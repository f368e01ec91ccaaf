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

import "github.com/carverauto/fleetfeed/pkg/models"

// Result holds the enriched records of one synchronization pass.
type Result struct {
	LogRecords []*models.LogRecord  `json:"log_records"`
	StatusData []*models.StatusData `json:"status_data"`
	FaultData  []*models.FaultData  `json:"fault_data"`
	Trips      []*models.Trip       `json:"trips"`
}

// Len returns the total number of records.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}

	return len(r.LogRecords) + len(r.StatusData) + len(r.FaultData) + len(r.Trips)
}

// Empty reports whether the pass produced no records.
func (r *Result) Empty() bool {
	return r.Len() == 0
}
