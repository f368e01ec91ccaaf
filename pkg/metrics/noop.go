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

package metrics

import "time"

// NoOp discards every measurement.
type NoOp struct{}

func (NoOp) RecordCacheHit(string)                                  {}
func (NoOp) RecordCacheMiss(string)                                 {}
func (NoOp) RecordSyntheticEntity(string)                           {}
func (NoOp) RecordCacheFetchError(string)                           {}
func (NoOp) RecordCacheReload(string, int, bool)                    {}
func (NoOp) RecordPass(time.Duration, bool)                         {}
func (NoOp) RecordPullFailure(string, string)                       {}
func (NoOp) RecordRecords(string, int)                              {}
func (NoOp) RecordAPICall(string, time.Duration, error)             {}
func (NoOp) RecordCircuitBreakerStateChange(string, string, string) {}
