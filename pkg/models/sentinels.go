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

package models

// Well-known identifiers the platform uses for "no entity" references.
const (
	NoDeviceID          = "NoDeviceId"
	NoDriverID          = "NoDriverId"
	UnknownDriverID     = "UnknownDriverId"
	NoDiagnosticID      = "NoDiagnosticId"
	NoFailureModeID     = "NoFailureModeId"
	ControllerNoneID    = "ControllerNoneId"
	UnitOfMeasureNoneID = "UnitOfMeasureNoneId"
)

// Sentinel entities. They are shared singletons and must not be mutated.
var (
	NoDevice        = &Device{ID: NoDeviceID, Name: "NoDevice"}
	NoDriver        = &Driver{ID: NoDriverID, Name: "NoDriver"}
	UnknownDriver   = &Driver{ID: UnknownDriverID, Name: "UnknownDriver"}
	NoDiagnostic    = &Diagnostic{ID: NoDiagnosticID, Name: "NoDiagnostic"}
	NoFailureMode   = &FailureMode{ID: NoFailureModeID, Name: "NoFailureMode"}
	NoController    = &Controller{ID: ControllerNoneID, Name: "NoController"}
	NoUnitOfMeasure = &UnitOfMeasure{ID: UnitOfMeasureNoneID, Name: "NoUnitOfMeasure"}
)

// IsSystemID reports whether id names one of the platform's system entities.
func IsSystemID(id string) bool {
	switch id {
	case NoDeviceID, NoDriverID, UnknownDriverID, NoDiagnosticID,
		NoFailureModeID, ControllerNoneID, UnitOfMeasureNoneID:
		return true
	default:
		return false
	}
}
