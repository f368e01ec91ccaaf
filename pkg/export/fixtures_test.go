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
	"time"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/models"
)

var (
	testTime = time.Date(2024, 3, 5, 14, 30, 15, 0, time.UTC)
	testStop = testTime.Add(25 * time.Minute)
)

func ptr[T any](v T) *T { return &v }

func testDevice() *models.Device {
	return &models.Device{
		ID:                          "b1",
		Name:                        "Truck 12, North",
		SerialNumber:                "G9A1B2C3D4",
		VehicleIdentificationNumber: "1FTFW1E50NFA00000",
	}
}

func testDiagnostic(withUnits bool) *models.Diagnostic {
	d := &models.Diagnostic{
		ID:     "DiagnosticEngineSpeedId",
		Name:   "Engine speed",
		Code:   ptr(190),
		Source: &models.Source{ID: "SourceJ1939Id", Name: "J1939"},
	}

	if withUnits {
		d.UnitOfMeasure = &models.UnitOfMeasure{ID: "UnitOfMeasureRevolutionsPerMinuteId", Name: "rpm"}
	} else {
		d.UnitOfMeasure = models.NoUnitOfMeasure
	}

	return d
}

func testResult() *feed.Result {
	return &feed.Result{
		LogRecords: []*models.LogRecord{{
			ID:        "l1",
			DateTime:  testTime,
			Device:    testDevice(),
			Latitude:  43.67891,
			Longitude: -79.12345,
			Speed:     52,
		}},
		StatusData: []*models.StatusData{
			{ID: "s1", DateTime: testTime, Device: testDevice(), Diagnostic: testDiagnostic(true), Data: ptr(1450.5)},
			{ID: "s2", DateTime: testTime, Device: testDevice(), Diagnostic: testDiagnostic(false), Data: ptr(1.0)},
		},
		FaultData: []*models.FaultData{{
			ID:              "f1",
			DateTime:        testTime,
			Device:          testDevice(),
			Diagnostic:      testDiagnostic(false),
			Controller:      &models.Controller{ID: "ControllerEngineId", Name: "Engine"},
			FailureMode:     models.NoFailureMode,
			Count:           ptr(3),
			FaultState:      "Active",
			MalfunctionLamp: ptr(true),
			DismissUser:     &models.User{ID: "u1", Name: `Dana "D" Smith`},
		}},
		Trips: []*models.Trip{{
			ID:     "t1",
			Device: testDevice(),
			Driver: &models.Driver{
				ID:   "d1",
				Name: "Ray Ortiz",
				Keys: []models.Key{{SerialNumber: "K1"}, {SerialNumber: "K2"}},
			},
			Start:    ptr(testTime),
			Stop:     ptr(testStop),
			Distance: ptr(12.75),
		}},
	}
}
