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
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/fleetfeed/pkg/models"
)

const (
	dateLayout      = "2006-01-02T15:04:05"
	noneLabel       = "None"
	driverKeySep    = "~"
	coordinateScale = 1000
)

// clean makes a name safe for comma separated output.
func clean(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}

	return formatTime(*t)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}

	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}

	return strconv.Itoa(*v)
}

func formatBoolPtr(v *bool) string {
	if v == nil {
		return ""
	}

	return strconv.FormatBool(*v)
}

// roundCoordinate rounds half away from zero to three decimal places.
func roundCoordinate(v float64) string {
	return formatFloat(math.Round(v*coordinateScale) / coordinateScale)
}

func deviceName(d *models.Device) string {
	if d == nil {
		return ""
	}

	return clean(d.Name)
}

func deviceSerial(d *models.Device) string {
	if d == nil {
		return ""
	}

	return d.SerialNumber
}

func deviceVIN(d *models.Device) string {
	if d == nil {
		return ""
	}

	return clean(d.VehicleIdentificationNumber)
}

func diagnosticName(d *models.Diagnostic) string {
	if d == nil {
		return ""
	}

	return clean(d.Name)
}

func diagnosticCode(d *models.Diagnostic) string {
	if d == nil {
		return ""
	}

	return formatIntPtr(d.Code)
}

func sourceName(s *models.Source) string {
	if s == nil {
		return ""
	}

	return clean(s.Name)
}

func diagnosticSource(d *models.Diagnostic) string {
	if d == nil {
		return ""
	}

	return sourceName(d.Source)
}

// diagnosticUnits is empty unless the diagnostic carries a unit of measure.
func diagnosticUnits(d *models.Diagnostic) string {
	if !d.HasUnits() {
		return ""
	}

	return clean(d.UnitOfMeasure.Name)
}

func controllerName(c *models.Controller) string {
	if c == nil {
		return ""
	}

	return clean(c.Name)
}

func failureModeName(f *models.FailureMode) string {
	if f == nil {
		return ""
	}

	return clean(f.Name)
}

func failureModeCode(f *models.FailureMode) string {
	if f == nil {
		return ""
	}

	return formatIntPtr(f.Code)
}

func failureModeSource(f *models.FailureMode) string {
	if f == nil || f.ID == models.NoFailureModeID {
		return noneLabel
	}

	return sourceName(f.Source)
}

func driverName(d *models.Driver) string {
	if d == nil {
		return ""
	}

	if d.Name == "" && (d.FirstName != "" || d.LastName != "") {
		return clean(strings.TrimSpace(d.FirstName + " " + d.LastName))
	}

	return clean(d.Name)
}

func driverKeys(d *models.Driver) string {
	if d == nil || len(d.Keys) == 0 {
		return ""
	}

	serials := make([]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		serials = append(serials, k.SerialNumber)
	}

	return strings.Join(serials, driverKeySep)
}

func userName(u *models.User) string {
	if u == nil {
		return ""
	}

	return clean(u.Name)
}
