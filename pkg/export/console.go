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
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/carverauto/fleetfeed/pkg/feed"
)

const (
	consoleGPSHeader    = "Vehicle Serial Number, Date, Longitude, Latitude, Speed"
	consoleStatusHeader = "Vehicle Serial Number, Date, Diagnostic Name, Source Name, Value, Units"
	consoleFaultHeader  = "Vehicle Serial Number, Date, Diagnostic Name, Failure Mode Name, Failure Mode Source, Controller Name"
	consoleTripHeader   = "Vehicle Serial Number, Vin, Driver Name, Trip Start Time, Trip End Time, Trip Distance"
	consoleSeparator    = ", "
	consolePadding      = "\n\n\n"
)

// ConsoleExporter writes a human readable block per pass.
type ConsoleExporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleExporter(w io.Writer) *ConsoleExporter {
	return &ConsoleExporter{w: w}
}

func (e *ConsoleExporter) Export(_ context.Context, result *feed.Result) error {
	var b strings.Builder

	b.WriteString(consolePadding)

	if result != nil {
		writeSection(&b, consoleGPSHeader, len(result.LogRecords), func(i int) []string {
			r := result.LogRecords[i]

			return []string{
				deviceSerial(r.Device),
				formatTime(r.DateTime),
				roundCoordinate(r.Longitude),
				roundCoordinate(r.Latitude),
				formatFloat(r.Speed),
			}
		})

		writeSection(&b, consoleStatusHeader, len(result.StatusData), func(i int) []string {
			r := result.StatusData[i]

			row := []string{
				deviceSerial(r.Device),
				formatTime(r.DateTime),
				diagnosticName(r.Diagnostic),
				diagnosticSource(r.Diagnostic),
				formatFloatPtr(r.Data),
			}

			if r.Diagnostic.HasUnits() {
				row = append(row, diagnosticUnits(r.Diagnostic))
			}

			return row
		})

		writeSection(&b, consoleFaultHeader, len(result.FaultData), func(i int) []string {
			r := result.FaultData[i]

			return []string{
				deviceSerial(r.Device),
				formatTime(r.DateTime),
				diagnosticName(r.Diagnostic),
				failureModeName(r.FailureMode),
				failureModeSource(r.FailureMode),
				controllerName(r.Controller),
			}
		})

		writeSection(&b, consoleTripHeader, len(result.Trips), func(i int) []string {
			r := result.Trips[i]

			return []string{
				deviceSerial(r.Device),
				deviceVIN(r.Device),
				driverName(r.Driver),
				formatTimePtr(r.Start),
				formatTimePtr(r.Stop),
				formatFloatPtr(r.Distance),
			}
		})
	}

	b.WriteString(consolePadding)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := io.WriteString(e.w, b.String()); err != nil {
		return fmt.Errorf("console export: %w", err)
	}

	return nil
}

// writeSection skips empty sections.
func writeSection(b *strings.Builder, header string, n int, row func(i int) []string) {
	if n == 0 {
		return
	}

	b.WriteString("\n")
	b.WriteString(header)

	for i := 0; i < n; i++ {
		b.WriteString("\n")
		b.WriteString(strings.Join(row(i), consoleSeparator))
	}

	b.WriteString("\n")
}
