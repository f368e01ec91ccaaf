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
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/carverauto/fleetfeed/pkg/feed"
	"github.com/carverauto/fleetfeed/pkg/logger"
)

const (
	gpsFilePrefix    = "Gps_Data"
	statusFilePrefix = "Status_Data"
	faultFilePrefix  = "Fault_Data"
	tripFilePrefix   = "Trips"
	fileTimeLayout   = "2006-01-02-15-04-05"
	dirPermissions   = 0o755
	filePermissions  = 0o644
)

var (
	gpsColumns = []string{
		"Vehicle Name", "Vehicle Serial Number", "VIN", "Date", "Longitude", "Latitude", "Speed",
	}
	statusColumns = []string{
		"Vehicle Name", "Vehicle Serial Number", "VIN", "Date", "Diagnostic Name", "Diagnostic Code",
		"Source Name", "Value", "Units",
	}
	faultColumns = []string{
		"Vehicle Name", "Vehicle Serial Number", "VIN", "Date", "Diagnostic Name", "Failure Mode Name",
		"Failure Mode Code", "Failure Mode Source", "Controller Name", "Count", "Active",
		"Malfunction Lamp", "Red Stop Lamp", "Amber Warning Lamp", "Protect Lamp", "Dismiss Date",
		"Dismiss User",
	}
	tripColumns = []string{
		"VehicleName", "VehicleSerialNumber", "Vin", "Driver Name", "Driver Keys", "Trip Start Time",
		"Trip End Time", "Trip Distance",
	}
)

// CSVExporter appends each feed type to a timestamped file in a folder.
type CSVExporter struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// NewCSVExporter creates dir if it does not exist. An empty dir means the
// working directory.
func NewCSVExporter(dir string, log logger.Logger) (*CSVExporter, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("create output folder %s: %w", dir, err)
	}

	return &CSVExporter{dir: dir, logger: log, now: time.Now}, nil
}

func (e *CSVExporter) Export(_ context.Context, result *feed.Result) error {
	if result == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stamp := e.now().UTC().Format(fileTimeLayout)

	var errs []error

	errs = append(errs, e.write(gpsFilePrefix, stamp, gpsColumns, logRecordRows(result)))
	errs = append(errs, e.write(statusFilePrefix, stamp, statusColumns, statusDataRows(result)))
	errs = append(errs, e.write(faultFilePrefix, stamp, faultColumns, faultDataRows(result)))
	errs = append(errs, e.write(tripFilePrefix, stamp, tripColumns, tripRows(result)))

	return errors.Join(errs...)
}

// write appends rows to <prefix>-<stamp>.csv, adding the header only when the
// file is new. Nothing is written for an empty batch.
func (e *CSVExporter) write(prefix, stamp string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	path := filepath.Join(e.dir, prefix+"-"+stamp+".csv")

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	if isNew {
		if err := w.Write(header); err != nil {
			_ = f.Close()

			return fmt.Errorf("write %s header: %w", path, err)
		}
	}

	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()

		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	e.logger.Info().
		Str("file", path).
		Int("rows", len(rows)).
		Msgf("%s exported", prefix)

	return nil
}

func logRecordRows(result *feed.Result) [][]string {
	rows := make([][]string, 0, len(result.LogRecords))

	for _, r := range result.LogRecords {
		rows = append(rows, []string{
			deviceName(r.Device),
			deviceSerial(r.Device),
			deviceVIN(r.Device),
			formatTime(r.DateTime),
			formatFloat(r.Longitude),
			formatFloat(r.Latitude),
			formatFloat(r.Speed),
		})
	}

	return rows
}

func statusDataRows(result *feed.Result) [][]string {
	rows := make([][]string, 0, len(result.StatusData))

	for _, r := range result.StatusData {
		rows = append(rows, []string{
			deviceName(r.Device),
			deviceSerial(r.Device),
			deviceVIN(r.Device),
			formatTime(r.DateTime),
			diagnosticName(r.Diagnostic),
			diagnosticCode(r.Diagnostic),
			diagnosticSource(r.Diagnostic),
			formatFloatPtr(r.Data),
			diagnosticUnits(r.Diagnostic),
		})
	}

	return rows
}

func faultDataRows(result *feed.Result) [][]string {
	rows := make([][]string, 0, len(result.FaultData))

	for _, r := range result.FaultData {
		rows = append(rows, []string{
			deviceName(r.Device),
			deviceSerial(r.Device),
			deviceVIN(r.Device),
			formatTime(r.DateTime),
			diagnosticName(r.Diagnostic),
			failureModeName(r.FailureMode),
			failureModeCode(r.FailureMode),
			failureModeSource(r.FailureMode),
			controllerName(r.Controller),
			formatIntPtr(r.Count),
			r.FaultState,
			formatBoolPtr(r.MalfunctionLamp),
			formatBoolPtr(r.RedStopLamp),
			formatBoolPtr(r.AmberWarningLamp),
			formatBoolPtr(r.ProtectWarningLamp),
			formatTimePtr(r.DismissDateTime),
			userName(r.DismissUser),
		})
	}

	return rows
}

func tripRows(result *feed.Result) [][]string {
	rows := make([][]string, 0, len(result.Trips))

	for _, r := range result.Trips {
		rows = append(rows, []string{
			deviceName(r.Device),
			deviceSerial(r.Device),
			deviceVIN(r.Device),
			driverName(r.Driver),
			driverKeys(r.Driver),
			formatTimePtr(r.Start),
			formatTimePtr(r.Stop),
			formatFloatPtr(r.Distance),
		})
	}

	return rows
}
