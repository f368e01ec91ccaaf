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

import "time"

// FeedType names a feed by the platform type it returns.
type FeedType string

const (
	FeedLogRecord      FeedType = "LogRecord"
	FeedStatusData     FeedType = "StatusData"
	FeedFaultData      FeedType = "FaultData"
	FeedTrip           FeedType = "Trip"
	FeedExceptionEvent FeedType = "ExceptionEvent"
)

// FeedTypes lists every feed type with a cursor slot, in pull order.
func FeedTypes() []FeedType {
	return []FeedType{FeedLogRecord, FeedStatusData, FeedFaultData, FeedTrip, FeedExceptionEvent}
}

// Key returns the snake_case name used for config keys, subjects and storage.
func (f FeedType) Key() string {
	switch f {
	case FeedLogRecord:
		return "log_record"
	case FeedStatusData:
		return "status_data"
	case FeedFaultData:
		return "fault_data"
	case FeedTrip:
		return "trip"
	case FeedExceptionEvent:
		return "exception_event"
	default:
		return string(f)
	}
}

// FeedPage is one GetFeed response.
type FeedPage[T any] struct {
	Data      []*T   `json:"data"`
	ToVersion string `json:"toVersion"`
}

type LogRecord struct {
	ID        string    `json:"id,omitempty"`
	DateTime  time.Time `json:"dateTime"`
	Device    *Device   `json:"device,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
}

type StatusData struct {
	ID         string      `json:"id,omitempty"`
	DateTime   time.Time   `json:"dateTime"`
	Device     *Device     `json:"device,omitempty"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
	Controller *Controller `json:"controller,omitempty"`
	Data       *float64    `json:"data,omitempty"`
}

type FaultData struct {
	ID                 string       `json:"id,omitempty"`
	DateTime           time.Time    `json:"dateTime"`
	Device             *Device      `json:"device,omitempty"`
	Diagnostic         *Diagnostic  `json:"diagnostic,omitempty"`
	Controller         *Controller  `json:"controller,omitempty"`
	FailureMode        *FailureMode `json:"failureMode,omitempty"`
	Count              *int         `json:"count,omitempty"`
	FaultState         string       `json:"faultState,omitempty"`
	MalfunctionLamp    *bool        `json:"malfunctionLamp,omitempty"`
	RedStopLamp        *bool        `json:"redStopLamp,omitempty"`
	AmberWarningLamp   *bool        `json:"amberWarningLamp,omitempty"`
	ProtectWarningLamp *bool        `json:"protectWarningLamp,omitempty"`
	DismissDateTime    *time.Time   `json:"dismissDateTime,omitempty"`
	DismissUser        *User        `json:"dismissUser,omitempty"`
}

type Trip struct {
	ID       string     `json:"id,omitempty"`
	Device   *Device    `json:"device,omitempty"`
	Driver   *Driver    `json:"driver,omitempty"`
	Start    *time.Time `json:"start,omitempty"`
	Stop     *time.Time `json:"stop,omitempty"`
	Distance *float64   `json:"distance,omitempty"`
}
