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

// Package models holds the telematics entities and feed records exchanged
// with the remote platform.
package models

import (
	"bytes"
	"encoding/json"
)

// EntityKind tags a reference entity type.
type EntityKind string

const (
	KindDevice        EntityKind = "device"
	KindController    EntityKind = "controller"
	KindDiagnostic    EntityKind = "diagnostic"
	KindUnitOfMeasure EntityKind = "unit_of_measure"
	KindFailureMode   EntityKind = "failure_mode"
	KindDriver        EntityKind = "driver"
)

// Entity is implemented by every reference entity. EntityID is nil-safe.
type Entity interface {
	EntityID() string
}

type Device struct {
	ID                          string `json:"id"`
	Name                        string `json:"name,omitempty"`
	SerialNumber                string `json:"serialNumber,omitempty"`
	VehicleIdentificationNumber string `json:"vehicleIdentificationNumber,omitempty"`
	DeviceType                  string `json:"deviceType,omitempty"`
}

type Controller struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

type UnitOfMeasure struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Source is the origin of a diagnostic or failure mode code (J1939, OBD, ...).
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Diagnostic struct {
	ID             string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	Code           *int           `json:"code,omitempty"`
	DiagnosticType string         `json:"diagnosticType,omitempty"`
	Source         *Source        `json:"source,omitempty"`
	Controller     *Controller    `json:"controller,omitempty"`
	UnitOfMeasure  *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
}

type FailureMode struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Code   *int    `json:"code,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// Key is a driver identification key (NFC tag, iButton, ...).
type Key struct {
	SerialNumber string `json:"serialNumber,omitempty"`
}

type Driver struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	IsDriver  bool   `json:"isDriver,omitempty"`
	Keys      []Key  `json:"keys,omitempty"`
}

// User is the minimal user reference carried on dismissed faults.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (d *Device) EntityID() string {
	if d == nil {
		return ""
	}

	return d.ID
}

func (c *Controller) EntityID() string {
	if c == nil {
		return ""
	}

	return c.ID
}

func (u *UnitOfMeasure) EntityID() string {
	if u == nil {
		return ""
	}

	return u.ID
}

func (d *Diagnostic) EntityID() string {
	if d == nil {
		return ""
	}

	return d.ID
}

func (f *FailureMode) EntityID() string {
	if f == nil {
		return ""
	}

	return f.ID
}

func (d *Driver) EntityID() string {
	if d == nil {
		return ""
	}

	return d.ID
}

// HasUnits reports whether the diagnostic measures a value with a unit.
func (d *Diagnostic) HasUnits() bool {
	return d != nil && d.UnitOfMeasure != nil && d.UnitOfMeasure.ID != "" && d.UnitOfMeasure.ID != UnitOfMeasureNoneID
}

// References arrive either as {"id": "b1", ...} or as a bare "b1" string for
// system entities, so every entity decodes both forms.

func (d *Device) UnmarshalJSON(b []byte) error {
	type plain Device

	return decodeRef(b, &d.ID, (*plain)(d))
}

func (c *Controller) UnmarshalJSON(b []byte) error {
	type plain Controller

	return decodeRef(b, &c.ID, (*plain)(c))
}

func (u *UnitOfMeasure) UnmarshalJSON(b []byte) error {
	type plain UnitOfMeasure

	return decodeRef(b, &u.ID, (*plain)(u))
}

func (d *Diagnostic) UnmarshalJSON(b []byte) error {
	type plain Diagnostic

	return decodeRef(b, &d.ID, (*plain)(d))
}

func (f *FailureMode) UnmarshalJSON(b []byte) error {
	type plain FailureMode

	return decodeRef(b, &f.ID, (*plain)(f))
}

func (d *Driver) UnmarshalJSON(b []byte) error {
	type plain Driver

	return decodeRef(b, &d.ID, (*plain)(d))
}

func (s *Source) UnmarshalJSON(b []byte) error {
	type plain Source

	return decodeRef(b, &s.ID, (*plain)(s))
}

func (u *User) UnmarshalJSON(b []byte) error {
	type plain User

	return decodeRef(b, &u.ID, (*plain)(u))
}

func decodeRef(b []byte, id *string, target interface{}) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, id)
	}

	return json.Unmarshal(b, target)
}
