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

package cache

import (
	"context"
	"fmt"

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
)

//go:generate mockgen -destination=mock_cache.go -package=cache github.com/carverauto/fleetfeed/pkg/cache Lookup

// Lookup is the platform's generic entity query ("Get" with a type name and
// optional search). result is a pointer to a slice of the entity type.
type Lookup interface {
	Get(ctx context.Context, typeName string, search interface{}, result interface{}) error
}

// Platform type names queried by the reference caches.
const (
	TypeDevice        = "Device"
	TypeController    = "Controller"
	TypeUnitOfMeasure = "UnitOfMeasure"
	TypeDiagnostic    = "Diagnostic"
	TypeFailureMode   = "FailureMode"
	TypeUser          = "User"
)

// IDSearch selects a single entity by id.
type IDSearch struct {
	ID string `json:"id,omitempty"`
}

// DriverSearch selects users that are drivers, optionally by id.
type DriverSearch struct {
	ID       string `json:"id,omitempty"`
	IsDriver bool   `json:"isDriver"`
}

func fetchOne[T any](lookup Lookup, typeName string, search func(id string) interface{}) func(context.Context, string) (*T, error) {
	return func(ctx context.Context, id string) (*T, error) {
		var found []*T
		if err := lookup.Get(ctx, typeName, search(id), &found); err != nil {
			return nil, fmt.Errorf("get %s %s: %w", typeName, id, err)
		}

		if len(found) == 0 {
			return nil, nil
		}

		return found[0], nil
	}
}

func fetchEvery[T any](lookup Lookup, typeName string, search interface{}) func(context.Context) ([]*T, error) {
	return func(ctx context.Context) ([]*T, error) {
		var found []*T
		if err := lookup.Get(ctx, typeName, search, &found); err != nil {
			return nil, fmt.Errorf("get all %s: %w", typeName, err)
		}

		return found, nil
	}
}

func byID(id string) interface{} {
	return IDSearch{ID: id}
}

// Set holds one cache per reference entity kind.
type Set struct {
	Controllers    *EntityCache[models.Controller]
	UnitsOfMeasure *EntityCache[models.UnitOfMeasure]
	Diagnostics    *EntityCache[models.Diagnostic]
	FailureModes   *EntityCache[models.FailureMode]
	Devices        *EntityCache[models.Device]
	Drivers        *EntityCache[models.Driver]

	logger logger.Logger
}

// NewSet builds the six reference caches on top of lookup.
func NewSet(lookup Lookup, log logger.Logger, opts ...Option) (*Set, error) {
	s := &Set{logger: log}

	var err error

	s.Controllers, err = New(Config[models.Controller]{
		Kind:       models.KindController,
		FetchByID:  fetchOne[models.Controller](lookup, TypeController, byID),
		FetchAll:   fetchEvery[models.Controller](lookup, TypeController, nil),
		Synthesize: func(id string) *models.Controller { return &models.Controller{ID: id} },
		ID:         (*models.Controller).EntityID,
		Sentinel:   models.NoController,
	}, log, opts...)
	if err != nil {
		return nil, err
	}

	s.UnitsOfMeasure, err = New(Config[models.UnitOfMeasure]{
		Kind:       models.KindUnitOfMeasure,
		FetchByID:  fetchOne[models.UnitOfMeasure](lookup, TypeUnitOfMeasure, byID),
		FetchAll:   fetchEvery[models.UnitOfMeasure](lookup, TypeUnitOfMeasure, nil),
		Synthesize: func(id string) *models.UnitOfMeasure { return &models.UnitOfMeasure{ID: id} },
		ID:         (*models.UnitOfMeasure).EntityID,
		Sentinel:   models.NoUnitOfMeasure,
	}, log, opts...)
	if err != nil {
		return nil, err
	}

	s.Diagnostics, err = NewDiagnosticCache(
		fetchOne[models.Diagnostic](lookup, TypeDiagnostic, byID),
		fetchEvery[models.Diagnostic](lookup, TypeDiagnostic, nil),
		s.Controllers, s.UnitsOfMeasure, log, opts...)
	if err != nil {
		return nil, err
	}

	s.FailureModes, err = New(Config[models.FailureMode]{
		Kind:       models.KindFailureMode,
		FetchByID:  fetchOne[models.FailureMode](lookup, TypeFailureMode, byID),
		FetchAll:   fetchEvery[models.FailureMode](lookup, TypeFailureMode, nil),
		Synthesize: func(id string) *models.FailureMode { return &models.FailureMode{ID: id} },
		ID:         (*models.FailureMode).EntityID,
		Sentinel:   models.NoFailureMode,
	}, log, opts...)
	if err != nil {
		return nil, err
	}

	s.Devices, err = New(Config[models.Device]{
		Kind:       models.KindDevice,
		FetchByID:  fetchOne[models.Device](lookup, TypeDevice, byID),
		FetchAll:   fetchEvery[models.Device](lookup, TypeDevice, nil),
		Synthesize: func(id string) *models.Device { return &models.Device{ID: id} },
		ID:         (*models.Device).EntityID,
		Sentinel:   models.NoDevice,
	}, log, opts...)
	if err != nil {
		return nil, err
	}

	s.Drivers, err = New(Config[models.Driver]{
		Kind: models.KindDriver,
		FetchByID: fetchOne[models.Driver](lookup, TypeUser, func(id string) interface{} {
			return DriverSearch{ID: id, IsDriver: true}
		}),
		FetchAll:   fetchEvery[models.Driver](lookup, TypeUser, DriverSearch{IsDriver: true}),
		Synthesize: func(id string) *models.Driver { return &models.Driver{ID: id} },
		ID:         (*models.Driver).EntityID,
		Sentinel:   models.NoDriver,
		Extra:      []*models.Driver{models.UnknownDriver},
	}, log, opts...)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ReloadAll reloads every cache in dependency order (controller, unit of
// measure, diagnostic, failure mode, device, driver). Every cache is reloaded
// even when an earlier one fails; the result is true only if all succeeded.
func (s *Set) ReloadAll(ctx context.Context) bool {
	reloads := []func(context.Context) bool{
		s.Controllers.ReloadAll,
		s.UnitsOfMeasure.ReloadAll,
		s.Diagnostics.ReloadAll,
		s.FailureModes.ReloadAll,
		s.Devices.ReloadAll,
		s.Drivers.ReloadAll,
	}

	ok := true

	for _, reload := range reloads {
		if !reload(ctx) {
			ok = false
		}
	}

	if !ok {
		s.logger.Warn().Msg("One or more reference caches failed to reload")
	}

	return ok
}

// Sizes reports resident entries per entity kind.
func (s *Set) Sizes() map[string]int {
	return map[string]int{
		string(models.KindController):    s.Controllers.Len(),
		string(models.KindUnitOfMeasure): s.UnitsOfMeasure.Len(),
		string(models.KindDiagnostic):    s.Diagnostics.Len(),
		string(models.KindFailureMode):   s.FailureModes.Len(),
		string(models.KindDevice):        s.Devices.Len(),
		string(models.KindDriver):        s.Drivers.Len(),
	}
}
