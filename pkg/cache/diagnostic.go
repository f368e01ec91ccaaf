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

	"github.com/carverauto/fleetfeed/pkg/logger"
	"github.com/carverauto/fleetfeed/pkg/models"
)

// NewDiagnosticCache builds the diagnostic cache. Every Get re-resolves the
// diagnostic's controller and unit of measure through the given caches, so a
// diagnostic stored before those caches were populated still comes back with
// full references. The stored value is never modified; a copy carrying the
// resolved references is returned instead.
func NewDiagnosticCache(
	fetchByID func(context.Context, string) (*models.Diagnostic, error),
	fetchAll func(context.Context) ([]*models.Diagnostic, error),
	controllers *EntityCache[models.Controller],
	units *EntityCache[models.UnitOfMeasure],
	log logger.Logger,
	opts ...Option,
) (*EntityCache[models.Diagnostic], error) {
	return New(Config[models.Diagnostic]{
		Kind:       models.KindDiagnostic,
		FetchByID:  fetchByID,
		FetchAll:   fetchAll,
		Synthesize: func(id string) *models.Diagnostic { return &models.Diagnostic{ID: id} },
		ID:         (*models.Diagnostic).EntityID,
		Resolve:    resolveDiagnostic(controllers, units),
		Sentinel:   models.NoDiagnostic,
	}, log, opts...)
}

func resolveDiagnostic(
	controllers *EntityCache[models.Controller],
	units *EntityCache[models.UnitOfMeasure],
) func(context.Context, *models.Diagnostic) *models.Diagnostic {
	return func(ctx context.Context, d *models.Diagnostic) *models.Diagnostic {
		controllerID := d.Controller.EntityID()
		unitID := d.UnitOfMeasure.EntityID()

		if controllerID == "" && unitID == "" {
			return d
		}

		resolved := *d

		if controllerID != "" {
			resolved.Controller = controllers.Get(ctx, controllerID)
		}

		if unitID != "" {
			resolved.UnitOfMeasure = units.Get(ctx, unitID)
		}

		return &resolved
	}
}
