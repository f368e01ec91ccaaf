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

package feed

import (
	"context"

	"github.com/carverauto/fleetfeed/pkg/models"
)

func (s *Synchronizer) enrichLogRecord(ctx context.Context, r *models.LogRecord) {
	r.Device = s.caches.Devices.Get(ctx, r.Device.EntityID())
}

func (s *Synchronizer) enrichStatusData(ctx context.Context, r *models.StatusData) {
	r.Device = s.caches.Devices.Get(ctx, r.Device.EntityID())
	r.Diagnostic = s.caches.Diagnostics.Get(ctx, r.Diagnostic.EntityID())
	r.Controller = s.caches.Controllers.Get(ctx, r.Controller.EntityID())
}

func (s *Synchronizer) enrichFaultData(ctx context.Context, r *models.FaultData) {
	r.Device = s.caches.Devices.Get(ctx, r.Device.EntityID())
	r.Diagnostic = s.caches.Diagnostics.Get(ctx, r.Diagnostic.EntityID())
	r.Controller = s.caches.Controllers.Get(ctx, r.Controller.EntityID())
	r.FailureMode = s.caches.FailureModes.Get(ctx, r.FailureMode.EntityID())
}

func (s *Synchronizer) enrichTrip(ctx context.Context, r *models.Trip) {
	r.Device = s.caches.Devices.Get(ctx, r.Device.EntityID())
	r.Driver = s.caches.Drivers.Get(ctx, r.Driver.EntityID())
}
