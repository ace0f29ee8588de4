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

package dispatch

//go:generate mockgen -destination=mock_dispatch.go -package=dispatch github.com/carverauto/rackradar/pkg/dispatch Connector,Caller

import (
	"context"
	"errors"
)

// ErrAlreadyRunning is the error a Caller returns, possibly wrapped, when the
// controller accepted the call but the requested work is already running
// there.
var ErrAlreadyRunning = errors.New("command already running on controller")

// ErrUnreachable is the error a Connector or Caller returns, possibly wrapped,
// when the controller could not be contacted at all. A Caller returning it
// moves the controller to the unavailable bucket.
var ErrUnreachable = errors.New("controller unreachable")

// Command is a unit of work sent to each controller.
type Command interface {
	Name() string
}

// Connector performs the pre-flight connectivity check for a controller and
// returns a Caller bound to it. An error places the controller in the
// unavailable bucket. Connect is called concurrently for all targets and must
// return once ctx is done.
type Connector interface {
	Connect(ctx context.Context, systemID string) (Caller, error)
}

// Caller issues a command to a single controller.
type Caller interface {
	Call(ctx context.Context, cmd Command) error
}
