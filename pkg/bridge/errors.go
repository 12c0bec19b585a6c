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

package bridge

import (
	"errors"

	"github.com/carverauto/connectbridge/pkg/identity"
)

var (
	ErrIdentity              = identity.ErrIdentity
	ErrRegistration          = errors.New("registration failed")
	ErrSessionUnavailable    = errors.New("session unavailable")
	ErrCommandRejected       = errors.New("command rejected")
	ErrCommandFailed         = errors.New("command failed")
	ErrFilesystemUnavailable = errors.New("filesystem unavailable")

	errClientRequired   = errors.New("session client is required")
	errDeviceRequired   = errors.New("printer device is required")
	errSettingsRequired = errors.New("settings store is required")
	errEmptyCode        = errors.New("service returned an empty pairing code")
	errCodeLost         = errors.New("pairing code lost, register again")
	errNotStarted       = errors.New("bridge is not started")
)
