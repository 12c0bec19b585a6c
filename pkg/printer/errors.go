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

package printer

import "errors"

var (
	ErrNotFound           = errors.New("file not found")
	ErrPrinterUnavailable = errors.New("printer is not operational")
	ErrConflict           = errors.New("printer state does not allow this action")
	ErrUnexpectedStatus   = errors.New("unexpected response status")
	ErrOutsideBaseDir     = errors.New("path escapes the storage directory")
	ErrNoBaseDir          = errors.New("storage directory is not configured")
	ErrNoSerial           = errors.New("no hardware serial found")
	errBaseURLRequired    = errors.New("octoprint url is required")
)
