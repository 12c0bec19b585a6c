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

import "strings"

// DeviceIdentity is the stable identity the bridge presents to the remote service.
// Fingerprint is always derived from Serial.
type DeviceIdentity struct {
	Serial      string `json:"serial"`
	Fingerprint string `json:"fingerprint"`
}

// IsZero reports whether no identity has been established yet.
func (d DeviceIdentity) IsZero() bool {
	return d.Serial == "" && d.Fingerprint == ""
}

// RemoteEndpoint is the base URL of the remote device-management service.
// Sessions are scoped to an endpoint.
type RemoteEndpoint struct {
	BaseURL string `json:"base_url"`
}

// Equal compares endpoints ignoring surrounding whitespace and a trailing slash.
func (e RemoteEndpoint) Equal(other RemoteEndpoint) bool {
	return normalizeURL(e.BaseURL) == normalizeURL(other.BaseURL)
}

func normalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
