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

// DeviceStatusSnapshot is the status projection pushed to UI clients.
// It is recomputed on demand and never persisted.
type DeviceStatusSnapshot struct {
	State          string `json:"state"`
	StateLabel     string `json:"state_label"`
	PairingCode    string `json:"pairing_code,omitempty"`
	TokenAvailable bool   `json:"token_available"`
	TokenDisplay   string `json:"token_display,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	Polling        bool   `json:"polling"`
	LoopAlive      bool   `json:"loop_alive"`
	PrinterState   string `json:"printer_state,omitempty"`
	Serial         string `json:"serial,omitempty"`
	Endpoint       string `json:"endpoint,omitempty"`
}

// SnapshotKey is the reduced tuple used to decide whether a snapshot is new.
type SnapshotKey struct {
	StateLabel     string
	PairingCode    string
	TokenAvailable bool
	TokenDisplay   string
	ErrorMessage   string
}

// Key returns the reduced comparison tuple of the snapshot.
func (s DeviceStatusSnapshot) Key() SnapshotKey {
	return SnapshotKey{
		StateLabel:     s.StateLabel,
		PairingCode:    s.PairingCode,
		TokenAvailable: s.TokenAvailable,
		TokenDisplay:   s.TokenDisplay,
		ErrorMessage:   s.ErrorMessage,
	}
}
