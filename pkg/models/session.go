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

// Session tracks the pairing handshake with the remote service.
// A confirmed token supersedes the pairing code.
type Session struct {
	PairingCode    string `json:"pairing_code,omitempty"`
	Token          string `json:"token,omitempty"`
	TokenConfirmed bool   `json:"token_confirmed"`
}

// Paired reports whether the session holds a confirmed token.
func (s Session) Paired() bool {
	return s.TokenConfirmed && s.Token != ""
}

// Confirm stores a confirmed token and drops the pairing code.
func (s *Session) Confirm(token string) {
	s.Token = token
	s.TokenConfirmed = token != ""
	s.PairingCode = ""
}

// Clear drops every session field.
func (s *Session) Clear() {
	*s = Session{}
}
