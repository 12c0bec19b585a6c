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

package connect

import "errors"

var (
	ErrEndpointRequired = errors.New("remote endpoint is not configured")
	ErrIdentityRequired = errors.New("device fingerprint is not set")
	ErrTokenRequired    = errors.New("session token is not set")
	ErrUnauthorized     = errors.New("remote service rejected the credentials")
	ErrCodeExpired      = errors.New("pairing code expired")
	ErrMissingCode      = errors.New("register response carried no pairing code")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	errInvalidEndpoint  = errors.New("invalid endpoint url")
)
