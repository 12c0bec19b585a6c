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

// ResultCode classifies a failed remote command.
type ResultCode string

const (
	ResultMissingArgument       ResultCode = "MissingArgument"
	ResultNotFound              ResultCode = "NotFound"
	ResultNotPrinting           ResultCode = "NotPrinting"
	ResultNotPaused             ResultCode = "NotPaused"
	ResultCommandFailed         ResultCode = "CommandFailed"
	ResultFilesystemUnavailable ResultCode = "FilesystemUnavailable"
)

// CommandResult acknowledges a remote command.
type CommandResult struct {
	OK    bool                   `json:"ok"`
	Error string                 `json:"error,omitempty"`
	Code  ResultCode             `json:"code,omitempty"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded() CommandResult {
	return CommandResult{OK: true}
}

// Failed builds a failed result.
func Failed(code ResultCode, msg string) CommandResult {
	return CommandResult{Code: code, Error: msg}
}
