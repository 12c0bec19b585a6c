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

// RemoteState is the printer state enumeration understood by the remote service.
type RemoteState string

const (
	RemoteStatePrinting  RemoteState = "PRINTING"
	RemoteStatePaused    RemoteState = "PAUSED"
	RemoteStateError     RemoteState = "ERROR"
	RemoteStateAttention RemoteState = "ATTENTION"
	RemoteStateReady     RemoteState = "READY"
)

// PrinterFlags mirrors the state flags reported by the host print manager.
type PrinterFlags struct {
	Operational   bool `json:"operational"`
	Printing      bool `json:"printing"`
	Paused        bool `json:"paused"`
	Error         bool `json:"error"`
	ClosedOrError bool `json:"closedOrError"`
	Ready         bool `json:"ready"`
}

// JobData describes the active print job. Nil pointers mean "not reported".
type JobData struct {
	FileName   string   `json:"file_name,omitempty"`
	FilePath   string   `json:"file_path,omitempty"`
	Completion *float64 `json:"completion,omitempty"`
	PrintTime  *float64 `json:"print_time,omitempty"`
	TimeLeft   *float64 `json:"time_left,omitempty"`
}

// PrinterData is the current state of the local device.
type PrinterData struct {
	Flags PrinterFlags `json:"flags"`
	Job   JobData      `json:"job"`
}

// ToolTemperature is an actual/target pair. Nil means the heater did not report.
type ToolTemperature struct {
	Actual *float64 `json:"actual,omitempty"`
	Target *float64 `json:"target,omitempty"`
}

// Temperatures holds heater readings keyed the way the host reports them ("tool0", "bed").
type Temperatures map[string]ToolTemperature

// Telemetry is one status payload sent to the remote service.
type Telemetry struct {
	State        RemoteState `json:"state"`
	TempNozzle   float64     `json:"temp_nozzle"`
	TargetNozzle float64     `json:"target_nozzle"`
	TempBed      float64     `json:"temp_bed"`
	TargetBed    float64     `json:"target_bed"`
	Progress     *int        `json:"progress,omitempty"`
	FileName     string      `json:"filename,omitempty"`
}
