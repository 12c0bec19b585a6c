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

// FileKind classifies an entry in the host's file storage.
type FileKind string

const (
	FileKindFolder      FileKind = "folder"
	FileKindMachineCode FileKind = "machinecode"
	FileKindModel       FileKind = "model"
)

// FileEntry is one item reported by the host storage listing.
type FileEntry struct {
	Name               string      `json:"name"`
	Path               string      `json:"path"`
	Kind               FileKind    `json:"type"`
	Size               int64       `json:"size,omitempty"`
	Date               int64       `json:"date,omitempty"`
	EstimatedPrintTime *float64    `json:"estimated_print_time,omitempty"`
	Children           []FileEntry `json:"children,omitempty"`
}

// FileNode is one node of the filesystem tree mirrored to the remote service.
type FileNode struct {
	Name               string     `json:"name"`
	Path               string     `json:"path"`
	Folder             bool       `json:"folder"`
	Size               int64      `json:"size,omitempty"`
	ModifiedAt         int64      `json:"m_timestamp,omitempty"`
	EstimatedPrintTime *float64   `json:"estimated_print_time,omitempty"`
	Children           []FileNode `json:"children,omitempty"`
}

// Storage is the capacity of the primary storage location in bytes.
type Storage struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
}

// Filesystem is the snapshot sent in reply to SEND_INFO.
type Filesystem struct {
	Root    FileNode `json:"root"`
	Storage Storage  `json:"storage"`
}
