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

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultSysfsRoot = "/sys"

var serialDevicePatterns = []string{"ttyACM*", "ttyUSB*"}

// SysfsSerialSource reads the USB serial number of the printer's serial
// adapter from sysfs. When Device is empty every ttyACM/ttyUSB device is
// tried in name order and the first non-empty serial wins.
type SysfsSerialSource struct {
	Root   string
	Device string
}

func (s SysfsSerialSource) root() string {
	if s.Root == "" {
		return defaultSysfsRoot
	}

	return s.Root
}

func (s SysfsSerialSource) HardwareSerial(ctx context.Context) (string, error) {
	devices, err := s.candidates()
	if err != nil {
		return "", err
	}

	for _, dev := range devices {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// Concatenated rather than joined so "device/.." follows the symlink
		// into the USB interface's parent.
		data, err := os.ReadFile(s.root() + "/class/tty/" + dev + "/device/../serial")
		if err != nil {
			continue
		}

		if serial := strings.TrimSpace(string(data)); serial != "" {
			return serial, nil
		}
	}

	return "", ErrNoSerial
}

func (s SysfsSerialSource) candidates() ([]string, error) {
	if s.Device != "" {
		return []string{filepath.Base(s.Device)}, nil
	}

	var out []string

	for _, pattern := range serialDevicePatterns {
		matches, err := filepath.Glob(filepath.Join(s.root(), "class", "tty", pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}

		for _, m := range matches {
			out = append(out, filepath.Base(m))
		}
	}

	sort.Strings(out)

	return out, nil
}
