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

package cli

import "fmt"

// ShowHelp displays the help message.
func ShowHelp() {
	fmt.Print(`bridgectl: connect bridge operator tool
Usage:
  bridgectl [global options] <command> [options]

Commands:
  status      Show registration and printer status (default)
  register    Request a pairing code from the remote service
  reset       Forget the session and return to not registered
  endpoint    Point the bridge at another remote service
  serial      Set or clear the manual serial override
  watch       Live status view; press c to copy the pairing code

Global options:
  -addr string     local API address (default "http://127.0.0.1:8091", env BRIDGECTL_ADDR)
  -api-key string  local API key (env BRIDGECTL_API_KEY)
  -json            print raw JSON instead of the styled view
  -help            show this help message

Options for endpoint:
  -url string      remote service base URL

Options for serial:
  -serial string   serial number; empty clears the override

Examples:
  bridgectl register
  bridgectl endpoint -url https://connect.example.com
  bridgectl serial -serial CZPX1234X004XK12345
  bridgectl watch
`)
}
