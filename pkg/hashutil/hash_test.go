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

package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintIsDeterministic(t *testing.T) {
	sum := sha256.Sum256([]byte("CZPX4720X004XK12345"))

	require.Equal(t, hex.EncodeToString(sum[:]), Fingerprint("CZPX4720X004XK12345"))
	require.Equal(t, Fingerprint("abc"), Fingerprint("abc"))
	require.NotEqual(t, Fingerprint("abc"), Fingerprint("abd"))
	require.Len(t, Fingerprint(""), 2*sha256.Size)
}
