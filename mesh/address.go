// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mesh

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/denisbrodbeck/machineid"
)

// serialMarker is set on every derived address so it never collides with
// Unassociated
const serialMarker = 0x80000000

// AddressFromMachineID derives a stable node address from the host's
// machine ID, hashed with app so different applications on one host get
// different addresses.
func AddressFromMachineID(app string) (Address, error) {
	id, err := machineid.ProtectedID(app)
	if err != nil {
		return Unassociated, fmt.Errorf("read machine id: %w", err)
	}
	return addressFromProtectedID(id)
}

func addressFromProtectedID(id string) (Address, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) < 4 {
		return Unassociated, fmt.Errorf("machine id %q is not a hex digest", id)
	}
	addr := Address(binary.BigEndian.Uint32(raw[:4])&0x0FFFFFFF | serialMarker)
	return addr, nil
}
