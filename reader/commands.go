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

package reader

import "github.com/ZaparooProject/felicanode/internal/frame"

// Command codes sent to the reader (second payload byte)
const (
	cmdCodeReset           = 0x18
	cmdCodeRFConfiguration = 0x32
	cmdCodeInListPassive   = 0x4A
)

// DefaultSystemCode polls for any FeliCa system
const DefaultSystemCode uint16 = 0xFFFF

// Handshake and control commands, TFI included
var (
	// cmdReset resets the reader's RF state
	cmdReset = []byte{frame.HostToReader, cmdCodeReset, 0x01}
	// cmdConfigTimings sets RF timings
	cmdConfigTimings = []byte{frame.HostToReader, cmdCodeRFConfiguration, 0x02, 0x00, 0x00, 0x00}
	// cmdConfigRetries disables activation retries
	cmdConfigRetries = []byte{frame.HostToReader, cmdCodeRFConfiguration, 0x05, 0x00, 0x00, 0x00}
	// cmdConfigWait sets the additional wait time to 24 ms
	cmdConfigWait = []byte{frame.HostToReader, cmdCodeRFConfiguration, 0x81, 0xB7}
	// cmdRFOff switches the RF field off
	cmdRFOff = []byte{frame.HostToReader, cmdCodeRFConfiguration, 0x01, 0x00}
)

// Poll reply layout for a single 212 kbps FeliCa target
const (
	pollReplyLength = 22
	idmOffset       = 6
	pmmOffset       = 14
)

var pollReplyPrefix = []byte{frame.ReaderToHost, cmdCodeInListPassive + 1, 0x01, 0x01, 0x12, 0x01}

// pollCommand builds InListPassiveTarget for one FeliCa target at 212 kbps
func pollCommand(systemCode uint16) []byte {
	return []byte{
		frame.HostToReader, cmdCodeInListPassive,
		0x01, // max targets
		0x01, // 212 kbps FeliCa
		0x00, // polling request code
		byte(systemCode >> 8), byte(systemCode),
		0x00, // request code
		0x00, // time slot
	}
}

// parsePollReply extracts the card identity from a poll reply. ok is false
// for any reply that does not report exactly one FeliCa card.
func parsePollReply(payload []byte) (idm IDm, pmm PMm, ok bool) {
	if len(payload) != pollReplyLength {
		return idm, pmm, false
	}
	for i, b := range pollReplyPrefix {
		if payload[i] != b {
			return idm, pmm, false
		}
	}
	copy(idm[:], payload[idmOffset:pmmOffset])
	copy(pmm[:], payload[pmmOffset:pollReplyLength])
	return idm, pmm, true
}
