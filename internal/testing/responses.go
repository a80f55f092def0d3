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

package testing

// Command codes the virtual reader understands
const (
	CmdReset               = 0x18
	CmdRFConfiguration     = 0x32
	CmdInListPassiveTarget = 0x4A
)

// TestIDm is the card identity used throughout the tests
var TestIDm = [8]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

// TestIDmHex is TestIDm as printed on host lines
const TestIDmHex = "0102030405060708"

// TestPMm is a plausible manufacture parameter block
var TestPMm = [8]byte{0x10, 0x0B, 0x4B, 0x42, 0x84, 0x85, 0xD0, 0xFF}

// BuildResetResponse creates the Reset reply
func BuildResetResponse() []byte {
	return []byte{0xD5, CmdReset + 1}
}

// BuildRFConfigurationResponse creates the RFConfiguration reply
func BuildRFConfigurationResponse() []byte {
	return []byte{0xD5, CmdRFConfiguration + 1}
}

// BuildPollResponse creates an InListPassiveTarget reply reporting one
// FeliCa card at 212 kbps
func BuildPollResponse(idm, pmm [8]byte) []byte {
	response := make([]byte, 0, 22)
	// Code + 1 target, target number, length 0x12, response code 0x01
	response = append(response, 0xD5, CmdInListPassiveTarget+1, 0x01, 0x01, 0x12, 0x01)
	response = append(response, idm[:]...)
	response = append(response, pmm[:]...)
	return response
}

// BuildNoCardResponse creates an InListPassiveTarget reply with no targets
func BuildNoCardResponse() []byte {
	return []byte{0xD5, CmdInListPassiveTarget + 1, 0x00}
}

// BuildErrorResponse creates an error reply for any command
func BuildErrorResponse(cmd, errorCode byte) []byte {
	return []byte{0xD5, cmd + 1, errorCode}
}
