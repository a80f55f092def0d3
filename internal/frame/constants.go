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

package frame

// Frame direction identifiers (first payload byte)
const (
	HostToReader = 0xD4 // Commands from host to reader
	ReaderToHost = 0xD5 // Responses from reader to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte

	// ExtendedMarker in both length positions announces an extended frame
	ExtendedMarker = 0xFF
)

// Frame size limits
const (
	// DefaultCapacity is the largest response payload the reader produces
	DefaultCapacity = 265
	// MaxNormalLength is the largest payload a normal frame can carry
	MaxNormalLength = 255
	// MaxExtendedLength is the largest payload an extended frame can carry
	MaxExtendedLength = 0xFFFF
	// HeaderLength is preamble + start code
	HeaderLength = 3
)

// AckFrame is the fixed zero-length acknowledgment. The host sends the same
// bytes to abort a command in flight.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// preamble is the sync sequence every frame starts with
var preamble = [HeaderLength]byte{Preamble, StartCode1, StartCode2}
