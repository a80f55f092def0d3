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

import (
	"fmt"

	felicanode "github.com/ZaparooProject/felicanode"
)

// EncodeCommand wraps a command payload (TFI included) in a wire frame.
// Payloads longer than MaxNormalLength use the extended header.
func EncodeCommand(cmd []byte) ([]byte, error) {
	n := len(cmd)
	switch {
	case n == 0:
		return nil, fmt.Errorf("encode command: %w", felicanode.ErrInvalidParameter)
	case n > MaxExtendedLength:
		return nil, fmt.Errorf("encode command of %d bytes: %w", n, felicanode.ErrFrameTooLarge)
	}

	out := make([]byte, 0, HeaderLength+5+n+2)
	out = append(out, preamble[:]...)
	if n <= MaxNormalLength {
		out = append(out, byte(n), -byte(n))
	} else {
		hi, lo := byte(n>>8), byte(n)
		out = append(out, ExtendedMarker, ExtendedMarker, hi, lo, -(hi + lo))
	}
	out = append(out, cmd...)
	out = append(out, Checksum(cmd), Postamble)
	return out, nil
}

// MustEncodeCommand is EncodeCommand for the fixed command table, where an
// encoding failure is a programming error.
func MustEncodeCommand(cmd []byte) []byte {
	out, err := EncodeCommand(cmd)
	if err != nil {
		panic(err)
	}
	return out
}
