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

import (
	"encoding/hex"
	"fmt"
	"strings"

	felicanode "github.com/ZaparooProject/felicanode"
)

// IDm is the 8-byte manufacture ID a FeliCa card reports when polled
type IDm [8]byte

// String renders the IDm as upper-case hex
func (id IDm) String() string {
	return strings.ToUpper(hex.EncodeToString(id[:]))
}

// IsZero reports whether id is the zero value
func (id IDm) IsZero() bool {
	return id == IDm{}
}

// ParseIDm decodes a 16 character hex string
func ParseIDm(s string) (IDm, error) {
	var id IDm
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("parse idm %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("parse idm %q: %d bytes: %w", s, len(raw), felicanode.ErrInvalidParameter)
	}
	return IDmFromBytes(raw)
}

// IDmFromBytes copies an 8-byte card report payload
func IDmFromBytes(b []byte) (IDm, error) {
	var id IDm
	if len(b) != len(id) {
		return id, fmt.Errorf("idm of %d bytes: %w", len(b), felicanode.ErrInvalidParameter)
	}
	copy(id[:], b)
	return id, nil
}

// PMm is the card's manufacture parameter block
type PMm [8]byte

func (p PMm) String() string {
	return strings.ToUpper(hex.EncodeToString(p[:]))
}
