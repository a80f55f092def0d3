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
	"testing"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "00001234", Address(0x1234).String())
	assert.Equal(t, "FFFFFFFF", Broadcast.String())

	for _, in := range []string{"1234", "0x1234", "0X00001234"} {
		got, err := ParseAddress(in)
		require.NoError(t, err, in)
		assert.Equal(t, Address(0x1234), got, in)
	}

	_, err := ParseAddress("xyz")
	require.Error(t, err)
	_, err = ParseAddress("123456789")
	require.Error(t, err)
}

func TestAddressFromProtectedID(t *testing.T) {
	t.Parallel()

	addr, err := addressFromProtectedID("ffffffff00112233")
	require.NoError(t, err)
	assert.Equal(t, Address(0x8FFFFFFF), addr)
	assert.NotEqual(t, Broadcast, addr)

	addr, err = addressFromProtectedID("00000000")
	require.NoError(t, err)
	assert.Equal(t, Address(serialMarker), addr)

	_, err = addressFromProtectedID("not-hex")
	require.Error(t, err)
	_, err = addressFromProtectedID("abcd")
	require.Error(t, err)
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "felica", CommandFelica.String())
	assert.Equal(t, "keep-alive", CommandKeepAlive.String())
	assert.Equal(t, "debug", CommandDebug.String())
	assert.Equal(t, Command(0x10), CommandDebug)
	assert.Equal(t, "command(0x7F)", Command(0x7F).String())
}

func TestPacketValidate(t *testing.T) {
	t.Parallel()

	ok := &Packet{Command: CommandDebug, Payload: make([]byte, MaxPayload)}
	require.NoError(t, ok.Validate())

	big := &Packet{Command: CommandDebug, Payload: make([]byte, MaxPayload+1)}
	require.ErrorIs(t, big.Validate(), felicanode.ErrPayloadTooLarge)
}
