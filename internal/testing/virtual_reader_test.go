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

import (
	"context"
	"testing"
	"time"

	"github.com/ZaparooProject/felicanode/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pollCommand = []byte{0xD4, CmdInListPassiveTarget, 0x01, 0x01, 0x00, 0xFF, 0xFF, 0x00, 0x00}

func TestVirtualReader_AnswersWithAckAndResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  []byte
		want []byte
	}{
		{name: "reset", cmd: []byte{0xD4, CmdReset, 0x01}, want: BuildResetResponse()},
		{name: "rf configuration", cmd: []byte{0xD4, CmdRFConfiguration, 0x81, 0xB7}, want: BuildRFConfigurationResponse()},
		{name: "poll without card", cmd: pollCommand, want: BuildNoCardResponse()},
		{name: "unknown command", cmd: []byte{0xD4, 0x02}, want: BuildErrorResponse(0x02, 0x01)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := NewVirtualReader()
			require.NoError(t, v.Send(frame.MustEncodeCommand(tt.cmd)))

			frames := frame.DecodeAll(v.Drain())
			require.Len(t, frames, 2)
			assert.Equal(t, frame.KindAck, frames[0].Kind)
			assert.Equal(t, tt.want, frames[1].Payload)
			assert.Equal(t, [][]byte{tt.cmd}, v.Commands())
		})
	}
}

func TestVirtualReader_CardPresence(t *testing.T) {
	t.Parallel()

	v := NewVirtualReader()
	v.PlaceCard(TestIDm)
	require.NoError(t, v.Send(frame.MustEncodeCommand(pollCommand)))
	frames := frame.DecodeAll(v.Drain())
	require.Len(t, frames, 2)
	assert.Equal(t, BuildPollResponse(TestIDm, TestPMm), frames[1].Payload)
	assert.Len(t, frames[1].Payload, 22)

	v.RemoveCard()
	require.NoError(t, v.Send(frame.MustEncodeCommand(pollCommand)))
	frames = frame.DecodeAll(v.Drain())
	require.Len(t, frames, 2)
	assert.Equal(t, BuildNoCardResponse(), frames[1].Payload)
	assert.Equal(t, 2, v.CommandCount(CmdInListPassiveTarget))
}

func TestVirtualReader_SilentAndReset(t *testing.T) {
	t.Parallel()

	v := NewVirtualReader()
	v.SetSilent(true)
	require.NoError(t, v.Send(frame.MustEncodeCommand(pollCommand)))
	assert.Empty(t, v.Drain())
	v.SetSilent(false)

	require.NoError(t, v.Assert())
	require.NoError(t, v.Send(frame.MustEncodeCommand(pollCommand)))
	assert.Empty(t, v.Drain())
	require.NoError(t, v.Release())

	require.NoError(t, v.Send(frame.AckFrame))
	assert.Equal(t, 1, v.Cancels())
	assert.Equal(t, 1, v.Resets())
	assert.Empty(t, v.Drain())
}

func TestVirtualReader_Run(t *testing.T) {
	t.Parallel()

	v := NewVirtualReader()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan byte, 64)
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx, out) }()

	require.NoError(t, v.Send(frame.MustEncodeCommand([]byte{0xD4, CmdReset, 0x01})))

	d := frame.NewDecoder(0)
	var got []*frame.Frame
	for len(got) < 2 {
		select {
		case b := <-out:
			if f, _ := d.Feed(b); f != nil {
				got = append(got, f)
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for reply bytes")
		}
	}
	assert.Equal(t, BuildResetResponse(), got[1].Payload)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestJitteryConnection_FragmentedRepliesDecode(t *testing.T) {
	t.Parallel()

	v := NewVirtualReader()
	v.PlaceCard(TestIDm)
	conn := NewJitteryConnection(v, JitterConfig{
		FragmentReads:    true,
		FragmentMinBytes: 1,
		Seed:             42,
		NoiseBytes:       []byte{0xFF, 0x12, 0x00, 0x34},
	})

	_, err := conn.Write(frame.MustEncodeCommand(pollCommand))
	require.NoError(t, err)

	d := frame.NewDecoder(0)
	buf := make([]byte, 7)
	var frames []*frame.Frame
	for range 200 {
		n, readErr := conn.Read(buf)
		require.NoError(t, readErr)
		if n == 0 {
			break
		}
		for _, b := range buf[:n] {
			if f, _ := d.Feed(b); f != nil {
				frames = append(frames, f)
			}
		}
	}

	require.Len(t, frames, 2)
	assert.Equal(t, frame.KindAck, frames[0].Kind)
	assert.Equal(t, BuildPollResponse(TestIDm, TestPMm), frames[1].Payload)
}

func TestDefaultJitterConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultJitterConfig()
	assert.True(t, cfg.FragmentReads)
	assert.Equal(t, 1, cfg.FragmentMinBytes)
	assert.Positive(t, cfg.MaxLatencyMs)
}
