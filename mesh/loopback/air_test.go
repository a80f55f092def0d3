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

package loopback

import (
	"testing"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(p *Port) []node.Event {
	var out []node.Event
	for {
		select {
		case ev := <-p.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func tuned(t *testing.T, air *Air, addr mesh.Address, lqi, ch uint8) *Port {
	t.Helper()
	p := air.Attach(addr, lqi)
	require.NoError(t, p.SetChannel(ch))
	return p
}

func TestTransmit_Unicast(t *testing.T) {
	t.Parallel()

	air := NewAir()
	master := tuned(t, air, 0x1234, 200, 18)
	slave := tuned(t, air, 0x81000001, 40, 18)
	bystander := tuned(t, air, 0x81000002, 40, 18)

	pkt := &mesh.Packet{Src: 0x81000001, Dst: 0x1234, Command: mesh.CommandFelica, Seq: 3, CallbackID: 3,
		Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8}, AckRequested: true, Retries: 3}
	require.NoError(t, slave.Transmit(pkt))

	got := drain(master)
	require.Len(t, got, 1)
	rx, ok := got[0].(node.PacketReceived)
	require.True(t, ok)
	assert.Equal(t, uint8(40), rx.Packet.LQI)
	assert.Equal(t, pkt.Payload, rx.Packet.Payload)
	assert.Equal(t, mesh.CommandFelica, rx.Packet.Command)

	assert.Equal(t, []node.Event{node.TransmitDone{CallbackID: 3, OK: true}}, drain(slave))
	assert.Empty(t, drain(bystander))
}

func TestTransmit_OtherChannel(t *testing.T) {
	t.Parallel()

	air := NewAir()
	master := tuned(t, air, 0x1234, 200, 18)
	slave := tuned(t, air, 0x81000001, 40, 12)

	require.NoError(t, slave.Transmit(&mesh.Packet{Dst: 0x1234, CallbackID: 1, AckRequested: true}))
	assert.Empty(t, drain(master))
	assert.Equal(t, []node.Event{node.TransmitDone{CallbackID: 1, OK: false}}, drain(slave))

	// unacknowledged packets always complete
	require.NoError(t, slave.Transmit(&mesh.Packet{Dst: 0x1234, CallbackID: 2}))
	assert.Equal(t, []node.Event{node.TransmitDone{CallbackID: 2, OK: true}}, drain(slave))
}

func TestTransmit_Broadcast(t *testing.T) {
	t.Parallel()

	air := NewAir()
	master := tuned(t, air, 0x1234, 200, 18)
	a := tuned(t, air, 0xA, 40, 18)
	b := tuned(t, air, 0xB, 40, 18)
	c := tuned(t, air, 0xC, 40, 19)

	require.NoError(t, master.Transmit(&mesh.Packet{Src: 0x1234, Dst: mesh.Broadcast, Command: mesh.CommandKeepAlive}))
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(c))
	assert.Len(t, drain(master), 1)
}

func TestTransmit_RejectsOversizePayload(t *testing.T) {
	t.Parallel()

	air := NewAir()
	p := tuned(t, air, 0xA, 40, 18)
	err := p.Transmit(&mesh.Packet{Payload: make([]byte, mesh.MaxPayload+1)})
	require.ErrorIs(t, err, felicanode.ErrPayloadTooLarge)
	assert.Empty(t, drain(p))
}

func TestNeighborScan(t *testing.T) {
	t.Parallel()

	air := NewAir()
	near := tuned(t, air, 0x1234, 40, 18)
	near.Advertise(true)
	far := tuned(t, air, 0x5678, 90, 25)
	far.Advertise(true)
	_ = tuned(t, air, 0x9999, 255, 18)
	slave := air.Attach(0x81000001, 40)

	require.NoError(t, slave.StartNeighborScan(mesh.DefaultChannelMask))
	got := drain(slave)
	require.Len(t, got, 1)
	assert.Equal(t, node.NeighborScanDone{Candidates: []mesh.Candidate{
		{Address: 0x1234, Channel: 18, LQI: 40},
		{Address: 0x5678, Channel: 25, LQI: 90},
	}}, got[0])

	require.NoError(t, slave.StartNeighborScan(1<<18))
	got = drain(slave)
	require.Len(t, got, 1)
	assert.Len(t, got[0].(node.NeighborScanDone).Candidates, 1)
}

func TestEnergyScan(t *testing.T) {
	t.Parallel()

	air := NewAir()
	for ch := uint8(mesh.ChannelBase); ch <= mesh.ChannelMax; ch++ {
		air.SetNoise(ch, 100)
	}
	air.SetNoise(18, 3)
	air.SetNoise(22, 3)

	master := air.Attach(0x1234, 200)
	require.NoError(t, master.StartEnergyScan(mesh.DefaultChannelMask))
	got := drain(master)
	require.Len(t, got, 1)

	samples := got[0].(node.EnergyScanDone).Samples
	require.Len(t, samples, 16)
	ch, ok := mesh.SelectChannel(samples)
	require.True(t, ok)
	assert.Equal(t, uint8(18), ch)
}

func TestSetChannelAndSleep(t *testing.T) {
	t.Parallel()

	air := NewAir()
	p := air.Attach(0xA, 40)
	require.ErrorIs(t, p.SetChannel(10), felicanode.ErrInvalidParameter)
	require.ErrorIs(t, p.SetChannel(27), felicanode.ErrInvalidParameter)
	require.NoError(t, p.SetChannel(26))
	assert.Equal(t, uint8(26), p.Channel())

	require.NoError(t, p.Sleep(5*time.Second))
	assert.Equal(t, []time.Duration{5 * time.Second}, p.Sleeps())
}

func TestEventQueueOverflow(t *testing.T) {
	t.Parallel()

	air := NewAir()
	p := air.Attach(0xA, 40)
	for range EventBuffer {
		require.NoError(t, p.StartEnergyScan(0))
	}
	require.ErrorIs(t, p.StartEnergyScan(0), felicanode.ErrTransportWrite)
	assert.Len(t, drain(p), EventBuffer)
}

func TestWakeAfterSleep(t *testing.T) {
	t.Parallel()

	air := NewAir()
	p := air.Attach(0xA, 40)
	p.WakeAfterSleep(true)
	require.NoError(t, p.Sleep(10*time.Millisecond))

	select {
	case ev := <-p.Events():
		assert.Equal(t, node.StartUp{Wake: true}, ev)
	case <-time.After(time.Second):
		t.Fatal("no wake event")
	}
}
