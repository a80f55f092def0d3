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

package node

import (
	"testing"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	vt "github.com/ZaparooProject/felicanode/internal/testing"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type masterRig struct {
	master   *Master
	platform *fakePlatform
	radio    *fakeRadio
	sink     *fakeSink
	reporter *fakeReporter
	now      time.Time
}

func newMasterRig() *masterRig {
	r := &masterRig{
		platform: &fakePlatform{},
		radio:    &fakeRadio{},
		sink:     &fakeSink{},
		reporter: &fakeReporter{},
		now:      t0,
	}
	r.master = NewMaster(masterAddr, Hardware{
		Platform: r.platform,
		Radio:    r.radio,
		Sink:     r.sink,
		Reporter: r.reporter,
	}, DefaultMasterConfig())
	return r
}

func (r *masterRig) dispatch(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, r.master.Dispatch(r.now, ev))
}

func (r *masterRig) tickAfter(t *testing.T, d time.Duration) {
	t.Helper()
	r.now = r.now.Add(d)
	r.dispatch(t, Tick{})
}

// onAir boots the Master onto channel 15
func (r *masterRig) onAir(t *testing.T) {
	t.Helper()
	r.dispatch(t, StartUp{})
	r.tickAfter(t, 200*time.Millisecond)
	require.Equal(t, StateChannelScanning, r.master.State())
	r.dispatch(t, EnergyScanDone{Samples: []mesh.EnergySample{
		{Channel: 11, Level: 40},
		{Channel: 15, Level: 3},
		{Channel: 20, Level: 3},
		{Channel: 26, Level: 90},
	}})
	require.Equal(t, StateIdle, r.master.State())
}

func TestMaster_SelectsQuietestChannel(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.dispatch(t, StartUp{})
	assert.Equal(t, 1, r.reporter.initialized)
	assert.Equal(t, StateChannelScanInit, r.master.State())

	r.tickAfter(t, 199*time.Millisecond)
	assert.Empty(t, r.platform.energyScans)
	r.tickAfter(t, time.Millisecond)
	assert.Equal(t, []uint32{mesh.DefaultChannelMask}, r.platform.energyScans)

	r.dispatch(t, EnergyScanDone{Samples: []mesh.EnergySample{
		{Channel: 11, Level: 40},
		{Channel: 15, Level: 3},
		{Channel: 20, Level: 3},
	}})
	assert.Equal(t, StateIdle, r.master.State())
	assert.Equal(t, []uint8{15}, r.platform.channels)
	assert.Equal(t, []uint8{15}, r.reporter.channels)

	ch, ok := r.master.Channel()
	assert.True(t, ok)
	assert.Equal(t, uint8(15), ch)

	// a second StartUp is ignored once running
	r.dispatch(t, StartUp{})
	assert.Equal(t, 1, r.reporter.initialized)
}

func TestMaster_KeepAliveCadence(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.onAir(t)

	r.tickAfter(t, 4*time.Millisecond)
	keepAlives := r.radio.byCommand(mesh.CommandKeepAlive)
	require.Len(t, keepAlives, 1)
	assert.Equal(t, mesh.Broadcast, keepAlives[0].Dst)
	assert.Equal(t, masterAddr, keepAlives[0].Src)
	assert.False(t, keepAlives[0].AckRequested)
	assert.Empty(t, keepAlives[0].Payload)

	r.tickAfter(t, 4999*time.Millisecond)
	assert.Len(t, r.radio.byCommand(mesh.CommandKeepAlive), 1)
	r.tickAfter(t, time.Millisecond)
	assert.Len(t, r.radio.byCommand(mesh.CommandKeepAlive), 2)
}

func TestMaster_NoKeepAliveBeforeChannel(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	for range 10 {
		r.tickAfter(t, time.Second)
	}
	r.dispatch(t, StartUp{})
	r.tickAfter(t, 200*time.Millisecond)
	for range 10 {
		r.tickAfter(t, 100*time.Millisecond)
	}
	assert.Empty(t, r.radio.sent)
}

func TestMaster_ScanTimeoutRetriesForever(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.dispatch(t, StartUp{})

	for attempt := 1; attempt <= 20; attempt++ {
		r.tickAfter(t, 200*time.Millisecond)
		require.Equal(t, StateChannelScanning, r.master.State())
		r.tickAfter(t, 2*time.Second)
		require.Equal(t, StateChannelScanInit, r.master.State())
	}
	assert.Equal(t, 20, r.reporter.timeouts)
	assert.Len(t, r.platform.energyScans, 20)
	assert.Empty(t, r.platform.sleeps)
}

func TestMaster_EmptyEnergyScan(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.dispatch(t, StartUp{})
	r.tickAfter(t, 200*time.Millisecond)

	err := r.master.Dispatch(r.now, EnergyScanDone{})
	require.ErrorIs(t, err, felicanode.ErrNoCandidates)
	assert.Equal(t, StateChannelScanInit, r.master.State())
	assert.Equal(t, 1, r.reporter.timeouts)
}

func TestMaster_ForwardsSlaveTraffic(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.onAir(t)

	idm := vt.TestIDm
	packets := []mesh.Packet{
		{Src: slaveAddr, Dst: masterAddr, Command: mesh.CommandFelica, Seq: 1, Payload: idm[:]},
		{Src: slaveAddr, Dst: masterAddr, Command: mesh.CommandFelica, Seq: 1, Payload: idm[:]},
		{Src: slaveAddr + 1, Dst: masterAddr, Command: mesh.CommandDebug, Seq: 1, Payload: []byte("hi")},
		{Src: slaveAddr, Dst: masterAddr, Command: mesh.CommandStatus, Seq: 2},
		{Src: slaveAddr, Dst: mesh.Broadcast, Command: mesh.CommandKeepAlive, Seq: 3},
	}
	for _, p := range packets {
		r.dispatch(t, PacketReceived{Packet: p})
	}

	require.Len(t, r.sink.delivered, 3)
	assert.Equal(t, mesh.CommandFelica, r.sink.delivered[0].Command)
	assert.Equal(t, idm[:], r.sink.delivered[0].Payload)
	assert.Equal(t, mesh.CommandDebug, r.sink.delivered[1].Command)
	assert.Equal(t, mesh.CommandStatus, r.sink.delivered[2].Command)

	stats := r.master.Link().Stats()
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Forwarded)
}

func TestMaster_IgnoresReaderAndNeighborEvents(t *testing.T) {
	t.Parallel()

	r := newMasterRig()
	r.dispatch(t, FrameReceived{})
	r.dispatch(t, NeighborScanDone{Candidates: []mesh.Candidate{{Address: slaveAddr, Channel: 12}}})
	r.dispatch(t, SecondTick{})
	assert.Equal(t, StateIdle, r.master.State())
	assert.False(t, r.master.Link().Associated())

	// an energy result outside a scan is ignored
	r.dispatch(t, EnergyScanDone{Samples: []mesh.EnergySample{{Channel: 11}}})
	_, ok := r.master.Channel()
	assert.False(t, ok)
}

func TestNew(t *testing.T) {
	t.Parallel()

	platform := &fakePlatform{}
	radio := &fakeRadio{}
	v := vt.NewVirtualReader()

	tests := []struct {
		cfg     *Config
		name    string
		hw      Hardware
		wantErr bool
		isSlave bool
	}{
		{
			name:    "slave",
			hw:      Hardware{Platform: platform, Radio: radio, Reader: v, ResetLine: v},
			cfg:     DefaultSlaveConfig(),
			isSlave: true,
		},
		{
			name: "master without reader",
			hw:   Hardware{Platform: platform, Radio: radio},
			cfg:  DefaultMasterConfig(),
		},
		{
			name:    "slave without reader",
			hw:      Hardware{Platform: platform, Radio: radio},
			cfg:     DefaultSlaveConfig(),
			wantErr: true,
		},
		{
			name:    "missing radio",
			hw:      Hardware{Platform: platform, Reader: v},
			cfg:     DefaultSlaveConfig(),
			wantErr: true,
		},
		{
			name:    "missing platform",
			hw:      Hardware{Radio: radio},
			cfg:     DefaultMasterConfig(),
			wantErr: true,
		},
		{
			name:    "nil config",
			hw:      Hardware{Platform: platform, Radio: radio},
			wantErr: true,
		},
		{
			name:    "unknown role",
			hw:      Hardware{Platform: platform, Radio: radio},
			cfg:     &Config{Role: Role(9)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := New(slaveAddr, tt.hw, tt.cfg)
			if tt.wantErr {
				require.ErrorIs(t, err, felicanode.ErrInvalidParameter)
				assert.Nil(t, n)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StateIdle, n.State())
			assert.Equal(t, slaveAddr, n.Link().Self())
			_, isSlave := n.(*Slave)
			assert.Equal(t, tt.isSlave, isSlave)
		})
	}
}
