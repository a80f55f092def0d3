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

	"github.com/ZaparooProject/felicanode/internal/frame"
	vt "github.com/ZaparooProject/felicanode/internal/testing"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

const (
	slaveAddr  mesh.Address = 0x81000001
	masterAddr mesh.Address = 0x1234
)

type fakePlatform struct {
	scanErr       error
	neighborScans []uint32
	energyScans   []uint32
	channels      []uint8
	sleeps        []time.Duration
}

func (p *fakePlatform) StartNeighborScan(mask uint32) error {
	p.neighborScans = append(p.neighborScans, mask)
	return p.scanErr
}

func (p *fakePlatform) StartEnergyScan(mask uint32) error {
	p.energyScans = append(p.energyScans, mask)
	return p.scanErr
}

func (p *fakePlatform) SetChannel(ch uint8) error {
	p.channels = append(p.channels, ch)
	return nil
}

func (p *fakePlatform) Sleep(d time.Duration) error {
	p.sleeps = append(p.sleeps, d)
	return nil
}

type fakeRadio struct {
	sent []*mesh.Packet
}

func (r *fakeRadio) Transmit(p *mesh.Packet) error {
	r.sent = append(r.sent, p)
	return nil
}

func (r *fakeRadio) byCommand(cmd mesh.Command) []*mesh.Packet {
	var out []*mesh.Packet
	for _, p := range r.sent {
		if p.Command == cmd {
			out = append(out, p)
		}
	}
	return out
}

type fakeSink struct {
	delivered []mesh.Packet
}

func (s *fakeSink) Deliver(p mesh.Packet) {
	s.delivered = append(s.delivered, p)
}

type fakeReporter struct {
	initialized int
	timeouts    int
	channels    []uint8
}

func (r *fakeReporter) Initialized()             { r.initialized++ }
func (r *fakeReporter) ChannelSelected(ch uint8) { r.channels = append(r.channels, ch) }
func (r *fakeReporter) ScanTimedOut()            { r.timeouts++ }

type transition struct {
	from, to State
}

// slaveRig drives a Slave by hand against a virtual reader
type slaveRig struct {
	t           *testing.T
	slave       *Slave
	platform    *fakePlatform
	radio       *fakeRadio
	v           *vt.VirtualReader
	decoder     *frame.Decoder
	transitions []transition
	now         time.Time
}

func newSlaveRig(t *testing.T) *slaveRig {
	t.Helper()
	r := &slaveRig{
		t:        t,
		platform: &fakePlatform{},
		radio:    &fakeRadio{},
		v:        vt.NewVirtualReader(),
		decoder:  frame.NewDecoder(0),
		now:      t0,
	}
	hw := Hardware{
		Platform:  r.platform,
		Radio:     r.radio,
		Reader:    r.v,
		ResetLine: r.v,
		Feedback: FeedbackFunc(func(from, to State) {
			r.transitions = append(r.transitions, transition{from: from, to: to})
		}),
	}
	r.slave = NewSlave(slaveAddr, hw, DefaultSlaveConfig())
	return r
}

func (r *slaveRig) dispatch(ev Event) {
	r.t.Helper()
	require.NoError(r.t, r.slave.Dispatch(r.now, ev))
}

func (r *slaveRig) tickAfter(d time.Duration) {
	r.t.Helper()
	r.now = r.now.Add(d)
	r.dispatch(Tick{})
}

// pump delivers queued reader replies as frames, advancing the clock a
// little per round
func (r *slaveRig) pump(rounds int) {
	r.t.Helper()
	for range rounds {
		r.now = r.now.Add(4 * time.Millisecond)
		for _, b := range r.v.Drain() {
			if f, _ := r.decoder.Feed(b); f != nil {
				r.dispatch(FrameReceived{Frame: f})
			}
		}
	}
}

// associate boots the Slave and adopts the parent on channel 18
func (r *slaveRig) associate() {
	r.t.Helper()
	r.dispatch(StartUp{Wake: true})
	r.tickAfter(200 * time.Millisecond)
	require.Equal(r.t, StateChannelScanning, r.slave.State())
	r.dispatch(NeighborScanDone{Candidates: []mesh.Candidate{{Address: masterAddr, Channel: 18, LQI: 40}}})
	require.Equal(r.t, StateReaderInit, r.slave.State())
}

// poll boots, associates and completes the reader handshake
func (r *slaveRig) poll() {
	r.t.Helper()
	r.associate()
	r.pump(4)
	require.Equal(r.t, StatePolling, r.slave.State())
}
