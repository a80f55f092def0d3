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

// Package loopback is an in-memory radio medium. Nodes attached to one Air
// exchange packets when they share a channel, see advertising nodes in
// neighbor scans and measure configurable noise in energy scans. Every
// result is queued as a node event for the owning Runner.
package loopback

import (
	"fmt"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/syncutil"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/node"
)

// EventBuffer is the per-port event queue depth
const EventBuffer = 64

// Air is the shared medium
type Air struct {
	noise map[uint8]uint8
	ports []*Port
	mu    syncutil.Mutex
}

// NewAir creates an empty, silent medium
func NewAir() *Air {
	return &Air{noise: make(map[uint8]uint8)}
}

// SetNoise sets the energy level an energy scan reports for channel
func (a *Air) SetNoise(channel, level uint8) {
	syncutil.Locked(&a.mu, func() { a.noise[channel] = level })
}

// Attach adds a node to the air. lqi is the link quality other nodes
// measure for its packets.
func (a *Air) Attach(addr mesh.Address, lqi uint8) *Port {
	p := &Port{
		air:    a,
		addr:   addr,
		lqi:    lqi,
		events: make(chan node.Event, EventBuffer),
	}
	syncutil.Locked(&a.mu, func() { a.ports = append(a.ports, p) })
	return p
}

// Port is one node's radio. It implements mesh.Radio and node.Platform.
type Port struct {
	air       *Air
	events    chan node.Event
	sleeps    []time.Duration
	addr      mesh.Address
	channel   uint8
	lqi       uint8
	advertise bool
	wake      bool
}

// Events is the queue the owning Runner consumes
func (p *Port) Events() <-chan node.Event {
	return p.events
}

// Advertise makes the port show up in other nodes' neighbor scans
func (p *Port) Advertise(on bool) {
	syncutil.Locked(&p.air.mu, func() { p.advertise = on })
}

// Channel returns the port's current channel
func (p *Port) Channel() uint8 {
	p.air.mu.Lock()
	defer p.air.mu.Unlock()
	return p.channel
}

// Sleeps returns every sleep interval requested so far
func (p *Port) Sleeps() []time.Duration {
	p.air.mu.Lock()
	defer p.air.mu.Unlock()
	return append([]time.Duration(nil), p.sleeps...)
}

// Transmit delivers p to every matching port on the sender's channel and
// queues the transmit outcome for the sender. Acknowledged unicast fails
// when the destination is not listening.
func (p *Port) Transmit(pkt *mesh.Packet) error {
	if err := pkt.Validate(); err != nil {
		return err
	}

	p.air.mu.Lock()
	defer p.air.mu.Unlock()

	delivered := false
	for _, dst := range p.air.ports {
		if dst == p || dst.channel != p.channel {
			continue
		}
		if pkt.Dst != mesh.Broadcast && pkt.Dst != dst.addr {
			continue
		}
		in := *pkt
		in.Payload = append([]byte(nil), pkt.Payload...)
		in.LQI = p.lqi
		if dst.post(node.PacketReceived{Packet: in}) {
			delivered = true
		}
	}

	ok := delivered || !pkt.AckRequested
	p.post(node.TransmitDone{CallbackID: pkt.CallbackID, OK: ok})
	return nil
}

// StartNeighborScan reports every advertising port on a channel in mask
func (p *Port) StartNeighborScan(mask uint32) error {
	p.air.mu.Lock()
	defer p.air.mu.Unlock()

	var found []mesh.Candidate
	for _, other := range p.air.ports {
		if other == p || !other.advertise || mask&(1<<other.channel) == 0 {
			continue
		}
		found = append(found, mesh.Candidate{Address: other.addr, Channel: other.channel, LQI: other.lqi})
	}
	if !p.post(node.NeighborScanDone{Candidates: found}) {
		return fmt.Errorf("neighbor scan result: %w", felicanode.ErrTransportWrite)
	}
	return nil
}

// StartEnergyScan reports the configured noise of every channel in mask
func (p *Port) StartEnergyScan(mask uint32) error {
	p.air.mu.Lock()
	defer p.air.mu.Unlock()

	channels := mesh.Channels(mask)
	levels := make([]uint8, len(channels))
	for i, ch := range channels {
		levels[i] = p.air.noise[ch]
	}
	if !p.post(node.EnergyScanDone{Samples: mesh.SamplesFromScan(mask, levels)}) {
		return fmt.Errorf("energy scan result: %w", felicanode.ErrTransportWrite)
	}
	return nil
}

// SetChannel retunes the port
func (p *Port) SetChannel(ch uint8) error {
	if ch < mesh.ChannelBase || ch > mesh.ChannelMax {
		return fmt.Errorf("channel %d: %w", ch, felicanode.ErrInvalidParameter)
	}
	syncutil.Locked(&p.air.mu, func() { p.channel = ch })
	return nil
}

// Sleep records the request. The node stays asleep unless WakeAfterSleep
// is on or its driver sends a StartUp.
func (p *Port) Sleep(d time.Duration) error {
	p.air.mu.Lock()
	defer p.air.mu.Unlock()
	p.sleeps = append(p.sleeps, d)
	if p.wake {
		time.AfterFunc(d, func() {
			p.post(node.StartUp{Wake: true})
		})
	}
	return nil
}

// WakeAfterSleep makes Sleep queue a timed StartUp once the interval has
// passed, the way the radio's sleep timer wakes a real node
func (p *Port) WakeAfterSleep(on bool) {
	syncutil.Locked(&p.air.mu, func() { p.wake = on })
}

// post queues ev without blocking
func (p *Port) post(ev node.Event) bool {
	select {
	case p.events <- ev:
		return true
	default:
		felicanode.Debugf("loopback %s: event queue full, dropping %T", p.addr, ev)
		return false
	}
}
