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
	"fmt"

	felicanode "github.com/ZaparooProject/felicanode"
)

// Radio transmits packets on the current channel. Transmit only queues
// the packet; the outcome arrives later through OnTransmitDone.
type Radio interface {
	Transmit(p *Packet) error
}

// Sink receives the application payloads a node forwards to its host
type Sink interface {
	Deliver(p Packet)
}

// Candidate is a potential parent found by a neighbor scan
type Candidate struct {
	Address Address
	Channel uint8
	LQI     uint8
}

// ParentLink is the node's association with its parent
type ParentLink struct {
	Address         Address
	Channel         uint8
	DisconnectTimer int
	ScanFailures    int
}

// Stats counts link traffic
type Stats struct {
	Sent       int
	Delivered  int
	Dropped    int
	Duplicates int
	Forwarded  int
}

// LinkManager maintains the parent association and carries application
// packets. It is not safe for concurrent use.
type LinkManager struct {
	radio     Radio
	sink      Sink
	cfg       *Config
	lastSeq   map[Address]uint8
	parent    ParentLink
	stats     Stats
	self      Address
	seq       uint32
	globalSeq uint8
	haveSeq   bool
}

// NewLinkManager creates an unassociated manager. sink may be nil when
// nothing is forwarded; cfg nil selects DefaultSlaveConfig.
func NewLinkManager(self Address, radio Radio, sink Sink, cfg *Config) *LinkManager {
	if cfg == nil {
		cfg = DefaultSlaveConfig()
	}
	return &LinkManager{
		radio:   radio,
		sink:    sink,
		cfg:     cfg,
		self:    self,
		lastSeq: make(map[Address]uint8),
	}
}

// Self returns the node's own address
func (m *LinkManager) Self() Address {
	return m.self
}

// Parent returns a copy of the parent link
func (m *LinkManager) Parent() ParentLink {
	return m.parent
}

// Associated reports whether a parent is set
func (m *LinkManager) Associated() bool {
	return m.parent.Address != Unassociated
}

// Stats returns the traffic counters
func (m *LinkManager) Stats() Stats {
	return m.stats
}

// SelectParent adopts the candidate with the highest LQI, the first one
// seen on ties, and clears the scan failure count. An empty scan counts
// as a scan failure.
func (m *LinkManager) SelectParent(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		m.RecordScanFailure()
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.LQI > best.LQI {
			best = c
		}
	}
	m.parent.Address = best.Address
	m.parent.Channel = best.Channel
	m.parent.DisconnectTimer = 0
	m.ResetScanFailures()
	felicanode.Debugf("mesh: parent %s on channel %d (lqi %d)", best.Address, best.Channel, best.LQI)
	return best, true
}

// Disassociate forgets the parent. Scan failures are kept.
func (m *LinkManager) Disassociate() {
	m.parent = ParentLink{ScanFailures: m.parent.ScanFailures}
}

// RecordScanFailure counts a scan that produced no parent
func (m *LinkManager) RecordScanFailure() {
	m.parent.ScanFailures++
	felicanode.Debugf("mesh: scan failure %d/%d", m.parent.ScanFailures, m.cfg.MaxScanFailures)
}

// ScanExhausted reports whether consecutive scan failures exceed the limit
func (m *LinkManager) ScanExhausted() bool {
	return m.parent.ScanFailures > m.cfg.MaxScanFailures
}

// ResetScanFailures clears the failure count
func (m *LinkManager) ResetScanFailures() {
	m.parent.ScanFailures = 0
}

// Tick1Hz advances the disconnect timer. It returns true when the parent
// stayed silent for ReconnectTimeout and the link was dropped. Ticks are
// ignored while unassociated.
func (m *LinkManager) Tick1Hz() bool {
	if !m.Associated() {
		return false
	}
	m.parent.DisconnectTimer++
	if m.parent.DisconnectTimer < m.cfg.reconnectTicks() {
		return false
	}
	felicanode.Debugf("mesh: parent %s silent for %ds, disconnecting", m.parent.Address, m.parent.DisconnectTimer)
	m.Disassociate()
	return true
}

// OnKeepAliveOrAck records parent liveness
func (m *LinkManager) OnKeepAliveOrAck() {
	m.parent.DisconnectTimer = 0
}

// Send addresses an application packet to the parent using the command's
// retry policy. It returns the callback ID the radio reports back with.
func (m *LinkManager) Send(cmd Command, payload []byte) (uint8, error) {
	if !m.Associated() {
		return 0, fmt.Errorf("send %s: %w", cmd, felicanode.ErrNotAssociated)
	}
	return m.transmit(m.parent.Address, cmd, payload, m.cfg.Policy(cmd))
}

// Broadcast sends an unacknowledged packet to every node on the channel
func (m *LinkManager) Broadcast(cmd Command, payload []byte) (uint8, error) {
	return m.transmit(Broadcast, cmd, payload, RetryPolicy{})
}

func (m *LinkManager) transmit(dst Address, cmd Command, payload []byte, policy RetryPolicy) (uint8, error) {
	seq := uint8(m.seq)
	p := &Packet{
		Src:          m.self,
		Dst:          dst,
		Command:      cmd,
		Seq:          seq,
		CallbackID:   seq,
		Payload:      append([]byte(nil), payload...),
		AckRequested: policy.Ack,
		Retries:      policy.Retries,
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}

	m.seq++
	if err := m.radio.Transmit(p); err != nil {
		m.stats.Dropped++
		return seq, fmt.Errorf("transmit %s to %s: %w", cmd, dst, err)
	}
	m.stats.Sent++
	return seq, nil
}

// OnTransmitDone accounts for a completed transmission. A success proves
// the parent is alive; a failure means the radio exhausted its retries and
// the packet is dropped.
func (m *LinkManager) OnTransmitDone(callbackID uint8, ok bool) {
	if !ok {
		m.stats.Dropped++
		felicanode.Debugf("mesh: packet cb=%d dropped", callbackID)
		return
	}
	m.stats.Delivered++
	if m.Associated() {
		m.OnKeepAliveOrAck()
	}
}

// OnInbound filters and dispatches a received packet. It returns whether
// the packet was dispatched; duplicates and unknown commands are not.
func (m *LinkManager) OnInbound(p *Packet) bool {
	if m.duplicate(p) {
		m.stats.Duplicates++
		felicanode.Debugf("mesh: duplicate %s seq=%d from %s", p.Command, p.Seq, p.Src)
		return false
	}

	switch p.Command {
	case CommandKeepAlive:
		if m.Associated() && p.Src == m.parent.Address {
			m.OnKeepAliveOrAck()
		}
		return true
	case CommandDebug, CommandStatus, CommandFelica:
		if m.sink != nil {
			m.sink.Deliver(*p)
			m.stats.Forwarded++
		}
		return true
	default:
		return false
	}
}

// duplicate records p's sequence number and reports whether it repeats the
// last accepted one
func (m *LinkManager) duplicate(p *Packet) bool {
	if m.cfg.Dedup == DedupGlobal {
		dup := m.haveSeq && m.globalSeq == p.Seq
		m.globalSeq, m.haveSeq = p.Seq, true
		return dup
	}
	last, seen := m.lastSeq[p.Src]
	m.lastSeq[p.Src] = p.Seq
	return seen && last == p.Seq
}
