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
	"fmt"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/mesh"
)

// Master is the collector node. It selects the quietest channel by energy
// scan, broadcasts keep-alives so its Slaves stay associated, and forwards
// their reports to the host sink. It retries channel selection forever.
type Master struct {
	lastKeepAlive time.Time
	reporter      Reporter
	core
	channel uint8
	onAir   bool
}

// NewMaster creates a Master in Idle
func NewMaster(self mesh.Address, hw Hardware, cfg *Config) *Master {
	reporter := hw.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Master{
		core:     newCore(self, hw, cfg),
		reporter: reporter,
	}
}

// Channel returns the selected channel and whether one was selected
func (m *Master) Channel() (uint8, bool) {
	return m.channel, m.onAir
}

// Dispatch handles one event
func (m *Master) Dispatch(now time.Time, ev Event) error {
	switch e := ev.(type) {
	case StartUp:
		if m.state != StateIdle {
			return nil
		}
		m.reporter.Initialized()
		m.transition(now, StateChannelScanInit)
		return nil
	case Tick:
		return m.onTick(now)
	case SecondTick:
		m.link.Tick1Hz()
		return nil
	case EnergyScanDone:
		return m.onEnergyScan(now, e.Samples)
	case PacketReceived:
		m.link.OnInbound(&e.Packet)
		return nil
	case TransmitDone:
		m.link.OnTransmitDone(e.CallbackID, e.OK)
		return nil
	case FrameReceived, NeighborScanDone:
		return nil
	default:
		return fmt.Errorf("master event %T: %w", ev, felicanode.ErrInvalidParameter)
	}
}

func (m *Master) onTick(now time.Time) error {
	switch m.state {
	case StateIdle:
		if !m.onAir {
			return nil
		}
		if !m.lastKeepAlive.IsZero() && now.Sub(m.lastKeepAlive) < m.cfg.KeepAliveInterval {
			return nil
		}
		m.lastKeepAlive = now
		if _, err := m.link.Broadcast(mesh.CommandKeepAlive, nil); err != nil {
			return fmt.Errorf("broadcast keep-alive: %w", err)
		}
		return nil

	case StateChannelScanInit:
		if m.elapsed(now) < m.cfg.SettleDelay {
			return nil
		}
		if err := m.platform.StartEnergyScan(m.cfg.ChannelMask); err != nil {
			m.transition(now, StateChannelScanInit)
			return fmt.Errorf("start energy scan: %w", err)
		}
		m.transition(now, StateChannelScanning)
		return nil

	case StateChannelScanning:
		if m.elapsed(now) < m.cfg.ScanTimeout {
			return nil
		}
		m.scanFailed(now)
		return nil

	case StateReaderReset, StateReaderInit, StatePolling, StateShuttingDown, StateSleeping:
		return fmt.Errorf("master cannot be in %v: %w", m.state, felicanode.ErrInvalidParameter)

	default:
		return fmt.Errorf("master state %v: %w", m.state, felicanode.ErrInvalidParameter)
	}
}

func (m *Master) onEnergyScan(now time.Time, samples []mesh.EnergySample) error {
	if m.state != StateChannelScanning {
		return nil
	}
	ch, ok := mesh.SelectChannel(samples)
	if !ok {
		m.scanFailed(now)
		return fmt.Errorf("energy scan: %w", felicanode.ErrNoCandidates)
	}
	if err := m.platform.SetChannel(ch); err != nil {
		m.scanFailed(now)
		return fmt.Errorf("set channel %d: %w", ch, err)
	}

	m.channel, m.onAir = ch, true
	m.lastKeepAlive = time.Time{}
	m.reporter.ChannelSelected(ch)
	m.transition(now, StateIdle)
	return nil
}

func (m *Master) scanFailed(now time.Time) {
	felicanode.Debugf("node %s: channel scan failed, retrying", m.link.Self())
	m.reporter.ScanTimedOut()
	m.transition(now, StateChannelScanInit)
}

type nopReporter struct{}

func (nopReporter) Initialized()          {}
func (nopReporter) ChannelSelected(uint8) {}
func (nopReporter) ScanTimedOut()         {}
