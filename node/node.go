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

// Package node runs the per-node state machines of the FeliCa mesh.
//
// A Slave scans for a parent, drives its reader through the handshake and
// polling cycle, and reports presented cards to the parent. A Master picks
// the quietest channel, keeps its Slaves alive and forwards their reports
// to the host. Both are driven by a single Dispatch entry point that is
// never reentered; the Runner serializes ticks, reader bytes and radio
// events into it.
package node

import (
	"fmt"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/reader"
)

// Platform is the radio stack and power control a node runs on. Scans
// are asynchronous: results arrive later as NeighborScanDone or
// EnergyScanDone events.
type Platform interface {
	StartNeighborScan(mask uint32) error
	StartEnergyScan(mask uint32) error
	SetChannel(ch uint8) error
	Sleep(d time.Duration) error
}

// Reporter receives the Master's host-facing status
type Reporter interface {
	Initialized()
	ChannelSelected(ch uint8)
	ScanTimedOut()
}

// Hardware bundles a node's collaborators. Reader and ResetLine are only
// used by Slaves, Reporter only by Masters. ResetLine, Sink, Reporter and
// Feedback are optional.
type Hardware struct {
	Platform  Platform
	Radio     mesh.Radio
	Reader    reader.Sender
	ResetLine reader.ResetLine
	Sink      mesh.Sink
	Reporter  Reporter
	Feedback  Feedback
}

// Node is a dispatchable state machine
type Node interface {
	Dispatch(now time.Time, ev Event) error
	State() State
	Link() *mesh.LinkManager
}

// New builds the node variant selected by cfg.Role
func New(self mesh.Address, hw Hardware, cfg *Config) (Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("node config: %w", felicanode.ErrInvalidParameter)
	}
	if hw.Platform == nil || hw.Radio == nil {
		return nil, fmt.Errorf("node platform and radio are required: %w", felicanode.ErrInvalidParameter)
	}
	switch cfg.Role {
	case RoleSlave:
		if hw.Reader == nil {
			return nil, fmt.Errorf("slave needs a reader: %w", felicanode.ErrInvalidParameter)
		}
		return NewSlave(self, hw, cfg), nil
	case RoleMaster:
		return NewMaster(self, hw, cfg), nil
	default:
		return nil, fmt.Errorf("role %v: %w", cfg.Role, felicanode.ErrInvalidParameter)
	}
}

// core is the state bookkeeping shared by both variants
type core struct {
	entered  time.Time
	platform Platform
	feedback Feedback
	link     *mesh.LinkManager
	cfg      *Config
	state    State
}

func newCore(self mesh.Address, hw Hardware, cfg *Config) core {
	return core{
		platform: hw.Platform,
		feedback: hw.Feedback,
		link:     mesh.NewLinkManager(self, hw.Radio, hw.Sink, cfg.Mesh),
		cfg:      cfg,
		state:    StateIdle,
	}
}

// State returns the current state
func (c *core) State() State {
	return c.state
}

// Link exposes the link manager for inspection
func (c *core) Link() *mesh.LinkManager {
	return c.link
}

// Entered returns when the current state was entered
func (c *core) Entered() time.Time {
	return c.entered
}

func (c *core) elapsed(now time.Time) time.Duration {
	return now.Sub(c.entered)
}

// transition records the new state and its entry time. Re-entering the
// current state restarts its timeout.
func (c *core) transition(now time.Time, to State) {
	from := c.state
	c.state = to
	c.entered = now
	felicanode.Debugf("node %s: %s -> %s", c.link.Self(), from, to)
	if c.feedback != nil {
		c.feedback.OnTransition(from, to)
	}
}
