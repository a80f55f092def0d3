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
	"github.com/ZaparooProject/felicanode/internal/frame"
	"github.com/ZaparooProject/felicanode/mesh"
)

// Event is everything a node reacts to. The set is closed; Dispatch
// rejects anything else.
type Event interface {
	nodeEvent()
}

// StartUp is delivered once after power up. Wake is set when the node
// resumed from a timed sleep with its RAM retained.
type StartUp struct {
	Wake bool
}

// Tick is the fast periodic tick (4 ms on the reference hardware)
type Tick struct{}

// SecondTick is the 1 Hz tick
type SecondTick struct{}

// FrameReceived carries a frame decoded from the reader's byte stream
type FrameReceived struct {
	Frame *frame.Frame
}

// NeighborScanDone reports the parents a neighbor scan found
type NeighborScanDone struct {
	Candidates []mesh.Candidate
}

// EnergyScanDone reports per-channel noise levels
type EnergyScanDone struct {
	Samples []mesh.EnergySample
}

// PacketReceived carries an inbound mesh packet
type PacketReceived struct {
	Packet mesh.Packet
}

// TransmitDone reports the outcome of a queued transmission
type TransmitDone struct {
	CallbackID uint8
	OK         bool
}

func (StartUp) nodeEvent()          {}
func (Tick) nodeEvent()             {}
func (SecondTick) nodeEvent()       {}
func (FrameReceived) nodeEvent()    {}
func (NeighborScanDone) nodeEvent() {}
func (EnergyScanDone) nodeEvent()   {}
func (PacketReceived) nodeEvent()   {}
func (TransmitDone) nodeEvent()     {}
