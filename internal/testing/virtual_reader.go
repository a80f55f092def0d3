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

// Package testing provides test utilities including a wire-level
// RC-S620/S reader simulator.
//
// The VirtualReader decodes the frames written to it, answers each
// command with an ACK followed by a response the way the real reader
// does, and exposes knobs for card presence, silence and reset line
// behavior.
package testing

import (
	"context"

	"github.com/ZaparooProject/felicanode/internal/frame"
	"github.com/ZaparooProject/felicanode/internal/syncutil"
)

// VirtualReader simulates an RC-S620/S at the wire level. It implements
// io.ReadWriter, the reader session's Sender, and the ResetLine.
type VirtualReader struct {
	decoder  *frame.Decoder
	notify   chan struct{}
	idm      *[8]byte
	pmm      [8]byte
	pending  []byte
	commands [][]byte
	cancels  int
	resets   int
	mu       syncutil.Mutex
	silent   bool
	asserted bool
}

// NewVirtualReader creates a powered, responsive reader with no card
func NewVirtualReader() *VirtualReader {
	return &VirtualReader{
		decoder: frame.NewDecoder(frame.DefaultCapacity),
		notify:  make(chan struct{}, 1),
		pmm:     TestPMm,
	}
}

// Write accepts host frames. Each complete command is logged and, unless
// the reader is silent or held in reset, answered.
func (v *VirtualReader) Write(data []byte) (int, error) {
	v.mu.Lock()
	for _, b := range data {
		f, _ := v.decoder.Feed(b)
		if f == nil {
			continue
		}
		v.handle(f)
	}
	ready := len(v.pending) > 0
	v.mu.Unlock()

	if ready {
		v.signal()
	}
	return len(data), nil
}

// Send implements the reader session's Sender
func (v *VirtualReader) Send(data []byte) error {
	_, err := v.Write(data)
	return err
}

// Read drains queued reply bytes. It never blocks and returns 0, nil
// when nothing is queued.
func (v *VirtualReader) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := copy(buf, v.pending)
	v.pending = v.pending[n:]
	return n, nil
}

// Drain returns and clears every queued reply byte
func (v *VirtualReader) Drain() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := v.pending
	v.pending = nil
	return out
}

// Run copies reply bytes into out until ctx is cancelled
func (v *VirtualReader) Run(ctx context.Context, out chan<- byte) error {
	for {
		for _, b := range v.Drain() {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case <-v.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Assert holds the reader in reset; it drops queued replies and ignores
// commands until Release.
func (v *VirtualReader) Assert() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.asserted = true
	v.resets++
	v.pending = nil
	v.decoder.Reset()
	return nil
}

// Release lets the reader run again
func (v *VirtualReader) Release() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.asserted = false
	return nil
}

// PlaceCard puts a card in the field
func (v *VirtualReader) PlaceCard(idm [8]byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.idm = &idm
}

// RemoveCard empties the field
func (v *VirtualReader) RemoveCard() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.idm = nil
}

// SetSilent stops (or resumes) all replies, simulating a hung reader
func (v *VirtualReader) SetSilent(silent bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.silent = silent
}

// Commands returns a copy of every command payload received, TFI included
func (v *VirtualReader) Commands() [][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([][]byte, len(v.commands))
	copy(out, v.commands)
	return out
}

// CommandCount returns how many commands with the given code arrived
func (v *VirtualReader) CommandCount(code byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for _, cmd := range v.commands {
		if len(cmd) > 1 && cmd[1] == code {
			count++
		}
	}
	return count
}

// Cancels returns how many cancel (ACK) frames the host sent
func (v *VirtualReader) Cancels() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cancels
}

// Resets returns how many times the reset line was asserted
func (v *VirtualReader) Resets() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.resets
}

// handle answers one decoded host frame; the caller holds mu
func (v *VirtualReader) handle(f *frame.Frame) {
	if f.Kind == frame.KindAck {
		v.cancels++
		return
	}
	v.commands = append(v.commands, f.Payload)
	if v.silent || v.asserted || len(f.Payload) < 2 || f.Payload[0] != frame.HostToReader {
		return
	}

	var reply []byte
	switch f.Payload[1] {
	case CmdReset:
		reply = BuildResetResponse()
	case CmdRFConfiguration:
		reply = BuildRFConfigurationResponse()
	case CmdInListPassiveTarget:
		if v.idm != nil {
			reply = BuildPollResponse(*v.idm, v.pmm)
		} else {
			reply = BuildNoCardResponse()
		}
	default:
		reply = BuildErrorResponse(f.Payload[1], 0x01)
	}

	v.pending = append(v.pending, frame.AckFrame...)
	v.pending = append(v.pending, frame.MustEncodeCommand(reply)...)
}

func (v *VirtualReader) signal() {
	select {
	case v.notify <- struct{}{}:
	default:
	}
}
