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

// Package mesh keeps a node associated with its parent on the sensor
// mesh and moves application packets to and from it.
//
// The radio itself (MAC, PHY, acknowledgments, MAC level retries) is
// external; the LinkManager only builds packets, hands them to a Radio,
// accounts for their outcome and filters what comes back.
package mesh

import (
	"fmt"
	"strconv"
	"strings"

	felicanode "github.com/ZaparooProject/felicanode"
)

// Address is a node's 32-bit mesh address
type Address uint32

const (
	// Unassociated marks a missing parent
	Unassociated Address = 0
	// Broadcast reaches every node on the channel
	Broadcast Address = 0xFFFFFFFF
)

// String renders the address the way the host line protocol does
func (a Address) String() string {
	return fmt.Sprintf("%08X", uint32(a))
}

// ParseAddress accepts a hex address with or without a 0x prefix
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Unassociated, fmt.Errorf("parse address %q: %w", s, err)
	}
	return Address(v), nil
}

// Command identifies what a packet carries
type Command uint8

// Protocol commands. The first six are reserved by the mesh protocol;
// application commands start at CommandAppUser.
const (
	CommandQuestion Command = 0x01
	CommandPower    Command = 0x02
	CommandAnswer   Command = 0x03
	CommandRequest  Command = 0x04
	CommandResponse Command = 0x05
	CommandStatus   Command = 0x06

	CommandAppUser Command = 0x10

	// CommandDebug carries free-form text from a Slave
	CommandDebug = CommandAppUser
	// CommandKeepAlive is empty and only refreshes the disconnect timer
	CommandKeepAlive = CommandAppUser + 1
	// CommandFelica carries the 8-byte IDm of a presented card
	CommandFelica = CommandAppUser + 2
)

func (c Command) String() string {
	switch c {
	case CommandQuestion:
		return "question"
	case CommandPower:
		return "power"
	case CommandAnswer:
		return "answer"
	case CommandRequest:
		return "request"
	case CommandResponse:
		return "response"
	case CommandStatus:
		return "status"
	case CommandDebug:
		return "debug"
	case CommandKeepAlive:
		return "keep-alive"
	case CommandFelica:
		return "felica"
	default:
		return fmt.Sprintf("command(0x%02X)", uint8(c))
	}
}

// MaxPayload is the largest application payload one packet carries
const MaxPayload = 98

// Packet is one application packet on the mesh
type Packet struct {
	Payload      []byte
	Src          Address
	Dst          Address
	Command      Command
	Seq          uint8
	CallbackID   uint8
	LQI          uint8
	Retries      uint8
	AckRequested bool
}

// Validate checks the payload fits in one packet
func (p *Packet) Validate() error {
	if len(p.Payload) > MaxPayload {
		return fmt.Errorf("%s payload of %d bytes: %w", p.Command, len(p.Payload), felicanode.ErrPayloadTooLarge)
	}
	return nil
}
