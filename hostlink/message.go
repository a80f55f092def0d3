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

// Package hostlink carries Master output to a host computer as one JSON
// object per line, and reads it back on the host side.
package hostlink

import (
	"encoding/hex"
	"strings"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/reader"
)

// Message types carried in the "type" field
const (
	TypeFelica = "felica"
	TypeDebug  = "debug"
	TypeStatus = "status"
)

// Master lifecycle values carried in the "status" field
const (
	StatusInitialize      = "initialize"
	StatusChannelSelected = "channel selected"
	StatusTimeout         = "timeout"
)

// Message is one host line. Lifecycle lines set Status; forwarded packets
// set Type and MacAddress.
type Message struct {
	Status     string `json:"status,omitempty"`
	Type       string `json:"type,omitempty"`
	MacAddress string `json:"macaddress,omitempty"`
	IDm        string `json:"idm,omitempty"`
	Text       string `json:"text,omitempty"`
	Data       string `json:"data,omitempty"`
	Channel    uint8  `json:"channel,omitempty"`
}

// FromPacket converts a forwarded mesh packet. Packets that have no host
// representation return false.
func FromPacket(p mesh.Packet) (Message, bool) {
	m := Message{MacAddress: p.Src.String()}
	switch p.Command {
	case mesh.CommandFelica:
		idm, err := reader.IDmFromBytes(p.Payload)
		if err != nil {
			felicanode.Debugf("hostlink: felica from %s: %v", p.Src, err)
			return Message{}, false
		}
		m.Type = TypeFelica
		m.IDm = idm.String()
	case mesh.CommandDebug:
		m.Type = TypeDebug
		m.Text = string(p.Payload)
	case mesh.CommandStatus:
		m.Type = TypeStatus
		m.Data = strings.ToUpper(hex.EncodeToString(p.Payload))
	default:
		return Message{}, false
	}
	return m, true
}

// Source returns the sender address of a forwarded packet
func (m Message) Source() (mesh.Address, error) {
	return mesh.ParseAddress(m.MacAddress)
}
