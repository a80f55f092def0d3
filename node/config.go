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
	"github.com/ZaparooProject/felicanode/reader"
)

// Role selects the node variant
type Role int

const (
	RoleSlave Role = iota
	RoleMaster
)

func (r Role) String() string {
	switch r {
	case RoleSlave:
		return "slave"
	case RoleMaster:
		return "master"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole accepts "slave" or "master"
func ParseRole(s string) (Role, error) {
	switch s {
	case "slave":
		return RoleSlave, nil
	case "master":
		return RoleMaster, nil
	default:
		return RoleSlave, fmt.Errorf("role %q: %w", s, felicanode.ErrInvalidParameter)
	}
}

// Config holds node timing and the settings of the layers it owns
type Config struct {
	Reader *reader.Config
	Mesh   *mesh.Config
	// SettleDelay is the wait in ChannelScanInit before a scan starts
	SettleDelay time.Duration
	// ScanTimeout bounds ChannelScanning
	ScanTimeout time.Duration
	// ShutdownDelay is how long ShuttingDown lasts
	ShutdownDelay time.Duration
	// SleepInterval is the timed sleep requested when Sleeping is entered
	SleepInterval time.Duration
	// KeepAliveInterval is the Master's keep-alive broadcast period
	KeepAliveInterval time.Duration
	// ChannelMask selects the channels scanned
	ChannelMask uint32
	Role        Role
}

// DefaultSlaveConfig returns the Slave timing used by the reference nodes
func DefaultSlaveConfig() *Config {
	return &Config{
		Role:          RoleSlave,
		ChannelMask:   mesh.DefaultChannelMask,
		SettleDelay:   200 * time.Millisecond,
		ScanTimeout:   2500 * time.Millisecond,
		ShutdownDelay: 500 * time.Millisecond,
		SleepInterval: 5 * time.Second,
		Reader:        reader.DefaultConfig(),
		Mesh:          mesh.DefaultSlaveConfig(),
	}
}

// DefaultMasterConfig returns the Master timing used by the reference nodes
func DefaultMasterConfig() *Config {
	return &Config{
		Role:              RoleMaster,
		ChannelMask:       mesh.DefaultChannelMask,
		SettleDelay:       200 * time.Millisecond,
		ScanTimeout:       2 * time.Second,
		KeepAliveInterval: 5 * time.Second,
		Mesh:              mesh.DefaultMasterConfig(),
	}
}

// DefaultConfig returns the defaults for role
func DefaultConfig(role Role) *Config {
	if role == RoleMaster {
		return DefaultMasterConfig()
	}
	return DefaultSlaveConfig()
}
