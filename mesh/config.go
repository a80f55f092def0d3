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

import "time"

// DedupMode selects how inbound duplicates are detected
type DedupMode int

const (
	// DedupPerPeer remembers the last sequence number of every sender
	DedupPerPeer DedupMode = iota
	// DedupGlobal remembers one sequence number shared by all senders
	DedupGlobal
)

func (m DedupMode) String() string {
	switch m {
	case DedupPerPeer:
		return "per-peer"
	case DedupGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// RetryPolicy is the radio acknowledgment policy for one command
type RetryPolicy struct {
	Ack     bool
	Retries uint8
}

// Config holds link manager settings
type Config struct {
	// Retry maps each command to its acknowledgment policy. Commands
	// missing from the map use DefaultRetryPolicy.
	Retry map[Command]RetryPolicy
	// ReconnectTimeout is how long the parent may stay silent before the
	// link is dropped
	ReconnectTimeout time.Duration
	// MaxScanFailures is how many consecutive failed scans are tolerated
	MaxScanFailures int
	Dedup           DedupMode
}

// DefaultRetryPolicy applies to commands without an explicit policy
var DefaultRetryPolicy = RetryPolicy{Ack: true, Retries: 1}

// DefaultRetryPolicies returns the per-command policies: keep-alives are
// fire-and-forget, debug text is retried once, card reports three times.
func DefaultRetryPolicies() map[Command]RetryPolicy {
	return map[Command]RetryPolicy{
		CommandKeepAlive: {Ack: false, Retries: 0},
		CommandDebug:     {Ack: true, Retries: 1},
		CommandFelica:    {Ack: true, Retries: 3},
	}
}

// DefaultSlaveConfig returns settings for a Slave following its Master
func DefaultSlaveConfig() *Config {
	return &Config{
		Retry:            DefaultRetryPolicies(),
		ReconnectTimeout: 10 * time.Second,
		MaxScanFailures:  5,
		Dedup:            DedupPerPeer,
	}
}

// DefaultMasterConfig returns settings for a Master observing its Slaves
func DefaultMasterConfig() *Config {
	cfg := DefaultSlaveConfig()
	cfg.ReconnectTimeout = 35 * time.Second
	return cfg
}

// Policy returns the retry policy for cmd
func (c *Config) Policy(cmd Command) RetryPolicy {
	if p, ok := c.Retry[cmd]; ok {
		return p
	}
	return DefaultRetryPolicy
}

// reconnectTicks is the ReconnectTimeout in whole 1 Hz ticks, at least one
func (c *Config) reconnectTicks() int {
	ticks := int(c.ReconnectTimeout / time.Second)
	if ticks < 1 {
		return 1
	}
	return ticks
}
