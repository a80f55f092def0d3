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

import "fmt"

// State is a node's position in its lifecycle. Masters only use Idle,
// ChannelScanInit and ChannelScanning.
type State int

const (
	StateIdle State = iota
	StateChannelScanInit
	StateChannelScanning
	StateReaderReset
	StateReaderInit
	StatePolling
	StateShuttingDown
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateChannelScanInit:
		return "ChannelScanInit"
	case StateChannelScanning:
		return "ChannelScanning"
	case StateReaderReset:
		return "ReaderReset"
	case StateReaderInit:
		return "ReaderInit"
	case StatePolling:
		return "Polling"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateSleeping:
		return "Sleeping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Feedback is notified on every state transition. Implementations drive
// LEDs or buzzers and must not block.
type Feedback interface {
	OnTransition(from, to State)
}

// FeedbackFunc adapts a function to Feedback
type FeedbackFunc func(from, to State)

// OnTransition calls f
func (f FeedbackFunc) OnTransition(from, to State) {
	f(from, to)
}
