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

package reader

import "time"

// Config holds reader session timing
type Config struct {
	// PollTimeout bounds the wait for a matching response in every
	// handshake and polling stage
	PollTimeout time.Duration
	// ResetHold is how long the reset line stays asserted
	ResetHold time.Duration
	// ResetSettle is the wait after releasing the reset line
	ResetSettle time.Duration
	// ResetSpacing separates the cancel frames
	ResetSpacing time.Duration
	// ResetRepeat is the number of cancel frames sent before Reset
	ResetRepeat int
	// SystemCode is the FeliCa system code to poll for
	SystemCode uint16
}

// DefaultConfig returns the timing used by the reference hardware
func DefaultConfig() *Config {
	return &Config{
		PollTimeout:  200 * time.Millisecond,
		ResetHold:    20 * time.Millisecond,
		ResetSettle:  50 * time.Millisecond,
		ResetSpacing: 10 * time.Millisecond,
		ResetRepeat:  3,
		SystemCode:   DefaultSystemCode,
	}
}

// resetDuration is the time from entering ResetPending until Reset is sent
func (c *Config) resetDuration() time.Duration {
	return c.ResetHold + c.ResetSettle + time.Duration(c.ResetRepeat)*c.ResetSpacing
}
