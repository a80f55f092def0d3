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

// Stage is where the session is in the handshake/poll cycle. Every
// variant records when it was entered.
type Stage interface {
	// Since is the time the stage was entered
	Since() time.Time
	String() string
	readerStage()
}

// Idle is the stage before Start
type Idle struct{}

// AwaitingReset waits for the Reset reply
type AwaitingReset struct{ Entered time.Time }

// AwaitingConfig1 waits for the RF timings reply
type AwaitingConfig1 struct{ Entered time.Time }

// AwaitingConfig2 waits for the retry configuration reply
type AwaitingConfig2 struct{ Entered time.Time }

// AwaitingConfig3 waits for the wait time configuration reply
type AwaitingConfig3 struct{ Entered time.Time }

// Polling has a poll command in flight
type Polling struct{ Entered time.Time }

// ResetPending drives the reset line and cancel frames before the
// handshake restarts
type ResetPending struct {
	Entered  time.Time
	Released bool
	Cancels  int
}

func (Idle) Since() time.Time              { return time.Time{} }
func (s AwaitingReset) Since() time.Time   { return s.Entered }
func (s AwaitingConfig1) Since() time.Time { return s.Entered }
func (s AwaitingConfig2) Since() time.Time { return s.Entered }
func (s AwaitingConfig3) Since() time.Time { return s.Entered }
func (s Polling) Since() time.Time         { return s.Entered }
func (s *ResetPending) Since() time.Time   { return s.Entered }

func (Idle) String() string            { return "Idle" }
func (AwaitingReset) String() string   { return "AwaitingReset" }
func (AwaitingConfig1) String() string { return "AwaitingConfig1" }
func (AwaitingConfig2) String() string { return "AwaitingConfig2" }
func (AwaitingConfig3) String() string { return "AwaitingConfig3" }
func (Polling) String() string         { return "Polling" }
func (*ResetPending) String() string   { return "ResetPending" }

func (Idle) readerStage()            {}
func (AwaitingReset) readerStage()   {}
func (AwaitingConfig1) readerStage() {}
func (AwaitingConfig2) readerStage() {}
func (AwaitingConfig3) readerStage() {}
func (Polling) readerStage()         {}
func (*ResetPending) readerStage()   {}
