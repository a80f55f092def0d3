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

// Event is emitted by the session when something the node cares about
// happens. The set is closed: HandshakeComplete, CardPresented,
// CardRemoved, Timeout and ResetComplete.
type Event interface {
	readerEvent()
}

// HandshakeComplete reports the reader is configured and polling
type HandshakeComplete struct{}

// CardPresented reports a card arrived, or a different card replaced the
// previous one
type CardPresented struct {
	IDm IDm
	PMm PMm
}

// CardRemoved reports the previously presented card is gone
type CardRemoved struct {
	IDm IDm
}

// Timeout reports that the reader stopped answering in Stage
type Timeout struct {
	Stage string
}

// ResetComplete reports the reset cycle ended and the handshake restarted
type ResetComplete struct{}

func (HandshakeComplete) readerEvent() {}
func (CardPresented) readerEvent()     {}
func (CardRemoved) readerEvent()       {}
func (Timeout) readerEvent()           {}
func (ResetComplete) readerEvent()     {}
