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

// Package reader drives an RC-S620/S class FeliCa reader: the four step
// configuration handshake, continuous polling with edge-triggered card
// events, and the timeout-driven reset cycle.
//
// A Session never blocks and never reads the clock. The caller feeds it
// decoded frames and periodic ticks, each stamped with the current time.
package reader

import (
	"fmt"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/frame"
)

// Sender writes an encoded frame to the reader
type Sender interface {
	Send(frame []byte) error
}

// ResetLine is the reader's hardware reset input
type ResetLine interface {
	Assert() error
	Release() error
}

// Encoded fixed commands
var (
	frameReset         = frame.MustEncodeCommand(cmdReset)
	frameConfigTimings = frame.MustEncodeCommand(cmdConfigTimings)
	frameConfigRetries = frame.MustEncodeCommand(cmdConfigRetries)
	frameConfigWait    = frame.MustEncodeCommand(cmdConfigWait)
	frameRFOff         = frame.MustEncodeCommand(cmdRFOff)
)

// Session is the reader handshake and polling state machine. It is not
// safe for concurrent use; the node serializes all calls.
type Session struct {
	tx        Sender
	line      ResetLine
	stage     Stage
	cfg       *Config
	pollCmd   []byte
	pollFrame []byte
	resets    int
	card      IDm
	pmm       PMm
	present   bool
}

// NewSession creates a session in the Idle stage. line may be nil when
// the reader has no reset line wired; cfg nil selects DefaultConfig.
func NewSession(tx Sender, line ResetLine, cfg *Config) *Session {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	pollCmd := pollCommand(cfg.SystemCode)
	return &Session{
		tx:        tx,
		line:      line,
		cfg:       cfg,
		stage:     Idle{},
		pollCmd:   pollCmd,
		pollFrame: frame.MustEncodeCommand(pollCmd),
	}
}

// Stage returns the current stage
func (s *Session) Stage() Stage {
	return s.stage
}

// Card returns the card currently in the field
func (s *Session) Card() (IDm, bool) {
	return s.card, s.present
}

// Resets returns how many reset cycles the session has started
func (s *Session) Resets() int {
	return s.resets
}

// Start sends Reset and begins the handshake. Any remembered card is
// forgotten without an event.
func (s *Session) Start(now time.Time) error {
	s.clearCard()
	s.enter(AwaitingReset{Entered: now})
	return s.send("reset", frameReset)
}

// Stop switches the RF field off and returns the session to Idle
func (s *Session) Stop() ([]Event, error) {
	evs := s.dropCard(nil)
	s.enter(Idle{})
	return evs, s.send("rf off", frameRFOff)
}

// BeginReset abandons the current stage and starts a reset cycle
func (s *Session) BeginReset(now time.Time) ([]Event, error) {
	evs := s.dropCard(nil)
	return evs, s.beginReset(now)
}

// HandleFrame advances the session on a decoded frame. Acknowledgments
// and responses that do not answer the outstanding command are ignored.
// A send error is returned after the stage has advanced; the stage
// timeout recovers from the lost command.
func (s *Session) HandleFrame(now time.Time, f *frame.Frame) ([]Event, error) {
	if f == nil || f.Kind != frame.KindResponse {
		return nil, nil
	}

	switch s.stage.(type) {
	case Idle, *ResetPending:
		return nil, nil

	case AwaitingReset:
		if !f.RespondsTo(cmdReset) {
			return nil, nil
		}
		s.enter(AwaitingConfig1{Entered: now})
		return nil, s.send("config timings", frameConfigTimings)

	case AwaitingConfig1:
		if !f.RespondsTo(cmdConfigTimings) {
			return nil, nil
		}
		s.enter(AwaitingConfig2{Entered: now})
		return nil, s.send("config retries", frameConfigRetries)

	case AwaitingConfig2:
		if !f.RespondsTo(cmdConfigRetries) {
			return nil, nil
		}
		s.enter(AwaitingConfig3{Entered: now})
		return nil, s.send("config wait", frameConfigWait)

	case AwaitingConfig3:
		if !f.RespondsTo(cmdConfigWait) {
			return nil, nil
		}
		s.enter(Polling{Entered: now})
		return []Event{HandshakeComplete{}}, s.send("poll", s.pollFrame)

	case Polling:
		if !f.RespondsTo(s.pollCmd) {
			return nil, nil
		}
		evs := s.observe(f.Payload)
		s.stage = Polling{Entered: now}
		return evs, s.send("poll", s.pollFrame)

	default:
		return nil, fmt.Errorf("reader stage %v: %w", s.stage, felicanode.ErrInvalidParameter)
	}
}

// Tick checks the stage timeout and drives the reset cycle
func (s *Session) Tick(now time.Time) ([]Event, error) {
	switch st := s.stage.(type) {
	case Idle:
		return nil, nil

	case *ResetPending:
		return s.tickReset(now, st)

	case AwaitingReset, AwaitingConfig1, AwaitingConfig2, AwaitingConfig3, Polling:
		if now.Sub(st.Since()) < s.cfg.PollTimeout {
			return nil, nil
		}
		evs := s.dropCard(nil)
		evs = append(evs, Timeout{Stage: st.String()})
		felicanode.Debugf("reader: no reply in %s after %v, resetting", st, now.Sub(st.Since()))
		return evs, s.beginReset(now)

	default:
		return nil, fmt.Errorf("reader stage %v: %w", s.stage, felicanode.ErrInvalidParameter)
	}
}

func (s *Session) beginReset(now time.Time) error {
	s.resets++
	s.enter(&ResetPending{Entered: now})
	if s.line == nil {
		return nil
	}
	if err := s.line.Assert(); err != nil {
		return fmt.Errorf("assert reset line: %w", err)
	}
	return nil
}

// tickReset walks the reset timeline: release the line after ResetHold,
// send ResetRepeat cancel frames ResetSpacing apart once ResetSettle has
// passed, then restart the handshake.
func (s *Session) tickReset(now time.Time, st *ResetPending) ([]Event, error) {
	elapsed := now.Sub(st.Entered)

	if !st.Released {
		if elapsed < s.cfg.ResetHold {
			return nil, nil
		}
		st.Released = true
		if s.line != nil {
			if err := s.line.Release(); err != nil {
				return nil, fmt.Errorf("release reset line: %w", err)
			}
		}
	}

	for st.Cancels < s.cfg.ResetRepeat {
		due := s.cfg.ResetHold + s.cfg.ResetSettle + time.Duration(st.Cancels)*s.cfg.ResetSpacing
		if elapsed < due {
			return nil, nil
		}
		st.Cancels++
		if err := s.send("cancel", frame.AckFrame); err != nil {
			return nil, err
		}
	}

	if elapsed < s.cfg.resetDuration() {
		return nil, nil
	}
	s.enter(AwaitingReset{Entered: now})
	return []Event{ResetComplete{}}, s.send("reset", frameReset)
}

// observe turns a poll reply into card edge events
func (s *Session) observe(payload []byte) []Event {
	idm, pmm, ok := parsePollReply(payload)
	switch {
	case ok && (!s.present || idm != s.card):
		s.card, s.pmm, s.present = idm, pmm, true
		felicanode.Debugf("reader: card %s presented", idm)
		return []Event{CardPresented{IDm: idm, PMm: pmm}}
	case !ok && s.present:
		return s.dropCard(nil)
	default:
		return nil
	}
}

// dropCard appends CardRemoved to evs when a card was present
func (s *Session) dropCard(evs []Event) []Event {
	if !s.present {
		return evs
	}
	felicanode.Debugf("reader: card %s removed", s.card)
	evs = append(evs, CardRemoved{IDm: s.card})
	s.clearCard()
	return evs
}

func (s *Session) clearCard() {
	s.card = IDm{}
	s.pmm = PMm{}
	s.present = false
}

func (s *Session) enter(next Stage) {
	felicanode.Debugf("reader: %s -> %s", s.stage, next)
	s.stage = next
}

func (s *Session) send(what string, b []byte) error {
	if err := s.tx.Send(b); err != nil {
		return fmt.Errorf("send %s: %w", what, err)
	}
	return nil
}
