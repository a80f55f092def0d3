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
	"errors"
	"fmt"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/frame"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/reader"
)

// Slave is the card-reading node. It finds a parent by neighbor scan,
// runs the reader session and sends every newly presented card to the
// parent. Persistent scan failure parks it in Sleeping until the platform
// wakes it.
type Slave struct {
	session *reader.Session
	core
}

// NewSlave creates a Slave in Idle
func NewSlave(self mesh.Address, hw Hardware, cfg *Config) *Slave {
	return &Slave{
		core:    newCore(self, hw, cfg),
		session: reader.NewSession(hw.Reader, hw.ResetLine, cfg.Reader),
	}
}

// Session exposes the reader session for inspection
func (s *Slave) Session() *reader.Session {
	return s.session
}

// Dispatch handles one event. Errors are informational; the state machine
// is consistent whatever they report.
func (s *Slave) Dispatch(now time.Time, ev Event) error {
	switch e := ev.(type) {
	case StartUp:
		return s.onStartUp(now, e.Wake)
	case Tick:
		return s.onTick(now)
	case SecondTick:
		return s.onSecond(now)
	case FrameReceived:
		return s.onFrame(now, e.Frame)
	case NeighborScanDone:
		return s.onNeighborScan(now, e.Candidates)
	case EnergyScanDone:
		return nil
	case PacketReceived:
		s.link.OnInbound(&e.Packet)
		return nil
	case TransmitDone:
		s.link.OnTransmitDone(e.CallbackID, e.OK)
		return nil
	default:
		return fmt.Errorf("slave event %T: %w", ev, felicanode.ErrInvalidParameter)
	}
}

func (s *Slave) onStartUp(now time.Time, wake bool) error {
	switch s.state {
	case StateSleeping:
		s.transition(now, StateIdle)
	case StateIdle:
	default:
		return nil
	}

	if !wake {
		s.link.Disassociate()
		return s.sleep(now)
	}
	s.link.OnKeepAliveOrAck()
	s.link.ResetScanFailures()
	s.transition(now, StateChannelScanInit)
	return nil
}

func (s *Slave) onTick(now time.Time) error {
	switch s.state {
	case StateIdle, StateSleeping:
		return nil

	case StateChannelScanInit:
		if s.link.Associated() {
			return s.startReader(now)
		}
		if s.elapsed(now) < s.cfg.SettleDelay {
			return nil
		}
		if err := s.platform.StartNeighborScan(s.cfg.ChannelMask); err != nil {
			s.link.RecordScanFailure()
			return errors.Join(fmt.Errorf("start neighbor scan: %w", err), s.afterScanFailure(now))
		}
		s.transition(now, StateChannelScanning)
		return nil

	case StateChannelScanning:
		s.link.OnKeepAliveOrAck()
		if s.elapsed(now) < s.cfg.ScanTimeout {
			return nil
		}
		felicanode.Debugf("node %s: neighbor scan timed out", s.link.Self())
		s.link.RecordScanFailure()
		return s.afterScanFailure(now)

	case StateReaderInit, StateReaderReset, StatePolling:
		evs, err := s.session.Tick(now)
		return errors.Join(err, s.onReader(now, evs))

	case StateShuttingDown:
		if s.elapsed(now) < s.cfg.ShutdownDelay {
			return nil
		}
		return s.sleep(now)

	default:
		return fmt.Errorf("slave state %v: %w", s.state, felicanode.ErrInvalidParameter)
	}
}

func (s *Slave) onSecond(now time.Time) error {
	if !s.link.Tick1Hz() {
		return nil
	}
	switch s.state {
	case StateReaderInit, StateReaderReset, StatePolling:
		_, err := s.session.Stop()
		s.transition(now, StateChannelScanInit)
		return err
	case StateIdle, StateChannelScanInit, StateChannelScanning, StateShuttingDown, StateSleeping:
		return nil
	default:
		return fmt.Errorf("slave state %v: %w", s.state, felicanode.ErrInvalidParameter)
	}
}

func (s *Slave) onFrame(now time.Time, f *frame.Frame) error {
	switch s.state {
	case StateReaderInit, StateReaderReset, StatePolling:
		evs, err := s.session.HandleFrame(now, f)
		return errors.Join(err, s.onReader(now, evs))
	default:
		return nil
	}
}

func (s *Slave) onNeighborScan(now time.Time, candidates []mesh.Candidate) error {
	if s.state != StateChannelScanning {
		return nil
	}
	c, ok := s.link.SelectParent(candidates)
	if !ok {
		return s.afterScanFailure(now)
	}
	if err := s.platform.SetChannel(c.Channel); err != nil {
		s.link.Disassociate()
		s.link.RecordScanFailure()
		return errors.Join(fmt.Errorf("set channel %d: %w", c.Channel, err), s.afterScanFailure(now))
	}
	return s.startReader(now)
}

// onReader applies reader session events
func (s *Slave) onReader(now time.Time, evs []reader.Event) error {
	var errs []error
	for _, ev := range evs {
		switch e := ev.(type) {
		case reader.HandshakeComplete:
			s.transition(now, StatePolling)
		case reader.CardPresented:
			if _, err := s.link.Send(mesh.CommandFelica, e.IDm[:]); err != nil {
				errs = append(errs, fmt.Errorf("report card %s: %w", e.IDm, err))
			}
		case reader.CardRemoved:
			felicanode.Debugf("node %s: card %s left the field", s.link.Self(), e.IDm)
		case reader.Timeout:
			if _, err := s.link.Send(mesh.CommandDebug, []byte("reader timeout in "+e.Stage)); err != nil {
				errs = append(errs, fmt.Errorf("report reader timeout: %w", err))
			}
			s.transition(now, StateReaderReset)
		case reader.ResetComplete:
			s.transition(now, StateReaderInit)
		default:
			errs = append(errs, fmt.Errorf("reader event %T: %w", ev, felicanode.ErrInvalidParameter))
		}
	}
	return errors.Join(errs...)
}

func (s *Slave) startReader(now time.Time) error {
	s.transition(now, StateReaderInit)
	return s.session.Start(now)
}

func (s *Slave) afterScanFailure(now time.Time) error {
	if !s.link.ScanExhausted() {
		s.transition(now, StateChannelScanInit)
		return nil
	}
	s.transition(now, StateShuttingDown)
	if _, err := s.session.Stop(); err != nil {
		return fmt.Errorf("switch reader off: %w", err)
	}
	return nil
}

func (s *Slave) sleep(now time.Time) error {
	s.transition(now, StateSleeping)
	if err := s.platform.Sleep(s.cfg.SleepInterval); err != nil {
		return fmt.Errorf("sleep: %w", err)
	}
	return nil
}
