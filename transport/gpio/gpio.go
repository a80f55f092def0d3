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

// Package gpio drives the reader's reset line from a host GPIO pin.
package gpio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/reader"
)

var _ reader.ResetLine = (*ResetLine)(nil)

// outPin is the part of gpio.PinIO the reset line drives
type outPin interface {
	Out(l gpio.Level) error
	Name() string
}

// ResetLine holds the reader in reset while asserted
type ResetLine struct {
	pin    outPin
	active gpio.Level
}

// Open looks up pinName (for example "GPIO17") and leaves the line
// released. activeLow selects a line that resets the reader when pulled
// low, which is how the reader's RSTPDN input is wired.
func Open(pinName string, activeLow bool) (*ResetLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %s: %w", pinName, felicanode.ErrDeviceNotFound)
	}
	return newResetLine(p, activeLow)
}

func newResetLine(p outPin, activeLow bool) (*ResetLine, error) {
	l := &ResetLine{pin: p, active: gpio.High}
	if activeLow {
		l.active = gpio.Low
	}
	if err := l.Release(); err != nil {
		return nil, err
	}
	felicanode.Debugf("gpio: reset line on %s, active %s", p.Name(), l.active)
	return l, nil
}

// Assert drives the line to its active level
func (l *ResetLine) Assert() error {
	return l.drive(l.active)
}

// Release drives the line to its inactive level
func (l *ResetLine) Release() error {
	return l.drive(!l.active)
}

func (l *ResetLine) drive(level gpio.Level) error {
	if err := l.pin.Out(level); err != nil {
		return felicanode.NewTransportError("gpio out", l.pin.Name(), err, true)
	}
	return nil
}
