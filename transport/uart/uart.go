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

// Package uart connects the reader over a USB serial adapter.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/syncutil"
	"github.com/ZaparooProject/felicanode/reader"
)

// DefaultBaudRate is the reader's fixed line rate
const DefaultBaudRate = 115200

var _ reader.Sender = (*Transport)(nil)

// port is the part of serial.Port the transport uses
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Transport is a serial link to the reader. Send may be called from the
// node goroutine while Run feeds received bytes from another.
type Transport struct {
	port     port
	portName string
	writeMu  syncutil.Mutex
	closeMu  syncutil.Mutex
	closed   bool
}

// readTimeout bounds each blocking read so Run notices cancellation
func readTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// Open opens portName at baud 8N1. Transient failures such as a busy port
// are retried with cfg.
func Open(ctx context.Context, portName string, baud int, cfg *felicanode.RetryConfig) (*Transport, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	var p serial.Port
	err := felicanode.RetryWithConfig(ctx, cfg, func() error {
		var err error
		p, err = serial.Open(portName, mode)
		if err != nil {
			return felicanode.NewTransportError("open", portName, err, !isDisconnection(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := p.SetReadTimeout(readTimeout()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	felicanode.Debugf("uart: opened %s at %d baud", portName, baud)
	return newTransport(p, portName), nil
}

func newTransport(p port, portName string) *Transport {
	return &Transport{port: p, portName: portName}
}

// Name returns the port path
func (t *Transport) Name() string {
	return t.portName
}

// Send writes one encoded frame and waits for it to leave the UART
func (t *Transport) Send(data []byte) error {
	if t.isClosed() {
		return felicanode.NewTransportError("send", t.portName, felicanode.ErrTransportClosed, false)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	felicanode.Debugf("uart: TX %s", felicanode.FormatHex(data))
	n, err := t.port.Write(data)
	if err != nil {
		return felicanode.NewTransportError("send", t.portName, err, !isDisconnection(err))
	}
	if n != len(data) {
		return felicanode.NewTransportWriteError("send", t.portName)
	}
	return t.drain()
}

// Run reads bytes into out until ctx is done or the device goes away.
// Read timeouts are not errors.
func (t *Transport) Run(ctx context.Context, out chan<- byte) error {
	buf := make([]byte, 64)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			if t.isClosed() {
				return nil
			}
			return felicanode.NewTransportError("read", t.portName, fmt.Errorf("%w: %w", felicanode.ErrTransportRead, err), !isDisconnection(err))
		}
		if n == 0 {
			continue
		}

		for _, b := range buf[:n] {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Read blocks until at least one byte arrives. It returns io.EOF once the
// transport is closed, which lets line readers stop cleanly.
func (t *Transport) Read(p []byte) (int, error) {
	for {
		n, err := t.port.Read(p)
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			if t.isClosed() {
				return 0, io.EOF
			}
			return 0, felicanode.NewTransportError("read", t.portName, fmt.Errorf("%w: %w", felicanode.ErrTransportRead, err), !isDisconnection(err))
		}
		if n > 0 {
			return n, nil
		}
		if t.isClosed() {
			return 0, io.EOF
		}
	}
}

// Close releases the port. Run returns nil once the pending read fails.
func (t *Transport) Close() error {
	t.closeMu.Lock()
	if t.closed {
		t.closeMu.Unlock()
		return nil
	}
	t.closed = true
	t.closeMu.Unlock()

	if err := t.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.portName, err)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()
	return t.closed
}

// drain waits for the OS buffer to flush, retrying interrupted calls
func (t *Transport) drain() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) || attempt == maxRetries-1 {
			return felicanode.NewTransportError("drain", t.portName, err, !isDisconnection(err))
		}
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return nil
}

func isInterruptedSystemCall(err error) bool {
	return errors.Is(err, syscall.EINTR) || strings.Contains(err.Error(), "interrupted system call")
}

// isDisconnection reports errors that mean the adapter was unplugged or
// the port cannot be used at all
func isDisconnection(err error) bool {
	if err == nil {
		return false
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		//nolint:exhaustive // only codes that mean the device is gone
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		default:
			return false
		}
	}

	if felicanode.IsFatal(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "no such device") ||
		strings.Contains(errStr, "broken pipe")
}
