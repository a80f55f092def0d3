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

package felicanode

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Error categories shared by the codec, the reader session and the mesh layer
var (
	// Frame integrity errors - recovered locally by the decoder
	ErrFrameCorrupted   = errors.New("frame corrupted")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrLengthChecksum   = errors.New("length checksum mismatch")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrExtendedFrame    = errors.New("extended length frame not supported")

	// Transport errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrDeviceNotFound   = errors.New("device not found")

	// Mesh errors
	ErrNotAssociated   = errors.New("no parent associated")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrNoCandidates    = errors.New("no candidate found in scan")

	// Host-side service errors
	ErrRequestRejected = errors.New("request rejected by remote service")

	// Data errors - not retryable
	ErrInvalidParameter = errors.New("invalid parameter")
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error  // Underlying error
	Op        string // Operation that failed
	Port      string // Port or device identifier
	Retryable bool   // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, retryable bool) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Retryable: retryable,
	}
}

// NewTransportWriteError creates a short-write error (transient)
func NewTransportWriteError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportWrite, true)
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrLengthChecksum):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device is gone and the
// byte feeder should stop instead of retrying.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
