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

package frame

import (
	"fmt"

	felicanode "github.com/ZaparooProject/felicanode"
)

// Kind distinguishes acknowledgments from data-bearing responses
type Kind int

const (
	// KindAck is the fixed zero-length acknowledgment frame
	KindAck Kind = iota
	// KindResponse carries a checksum-validated payload
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindResponse:
		return "response"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Frame is a validated unit of reader communication. The payload of a
// decoded frame is owned by the receiver.
type Frame struct {
	Payload []byte
	Kind    Kind
}

// RespondsTo reports whether f is the reader's reply to cmd: the reply
// carries the reader TFI and the command code plus one.
func (f *Frame) RespondsTo(cmd []byte) bool {
	if f.Kind != KindResponse || len(f.Payload) < 2 || len(cmd) < 2 {
		return false
	}
	return f.Payload[0] == ReaderToHost && f.Payload[1] == cmd[1]+1
}

type phase int

const (
	phasePreamble phase = iota
	phaseLength
	phaseLengthChecksum
	phaseAckPostamble
	phasePayload
	phaseDataChecksum
	phasePostamble
)

// payloadOffset is where the payload starts in a held normal frame
const payloadOffset = HeaderLength + 2

// Decoder rebuilds frames from a byte stream delivered one byte at a time.
// It holds partial frames across calls. When a partial frame fails an
// integrity check, every byte after its first preamble byte is scanned
// again, so a real frame hidden behind noise is still found. Decoder is
// not safe for concurrent use.
type Decoder struct {
	held     []byte
	backlog  []byte
	ready    []Frame
	capacity int
	phase    phase
	cursor   int
	length   int
	n        int
	sum      byte
}

// NewDecoder creates a decoder whose payload buffer holds capacity bytes.
// A non-positive capacity selects DefaultCapacity.
func NewDecoder(capacity int) *Decoder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Decoder{
		held:     make([]byte, 0, capacity+payloadOffset+2),
		capacity: capacity,
	}
}

// Capacity returns the largest payload the decoder accepts
func (d *Decoder) Capacity() int {
	return d.capacity
}

// Buffered reports how many bytes of a partial frame the decoder holds,
// header included
func (d *Decoder) Buffered() int {
	return len(d.held)
}

// Reset drops any partial frame and any recovered frames not yet taken
func (d *Decoder) Reset() {
	d.restart()
	d.backlog = nil
	d.ready = nil
}

func (d *Decoder) restart() {
	d.phase = phasePreamble
	d.cursor = 0
	d.length = 0
	d.n = 0
	d.sum = 0
	d.held = d.held[:0]
}

// Feed consumes one byte. It returns a frame when b completes a valid
// one. A non-nil error reports why a partial frame was discarded; the
// decoder has already rescanned the discarded bytes and the error needs
// no handling beyond logging. Bytes that merely fail to match the
// preamble are skipped without an error.
//
// A rescan can complete more than one frame at once. Feed returns the
// first and Next hands out the rest.
func (d *Decoder) Feed(b byte) (*Frame, error) {
	d.backlog = append(d.backlog, b)

	var firstErr error
	for len(d.backlog) > 0 {
		c := d.backlog[0]
		d.backlog = d.backlog[1:]
		f, err := d.step(c)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if f != nil {
			d.ready = append(d.ready, *f)
		}
	}

	if f := d.Next(); f != nil {
		return f, nil
	}
	return nil, firstErr
}

// Next returns a frame completed by the last Feed that Feed itself did not
// return, or nil when there is none
func (d *Decoder) Next() *Frame {
	if len(d.ready) == 0 {
		return nil
	}
	f := d.ready[0]
	d.ready = d.ready[1:]
	return &f
}

func (d *Decoder) step(b byte) (*Frame, error) {
	if d.phase == phasePreamble {
		d.matchPreamble(b)
		d.held = append(d.held[:0], preamble[:d.cursor]...)
		if d.cursor == HeaderLength {
			d.phase = phaseLength
		}
		return nil, nil
	}

	d.held = append(d.held, b)

	switch d.phase {
	case phaseLength:
		d.length = int(b)
		d.phase = phaseLengthChecksum
		return nil, nil

	case phaseLengthChecksum:
		return nil, d.checkLength(b)

	case phaseAckPostamble:
		if b != Postamble {
			return nil, d.reject(fmt.Errorf("ack postamble 0x%02X: %w", b, felicanode.ErrFrameCorrupted))
		}
		d.restart()
		return &Frame{Kind: KindAck}, nil

	case phasePayload:
		d.n++
		d.sum += b
		if d.n == d.length {
			d.phase = phaseDataChecksum
		}
		return nil, nil

	case phaseDataChecksum:
		if !Verify(d.sum, b) {
			return nil, d.reject(fmt.Errorf("dcs 0x%02X for sum 0x%02X: %w", b, d.sum, felicanode.ErrChecksumMismatch))
		}
		d.phase = phasePostamble
		return nil, nil

	case phasePostamble:
		if b != Postamble {
			return nil, d.reject(fmt.Errorf("postamble 0x%02X: %w", b, felicanode.ErrFrameCorrupted))
		}
		payload := make([]byte, d.n)
		copy(payload, d.held[payloadOffset:payloadOffset+d.n])
		d.restart()
		return &Frame{Kind: KindResponse, Payload: payload}, nil

	default:
		return nil, d.reject(fmt.Errorf("decoder phase %d: %w", d.phase, felicanode.ErrFrameCorrupted))
	}
}

// reject discards the partial frame and queues everything after its first
// preamble byte for another scan, ahead of bytes already queued
func (d *Decoder) reject(err error) error {
	replay := make([]byte, 0, len(d.held)-1+len(d.backlog))
	replay = append(replay, d.held[1:]...)
	replay = append(replay, d.backlog...)
	d.backlog = replay
	d.restart()
	return err
}

// matchPreamble advances the preamble cursor. A zero arriving where the
// start code was expected keeps the last two zeros matched.
func (d *Decoder) matchPreamble(b byte) {
	switch {
	case b == preamble[d.cursor]:
		d.cursor++
	case d.cursor == HeaderLength-1 && b == Preamble:
	default:
		d.cursor = 0
	}
}

func (d *Decoder) checkLength(lcs byte) error {
	length := d.length
	switch {
	case length == 0 && lcs == 0xFF:
		d.phase = phaseAckPostamble
		return nil
	case length == ExtendedMarker && lcs == ExtendedMarker:
		return d.reject(felicanode.ErrExtendedFrame)
	case !Verify(byte(length), lcs):
		return d.reject(fmt.Errorf("len 0x%02X lcs 0x%02X: %w", length, lcs, felicanode.ErrLengthChecksum))
	case length > d.capacity:
		return d.reject(fmt.Errorf("declared %d bytes, capacity %d: %w", length, d.capacity, felicanode.ErrFrameTooLarge))
	}

	d.n = 0
	d.sum = 0
	if length == 0 {
		d.phase = phaseDataChecksum
	} else {
		d.phase = phasePayload
	}
	return nil
}

// DecodeAll feeds data through a fresh default decoder and collects every
// complete frame. Integrity errors are skipped the same way Feed skips them.
func DecodeAll(data []byte) []Frame {
	d := NewDecoder(DefaultCapacity)
	var frames []Frame
	for _, b := range data {
		if f, _ := d.Feed(b); f != nil {
			frames = append(frames, *f)
		}
		for f := d.Next(); f != nil; f = d.Next() {
			frames = append(frames, *f)
		}
	}
	return frames
}
