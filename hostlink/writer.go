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

package hostlink

import (
	"encoding/json"
	"fmt"
	"io"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/syncutil"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/node"
)

var (
	_ mesh.Sink     = (*Writer)(nil)
	_ node.Reporter = (*Writer)(nil)
)

// Writer emits Master output as JSON lines. It is the Master's packet sink
// and lifecycle reporter at once, and is safe for concurrent use.
type Writer struct {
	w   io.Writer
	err error
	mu  syncutil.Mutex
}

// NewWriter writes lines to w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes m as a single line
func (w *Writer) Write(m Message) error {
	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode host line: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(line); err != nil {
		err = fmt.Errorf("write host line: %w", err)
		if w.err == nil {
			w.err = err
		}
		return err
	}
	return nil
}

// Err returns the first write error seen by the sink methods
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Deliver writes a forwarded packet
func (w *Writer) Deliver(p mesh.Packet) {
	m, ok := FromPacket(p)
	if !ok {
		return
	}
	w.emit(m)
}

// Initialized reports Master start-up
func (w *Writer) Initialized() {
	w.emit(Message{Status: StatusInitialize})
}

// ChannelSelected reports the channel the Master settled on
func (w *Writer) ChannelSelected(ch uint8) {
	w.emit(Message{Status: StatusChannelSelected, Channel: ch})
}

// ScanTimedOut reports an energy scan that never completed
func (w *Writer) ScanTimedOut() {
	w.emit(Message{Status: StatusTimeout})
}

func (w *Writer) emit(m Message) {
	if err := w.Write(m); err != nil {
		felicanode.Debugf("hostlink: %v", err)
	}
}

// MultiSink fans packets out to several sinks in order
type MultiSink []mesh.Sink

// Deliver passes p to every sink
func (s MultiSink) Deliver(p mesh.Packet) {
	for _, sink := range s {
		sink.Deliver(p)
	}
}
