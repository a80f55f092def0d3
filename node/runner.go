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
	"context"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/internal/frame"
)

// RunnerConfig configures the event loop
type RunnerConfig struct {
	// Now stamps every dispatched event
	Now func() time.Time
	// OnError observes dispatch errors; they are always logged
	OnError func(error)
	// TickInterval is the fast tick period
	TickInterval time.Duration
	// SecondInterval is the slow tick period
	SecondInterval time.Duration
	// DecoderCapacity bounds reader frame payloads
	DecoderCapacity int
}

// DefaultRunnerConfig returns the reference tick rates
func DefaultRunnerConfig() *RunnerConfig {
	return &RunnerConfig{
		Now:             time.Now,
		TickInterval:    4 * time.Millisecond,
		SecondInterval:  time.Second,
		DecoderCapacity: frame.DefaultCapacity,
	}
}

// Runner owns a node and is the only caller of its Dispatch. Reader bytes
// are decoded here, so the node only ever sees whole frames.
type Runner struct {
	node    Node
	decoder *frame.Decoder
	cfg     *RunnerConfig
}

// NewRunner wraps n; cfg nil selects DefaultRunnerConfig
func NewRunner(n Node, cfg *RunnerConfig) *Runner {
	if cfg == nil {
		cfg = DefaultRunnerConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		node:    n,
		decoder: frame.NewDecoder(cfg.DecoderCapacity),
		cfg:     cfg,
	}
}

// Node returns the wrapped node
func (r *Runner) Node() Node {
	return r.node
}

// Run serializes reader bytes, external events and both ticks into the
// node until ctx is done. A closed input channel is simply no longer
// read. Run must not be called concurrently with itself or Dispatch.
func (r *Runner) Run(ctx context.Context, in <-chan byte, events <-chan Event) error {
	fast := time.NewTicker(r.cfg.TickInterval)
	defer fast.Stop()
	slow := time.NewTicker(r.cfg.SecondInterval)
	defer slow.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			r.Feed(b)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.Dispatch(ev)

		case <-fast.C:
			r.Dispatch(Tick{})

		case <-slow.C:
			r.Dispatch(SecondTick{})
		}
	}
}

// Feed pushes one reader byte through the decoder and dispatches every
// frame it completes
func (r *Runner) Feed(b byte) {
	f, err := r.decoder.Feed(b)
	if err != nil {
		felicanode.Debugf("reader frame dropped: %v", err)
	}
	for ; f != nil; f = r.decoder.Next() {
		r.Dispatch(FrameReceived{Frame: f})
	}
}

// Dispatch stamps ev with the current time and hands it to the node
func (r *Runner) Dispatch(ev Event) {
	if err := r.node.Dispatch(r.cfg.Now(), ev); err != nil {
		felicanode.Debugf("dispatch %T in %v: %v", ev, r.node.State(), err)
		if r.cfg.OnError != nil {
			r.cfg.OnError(err)
		}
	}
}
