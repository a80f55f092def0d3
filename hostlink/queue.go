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
	"context"
	"sync/atomic"

	felicanode "github.com/ZaparooProject/felicanode"
)

// QueueSize is how many card reports may wait for a slow remote end
const QueueSize = 64

// reportQueue buffers card reports between a caller that must not block
// and a goroutine that talks to the network
type reportQueue struct {
	ch      chan Message
	name    string
	dropped atomic.Uint64
}

func newReportQueue(name string) *reportQueue {
	return &reportQueue{ch: make(chan Message, QueueSize), name: name}
}

// enqueue accepts card reports only and never blocks
func (q *reportQueue) enqueue(m Message) bool {
	if m.Type != TypeFelica {
		return false
	}
	select {
	case q.ch <- m:
		return true
	default:
		q.dropped.Add(1)
		felicanode.Debugf("%s: queue full, dropped card %s from %s", q.name, m.IDm, m.MacAddress)
		return false
	}
}

func (q *reportQueue) run(ctx context.Context, send func(context.Context, Message) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-q.ch:
			if err := send(ctx, m); err != nil {
				felicanode.Debugf("%s: %v", q.name, err)
			}
		}
	}
}
