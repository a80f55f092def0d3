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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	felicanode "github.com/ZaparooProject/felicanode"
)

// Handlers receive decoded host lines. Nil handlers are skipped.
type Handlers struct {
	OnFelica func(Message)
	OnDebug  func(Message)
	OnStatus func(Message)
}

// Client reads JSON lines written by a Master
type Client struct {
	r        io.Reader
	handlers Handlers
	lastIDm  string
	suppress bool
}

// ClientOption configures a Client
type ClientOption func(*Client)

// SuppressRepeats drops a card report whose IDm equals the previous one,
// whichever Slave sent it
func SuppressRepeats() ClientOption {
	return func(c *Client) {
		c.suppress = true
	}
}

// NewClient reads lines from r
func NewClient(r io.Reader, h Handlers, opts ...ClientOption) *Client {
	c := &Client{r: r, handlers: h}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run handles lines until r is exhausted or ctx is done. The context is
// checked between lines.
func (c *Client) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.HandleLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read host lines: %w", err)
	}
	return nil
}

// HandleLine decodes one line and dispatches it. Lines that are not JSON
// objects are debug output from the radio firmware and are ignored.
func (c *Client) HandleLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return
	}

	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		felicanode.Debugf("hostlink: undecodable line %q: %v", line, err)
		return
	}

	switch {
	case m.Type == TypeFelica:
		if c.suppress && m.IDm == c.lastIDm {
			felicanode.Debugf("hostlink: repeated card %s from %s", m.IDm, m.MacAddress)
			return
		}
		c.lastIDm = m.IDm
		call(c.handlers.OnFelica, m)
	case m.Type == TypeDebug:
		call(c.handlers.OnDebug, m)
	case m.Type == TypeStatus, m.Status != "":
		call(c.handlers.OnStatus, m)
	}
}

func call(fn func(Message), m Message) {
	if fn != nil {
		fn(m)
	}
}
