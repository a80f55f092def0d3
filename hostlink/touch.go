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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/mesh"
)

const (
	// TouchRequestTimeout bounds a single POST to the touch API
	TouchRequestTimeout = 5 * time.Second
	// TouchDateLayout is the local timestamp format the touch API expects
	TouchDateLayout = "2006-01-02T15:04:05.000000"
	// TouchAPIKeyHeader carries the API key on every request
	TouchAPIKeyHeader = "X-API-KEY"
)

// TouchConfig configures a TouchForwarder
type TouchConfig struct {
	// HTTPClient defaults to a client with TouchRequestTimeout
	HTTPClient *http.Client
	// Retry defaults to felicanode.DefaultRetryConfig
	Retry  *felicanode.RetryConfig
	URL    string
	APIKey string
	// DateOffset shifts the local time reported with each touch
	DateOffset time.Duration
}

// touch is the body posted for one card report
type touch struct {
	Date   string `json:"date"`
	Mac    string `json:"mac"`
	CardID string `json:"card_id"`
}

// TouchForwarder posts every card report to a touch tracking API as
// {"date", "mac", "card_id"}. Like Publisher it queues reports and sends
// them from Run.
type TouchForwarder struct {
	client *http.Client
	retry  *felicanode.RetryConfig
	queue  *reportQueue
	now    func() time.Time
	url    string
	apiKey string
	offset time.Duration
}

// NewTouchForwarder validates cfg.URL and builds a forwarder
func NewTouchForwarder(cfg TouchConfig) (*TouchForwarder, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse touch url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("touch url %q: %w", cfg.URL, felicanode.ErrInvalidParameter)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: TouchRequestTimeout}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = felicanode.DefaultRetryConfig()
	}

	return &TouchForwarder{
		client: client,
		retry:  retry,
		queue:  newReportQueue("touch"),
		now:    time.Now,
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		offset: cfg.DateOffset,
	}, nil
}

// Post sends one card report, retrying network failures and server
// errors. Other message types are ignored.
func (f *TouchForwarder) Post(ctx context.Context, m Message) error {
	if m.Type != TypeFelica {
		return nil
	}
	body, err := json.Marshal(touch{
		Date:   f.now().Add(f.offset).Format(TouchDateLayout),
		Mac:    m.MacAddress,
		CardID: m.IDm,
	})
	if err != nil {
		return fmt.Errorf("encode touch: %w", err)
	}

	return felicanode.RetryWithConfig(ctx, f.retry, func() error {
		return f.post(ctx, body)
	})
}

func (f *TouchForwarder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build touch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TouchAPIKeyHeader, f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return felicanode.NewTransportError("post", f.url, err, true)
	}
	defer func() { _ = resp.Body.Close() }()
	reply, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
		err := fmt.Errorf("status %d: %w", resp.StatusCode, felicanode.ErrRequestRejected)
		return felicanode.NewTransportError("post", f.url, err, true)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return fmt.Errorf("touch api status %d %q: %w", resp.StatusCode, bytes.TrimSpace(reply), felicanode.ErrRequestRejected)
	}

	felicanode.Debugf("touch: %s", bytes.TrimSpace(reply))
	return nil
}

// Enqueue hands a card report to Run without blocking
func (f *TouchForwarder) Enqueue(m Message) bool {
	return f.queue.enqueue(m)
}

// Dropped returns how many reports were lost to a full queue
func (f *TouchForwarder) Dropped() uint64 {
	return f.queue.dropped.Load()
}

// Run posts queued reports until ctx is done
func (f *TouchForwarder) Run(ctx context.Context) error {
	return f.queue.run(ctx, f.Post)
}

// OnFelica adapts Enqueue to a Client handler
func (f *TouchForwarder) OnFelica(m Message) {
	f.Enqueue(m)
}

// Deliver lets a Master forward touches as a mesh.Sink
func (f *TouchForwarder) Deliver(pkt mesh.Packet) {
	if m, ok := FromPacket(pkt); ok {
		f.Enqueue(m)
	}
}
