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

// Command hostclient reads a Master's host lines from a serial port and
// prints card reports, optionally numbering them as CSV, publishing them
// to an MQTT broker or posting them to a touch tracking API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	"github.com/ZaparooProject/felicanode/hostlink"
	"github.com/ZaparooProject/felicanode/transport/uart"
)

// touchKeyEnv names the environment variable holding the touch API key
const touchKeyEnv = "TOUCH_API_KEY"

type config struct {
	devicePath  string
	mqttURL     string
	touchURL    string
	touchKey    string
	touchOffset time.Duration
	baud        int
	startIndex  int
	csv         bool
	debug       bool
}

// Package-level flag variables
var (
	flagDevicePath  string
	flagMQTT        string
	flagTouchURL    string
	flagTouchOffset time.Duration
	flagBaud        int
	flagStartIndex  int
	flagCSV         bool
	flagDebug       bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Master serial port (auto-detect if empty)")
	flag.IntVar(&flagBaud, "baud", uart.DefaultBaudRate, "Master baud rate")
	flag.StringVar(&flagMQTT, "mqtt", "", "Publish card reports to this broker, e.g. mqtt://host:1883/venue")
	flag.StringVar(&flagTouchURL, "touch-url", os.Getenv("TOUCH_API_URL"),
		"POST card reports to this touch tracking API (key from "+touchKeyEnv+")")
	flag.DurationVar(&flagTouchOffset, "touch-offset", 0, "Shift the local time reported to the touch API")
	flag.BoolVar(&flagCSV, "csv", false, "Print numbered index,idm rows and skip repeated cards")
	flag.IntVar(&flagStartIndex, "start-index", 560, "First row number in CSV mode")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath:  flagDevicePath,
		mqttURL:     flagMQTT,
		touchURL:    flagTouchURL,
		touchKey:    os.Getenv(touchKeyEnv),
		touchOffset: flagTouchOffset,
		baud:        flagBaud,
		startIndex:  flagStartIndex,
		csv:         flagCSV,
		debug:       flagDebug,
	}

	if cfg.debug {
		felicanode.SetDebugEnabled(true)
	}

	return cfg
}

// printer renders card reports for the terminal and hands them on to
// any forwarders
type printer struct {
	w       io.Writer
	forward []func(hostlink.Message)
	index   int
	csv     bool
}

func (p *printer) handlers() hostlink.Handlers {
	return hostlink.Handlers{
		OnFelica: p.onFelica,
		OnDebug: func(m hostlink.Message) {
			felicanode.Debugf("%s: %s", m.MacAddress, m.Text)
		},
		OnStatus: func(m hostlink.Message) {
			if m.Status == hostlink.StatusChannelSelected {
				felicanode.Debugf("master on channel %d", m.Channel)
				return
			}
			felicanode.Debugf("master status %s %s", m.Status, m.Data)
		},
	}
}

func (p *printer) onFelica(m hostlink.Message) {
	if p.csv {
		_, _ = fmt.Fprintf(p.w, "%d,%s\n", p.index, m.IDm)
		p.index++
	} else {
		_, _ = fmt.Fprintf(p.w, "Card %s at %s\n", m.IDm, m.MacAddress)
	}
	for _, fn := range p.forward {
		fn(m)
	}
}

func newClient(cfg *config, r io.Reader, w io.Writer, forward ...func(hostlink.Message)) *hostlink.Client {
	p := &printer{w: w, forward: forward, index: cfg.startIndex, csv: cfg.csv}
	var opts []hostlink.ClientOption
	if cfg.csv {
		opts = append(opts, hostlink.SuppressRepeats())
	}
	return hostlink.NewClient(r, p.handlers(), opts...)
}

func openPort(ctx context.Context, cfg *config) (*uart.Transport, error) {
	path := cfg.devicePath
	if path == "" {
		ports, err := uart.Detect()
		if err != nil {
			return nil, fmt.Errorf("failed to find the master: %w", err)
		}
		path = ports[0]
	}
	tr, err := uart.Open(ctx, path, cfg.baud, felicanode.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return tr, nil
}

// startWorker runs fn in the background; the returned func cancels it
// and waits for it to return
func startWorker(ctx context.Context, fn func(context.Context) error) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			felicanode.Debugf("forwarder stopped: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func run(ctx context.Context, cfg *config) error {
	tr, err := openPort(ctx, cfg)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = tr.Close() })
	defer stop()
	defer func() { _ = tr.Close() }()

	var forward []func(hostlink.Message)
	if cfg.mqttURL != "" {
		pub, disconnect, err := dialBroker(ctx, cfg.mqttURL)
		if err != nil {
			return err
		}
		defer disconnect()
		defer startWorker(ctx, pub.Run)()
		forward = append(forward, pub.OnFelica)
	}
	if cfg.touchURL != "" {
		touch, err := hostlink.NewTouchForwarder(hostlink.TouchConfig{
			URL:        cfg.touchURL,
			APIKey:     cfg.touchKey,
			DateOffset: cfg.touchOffset,
		})
		if err != nil {
			return fmt.Errorf("failed to set up touch API: %w", err)
		}
		defer startWorker(ctx, touch.Run)()
		forward = append(forward, touch.OnFelica)
	}

	_, _ = fmt.Fprintf(os.Stderr, "Listening on %s. Press Ctrl+C to stop...\n", tr.Name())
	if err := newClient(cfg, tr, os.Stdout, forward...).Run(ctx); err != nil {
		return err
	}
	return ctx.Err()
}

func dialBroker(ctx context.Context, url string) (*hostlink.Publisher, func(), error) {
	pub, client, err := hostlink.Dial(ctx, url, felicanode.DefaultRetryConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return pub, func() { client.Disconnect(250) }, nil
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Fprint(os.Stderr, "\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
