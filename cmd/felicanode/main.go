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

// Command felicanode runs a Slave node with its card reader together with
// an in-process Master on a loopback radio, printing the Master's host
// lines to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	felicanode "github.com/ZaparooProject/felicanode"
	vt "github.com/ZaparooProject/felicanode/internal/testing"
	"github.com/ZaparooProject/felicanode/hostlink"
	"github.com/ZaparooProject/felicanode/mesh"
	"github.com/ZaparooProject/felicanode/mesh/loopback"
	"github.com/ZaparooProject/felicanode/node"
	"github.com/ZaparooProject/felicanode/reader"
	"github.com/ZaparooProject/felicanode/transport/gpio"
	"github.com/ZaparooProject/felicanode/transport/uart"
)

const (
	defaultMasterAddr mesh.Address = 0x00000001
	fallbackSlaveAddr mesh.Address = 0x80000002
	machineIDApp                   = "felicanode"
)

type config struct {
	devicePath  string
	resetGPIO   string
	mqttURL     string
	slaveAddr   string
	logDir      string
	card        string
	tapInterval time.Duration
	baud        int
	simulate    bool
	debug       bool
}

// Package-level flag variables
var (
	flagDevicePath  string
	flagResetGPIO   string
	flagMQTT        string
	flagAddr        string
	flagLogDir      string
	flagCard        string
	flagTapInterval time.Duration
	flagBaud        int
	flagSimulate    bool
	flagDebug       bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Reader serial port (auto-detect if empty)")
	flag.IntVar(&flagBaud, "baud", uart.DefaultBaudRate, "Reader baud rate")
	flag.StringVar(&flagResetGPIO, "reset-gpio", "", "GPIO pin wired to the reader's reset input, e.g. GPIO17")
	flag.StringVar(&flagMQTT, "mqtt", "", "Also publish card reports to this broker, e.g. mqtt://host:1883/venue")
	flag.StringVar(&flagAddr, "addr", "", "Slave address in hex (derived from the machine ID if empty)")
	flag.StringVar(&flagLogDir, "log-dir", "", "Write a session log into this directory")
	flag.BoolVar(&flagSimulate, "simulate", false, "Use a virtual reader instead of a serial device")
	flag.StringVar(&flagCard, "card", vt.TestIDmHex, "IDm the virtual reader presents")
	flag.DurationVar(&flagTapInterval, "tap-interval", 3*time.Second, "How long the virtual card stays on and off the reader")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath:  flagDevicePath,
		baud:        flagBaud,
		resetGPIO:   flagResetGPIO,
		mqttURL:     flagMQTT,
		slaveAddr:   flagAddr,
		logDir:      flagLogDir,
		simulate:    flagSimulate,
		card:        flagCard,
		tapInterval: flagTapInterval,
		debug:       flagDebug,
	}

	if cfg.debug {
		felicanode.SetDebugEnabled(true)
	}

	return cfg
}

// readerIO is the reader connection the Slave drives
type readerIO struct {
	sender reader.Sender
	line   reader.ResetLine
	run    func(ctx context.Context, out chan<- byte) error
	close  func() error
}

func openSimulatedReader(ctx context.Context, cfg *config, wg *sync.WaitGroup) (*readerIO, error) {
	idm, err := reader.ParseIDm(cfg.card)
	if err != nil {
		return nil, err
	}
	v := vt.NewVirtualReader()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tapCard(ctx, v, idm, cfg.tapInterval)
	}()

	return &readerIO{
		sender: v,
		line:   v,
		run:    v.Run,
		close:  func() error { return nil },
	}, nil
}

// tapCard alternately places and removes the card
func tapCard(ctx context.Context, v *vt.VirtualReader, idm reader.IDm, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	present := true
	v.PlaceCard(idm)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			present = !present
			if present {
				v.PlaceCard(idm)
			} else {
				v.RemoveCard()
			}
		}
	}
}

func openSerialReader(ctx context.Context, cfg *config) (*readerIO, error) {
	path := cfg.devicePath
	if path == "" {
		ports, err := uart.Detect()
		if err != nil {
			return nil, fmt.Errorf("failed to find a reader: %w", err)
		}
		path = ports[0]
		felicanode.Debugf("auto-detected reader port %s", path)
	}

	tr, err := uart.Open(ctx, path, cfg.baud, felicanode.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open reader: %w", err)
	}
	rio := &readerIO{sender: tr, run: tr.Run, close: tr.Close}

	if cfg.resetGPIO != "" {
		line, err := gpio.Open(cfg.resetGPIO, true)
		if err != nil {
			_ = tr.Close()
			return nil, fmt.Errorf("failed to open reset line: %w", err)
		}
		rio.line = line
	}
	return rio, nil
}

func slaveAddress(cfg *config) (mesh.Address, error) {
	if cfg.slaveAddr != "" {
		return mesh.ParseAddress(cfg.slaveAddr)
	}
	addr, err := mesh.AddressFromMachineID(machineIDApp)
	if err != nil {
		felicanode.Debugf("using fallback address %s: %v", fallbackSlaveAddr, err)
		return fallbackSlaveAddr, nil
	}
	return addr, nil
}

func masterSink(ctx context.Context, cfg *config, w *hostlink.Writer) (mesh.Sink, *hostlink.Publisher, func(), error) {
	if cfg.mqttURL == "" {
		return w, nil, func() {}, nil
	}
	pub, client, err := hostlink.Dial(ctx, cfg.mqttURL, felicanode.DefaultRetryConfig())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return hostlink.MultiSink{w, pub}, pub, func() { client.Disconnect(250) }, nil
}

func run(ctx context.Context, cfg *config, stdout io.Writer) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	self, err := slaveAddress(cfg)
	if err != nil {
		return err
	}

	var rio *readerIO
	if cfg.simulate {
		rio, err = openSimulatedReader(ctx, cfg, &wg)
	} else {
		rio, err = openSerialReader(ctx, cfg)
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := rio.close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close reader: %v\n", err)
		}
	}()

	out := hostlink.NewWriter(stdout)
	sink, pub, closeSink, err := masterSink(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeSink()

	air := loopback.NewAir()
	mport := air.Attach(defaultMasterAddr, 255)
	mport.Advertise(true)
	sport := air.Attach(self, 128)
	sport.WakeAfterSleep(true)

	master, err := node.New(defaultMasterAddr, node.Hardware{
		Platform: mport,
		Radio:    mport,
		Sink:     sink,
		Reporter: out,
	}, node.DefaultMasterConfig())
	if err != nil {
		return fmt.Errorf("failed to create master: %w", err)
	}
	slave, err := node.New(self, node.Hardware{
		Platform:  sport,
		Radio:     sport,
		Reader:    rio.sender,
		ResetLine: rio.line,
	}, node.DefaultSlaveConfig())
	if err != nil {
		return fmt.Errorf("failed to create slave: %w", err)
	}
	felicanode.Debugf("slave %s following master %s", self, defaultMasterAddr)

	masterRunner := node.NewRunner(master, nil)
	slaveRunner := node.NewRunner(slave, nil)
	masterRunner.Dispatch(node.StartUp{})
	slaveRunner.Dispatch(node.StartUp{Wake: true})

	readerBytes := make(chan byte, 256)
	errs := make(chan error, 4)
	start := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errs <- err
			}
			cancel()
		}()
	}
	start(func() error { return rio.run(ctx, readerBytes) })
	start(func() error { return masterRunner.Run(ctx, nil, mport.Events()) })
	start(func() error { return slaveRunner.Run(ctx, readerBytes, sport.Events()) })
	if pub != nil {
		start(func() error { return pub.Run(ctx) })
	}

	<-ctx.Done()
	select {
	case err := <-errs:
		return err
	default:
		return ctx.Err()
	}
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	cfg := parseConfig()

	if cfg.logDir != "" {
		path, err := felicanode.InitSessionLog(cfg.logDir, "node")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
		defer func() { _ = felicanode.CloseSessionLog() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Fprint(os.Stderr, "\nShutting down gracefully...\n")
		cancel()
	}()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
