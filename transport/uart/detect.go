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

package uart

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"

	felicanode "github.com/ZaparooProject/felicanode"
)

// Name fragments of USB serial adapters the reader ships behind
var adapterPatterns = []string{
	"ttyusb",         // Linux USB-serial
	"ttyacm",         // Linux CDC-ACM
	"tty.usbserial",  // macOS FTDI
	"usbserial",      // FTDI and similar
	"slab_usbtouart", // Silicon Labs CP210x
	"usbmodem",       // CDC-ACM on macOS
}

// Detect lists serial ports that look like a USB adapter, best match first
func Detect() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	found := candidates(ports)
	if len(found) == 0 {
		return nil, felicanode.ErrDeviceNotFound
	}
	return found, nil
}

// candidates keeps adapter-like ports. Ports matching a known name come
// before other USB ports; each group is sorted by name.
func candidates(ports []*enumerator.PortDetails) []string {
	var named, usb []string
	for _, p := range ports {
		if p == nil {
			continue
		}
		switch {
		case matchesAdapter(p.Name):
			named = append(named, p.Name)
		case p.IsUSB:
			usb = append(usb, p.Name)
		}
	}
	sort.Strings(named)
	sort.Strings(usb)
	return append(named, usb...)
}

func matchesAdapter(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	for _, pattern := range adapterPatterns {
		if strings.Contains(base, pattern) {
			return true
		}
	}
	return false
}
