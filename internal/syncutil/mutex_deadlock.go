//go:build deadlock

// Package syncutil provides the mutex types used by the host-side pieces of
// felicanode. This file is compiled when building with -tags=deadlock and
// reports lock-order inversions and stuck locks at runtime.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}
