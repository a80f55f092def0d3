// Package syncutil provides the mutex types used by the host-side pieces of
// felicanode.
package syncutil

// Locked runs fn while holding mu.
func Locked(mu *Mutex, fn func()) {
	mu.Lock()
	defer mu.Unlock()
	fn()
}
