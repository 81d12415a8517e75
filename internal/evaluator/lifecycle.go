package evaluator

import (
	"fmt"
	"sync"
)

// Lifecycle guards process-wide engine initialization.
//
// Some engine bindings need global setup before the first session and
// teardown after the last one. Lifecycle reference-counts sessions: the first
// Acquire runs Init, the Release that drops the count to zero runs Shutdown.
// Init and Shutdown therefore never run twice in a row.
//
// The zero value has no hooks and only counts.
//
// Thread-safety: all methods are safe for concurrent use.
type Lifecycle struct {
	Init     func() error
	Shutdown func()

	mu   sync.Mutex
	refs int
}

// Acquire registers a new session, initializing the engine if this is the
// first one. If Init fails the count is unchanged.
func (l *Lifecycle) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 && l.Init != nil {
		if err := l.Init(); err != nil {
			return fmt.Errorf("engine init: %w", err)
		}
	}
	l.refs++
	return nil
}

// Release unregisters a session, shutting the engine down after the last one.
// Releasing more times than acquired returns an error and changes nothing.
func (l *Lifecycle) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.refs == 0 {
		return fmt.Errorf("engine release without matching acquire")
	}
	l.refs--
	if l.refs == 0 && l.Shutdown != nil {
		l.Shutdown()
	}
	return nil
}

// Active returns the number of sessions currently holding the engine.
func (l *Lifecycle) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refs
}
