// Package state holds the process-wide authentication state.
//
// A [Store] is created together with its only [Writer] by [New]. Readers
// (the navigation guard, screens) receive the *Store or the [Reader]
// interface; the flows and boot rehydration receive the Writer.
package state

import (
	"sync"
)

// Status is the single active phase of the session lifecycle.
type Status uint8

const (
	// Uninitialized means boot rehydration has not finished.
	Uninitialized Status = iota
	// Loading means a flow is waiting on the identity provider.
	Loading
	// SignedOut means no session is active.
	SignedOut
	// PendingVerification means a registration waits for its email code.
	PendingVerification
	// SignedIn means a session is active.
	SignedIn
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case SignedOut:
		return "signed_out"
	case PendingVerification:
		return "pending_verification"
	case SignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// SessionState is an immutable snapshot of the store.
type SessionState struct {
	Status    Status
	SessionID string
	Error     string
}

// Loaded reports whether boot rehydration has completed.
func (s SessionState) Loaded() bool {
	return s.Status != Uninitialized
}

// SignedIn reports whether a session is active.
func (s SessionState) SignedIn() bool {
	return s.Status == SignedIn
}

// Reader is the read side of the store.
type Reader interface {
	Snapshot() SessionState
	Subscribe(fn func(SessionState)) (unsubscribe func())
}

// Writer is the only way to mutate the store. Every method notifies
// subscribers when the snapshot actually changed.
type Writer interface {
	Reader
	// BeginLoading enters Loading and clears any previous error.
	BeginLoading()
	// SignIn enters SignedIn with the given session.
	SignIn(sessionID string)
	// SignOut enters SignedOut, clearing the session and setting message.
	SignOut(message string)
	// AwaitVerification enters PendingVerification with message.
	AwaitVerification(message string)
}

type subscriber struct {
	id uint64
	fn func(SessionState)
}

// Store is the reactive holder of SessionState.
type Store struct {
	mu     sync.Mutex
	notify sync.Mutex
	cur    SessionState
	subs   []subscriber
	nextID uint64
}

// New returns an uninitialized store and its writer.
func New() (*Store, Writer) {
	s := &Store{}
	return s, &writer{store: s}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers fn to run after every change. fn runs synchronously on the
// mutating goroutine; it must not block and must not write to the store.
func (s *Store) Subscribe(fn func(SessionState)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) apply(next SessionState) {
	// notify serializes deliveries so subscribers observe mutations in order.
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	if s.cur == next {
		s.mu.Unlock()
		return
	}
	s.cur = next
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
}

type writer struct {
	store *Store
}

func (w *writer) Snapshot() SessionState {
	return w.store.Snapshot()
}

func (w *writer) Subscribe(fn func(SessionState)) func() {
	return w.store.Subscribe(fn)
}

func (w *writer) BeginLoading() {
	w.store.apply(SessionState{Status: Loading})
}

func (w *writer) SignIn(sessionID string) {
	w.store.apply(SessionState{Status: SignedIn, SessionID: sessionID})
}

func (w *writer) SignOut(message string) {
	w.store.apply(SessionState{Status: SignedOut, Error: message})
}

func (w *writer) AwaitVerification(message string) {
	w.store.apply(SessionState{Status: PendingVerification, Error: message})
}
