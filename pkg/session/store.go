package session

import "sync/atomic"

// Store publishes the current Session. Writers replace the session wholesale;
// the stored value is never mutated in place.
type Store struct {
	current atomic.Pointer[published]
}

// published pairs a stored session with the snapshot derived from it. The
// snapshot's tag sets are shared by every reader and must not be modified.
type published struct {
	session  *Session
	snapshot Snapshot
}

func publish(s *Session) *published {
	return &published{session: s, snapshot: s.Snapshot()}
}

// NewStore creates a store holding a copy of initial (which may be nil).
func NewStore(initial *Session) *Store {
	s := &Store{}
	if initial != nil {
		s.current.Store(publish(initial.Clone()))
	}
	return s
}

func (s *Store) load() *Session {
	if p := s.current.Load(); p != nil {
		return p.session
	}
	return nil
}

// Load returns a copy of the current session, or nil if none was stored.
func (s *Store) Load() *Session {
	return s.load().Clone()
}

// Replace publishes next. The store keeps its own copy.
func (s *Store) Replace(next *Session) {
	s.current.Store(publish(next.Clone()))
}

// Update applies fn to a copy of the current session and publishes the result.
// Concurrent updates are retried until one wins, so fn may run more than once.
func (s *Store) Update(fn func(*Session)) *Session {
	for {
		old := s.current.Load()
		var next *Session
		if old != nil {
			next = old.session.Clone()
		}
		if next == nil {
			next = &Session{}
		}
		fn(next)
		if s.current.CompareAndSwap(old, publish(next)) {
			return next.Clone()
		}
	}
}

// Snapshot implements Source. The snapshot is computed once per published
// session.
func (s *Store) Snapshot() Snapshot {
	if p := s.current.Load(); p != nil {
		return p.snapshot
	}
	return Snapshot{}
}
