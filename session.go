package flowmesh

import "sync"

// SessionStore is the shared table holding scatter/gather sessions.
// One store exists per runtime; reusing a session key across two
// concurrent logical runs corrupts both, so keys must be unique per run.
// That is a caller obligation, not an enforced invariant.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*collectSession
}

type collectSession struct {
	values []interface{}
	seen   []bool
	total  int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*collectSession),
	}
}

// Put stores a result at its original index, creating the session on
// first use. Results outside [0,total) are ignored.
func (s *SessionStore) Put(key string, index, total int, value interface{}) {
	if total <= 0 || index < 0 || index >= total {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &collectSession{
			values: make([]interface{}, total),
			seen:   make([]bool, total),
			total:  total,
		}
		s.sessions[key] = sess
	}
	if index >= len(sess.values) {
		return
	}
	sess.values[index] = value
	sess.seen[index] = true
}

// Take removes the session and returns its results ordered by index;
// indexes never filled are nil.
func (s *SessionStore) Take(key string) ([]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	delete(s.sessions, key)
	return sess.values, true
}

// Delete drops a session without returning it.
func (s *SessionStore) Delete(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
