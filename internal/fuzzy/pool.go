package fuzzy

import "sync"

// SessionPool provides a pool of reusable sessions for one engine so that
// concurrent callers each evaluate on isolated slots without allocating a
// session per call.
type SessionPool struct {
	engine *Engine

	mu   sync.Mutex
	free []*Session
}

// NewSessionPool creates a new SessionPool
func NewSessionPool(e *Engine) *SessionPool {
	return &SessionPool{
		engine: e,
		free:   make([]*Session, 0, 8),
	}
}

// Get returns a session from the pool or creates a new one
func (p *SessionPool) Get() *Session {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return s
	}
	p.mu.Unlock()
	return p.engine.NewSession()
}

// Put resets a session and returns it to the pool. Sessions of another
// engine are dropped.
func (p *SessionPool) Put(s *Session) {
	if s == nil || s.engine != p.engine {
		return
	}
	s.Reset()
	p.mu.Lock()
	p.free = append(p.free, s)
	p.mu.Unlock()
}
