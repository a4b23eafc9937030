// Package session keeps per-browser UI state in memory.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/raushankrgupta/virtual-tryon-studio/models"
	"github.com/raushankrgupta/virtual-tryon-studio/utils"
)

// Session is the state of one UI session. Chat and try-on requests are admitted one
// at a time through TryBegin/End.
type Session struct {
	ID string

	busy atomic.Bool

	mu         sync.Mutex
	transcript models.Transcript
	lastResult *models.TryOnResult
	lastError  string
	lastSeen   time.Time
}

// TryBegin claims the session for one request. It returns false while another
// request of the same session is still running.
func (s *Session) TryBegin() bool {
	return s.busy.CompareAndSwap(false, true)
}

// End releases the claim taken by TryBegin.
func (s *Session) End() {
	s.busy.Store(false)
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) AppendExchange(userMessage, botMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.AppendExchange(userMessage, botMessage)
}

func (s *Session) Transcript() []models.ChatEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

func (s *Session) TranscriptText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.String()
}

func (s *Session) ResetTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript.Reset()
}

// SetTryOnOutcome keeps the latest try-on result or error message for display.
func (s *Session) SetTryOnOutcome(result *models.TryOnResult, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = result
	s.lastError = errMessage
}

// LastTryOn returns what SetTryOnOutcome stored.
func (s *Session) LastTryOn() (*models.TryOnResult, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastError
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store holds sessions by id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new empty session.
func (st *Store) Create() *Session {
	s := &Session{ID: uuid.NewString(), lastSeen: st.now()}

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	utils.ActiveSessions.Set(float64(n))
	return s
}

// Get looks a session up and marks it as recently used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Prune drops sessions idle for longer than the ttl and returns how many went.
// Sessions with a request in flight are kept.
func (st *Store) Prune() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	removed := 0
	for id, s := range st.sessions {
		if !s.Busy() && s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	utils.ActiveSessions.Set(float64(n))
	return removed
}

// RunJanitor prunes idle sessions every interval until ctx is done.
func (st *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Prune()
		}
	}
}
