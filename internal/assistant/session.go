package assistant

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"coolcar/internal/booking"
	"coolcar/internal/domain"
	"coolcar/internal/metrics"
)

// DefaultBufferSize is how many messages a session keeps for display.
const DefaultBufferSize = 50

// Session is one visitor's chat. Its mutex serializes that visitor's
// messages; different sessions proceed in parallel.
type Session struct {
	mu sync.Mutex

	Key       string
	messages  []domain.ChatMessage
	limit     int
	draft     *booking.Draft
	booking   bool // a booking dialogue is in progress
	started   time.Time
	lastSeen  time.Time
	turnCount int
}

func (s *Session) record(sender domain.Sender, text string, at time.Time) domain.ChatMessage {
	m := domain.ChatMessage{ID: uuid.NewString(), Text: text, Sender: sender, Timestamp: at}
	s.messages = append(s.messages, m)
	if over := len(s.messages) - s.limit; over > 0 {
		s.messages = append([]domain.ChatMessage(nil), s.messages[over:]...)
	}
	s.lastSeen = at
	if sender == domain.SenderUser {
		s.turnCount++
	}
	return m
}

// Messages returns the display buffer, oldest first.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.messages...)
}

// SessionManager owns the live sessions, keyed by channel and chat ID.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	book     *booking.Book
	limit    int
	now      func() time.Time
}

func NewSessionManager(book *booking.Book, bufferSize int) *SessionManager {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		book:     book,
		limit:    bufferSize,
		now:      time.Now,
	}
}

func sessionKey(channel, chatID string) string { return channel + ":" + chatID }

// Get returns an existing session.
func (sm *SessionManager) Get(channel, chatID string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.sessions[sessionKey(channel, chatID)]
	return s, ok
}

// GetOrCreate returns the session for a chat, opening one on first contact.
func (sm *SessionManager) GetOrCreate(channel, chatID string) *Session {
	key := sessionKey(channel, chatID)
	sm.mu.RLock()
	s, ok := sm.sessions[key]
	sm.mu.RUnlock()
	if ok {
		return s
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[key]; ok {
		return s
	}
	now := sm.now()
	s = &Session{
		Key:      key,
		limit:    sm.limit,
		draft:    booking.NewDraft(sm.book),
		started:  now,
		lastSeen: now,
	}
	sm.sessions[key] = s
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	return s
}

// Drop forgets a chat's session.
func (sm *SessionManager) Drop(channel, chatID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionKey(channel, chatID))
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
}

// EvictIdle drops sessions not seen for longer than idle and returns how
// many went. Sessions busy with a message are skipped.
func (sm *SessionManager) EvictIdle(idle time.Duration) int {
	cutoff := sm.now().Add(-idle)
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for key, s := range sm.sessions {
		if !s.mu.TryLock() {
			continue
		}
		stale := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if stale {
			delete(sm.sessions, key)
			n++
		}
	}
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	return n
}

func (sm *SessionManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
