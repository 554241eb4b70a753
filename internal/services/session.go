package services

import (
	"sync"
	"time"

	"tripwatch-bot/internal/models"
)

// Step identifies the conversation state a chat is currently in.
type Step int

const (
	StepIdle Step = iota
	StepName
	StepLanguage
	StepCountry
	StepStartDate
	StepEndDate
	StepFrequency
	StepCheckinTime
	StepAddCountry
	StepEditCountry
	StepEditStartDate
	StepEditEndDate
	StepEditFrequency
	StepEditCheckinTime
	StepCheckinStatus
)

// Session holds in-progress draft data for one chat. Nothing here touches
// the store until the flow commits.
type Session struct {
	ChatID   int64
	Step     Step
	Name     string
	Language string
	Handle   string

	// Trip being collected and trips already collected this flow.
	Draft  models.Trip
	Drafts []*models.Trip

	// Edit flow target and staged start date.
	EditTripID string
	EditStart  time.Time

	// Coordinates of a location message awaiting a status choice.
	PendingLat float64
	PendingLon float64

	UpdatedAt time.Time
}

// SessionStore keeps per-chat conversation state with a TTL so abandoned
// flows do not accumulate.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
	}
}

// Get returns the live session for a chat, or nil.
func (s *SessionStore) Get(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil
	}
	if time.Since(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, chatID)
		return nil
	}
	sess.UpdatedAt = time.Now()
	return sess
}

// Begin replaces any existing session for the chat.
func (s *SessionStore) Begin(chatID int64) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{ChatID: chatID, UpdatedAt: time.Now()}
	s.sessions[chatID] = sess
	return sess
}

// End removes the session for a chat.
func (s *SessionStore) End(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}

// Cleanup drops sessions idle longer than the TTL and returns the count.
func (s *SessionStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if time.Since(sess.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
