// Package session keeps chat sessions in memory for the process lifetime.
package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"docchat/internal/helper"
	"docchat/internal/models"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*models.ChatSession
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*models.ChatSession), now: time.Now}
}

// Append adds msgs to a session and returns its id. An empty id starts a new
// session scoped to fileIDs. An unknown id is adopted so clients can resume
// after a restart. The file ids of an existing session are never replaced.
func (s *Store) Append(sessionID string, fileIDs []string, msgs ...models.Message) (string, error) {
	for _, m := range msgs {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return "", fmt.Errorf("%w: unknown role %q", models.ErrInvalidInput, m.Role)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = helper.GenerateUUID()
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &models.ChatSession{
			SessionID: sessionID,
			CreatedAt: s.now(),
			FileIDs:   append([]string{}, fileIDs...),
			Messages:  []models.Message{},
		}
		s.sessions[sessionID] = sess
	}
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = s.now()
		}
		sess.Messages = append(sess.Messages, m)
	}
	return sessionID, nil
}

// Get returns a copy of the session.
func (s *Store) Get(sessionID string) (models.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return models.ChatSession{}, false
	}
	return clone(sess), true
}

// History returns up to the last n messages of a session.
func (s *Store) History(sessionID string, n int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || n <= 0 {
		return nil
	}
	msgs := sess.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]models.Message(nil), msgs...)
}

// List returns copies of all sessions, oldest first.
func (s *Store) List() []models.ChatSession {
	s.mu.RLock()
	out := make([]models.ChatSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, clone(sess))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out
}

func clone(s *models.ChatSession) models.ChatSession {
	c := *s
	c.FileIDs = append([]string{}, s.FileIDs...)
	c.Messages = append([]models.Message{}, s.Messages...)
	return c
}
