package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions and their broadcast fan-out stay in process; Redis carries a liveness marker
// per quiz (quiz:{quizID}:live) so operators can see which quizzes have connected players
// on any instance. Gate state itself lives in ProgressStore and is shared.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(quizID string) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[quizID]; ok {
		return session
	}
	session := app.NewSession(quizID)
	s.sessions[quizID] = session
	if err := s.client.Set(context.Background(), liveKey(quizID), "1", s.ttl).Err(); err != nil {
		s.logger.Warn("session liveness marker not set", zap.String("quizId", quizID), zap.Error(err))
	}
	return session
}

func (s *SessionStore) Get(quizID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[quizID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[quizID]
	if !ok || !session.IsEmpty() {
		return
	}
	delete(s.sessions, quizID)
	if err := s.client.Del(context.Background(), liveKey(quizID)).Err(); err != nil {
		s.logger.Warn("session liveness marker not cleared", zap.String("quizId", quizID), zap.Error(err))
	}
}

func liveKey(quizID string) string {
	return "quiz:" + quizID + ":live"
}
