package service

import (
	"time"

	"github.com/fleetway/fleetway/internal/repository"
)

type SessionView struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	UserAgent  string    `json:"user_agent"`
	IP         string    `json:"ip"`
	IsCurrent  bool      `json:"is_current"`
}

// SessionService is the operator-facing read/revoke view over the refresh
// token store.
type SessionService struct {
	sessions repository.SessionRepository
}

func NewSessionService(sessions repository.SessionRepository) *SessionService {
	return &SessionService{sessions: sessions}
}

// ListSessions projects live records into descriptors, flagging the one
// matching the caller's own token hash when provided.
func (s *SessionService) ListSessions(accountID, currentTokenHash string) ([]SessionView, error) {
	sessions, err := s.sessions.ListActiveByAccount(accountID)
	if err != nil {
		return nil, err
	}
	views := make([]SessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, SessionView{
			ID:         session.ID,
			CreatedAt:  session.CreatedAt,
			LastUsedAt: session.LastUsedAt,
			ExpiresAt:  session.ExpiresAt,
			UserAgent:  session.UserAgent,
			IP:         session.IP,
			IsCurrent:  currentTokenHash != "" && session.TokenHash == currentTokenHash,
		})
	}
	return views, nil
}

// RevokeSession deletes one record, scoped to the owning account so a
// guessed session id cannot revoke someone else's session.
func (s *SessionService) RevokeSession(accountID, sessionID string) (bool, error) {
	return s.sessions.DeleteByIDForAccount(accountID, sessionID)
}

// RevokeOtherSessions deletes every record for the account except the one
// matching the caller's current token hash.
func (s *SessionService) RevokeOtherSessions(accountID, currentTokenHash string) (int64, error) {
	return s.sessions.DeleteOthersByAccount(accountID, currentTokenHash)
}
