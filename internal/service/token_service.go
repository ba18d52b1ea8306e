package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/security"
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"-"`
	FamilyID     string `json:"-"`
}

type SessionMeta struct {
	UserAgent string
	IP        string
}

// AccountFetcher resolves the account and its effective role at rotation
// time, so rotated access tokens pick up membership changes.
type AccountFetcher func(accountID string) (*domain.Account, domain.Role, error)

type TokenService struct {
	jwtMgr      *security.JWTManager
	sessions    repository.SessionRepository
	pepper      string
	accessTTL   time.Duration
	refreshTTL  time.Duration
	maxFamilies int
}

func NewTokenService(
	jwtMgr *security.JWTManager,
	sessions repository.SessionRepository,
	pepper string,
	accessTTL, refreshTTL time.Duration,
	maxFamilies int,
) *TokenService {
	return &TokenService{
		jwtMgr:      jwtMgr,
		sessions:    sessions,
		pepper:      pepper,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		maxFamilies: maxFamilies,
	}
}

// Issue mints a pair for a fresh login. The new record starts its own
// family: its id doubles as the family id. After the insert, families beyond
// the retention bound are pruned oldest-first.
func (s *TokenService) Issue(account *domain.Account, role domain.Role, meta SessionMeta) (*TokenPair, error) {
	sessionID := uuid.NewString()
	familyID := sessionID
	pair, err := s.mint(account, role, sessionID, familyID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.sessions.Create(&domain.Session{
		ID:         sessionID,
		AccountID:  account.ID,
		TokenHash:  security.HashRefreshToken(pair.RefreshToken, s.pepper),
		FamilyID:   familyID,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
		ExpiresAt:  now.Add(s.refreshTTL),
		LastUsedAt: now,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}
	if _, err := s.sessions.PruneFamilies(account.ID, s.maxFamilies); err != nil {
		return nil, err
	}
	return pair, nil
}

// VerifyAccessToken is a pure signature and expiry check; no storage lookup,
// no revocation. Nil means invalid, full stop.
func (s *TokenService) VerifyAccessToken(raw string) *security.Claims {
	claims, err := s.jwtMgr.ParseAccessToken(raw)
	if err != nil {
		return nil
	}
	return claims
}

// Rotate consumes the presented token's record and issues a replacement in
// the same family. A token whose record is gone while its family still has
// live records is a replay of a superseded token: the whole family is purged
// and the event logged. Callers see ErrInvalidRefreshToken for expired,
// already-rotated, and stolen tokens alike; there is no oracle here.
func (s *TokenService) Rotate(ctx context.Context, oldToken string, fetch AccountFetcher, meta SessionMeta) (*TokenPair, error) {
	claims, err := s.jwtMgr.ParseRefreshToken(oldToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	hash := security.HashRefreshToken(oldToken, s.pepper)
	record, err := s.sessions.ConsumeByHash(hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			s.handleMissingRecord(ctx, claims)
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if record.AccountID != claims.Subject || record.ID != claims.ID {
		return nil, ErrInvalidRefreshToken
	}

	account, role, err := fetch(record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	sessionID := uuid.NewString()
	pair, err := s.mint(account, role, sessionID, record.FamilyID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	next := &domain.Session{
		ID:         sessionID,
		AccountID:  account.ID,
		TokenHash:  security.HashRefreshToken(pair.RefreshToken, s.pepper),
		FamilyID:   record.FamilyID,
		UserAgent:  meta.UserAgent,
		IP:         meta.IP,
		ExpiresAt:  now.Add(s.refreshTTL),
		LastUsedAt: now,
		CreatedAt:  now,
	}
	if next.UserAgent == "" {
		next.UserAgent = record.UserAgent
	}
	if next.IP == "" {
		next.IP = record.IP
	}
	if err := s.sessions.Create(next); err != nil {
		return nil, err
	}
	return pair, nil
}

// handleMissingRecord decides between "expired or already swept" and "reuse
// of a superseded token". A live family means someone rotated this token
// before: purge everything descended from that login.
func (s *TokenService) handleMissingRecord(ctx context.Context, claims *security.Claims) {
	if claims.FamilyID == "" {
		return
	}
	alive, err := s.sessions.FamilyAlive(claims.FamilyID)
	if err != nil || !alive {
		return
	}
	purged, err := s.sessions.DeleteByFamilyID(claims.FamilyID)
	if err != nil {
		observability.SecurityEvent(ctx, "refresh_token_family_purge_failed",
			"family_id", claims.FamilyID, "error", err.Error())
		return
	}
	observability.RecordTokenTheft()
	observability.SecurityEvent(ctx, "refresh_token_reuse_detected",
		"account_id", claims.Subject,
		"family_id", claims.FamilyID,
		"sessions_purged", purged,
	)
}

// RevokeRefreshToken deletes the presented token's record. Unparseable
// tokens are a no-op: logout is always safe to call.
func (s *TokenService) RevokeRefreshToken(oldToken string) error {
	if _, err := s.jwtMgr.ParseRefreshToken(oldToken); err != nil {
		return nil
	}
	_, err := s.sessions.DeleteByHash(security.HashRefreshToken(oldToken, s.pepper))
	return err
}

func (s *TokenService) RevokeAllForAccount(accountID string) (int64, error) {
	return s.sessions.DeleteByAccountID(accountID)
}

func (s *TokenService) HashToken(token string) string {
	return security.HashRefreshToken(token, s.pepper)
}

func (s *TokenService) mint(account *domain.Account, role domain.Role, sessionID, familyID string) (*TokenPair, error) {
	access, err := s.jwtMgr.SignAccessToken(account, role, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwtMgr.SignRefreshToken(account.ID, sessionID, familyID, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sessionID,
		FamilyID:     familyID,
	}, nil
}
