package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores refresh-token records. Revocation is hard
// deletion: a missing row is the only "revoked" state.
type SessionRepository interface {
	Create(s *domain.Session) error
	FindByHash(hash string) (*domain.Session, error)
	FindByIDForAccount(accountID, sessionID string) (*domain.Session, error)
	ListActiveByAccount(accountID string) ([]domain.Session, error)
	ListActive() ([]domain.Session, error)
	ConsumeByHash(hash string) (*domain.Session, error)
	DeleteByHash(hash string) (bool, error)
	DeleteByIDForAccount(accountID, sessionID string) (bool, error)
	DeleteByID(sessionID string) (bool, error)
	DeleteByFamilyID(familyID string) (int64, error)
	DeleteByAccountID(accountID string) (int64, error)
	DeleteOthersByAccount(accountID, keepHash string) (int64, error)
	FamilyAlive(familyID string) (bool, error)
	PruneFamilies(accountID string, keep int) (int64, error)
	CleanupExpired() (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(s *domain.Session) error {
	err := r.db.Create(s).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByHash(hash string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("token_hash = ?", hash).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_hash", "success")
	return &s, nil
}

func (r *GormSessionRepository) FindByIDForAccount(accountID, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.Where("account_id = ? AND id = ?", accountID, sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_account", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_account", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id_for_account", "success")
	return &s, nil
}

func (r *GormSessionRepository) ListActiveByAccount(accountID string) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("account_id = ? AND expires_at > ?", accountID, time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_account", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active_by_account", "success")
	return sessions, nil
}

func (r *GormSessionRepository) ListActive() ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_active", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_active", "success")
	return sessions, nil
}

// ConsumeByHash atomically claims a live record for rotation: the row is
// locked, deleted, and returned. Exactly one of two concurrent rotations of
// the same token gets the record; the loser sees ErrSessionNotFound.
func (r *GormSessionRepository) ConsumeByHash(hash string) (*domain.Session, error) {
	var consumed *domain.Session
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var s domain.Session
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token_hash = ? AND expires_at > ?", hash, time.Now()).
			First(&s).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.Where("id = ?", s.ID).Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		consumed = &s
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "consume_by_hash", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "session", "consume_by_hash", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "consume_by_hash", "success")
	return consumed, nil
}

func (r *GormSessionRepository) DeleteByHash(hash string) (bool, error) {
	res := r.db.Where("token_hash = ?", hash).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_hash", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_hash", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeleteByIDForAccount(accountID, sessionID string) (bool, error) {
	res := r.db.Where("account_id = ? AND id = ?", accountID, sessionID).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_id_for_account", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_id_for_account", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeleteByID(sessionID string) (bool, error) {
	res := r.db.Where("id = ?", sessionID).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_id", "error")
		return false, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_id", "success")
	return res.RowsAffected > 0, nil
}

func (r *GormSessionRepository) DeleteByFamilyID(familyID string) (int64, error) {
	res := r.db.Where("family_id = ?", familyID).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_family_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_family_id", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) DeleteByAccountID(accountID string) (int64, error) {
	res := r.db.Where("account_id = ?", accountID).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_account_id", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_by_account_id", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) DeleteOthersByAccount(accountID, keepHash string) (int64, error) {
	res := r.db.Where("account_id = ? AND token_hash <> ?", accountID, keepHash).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_others_by_account", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_others_by_account", "success")
	return res.RowsAffected, nil
}

// FamilyAlive reports whether any record of the family is still stored. A
// live family combined with a not-found token is the reuse signal.
func (r *GormSessionRepository) FamilyAlive(familyID string) (bool, error) {
	var n int64
	err := r.db.Model(&domain.Session{}).Where("family_id = ?", familyID).Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "family_alive", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "family_alive", "success")
	return n > 0, nil
}

// PruneFamilies keeps the account's most recently used families and deletes
// the rest, bounding concurrent logins without cutting in-flight rotation
// chains.
func (r *GormSessionRepository) PruneFamilies(accountID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var keepFamilies []string
		err := tx.Model(&domain.Session{}).
			Where("account_id = ?", accountID).
			Group("family_id").
			Order("MAX(created_at) DESC").
			Limit(keep).
			Pluck("family_id", &keepFamilies).Error
		if err != nil {
			return err
		}
		if len(keepFamilies) == 0 {
			return nil
		}
		res := tx.Where("account_id = ? AND family_id NOT IN ?", accountID, keepFamilies).
			Delete(&domain.Session{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "prune_families", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "prune_families", "success")
	return deleted, nil
}

func (r *GormSessionRepository) CleanupExpired() (int64, error) {
	res := r.db.Where("expires_at <= ?", time.Now()).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "cleanup_expired", "success")
	return res.RowsAffected, nil
}
