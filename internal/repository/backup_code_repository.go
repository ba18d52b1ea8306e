package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
)

type BackupCodeRepository interface {
	// Consume spends a code exactly once. The insert rides the composite
	// primary key of used_backup_codes: a duplicate-key failure means the
	// code was already spent, by this request's twin or anyone else.
	Consume(accountID, codeHash string) (bool, error)
	CountUsed(accountID string) (int64, error)
	// ReplaceCodes swaps the account's outstanding hashes and clears its
	// spent set in one transaction, so the remaining count resets cleanly.
	ReplaceCodes(accountID string, hashes []string) error
	ClearForAccount(accountID string) error
}

type GormBackupCodeRepository struct{ db *gorm.DB }

func NewBackupCodeRepository(db *gorm.DB) BackupCodeRepository {
	return &GormBackupCodeRepository{db: db}
}

func (r *GormBackupCodeRepository) Consume(accountID, codeHash string) (bool, error) {
	err := r.db.Create(&domain.UsedBackupCode{
		AccountID: accountID,
		CodeHash:  codeHash,
		UsedAt:    time.Now().UTC(),
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(context.Background(), "backup_code", "consume", "duplicate")
			return false, nil
		}
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "consume", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "consume", "success")
	return true, nil
}

func (r *GormBackupCodeRepository) CountUsed(accountID string) (int64, error) {
	var n int64
	err := r.db.Model(&domain.UsedBackupCode{}).Where("account_id = ?", accountID).Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "count_used", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "count_used", "success")
	return n, nil
}

func (r *GormBackupCodeRepository) ReplaceCodes(accountID string, hashes []string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Account{}).Where("id = ?", accountID).
			Update("backup_code_hashes", hashes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return tx.Where("account_id = ?", accountID).Delete(&domain.UsedBackupCode{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "backup_code", "replace_codes", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "backup_code", "replace_codes", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "replace_codes", "success")
	return nil
}

func (r *GormBackupCodeRepository) ClearForAccount(accountID string) error {
	err := r.db.Where("account_id = ?", accountID).Delete(&domain.UsedBackupCode{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "backup_code", "clear_for_account", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "backup_code", "clear_for_account", "success")
	return nil
}
