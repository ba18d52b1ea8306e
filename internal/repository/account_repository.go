package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
)

var ErrAccountNotFound = errors.New("account not found")

type AccountRepository interface {
	Create(a *domain.Account) error
	FindByID(id string) (*domain.Account, error)
	FindByUsername(username string) (*domain.Account, error)
	Update(a *domain.Account) error
	UpdatePassword(id, hash string) error
	TouchLastLogin(id string) error
	List() ([]domain.Account, error)
	DeleteByID(id string) error
	Count() (int64, error)
}

type GormAccountRepository struct{ db *gorm.DB }

func NewAccountRepository(db *gorm.DB) AccountRepository { return &GormAccountRepository{db: db} }

func (r *GormAccountRepository) Create(a *domain.Account) error {
	err := r.db.Create(a).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "create", "success")
	return nil
}

func (r *GormAccountRepository) FindByID(id string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "find_by_id", "success")
	return &a, nil
}

func (r *GormAccountRepository) FindByUsername(username string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.Where("username = ?", username).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "account", "find_by_username", "not_found")
			return nil, ErrAccountNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "account", "find_by_username", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "find_by_username", "success")
	return &a, nil
}

func (r *GormAccountRepository) Update(a *domain.Account) error {
	err := r.db.Save(a).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "update", "success")
	return nil
}

func (r *GormAccountRepository) UpdatePassword(id, hash string) error {
	res := r.db.Model(&domain.Account{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "update_password", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "account", "update_password", "not_found")
		return ErrAccountNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "update_password", "success")
	return nil
}

func (r *GormAccountRepository) TouchLastLogin(id string) error {
	now := time.Now().UTC()
	err := r.db.Model(&domain.Account{}).Where("id = ?", id).Update("last_login_at", now).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "touch_last_login", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "touch_last_login", "success")
	return nil
}

func (r *GormAccountRepository) List() ([]domain.Account, error) {
	var accounts []domain.Account
	err := r.db.Order("username ASC").Find(&accounts).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "list", "error")
		return accounts, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "list", "success")
	return accounts, nil
}

func (r *GormAccountRepository) DeleteByID(id string) error {
	res := r.db.Where("id = ?", id).Delete(&domain.Account{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "delete_by_id", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "account", "delete_by_id", "not_found")
		return ErrAccountNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "delete_by_id", "success")
	return nil
}

func (r *GormAccountRepository) Count() (int64, error) {
	var n int64
	err := r.db.Model(&domain.Account{}).Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "account", "count", "error")
		return 0, err
	}
	observability.RecordRepositoryOperation(context.Background(), "account", "count", "success")
	return n, nil
}
