package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
)

var (
	ErrGroupNotFound      = errors.New("group not found")
	ErrMembershipNotFound = errors.New("membership not found")
)

type GroupRepository interface {
	Create(g *domain.Group) error
	FindByID(id string) (*domain.Group, error)
	FindByName(name string) (*domain.Group, error)
	List() ([]domain.Group, error)
	Update(g *domain.Group) error
	DeleteByID(id string) error
	UpsertMembership(m *domain.Membership) error
	RemoveMembership(accountID, groupID string) error
	ListMembershipsByAccount(accountID string) ([]domain.Membership, error)
	ListMembershipsByGroup(groupID string) ([]domain.Membership, error)
	AnyGroupRequiresTOTP(accountID string) (bool, error)
}

type GormGroupRepository struct{ db *gorm.DB }

func NewGroupRepository(db *gorm.DB) GroupRepository { return &GormGroupRepository{db: db} }

func (r *GormGroupRepository) Create(g *domain.Group) error {
	err := r.db.Create(g).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "group", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "create", "success")
	return nil
}

func (r *GormGroupRepository) FindByID(id string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.Where("id = ?", id).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "group", "find_by_id", "not_found")
			return nil, ErrGroupNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "group", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "find_by_id", "success")
	return &g, nil
}

func (r *GormGroupRepository) FindByName(name string) (*domain.Group, error) {
	var g domain.Group
	err := r.db.Where("name = ?", name).First(&g).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "group", "find_by_name", "not_found")
			return nil, ErrGroupNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "group", "find_by_name", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "find_by_name", "success")
	return &g, nil
}

func (r *GormGroupRepository) List() ([]domain.Group, error) {
	var groups []domain.Group
	err := r.db.Order("name ASC").Find(&groups).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "group", "list", "error")
		return groups, err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "list", "success")
	return groups, nil
}

func (r *GormGroupRepository) Update(g *domain.Group) error {
	err := r.db.Save(g).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "group", "update", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "update", "success")
	return nil
}

// DeleteByID removes the group and its memberships in one transaction.
func (r *GormGroupRepository) DeleteByID(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", id).Delete(&domain.Membership{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Group{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "group", "delete_by_id", "not_found")
		} else {
			observability.RecordRepositoryOperation(context.Background(), "group", "delete_by_id", "error")
		}
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "group", "delete_by_id", "success")
	return nil
}

// UpsertMembership keeps at most one role per (account, group); re-adding a
// member simply rewrites the role.
func (r *GormGroupRepository) UpsertMembership(m *domain.Membership) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(m).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "upsert", "success")
	return nil
}

func (r *GormGroupRepository) RemoveMembership(accountID, groupID string) error {
	res := r.db.Where("account_id = ? AND group_id = ?", accountID, groupID).Delete(&domain.Membership{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "remove", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "membership", "remove", "not_found")
		return ErrMembershipNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "remove", "success")
	return nil
}

func (r *GormGroupRepository) ListMembershipsByAccount(accountID string) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := r.db.Where("account_id = ?", accountID).Find(&memberships).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_account", "error")
		return memberships, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_account", "success")
	return memberships, nil
}

func (r *GormGroupRepository) ListMembershipsByGroup(groupID string) ([]domain.Membership, error) {
	var memberships []domain.Membership
	err := r.db.Where("group_id = ?", groupID).Find(&memberships).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_group", "error")
		return memberships, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_group", "success")
	return memberships, nil
}

func (r *GormGroupRepository) AnyGroupRequiresTOTP(accountID string) (bool, error) {
	var n int64
	err := r.db.Model(&domain.Membership{}).
		Joins("JOIN groups ON groups.id = memberships.group_id").
		Where("memberships.account_id = ? AND groups.require_totp = ?", accountID, true).
		Count(&n).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "any_group_requires_totp", "error")
		return false, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "any_group_requires_totp", "success")
	return n > 0, nil
}
