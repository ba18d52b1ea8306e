package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/repository"
)

// GroupService is the RBAC engine: group CRUD, memberships, role resolution,
// and the policy deciding which accounts must carry a second factor.
type GroupService struct {
	groups   repository.GroupRepository
	accounts repository.AccountRepository
}

func NewGroupService(groups repository.GroupRepository, accounts repository.AccountRepository) *GroupService {
	return &GroupService{groups: groups, accounts: accounts}
}

func (s *GroupService) CreateGroup(name, description string, requireTOTP bool) (*domain.Group, error) {
	if name == "" {
		return nil, errors.New("group name must not be empty")
	}
	if name == domain.DefaultGroupName {
		return nil, ErrGroupNameTaken
	}
	now := time.Now().UTC()
	group := &domain.Group{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		RequireTOTP: requireTOTP,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.groups.Create(group); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrGroupNameTaken
		}
		return nil, err
	}
	return group, nil
}

func (s *GroupService) GetGroup(id string) (*domain.Group, error) {
	return s.groups.FindByID(id)
}

func (s *GroupService) ListGroups() ([]domain.Group, error) {
	return s.groups.List()
}

// UpdateGroup edits name, description, and the MFA policy flag. The default
// group is the floor for every non-elevated account: it cannot be renamed
// and can never mandate TOTP.
func (s *GroupService) UpdateGroup(id, name, description string, requireTOTP bool) (*domain.Group, error) {
	group, err := s.groups.FindByID(id)
	if err != nil {
		return nil, err
	}
	if group.Name == domain.DefaultGroupName && (name != domain.DefaultGroupName || requireTOTP) {
		return nil, ErrDefaultGroupProtected
	}
	group.Name = name
	group.Description = description
	group.RequireTOTP = requireTOTP
	group.UpdatedAt = time.Now().UTC()
	if err := s.groups.Update(group); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrGroupNameTaken
		}
		return nil, err
	}
	return group, nil
}

func (s *GroupService) DeleteGroup(id string) error {
	group, err := s.groups.FindByID(id)
	if err != nil {
		return err
	}
	if group.Name == domain.DefaultGroupName {
		return ErrDefaultGroupProtected
	}
	return s.groups.DeleteByID(id)
}

// AddAccountToGroup upserts: re-adding an existing member rewrites the role.
func (s *GroupService) AddAccountToGroup(accountID, groupID string, role domain.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if _, err := s.accounts.FindByID(accountID); err != nil {
		return err
	}
	if _, err := s.groups.FindByID(groupID); err != nil {
		return err
	}
	return s.groups.UpsertMembership(&domain.Membership{
		AccountID: accountID,
		GroupID:   groupID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *GroupService) RemoveAccountFromGroup(accountID, groupID string) error {
	return s.groups.RemoveMembership(accountID, groupID)
}

func (s *GroupService) ListGroupMembers(groupID string) ([]domain.Membership, error) {
	if _, err := s.groups.FindByID(groupID); err != nil {
		return nil, err
	}
	return s.groups.ListMembershipsByGroup(groupID)
}

func (s *GroupService) ListAccountMemberships(accountID string) ([]domain.Membership, error) {
	return s.groups.ListMembershipsByAccount(accountID)
}

// UserRequiresTOTP is true when at least one of the account's groups sets the
// MFA-required flag. Elevated accounts are the caller's problem; they bypass
// group checks through ResolveRole.
func (s *GroupService) UserRequiresTOTP(accountID string) (bool, error) {
	return s.groups.AnyGroupRequiresTOTP(accountID)
}

func (s *GroupService) CanDisableTOTP(accountID string) (bool, error) {
	required, err := s.groups.AnyGroupRequiresTOTP(accountID)
	if err != nil {
		return false, err
	}
	return !required, nil
}

// ResolveRole is the single place the elevated short-circuit lives. Every
// authorization decision funnels through here: elevated accounts are admin
// everywhere, everyone else gets their best role across memberships. The
// second return is false when the account holds no role at all.
func (s *GroupService) ResolveRole(account *domain.Account) (domain.Role, bool, error) {
	if account.Elevated {
		return domain.RoleAdmin, true, nil
	}
	memberships, err := s.groups.ListMembershipsByAccount(account.ID)
	if err != nil {
		return "", false, err
	}
	var best domain.Role
	for _, m := range memberships {
		if m.Role.Level() > best.Level() {
			best = m.Role
		}
	}
	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

// HighestRole is for display and coarse gates only; route-level checks must
// consult the specific group an action touches.
func (s *GroupService) HighestRole(accountID string) (domain.Role, bool, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return "", false, err
	}
	return s.ResolveRole(account)
}

// RoleInGroup answers the fine-grained question: what may this account do in
// this group. Elevated accounts are admin here too, via ResolveRole.
func (s *GroupService) RoleInGroup(account *domain.Account, groupID string) (domain.Role, bool, error) {
	if account.Elevated {
		return domain.RoleAdmin, true, nil
	}
	memberships, err := s.groups.ListMembershipsByAccount(account.ID)
	if err != nil {
		return "", false, err
	}
	for _, m := range memberships {
		if m.GroupID == groupID {
			return m.Role, true, nil
		}
	}
	return "", false, nil
}
