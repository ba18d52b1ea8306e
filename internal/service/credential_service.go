package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/security"
)

type CredentialService struct {
	accounts repository.AccountRepository
	groups   repository.GroupRepository
	sessions repository.SessionRepository
	hasher   security.PasswordHasher
}

func NewCredentialService(
	accounts repository.AccountRepository,
	groups repository.GroupRepository,
	sessions repository.SessionRepository,
	hasher security.PasswordHasher,
) *CredentialService {
	return &CredentialService{accounts: accounts, groups: groups, sessions: sessions, hasher: hasher}
}

// CreateAccount registers a new account. Non-elevated accounts are enrolled
// into the default group as viewer so they always have a floor membership.
func (s *CredentialService) CreateAccount(username, password string, elevated bool) (*domain.Account, error) {
	if username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	account := &domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Elevated:     elevated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	if !elevated {
		group, err := s.groups.FindByName(domain.DefaultGroupName)
		if err != nil {
			return nil, fmt.Errorf("resolve default group: %w", err)
		}
		if err := s.groups.UpsertMembership(&domain.Membership{
			AccountID: account.ID,
			GroupID:   group.ID,
			Role:      domain.RoleViewer,
			CreatedAt: now,
		}); err != nil {
			return nil, fmt.Errorf("enroll default membership: %w", err)
		}
	}
	scrub(account)
	return account, nil
}

// ValidateCredentials returns the account on success and nil on any failure.
// Unknown usernames still burn a hash comparison so the two negative paths
// cost about the same.
func (s *CredentialService) ValidateCredentials(username, password string) (*domain.Account, error) {
	account, err := s.accounts.FindByUsername(username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.hasher.DummyCompare(password)
			return nil, nil
		}
		return nil, err
	}
	if !s.hasher.Compare(account.PasswordHash, password) {
		return nil, nil
	}
	if err := s.accounts.TouchLastLogin(account.ID); err != nil {
		return nil, err
	}
	scrub(account)
	return account, nil
}

// ChangePassword verifies the old password before rewriting the hash and
// revokes every outstanding refresh token so other sessions must log in
// again.
func (s *CredentialService) ChangePassword(accountID, oldPassword, newPassword string) (bool, error) {
	if len(newPassword) < 8 {
		return false, fmt.Errorf("password must be at least 8 characters")
	}
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	if !s.hasher.Compare(account.PasswordHash, oldPassword) {
		return false, nil
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if err := s.accounts.UpdatePassword(account.ID, hash); err != nil {
		return false, err
	}
	if _, err := s.sessions.DeleteByAccountID(account.ID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CredentialService) GetAccount(accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	scrub(account)
	return account, nil
}

func (s *CredentialService) ListAccounts() ([]domain.Account, error) {
	accounts, err := s.accounts.List()
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		scrub(&accounts[i])
	}
	return accounts, nil
}

func (s *CredentialService) DeleteAccount(accountID string) error {
	if _, err := s.sessions.DeleteByAccountID(accountID); err != nil {
		return err
	}
	return s.accounts.DeleteByID(accountID)
}

// scrub keeps the password hash from leaving the store on read paths.
func scrub(a *domain.Account) {
	a.PasswordHash = ""
}
