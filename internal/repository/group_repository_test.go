package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetway/fleetway/internal/domain"
)

func seedGroup(t *testing.T, repo GroupRepository, name string, requireTOTP bool) *domain.Group {
	t.Helper()
	now := time.Now().UTC()
	group := &domain.Group{ID: uuid.NewString(), Name: name, RequireTOTP: requireTOTP, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(group); err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	return group
}

func TestGroupRepositoryUpsertMembershipRewritesRole(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	group := seedGroup(t, repo, "ops", false)

	m := &domain.Membership{AccountID: "acct-1", GroupID: group.ID, Role: domain.RoleViewer, CreatedAt: time.Now().UTC()}
	if err := repo.UpsertMembership(m); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	m.Role = domain.RoleAdmin
	if err := repo.UpsertMembership(m); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	memberships, err := repo.ListMembershipsByAccount("acct-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("expected single membership, got %d", len(memberships))
	}
	if memberships[0].Role != domain.RoleAdmin {
		t.Fatalf("role not rewritten: %+v", memberships[0])
	}
}

func TestGroupRepositoryAnyGroupRequiresTOTP(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	plain := seedGroup(t, repo, "plain", false)
	strict := seedGroup(t, repo, "strict", true)

	now := time.Now().UTC()
	if err := repo.UpsertMembership(&domain.Membership{AccountID: "acct-1", GroupID: plain.ID, Role: domain.RoleViewer, CreatedAt: now}); err != nil {
		t.Fatalf("join plain: %v", err)
	}

	required, err := repo.AnyGroupRequiresTOTP("acct-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if required {
		t.Fatal("no strict membership yet")
	}

	if err := repo.UpsertMembership(&domain.Membership{AccountID: "acct-1", GroupID: strict.ID, Role: domain.RoleOperator, CreatedAt: now}); err != nil {
		t.Fatalf("join strict: %v", err)
	}
	required, err = repo.AnyGroupRequiresTOTP("acct-1")
	if err != nil {
		t.Fatalf("check after join: %v", err)
	}
	if !required {
		t.Fatal("strict membership must mandate totp")
	}

	if err := repo.RemoveMembership("acct-1", strict.ID); err != nil {
		t.Fatalf("leave strict: %v", err)
	}
	required, err = repo.AnyGroupRequiresTOTP("acct-1")
	if err != nil {
		t.Fatalf("check after leave: %v", err)
	}
	if required {
		t.Fatal("mandate must lift when the strict membership is gone")
	}
}

func TestGroupRepositoryDeleteCascadesMemberships(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupRepository(db)
	group := seedGroup(t, repo, "doomed", false)

	if err := repo.UpsertMembership(&domain.Membership{AccountID: "acct-1", GroupID: group.ID, Role: domain.RoleViewer, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := repo.DeleteByID(group.ID); err != nil {
		t.Fatalf("delete group: %v", err)
	}

	memberships, err := repo.ListMembershipsByAccount("acct-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("memberships must die with the group, got %d", len(memberships))
	}
	if _, err := repo.FindByID(group.ID); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}
