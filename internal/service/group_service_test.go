package service

import (
	"errors"
	"testing"

	"github.com/fleetway/fleetway/internal/domain"
)

func TestDefaultGroupProtection(t *testing.T) {
	env := newTestEnv(t)

	groups, err := env.groupSvc.ListGroups()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var defaultID string
	for _, g := range groups {
		if g.Name == domain.DefaultGroupName {
			defaultID = g.ID
		}
	}
	if defaultID == "" {
		t.Fatal("default group missing")
	}

	if err := env.groupSvc.DeleteGroup(defaultID); !errors.Is(err, ErrDefaultGroupProtected) {
		t.Fatalf("delete default: expected ErrDefaultGroupProtected, got %v", err)
	}
	if _, err := env.groupSvc.UpdateGroup(defaultID, "renamed", "", false); !errors.Is(err, ErrDefaultGroupProtected) {
		t.Fatalf("rename default: expected ErrDefaultGroupProtected, got %v", err)
	}
	if _, err := env.groupSvc.UpdateGroup(defaultID, domain.DefaultGroupName, "", true); !errors.Is(err, ErrDefaultGroupProtected) {
		t.Fatalf("default require_totp: expected ErrDefaultGroupProtected, got %v", err)
	}

	// Editing the description alone is allowed.
	if _, err := env.groupSvc.UpdateGroup(defaultID, domain.DefaultGroupName, "baseline access", false); err != nil {
		t.Fatalf("update description: %v", err)
	}

	if _, err := env.groupSvc.CreateGroup(domain.DefaultGroupName, "", false); !errors.Is(err, ErrGroupNameTaken) {
		t.Fatalf("recreate default: expected ErrGroupNameTaken, got %v", err)
	}
}

func TestGroupNameConflict(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.groupSvc.CreateGroup("ops", "", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.groupSvc.CreateGroup("ops", "", false); !errors.Is(err, ErrGroupNameTaken) {
		t.Fatalf("expected ErrGroupNameTaken, got %v", err)
	}
}

func TestResolveRoleElevatedShortCircuit(t *testing.T) {
	env := newTestEnv(t)

	account, err := env.creds.CreateAccount("root", "password1", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	role, ok, err := env.groupSvc.ResolveRole(account)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || role != domain.RoleAdmin {
		t.Fatalf("elevated must resolve to admin, got %s ok=%v", role, ok)
	}
}

func TestResolveRolePicksBestMembership(t *testing.T) {
	env := newTestEnv(t)

	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ops, err := env.groupSvc.CreateGroup("ops", "", false)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := env.groupSvc.AddAccountToGroup(account.ID, ops.ID, domain.RoleOperator); err != nil {
		t.Fatalf("add member: %v", err)
	}

	role, ok, err := env.groupSvc.ResolveRole(account)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !ok || role != domain.RoleOperator {
		t.Fatalf("expected operator (beats default viewer), got %s ok=%v", role, ok)
	}
}

func TestAddAccountToGroupRejectsInvalidRole(t *testing.T) {
	env := newTestEnv(t)

	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ops, err := env.groupSvc.CreateGroup("ops", "", false)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := env.groupSvc.AddAccountToGroup(account.ID, ops.ID, domain.Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUserRequiresTOTPFollowsMembership(t *testing.T) {
	env := newTestEnv(t)

	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	strict, err := env.groupSvc.CreateGroup("secure-ops", "", true)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	required, err := env.groupSvc.UserRequiresTOTP(account.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if required {
		t.Fatal("default membership must not require totp")
	}

	if err := env.groupSvc.AddAccountToGroup(account.ID, strict.ID, domain.RoleViewer); err != nil {
		t.Fatalf("add member: %v", err)
	}
	required, err = env.groupSvc.UserRequiresTOTP(account.ID)
	if err != nil {
		t.Fatalf("check after join: %v", err)
	}
	if !required {
		t.Fatal("strict membership must require totp")
	}

	can, err := env.groupSvc.CanDisableTOTP(account.ID)
	if err != nil {
		t.Fatalf("can disable: %v", err)
	}
	if can {
		t.Fatal("disable must be refused while the mandate holds")
	}

	if err := env.groupSvc.RemoveAccountFromGroup(account.ID, strict.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	can, err = env.groupSvc.CanDisableTOTP(account.ID)
	if err != nil {
		t.Fatalf("can disable after leave: %v", err)
	}
	if !can {
		t.Fatal("mandate must lift with the membership")
	}
}
