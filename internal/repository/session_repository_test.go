package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetway/fleetway/internal/domain"
)

func newSessionRepoForTest(t *testing.T) SessionRepository {
	t.Helper()
	return NewSessionRepository(newTestDB(t))
}

func newSession(accountID, hash, familyID string, expiresIn time.Duration) *domain.Session {
	now := time.Now().UTC()
	return &domain.Session{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		TokenHash:  hash,
		FamilyID:   familyID,
		ExpiresAt:  now.Add(expiresIn),
		LastUsedAt: now,
		CreatedAt:  now,
	}
}

func TestSessionRepositoryListActiveByAccount(t *testing.T) {
	repo := newSessionRepoForTest(t)

	if err := repo.Create(newSession("acct-1", "h1", "fam-1", 2*time.Hour)); err != nil {
		t.Fatalf("create active: %v", err)
	}
	if err := repo.Create(newSession("acct-1", "h2", "fam-2", -time.Hour)); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := repo.Create(newSession("acct-2", "h3", "fam-3", 2*time.Hour)); err != nil {
		t.Fatalf("create other account: %v", err)
	}

	sessions, err := repo.ListActiveByAccount("acct-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(sessions))
	}
	if sessions[0].TokenHash != "h1" {
		t.Fatalf("unexpected active session: %+v", sessions[0])
	}
}

func TestSessionRepositoryConsumeByHash(t *testing.T) {
	repo := newSessionRepoForTest(t)

	s := newSession("acct-1", "hash-live", "fam-1", time.Hour)
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	consumed, err := repo.ConsumeByHash("hash-live")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if consumed.ID != s.ID {
		t.Fatalf("consumed wrong record: %+v", consumed)
	}

	// The record is gone: a second consume of the same hash fails.
	if _, err := repo.ConsumeByHash("hash-live"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on reuse, got %v", err)
	}
}

func TestSessionRepositoryConsumeByHashSkipsExpired(t *testing.T) {
	repo := newSessionRepoForTest(t)

	if err := repo.Create(newSession("acct-1", "hash-old", "fam-1", -time.Minute)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.ConsumeByHash("hash-old"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for expired record, got %v", err)
	}
}

func TestSessionRepositoryFamilyAlive(t *testing.T) {
	repo := newSessionRepoForTest(t)

	if err := repo.Create(newSession("acct-1", "h1", "fam-1", time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	alive, err := repo.FamilyAlive("fam-1")
	if err != nil {
		t.Fatalf("family alive: %v", err)
	}
	if !alive {
		t.Fatal("expected family to be alive")
	}

	if _, err := repo.DeleteByFamilyID("fam-1"); err != nil {
		t.Fatalf("delete family: %v", err)
	}
	alive, err = repo.FamilyAlive("fam-1")
	if err != nil {
		t.Fatalf("family alive after purge: %v", err)
	}
	if alive {
		t.Fatal("expected family to be gone")
	}
}

func TestSessionRepositoryPruneFamiliesKeepsNewest(t *testing.T) {
	repo := newSessionRepoForTest(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		s := newSession("acct-1", fmt.Sprintf("h%d", i), fmt.Sprintf("fam-%d", i), 2*time.Hour)
		s.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(s); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	deleted, err := repo.PruneFamilies("acct-1", 5)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 pruned, got %d", deleted)
	}

	// The two oldest families are the ones removed.
	for _, fam := range []string{"fam-0", "fam-1"} {
		alive, err := repo.FamilyAlive(fam)
		if err != nil {
			t.Fatalf("family alive %s: %v", fam, err)
		}
		if alive {
			t.Fatalf("expected %s pruned", fam)
		}
	}
	alive, err := repo.FamilyAlive("fam-6")
	if err != nil {
		t.Fatalf("family alive fam-6: %v", err)
	}
	if !alive {
		t.Fatal("newest family must survive pruning")
	}
}

func TestSessionRepositoryDeleteOthersByAccount(t *testing.T) {
	repo := newSessionRepoForTest(t)

	keep := newSession("acct-1", "keep", "fam-1", time.Hour)
	if err := repo.Create(keep); err != nil {
		t.Fatalf("create keep: %v", err)
	}
	if err := repo.Create(newSession("acct-1", "drop1", "fam-2", time.Hour)); err != nil {
		t.Fatalf("create drop1: %v", err)
	}
	if err := repo.Create(newSession("acct-2", "other", "fam-3", time.Hour)); err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err := repo.DeleteOthersByAccount("acct-1", "keep")
	if err != nil {
		t.Fatalf("delete others: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := repo.FindByHash("keep"); err != nil {
		t.Fatalf("kept session must survive: %v", err)
	}
	if _, err := repo.FindByHash("other"); err != nil {
		t.Fatalf("other account's session must survive: %v", err)
	}
}

func TestSessionRepositoryDeleteByIDScopedToAccount(t *testing.T) {
	repo := newSessionRepoForTest(t)

	s := newSession("acct-1", "h1", "fam-1", time.Hour)
	if err := repo.Create(s); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := repo.DeleteByIDForAccount("acct-2", s.ID)
	if err != nil {
		t.Fatalf("delete as wrong account: %v", err)
	}
	if deleted {
		t.Fatal("a session id must not be revocable by another account")
	}

	deleted, err = repo.DeleteByIDForAccount("acct-1", s.ID)
	if err != nil {
		t.Fatalf("delete as owner: %v", err)
	}
	if !deleted {
		t.Fatal("owner must be able to revoke own session")
	}
}

func TestSessionRepositoryCleanupExpired(t *testing.T) {
	repo := newSessionRepoForTest(t)

	if err := repo.Create(newSession("acct-1", "live", "fam-1", time.Hour)); err != nil {
		t.Fatalf("create live: %v", err)
	}
	if err := repo.Create(newSession("acct-1", "dead", "fam-2", -time.Minute)); err != nil {
		t.Fatalf("create dead: %v", err)
	}

	removed, err := repo.CleanupExpired()
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := repo.FindByHash("live"); err != nil {
		t.Fatalf("live session must survive cleanup: %v", err)
	}
}
