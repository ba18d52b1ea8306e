package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fleetway/fleetway/internal/domain"
)

func newAccountForTest(t *testing.T, repo AccountRepository, hashes []string) *domain.Account {
	t.Helper()
	now := time.Now().UTC()
	account := &domain.Account{
		ID:               uuid.NewString(),
		Username:         "u-" + uuid.NewString()[:8],
		PasswordHash:     "x",
		BackupCodeHashes: hashes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func TestBackupCodeConsumeExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewBackupCodeRepository(db)
	account := newAccountForTest(t, NewAccountRepository(db), []string{"hash-a"})

	ok, err := repo.Consume(account.ID, "hash-a")
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if !ok {
		t.Fatal("first consume must succeed")
	}

	ok, err = repo.Consume(account.ID, "hash-a")
	if err != nil {
		t.Fatalf("second consume: %v", err)
	}
	if ok {
		t.Fatal("second consume of the same code must be refused")
	}

	n, err := repo.CountUsed(account.ID)
	if err != nil {
		t.Fatalf("count used: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 used code, got %d", n)
	}
}

func TestBackupCodeConsumeRepeatedAttempts(t *testing.T) {
	db := newTestDB(t)
	repo := NewBackupCodeRepository(db)
	account := newAccountForTest(t, NewAccountRepository(db), []string{"hash-race"})

	wins := 0
	for i := 0; i < 8; i++ {
		ok, err := repo.Consume(account.ID, "hash-race")
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", wins)
	}
}

func TestBackupCodeReplaceCodesResetsSpentSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewBackupCodeRepository(db)
	account := newAccountForTest(t, NewAccountRepository(db), []string{"old-1", "old-2"})

	if _, err := repo.Consume(account.ID, "old-1"); err != nil {
		t.Fatalf("consume old: %v", err)
	}

	if err := repo.ReplaceCodes(account.ID, []string{"new-1", "new-2"}); err != nil {
		t.Fatalf("replace codes: %v", err)
	}

	n, err := repo.CountUsed(account.ID)
	if err != nil {
		t.Fatalf("count used: %v", err)
	}
	if n != 0 {
		t.Fatalf("spent set must be empty after regeneration, got %d", n)
	}

	var reloaded domain.Account
	if err := db.First(&reloaded, "id = ?", account.ID).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if len(reloaded.BackupCodeHashes) != 2 || reloaded.BackupCodeHashes[0] != "new-1" {
		t.Fatalf("outstanding hashes not replaced: %+v", reloaded.BackupCodeHashes)
	}

	// An old code that survives in a notebook is now just noise.
	ok, err := repo.Consume(account.ID, "old-1")
	if err != nil {
		t.Fatalf("consume stale: %v", err)
	}
	if !ok {
		t.Fatal("spent set was reset; insert should succeed even for a stale hash")
	}
}
