package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/security"
)

// fakeHasher is deterministic and cheap, and counts dummy comparisons so
// tests can assert the unknown-username path still burns one.
type fakeHasher struct {
	dummyCompares int
}

func (h *fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (h *fakeHasher) Compare(hash, password string) bool { return hash == "hashed:"+password }

func (h *fakeHasher) DummyCompare(string) { h.dummyCompares++ }

var _ security.PasswordHasher = (*fakeHasher)(nil)

type testEnv struct {
	db       *gorm.DB
	accounts repository.AccountRepository
	groups   repository.GroupRepository
	sessions repository.SessionRepository
	used     repository.BackupCodeRepository
	hasher   *fakeHasher

	creds      *CredentialService
	groupSvc   *GroupService
	totp       *TOTPService
	tokens     *TokenService
	sessionSvc *SessionService
	auth       *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db:       db,
		accounts: repository.NewAccountRepository(db),
		groups:   repository.NewGroupRepository(db),
		sessions: repository.NewSessionRepository(db),
		used:     repository.NewBackupCodeRepository(db),
		hasher:   &fakeHasher{},
	}
	env.creds = NewCredentialService(env.accounts, env.groups, env.sessions, env.hasher)
	env.groupSvc = NewGroupService(env.groups, env.accounts)
	env.totp = NewTOTPService(env.accounts, env.used, env.groupSvc, env.hasher, "Fleetway Test")
	jwtMgr := security.NewJWTManager("fleetway-test", "fleetway-test", strings.Repeat("k", 32))
	env.tokens = NewTokenService(jwtMgr, env.sessions, "test-pepper", 15*time.Minute, time.Hour, 5)
	env.sessionSvc = NewSessionService(env.sessions)
	env.auth = NewAuthService(env.creds, env.groupSvc, env.totp, env.tokens, nil)
	return env
}
