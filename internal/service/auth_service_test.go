package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/fleetway/fleetway/internal/domain"
)

// recordingGuard scripts cooldown decisions and records what the login flow
// reports back.
type recordingGuard struct {
	cooldown time.Duration
	checkErr error
	failures int
	resets   int
}

func (g *recordingGuard) Check(context.Context, string, string) (time.Duration, error) {
	return g.cooldown, g.checkErr
}

func (g *recordingGuard) RegisterFailure(context.Context, string, string) (time.Duration, error) {
	g.failures++
	return 0, nil
}

func (g *recordingGuard) Reset(context.Context, string, string) error {
	g.resets++
	return nil
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := env.auth.Login(context.Background(), "alice", "password1", "", SessionMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("expected tokens")
	}
	if result.TOTPRequired || result.TOTPSetupRequired {
		t.Fatalf("no mfa involvement expected: %+v", result)
	}

	claims := env.tokens.VerifyAccessToken(result.Tokens.AccessToken)
	if claims == nil {
		t.Fatal("issued access token must verify")
	}
	if claims.Role != string(domain.RoleViewer) {
		t.Fatalf("default-group member should carry viewer, got %s", claims.Role)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.auth.Login(context.Background(), "ghost", "whatever", "", SessionMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.auth.Login(context.Background(), "alice", "wrong", "", SessionMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginTOTPChallenge(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	setup := enrollTOTP(t, env, account.ID)

	// Valid credentials without a code: a challenge, not tokens and not an
	// error.
	result, err := env.auth.Login(context.Background(), "alice", "password1", "", SessionMeta{})
	if err != nil {
		t.Fatalf("login without code: %v", err)
	}
	if !result.TOTPRequired || result.Tokens != nil {
		t.Fatalf("expected challenge, got %+v", result)
	}

	if _, err := env.auth.Login(context.Background(), "alice", "password1", "000000", SessionMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad code: expected ErrInvalidCredentials, got %v", err)
	}

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	result, err = env.auth.Login(context.Background(), "alice", "password1", code, SessionMeta{})
	if err != nil {
		t.Fatalf("login with code: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("expected tokens after passing the factor")
	}
}

func TestLoginWithBackupCode(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	setup := enrollTOTP(t, env, account.ID)

	code := setup.BackupCodes[3]
	result, err := env.auth.Login(context.Background(), "alice", "password1", code, SessionMeta{})
	if err != nil {
		t.Fatalf("login with backup code: %v", err)
	}
	if result.Tokens == nil {
		t.Fatal("expected tokens")
	}

	// The same code a second time fails like any bad credential.
	if _, err := env.auth.Login(context.Background(), "alice", "password1", code, SessionMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("replayed backup code: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginFlagsSetupRequired(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	strict, err := env.groupSvc.CreateGroup("secure-ops", "", true)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if err := env.groupSvc.AddAccountToGroup(account.ID, strict.ID, domain.RoleOperator); err != nil {
		t.Fatalf("join strict: %v", err)
	}

	result, err := env.auth.Login(context.Background(), "alice", "password1", "", SessionMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.TOTPSetupRequired {
		t.Fatal("mandated-but-unenrolled account must be flagged")
	}
	if result.Tokens == nil {
		t.Fatal("tokens are still issued; enrollment enforcement is the API's job")
	}

	// Once enrolled, the flag clears.
	enrollTOTP(t, env, account.ID)
	code, err := totp.GenerateCode(mustSecret(t, env, account.ID), time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	result, err = env.auth.Login(context.Background(), "alice", "password1", code, SessionMeta{})
	if err != nil {
		t.Fatalf("login enrolled: %v", err)
	}
	if result.TOTPSetupRequired {
		t.Fatal("enrolled account must not be flagged")
	}
}

func mustSecret(t *testing.T, env *testEnv, accountID string) string {
	t.Helper()
	account, err := env.accounts.FindByID(accountID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if account.TOTPSecret == nil {
		t.Fatal("no secret enrolled")
	}
	return *account.TOTPSecret
}

func TestLoginThrottled(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	guard := &recordingGuard{cooldown: 30 * time.Second}
	auth := NewAuthService(env.creds, env.groupSvc, env.totp, env.tokens, guard)

	if _, err := auth.Login(context.Background(), "alice", "password1", "", SessionMeta{}); !errors.Is(err, ErrLoginThrottled) {
		t.Fatalf("expected ErrLoginThrottled, got %v", err)
	}
}

func TestLoginReportsOutcomesToGuard(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	guard := &recordingGuard{}
	auth := NewAuthService(env.creds, env.groupSvc, env.totp, env.tokens, guard)

	if _, err := auth.Login(context.Background(), "alice", "wrong", "", SessionMeta{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if guard.failures != 1 {
		t.Fatalf("failure not registered, got %d", guard.failures)
	}

	if _, err := auth.Login(context.Background(), "alice", "password1", "", SessionMeta{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if guard.resets != 1 {
		t.Fatalf("success must reset the guard, got %d", guard.resets)
	}
}

func TestLoginGuardFailuresFailOpen(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	guard := &recordingGuard{cooldown: time.Hour, checkErr: errors.New("redis down")}
	auth := NewAuthService(env.creds, env.groupSvc, env.totp, env.tokens, guard)

	if _, err := auth.Login(context.Background(), "alice", "password1", "", SessionMeta{}); err != nil {
		t.Fatalf("guard backend failure must not block login: %v", err)
	}
}

func TestRefreshAndLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.creds.CreateAccount("alice", "password1", false); err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := env.auth.Login(context.Background(), "alice", "password1", "", SessionMeta{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	pair, err := env.auth.Refresh(context.Background(), result.Tokens.RefreshToken, SessionMeta{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pair.FamilyID != result.Tokens.FamilyID {
		t.Fatal("refresh must stay in the login's family")
	}

	if err := env.auth.Logout(pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.auth.Refresh(context.Background(), pair.RefreshToken, SessionMeta{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("post-logout refresh must fail, got %v", err)
	}
}

// The full theft scenario: attacker steals and replays a rotated token; the
// operator's next refresh fails too and the session list comes back empty.
func TestStolenTokenReplayEndsTheSession(t *testing.T) {
	env := newTestEnv(t)
	account, err := env.creds.CreateAccount("alice", "password1", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	login, err := env.auth.Login(context.Background(), "alice", "password1", "", SessionMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	stolen := login.Tokens.RefreshToken

	operator, err := env.auth.Refresh(context.Background(), stolen, SessionMeta{IP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("operator refresh: %v", err)
	}

	if _, err := env.auth.Refresh(context.Background(), stolen, SessionMeta{IP: "203.0.113.9"}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("attacker replay: expected ErrInvalidRefreshToken, got %v", err)
	}

	if _, err := env.auth.Refresh(context.Background(), operator.RefreshToken, SessionMeta{IP: "10.0.0.1"}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("operator's token must be collateral damage, got %v", err)
	}

	views, err := env.sessionSvc.ListSessions(account.ID, "")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("registry must be empty after the purge, got %d", len(views))
	}
}
