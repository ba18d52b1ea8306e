package service

import (
	"context"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
)

type LoginResult struct {
	Account *domain.Account `json:"account,omitempty"`
	Tokens  *TokenPair      `json:"tokens,omitempty"`
	// TOTPRequired: credentials were valid but the enrolled factor must be
	// presented before tokens are minted.
	TOTPRequired bool `json:"totp_required,omitempty"`
	// TOTPSetupRequired: a group mandates MFA and the account has not
	// enrolled yet. Tokens are still issued; enforcement of enrollment is
	// the API layer's concern.
	TOTPSetupRequired bool `json:"totp_setup_required,omitempty"`
}

// AuthService sequences a login: credentials, then the MFA gate, then token
// issuance.
type AuthService struct {
	creds  *CredentialService
	groups *GroupService
	totp   *TOTPService
	tokens *TokenService
	abuse  AuthAbuseGuard
}

func NewAuthService(
	creds *CredentialService,
	groups *GroupService,
	totp *TOTPService,
	tokens *TokenService,
	abuse AuthAbuseGuard,
) *AuthService {
	if abuse == nil {
		abuse = NoopAuthAbuseGuard{}
	}
	return &AuthService{creds: creds, groups: groups, totp: totp, tokens: tokens, abuse: abuse}
}

// Login returns ErrInvalidCredentials for every authentication failure; bad
// username, bad password, and bad code are indistinguishable on purpose.
func (s *AuthService) Login(ctx context.Context, username, password, totpCode string, meta SessionMeta) (*LoginResult, error) {
	cooldown, err := s.abuse.Check(ctx, username, meta.IP)
	if err == nil && cooldown > 0 {
		observability.RecordAuthLogin("throttled")
		return nil, ErrLoginThrottled
	}

	account, err := s.creds.ValidateCredentials(username, password)
	if err != nil {
		return nil, err
	}
	if account == nil {
		_, _ = s.abuse.RegisterFailure(ctx, username, meta.IP)
		observability.RecordAuthLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if account.TOTPEnabled {
		if totpCode == "" {
			observability.RecordAuthLogin("totp_challenge")
			return &LoginResult{TOTPRequired: true}, nil
		}
		ok, err := s.totp.VerifyCode(ctx, account.ID, totpCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			_, _ = s.abuse.RegisterFailure(ctx, username, meta.IP)
			observability.RecordAuthLogin("invalid_totp")
			return nil, ErrInvalidCredentials
		}
	}

	result := &LoginResult{Account: account}
	if !account.Elevated && !account.TOTPEnabled {
		required, err := s.groups.UserRequiresTOTP(account.ID)
		if err != nil {
			return nil, err
		}
		result.TOTPSetupRequired = required
	}

	role, _, err := s.groups.ResolveRole(account)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokens.Issue(account, role, meta)
	if err != nil {
		return nil, err
	}
	result.Tokens = tokens

	_ = s.abuse.Reset(ctx, username, meta.IP)
	observability.RecordAuthLogin("success")
	return result, nil
}

// Refresh rotates the presented token, re-resolving the account's role so
// the new access token reflects current memberships.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMeta) (*TokenPair, error) {
	pair, err := s.tokens.Rotate(ctx, refreshToken, s.fetchAccount, meta)
	if err != nil {
		observability.RecordAuthRefresh("rejected")
		return nil, err
	}
	observability.RecordAuthRefresh("success")
	return pair, nil
}

func (s *AuthService) Logout(refreshToken string) error {
	if err := s.tokens.RevokeRefreshToken(refreshToken); err != nil {
		observability.RecordAuthLogout("error")
		return err
	}
	observability.RecordAuthLogout("success")
	return nil
}

func (s *AuthService) fetchAccount(accountID string) (*domain.Account, domain.Role, error) {
	account, err := s.creds.GetAccount(accountID)
	if err != nil {
		return nil, "", err
	}
	role, _, err := s.groups.ResolveRole(account)
	if err != nil {
		return nil, "", err
	}
	return account, role, nil
}
