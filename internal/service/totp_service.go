package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"slices"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/fleetway/fleetway/internal/domain"
	"github.com/fleetway/fleetway/internal/observability"
	"github.com/fleetway/fleetway/internal/repository"
	"github.com/fleetway/fleetway/internal/security"
)

const backupCodeCount = 10

// TOTPPolicy is the slice of the RBAC engine the MFA engine needs: whether
// any group still mandates a second factor for the account.
type TOTPPolicy interface {
	CanDisableTOTP(accountID string) (bool, error)
}

type TOTPSetup struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	QRCodePNG       []byte   `json:"qr_code_png"`
	BackupCodes     []string `json:"backup_codes"`
}

type TOTPStatus struct {
	Enabled              bool `json:"enabled"`
	PendingSetup         bool `json:"pending_setup"`
	BackupCodesRemaining int  `json:"backup_codes_remaining"`
}

// TOTPService drives the per-account factor through
// disabled -> pending (secret stored, unverified) -> enabled.
type TOTPService struct {
	accounts repository.AccountRepository
	used     repository.BackupCodeRepository
	policy   TOTPPolicy
	hasher   security.PasswordHasher
	issuer   string
}

func NewTOTPService(
	accounts repository.AccountRepository,
	used repository.BackupCodeRepository,
	policy TOTPPolicy,
	hasher security.PasswordHasher,
	issuer string,
) *TOTPService {
	return &TOTPService{accounts: accounts, used: used, policy: policy, hasher: hasher, issuer: issuer}
}

// Setup stores a fresh secret and hashed backup codes but leaves the factor
// disabled: nothing written here authenticates anyone until VerifyAndEnable
// proves the operator's generator produces matching codes.
func (s *TOTPService) Setup(accountID string) (*TOTPSetup, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if account.TOTPEnabled {
		return nil, ErrTOTPAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: account.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return nil, fmt.Errorf("render provisioning qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode provisioning qr: %w", err)
	}

	codes, err := security.NewBackupCodes(backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashes = append(hashes, security.HashBackupCode(code))
	}

	secret := key.Secret()
	account.TOTPSecret = &secret
	account.TOTPEnabled = false
	account.BackupCodeHashes = hashes
	if err := s.accounts.Update(account); err != nil {
		return nil, err
	}
	if err := s.used.ClearForAccount(account.ID); err != nil {
		return nil, err
	}

	return &TOTPSetup{
		Secret:          secret,
		ProvisioningURI: key.URL(),
		QRCodePNG:       buf.Bytes(),
		BackupCodes:     codes,
	}, nil
}

// VerifyAndEnable is the only transition into enabled.
func (s *TOTPService) VerifyAndEnable(accountID, code string) (bool, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	if account.TOTPEnabled || account.TOTPSecret == nil {
		return false, nil
	}
	if !validateTOTP(code, *account.TOTPSecret) {
		return false, nil
	}
	account.TOTPEnabled = true
	if err := s.accounts.Update(account); err != nil {
		return false, err
	}
	return true, nil
}

// VerifyCode checks a login-time second factor: the live TOTP code first,
// then the value as a backup code. Backup redemption is the insert into the
// spent set; a duplicate-key refusal means the code was already used and the
// attempt fails even though the hash still sits in the outstanding list.
func (s *TOTPService) VerifyCode(ctx context.Context, accountID, code string) (bool, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	if !account.TOTPEnabled || account.TOTPSecret == nil {
		return false, nil
	}
	if validateTOTP(code, *account.TOTPSecret) {
		return true, nil
	}

	hash := security.HashBackupCode(code)
	if !slices.Contains(account.BackupCodeHashes, hash) {
		return false, nil
	}
	ok, err := s.used.Consume(account.ID, hash)
	if err != nil {
		return false, err
	}
	if !ok {
		observability.RecordBackupCodeRedemption("reused")
		observability.SecurityEvent(ctx, "backup_code_reuse_attempt", "account_id", account.ID)
		return false, nil
	}
	observability.RecordBackupCodeRedemption("redeemed")
	return true, nil
}

// Disable requires the account password and is refused outright while any
// group mandates the factor; that refusal is a policy error, not a silent
// false.
func (s *TOTPService) Disable(ctx context.Context, accountID, password string) (bool, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	if !account.TOTPEnabled {
		return false, ErrTOTPNotEnabled
	}
	allowed, err := s.policy.CanDisableTOTP(account.ID)
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, ErrTOTPRequiredByPolicy
	}
	if !s.hasher.Compare(account.PasswordHash, password) {
		return false, nil
	}
	return true, s.clearFactor(account)
}

// AdminReset clears the factor unconditionally. Authorization is the
// caller's responsibility, by design.
func (s *TOTPService) AdminReset(accountID string) error {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return err
	}
	return s.clearFactor(account)
}

// RegenerateBackupCodes replaces the outstanding list and clears the spent
// set in the same transaction, so the remaining count resets to a full ten.
func (s *TOTPService) RegenerateBackupCodes(accountID string) ([]string, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	if !account.TOTPEnabled {
		return nil, ErrTOTPNotEnabled
	}
	codes, err := security.NewBackupCodes(backupCodeCount)
	if err != nil {
		return nil, fmt.Errorf("generate backup codes: %w", err)
	}
	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashes = append(hashes, security.HashBackupCode(code))
	}
	if err := s.used.ReplaceCodes(account.ID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

func (s *TOTPService) Status(accountID string) (*TOTPStatus, error) {
	account, err := s.accounts.FindByID(accountID)
	if err != nil {
		return nil, err
	}
	usedCount, err := s.used.CountUsed(account.ID)
	if err != nil {
		return nil, err
	}
	remaining := len(account.BackupCodeHashes) - int(usedCount)
	if remaining < 0 {
		remaining = 0
	}
	return &TOTPStatus{
		Enabled:              account.TOTPEnabled,
		PendingSetup:         !account.TOTPEnabled && account.TOTPSecret != nil,
		BackupCodesRemaining: remaining,
	}, nil
}

func (s *TOTPService) clearFactor(account *domain.Account) error {
	account.TOTPSecret = nil
	account.TOTPEnabled = false
	account.BackupCodeHashes = nil
	if err := s.accounts.Update(account); err != nil {
		return err
	}
	return s.used.ClearForAccount(account.ID)
}

func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
