package auth

import (
	"context"
	"errors"

	"github.com/drfintrack/fintrack-auth/internal/mfa"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/drfintrack/fintrack-auth/pkg/password"
	"github.com/google/uuid"
)

// TwoFactorSetup is the provisioning material shown to the user once.
type TwoFactorSetup struct {
	Secret string
	// QRCode is a data:image/png;base64 URL of the otpauth URI.
	QRCode string
}

// SetupTwoFactor generates a pending TOTP secret. 2FA stays disabled until
// VerifyTwoFactor confirms the authenticator app works.
func (s *Service) SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetup, error) {
	user, err := s.findUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, badRequest(MsgTwoFactorAlreadyEnabled)
	}

	key, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, internal("generate totp secret", err)
	}
	qrCode, err := s.totp.ProvisioningImage(key)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: MsgQRCodeFailed, Err: err}
	}

	if err := s.users.SetPendingTwoFactorSecret(ctx, user.ID, key.Secret()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Enabled by a concurrent request since the lookup above.
			return nil, badRequest(MsgTwoFactorAlreadyEnabled)
		}
		return nil, internal("store pending secret", err)
	}

	debug.Info("2FA setup started for user %s", user.ID)
	return &TwoFactorSetup{Secret: key.Secret(), QRCode: qrCode}, nil
}

// VerifyTwoFactor enables 2FA once code matches the pending secret and
// returns the plaintext backup codes. They are never retrievable again.
func (s *Service) VerifyTwoFactor(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := s.findUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, badRequest(MsgTwoFactorAlreadyEnabled)
	}

	factor := mfa.Classify(code)
	if user.TwoFactorSecret == "" || factor.Kind != mfa.KindTOTP || !s.totp.VerifyTOTP(user.TwoFactorSecret, factor.Code) {
		return nil, badRequest(MsgInvalidVerificationCode)
	}

	codes, err := mfa.GenerateBackupCodes(mfa.DefaultBackupCodeCount)
	if err != nil {
		return nil, internal("generate backup codes", err)
	}
	if err := s.users.EnableTwoFactor(ctx, user.ID, user.TwoFactorSecret, mfa.HashBackupCodes(codes)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Enabled, or the secret replaced, by a concurrent request.
			return nil, badRequest(MsgTwoFactorAlreadyEnabled)
		}
		return nil, internal("enable 2fa", err)
	}

	s.sendBackupCodes(user, codes)
	debug.Info("2FA enabled for user %s", user.ID)
	return codes, nil
}

// DisableTwoFactor requires the account password and a current second
// factor. Disabling discards the secret and every backup code.
func (s *Service) DisableTwoFactor(ctx context.Context, userID uuid.UUID, code, plainPassword string) error {
	user, err := s.findUser(ctx, userID, true)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return badRequest(MsgTwoFactorNotEnabled)
	}
	if !password.Matches(user.PasswordHash, plainPassword) {
		return unauthorized(MsgInvalidPassword)
	}
	if err := s.checkSecondFactor(ctx, user, code, false); err != nil {
		return err
	}

	if err := s.users.DisableTwoFactor(ctx, user.ID); err != nil {
		return internal("disable 2fa", err)
	}
	debug.Info("2FA disabled for user %s", user.ID)
	return nil
}

// RegenerateBackupCodes replaces the whole backup-code set after a second
// factor check. A backup code used for the check is consumed first.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, code string) ([]string, error) {
	user, err := s.findUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, badRequest(MsgTwoFactorNotEnabled)
	}
	if err := s.checkSecondFactor(ctx, user, code, true); err != nil {
		return nil, err
	}

	codes, err := mfa.GenerateBackupCodes(mfa.DefaultBackupCodeCount)
	if err != nil {
		return nil, internal("generate backup codes", err)
	}
	if err := s.users.ReplaceBackupCodes(ctx, user.ID, mfa.HashBackupCodes(codes)); err != nil {
		return nil, internal("replace backup codes", err)
	}

	s.sendBackupCodes(user, codes)
	debug.Info("Backup codes regenerated for user %s", user.ID)
	return codes, nil
}

func (s *Service) sendBackupCodes(user *models.User, codes []string) {
	s.detach("two_factor_setup", user.ID, func(ctx context.Context) error {
		return s.mailer.SendTwoFactorSetupEmail(ctx, user.Email, user.Name, codes)
	})
}

// checkSecondFactor verifies code against the user's TOTP secret or backup
// codes under the attempt limiter. With consume set a matching backup code
// is deleted atomically; losing that race counts as an invalid code.
func (s *Service) checkSecondFactor(ctx context.Context, user *models.User, code string, consume bool) error {
	key := user.ID.String()

	locked, err := s.attempts.Locked(ctx, key)
	if err != nil {
		debug.Warning("Attempt limiter unavailable, continuing without it: %v", err)
	} else if locked {
		return newError(KindTooManyRequests, MsgTooManyAttempts)
	}

	ok, err := s.verifySecondFactor(ctx, user, mfa.Classify(code), consume)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.attempts.RecordFailure(ctx, key); err != nil {
			debug.Warning("Failed to record second factor failure: %v", err)
		}
		return invalidSecondFactor()
	}

	if err := s.attempts.Reset(ctx, key); err != nil {
		debug.Warning("Failed to reset second factor attempts: %v", err)
	}
	return nil
}

func (s *Service) verifySecondFactor(ctx context.Context, user *models.User, factor mfa.SecondFactor, consume bool) (bool, error) {
	switch factor.Kind {
	case mfa.KindTOTP:
		return user.TwoFactorSecret != "" && s.totp.VerifyTOTP(user.TwoFactorSecret, factor.Code), nil
	case mfa.KindBackupCode:
		if !mfa.VerifyBackupCode(factor.Code, user.BackupCodes) {
			return false, nil
		}
		if !consume {
			return true, nil
		}
		err := s.users.ConsumeBackupCode(ctx, user.ID, mfa.HashBackupCode(factor.Code))
		if errors.Is(err, repository.ErrBackupCodeNotFound) {
			return false, nil
		}
		if err != nil {
			return false, internal("consume backup code", err)
		}
		user.BackupCodes = mfa.ConsumeBackupCode(factor.Code, user.BackupCodes)
		return true, nil
	default:
		return false, nil
	}
}
