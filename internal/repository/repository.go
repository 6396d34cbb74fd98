// Package repository defines the credential store contract shared by the
// Postgres and SQLite implementations.
package repository

import (
	"context"
	"errors"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the unique email index rejects a write.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrBackupCodeNotFound is returned when a conditional backup-code delete matched no row.
	ErrBackupCodeNotFound = errors.New("backup code not found")
)

// FindOptions controls which hidden fields a lookup loads.
type FindOptions struct {
	// WithSecrets loads PasswordHash, TwoFactorSecret and BackupCodes.
	WithSecrets bool
}

// UserStore is the credential store consumed by the auth service and the
// route guard. Implementations must be safe for concurrent use.
type UserStore interface {
	// Create inserts a new user. Returns ErrDuplicateEmail on a unique violation.
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uuid.UUID, opts FindOptions) (*models.User, error)
	FindByEmail(ctx context.Context, email string, opts FindOptions) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	SetEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// RecordLogin appends event to the login history and, for successful
	// events, updates lastLogin in the same transaction.
	RecordLogin(ctx context.Context, id uuid.UUID, event models.LoginEvent) error
	LoginHistory(ctx context.Context, id uuid.UUID) ([]models.LoginEvent, error)

	// SetPendingTwoFactorSecret stores a secret while 2FA is still disabled.
	// It fails with ErrNotFound if the user does not exist or 2FA is enabled.
	SetPendingTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error
	// EnableTwoFactor stores the backup-code hashes and sets the enabled
	// flag in one transaction. It only applies while 2FA is disabled and the
	// pending secret still equals secret; otherwise it returns ErrNotFound.
	EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, codeHashes []string) error
	// DisableTwoFactor clears the secret and all backup codes in one transaction.
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error
	// ReplaceBackupCodes swaps the whole backup-code set in one transaction.
	ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codeHashes []string) error
	// ConsumeBackupCode deletes the matching code hash. Returns
	// ErrBackupCodeNotFound when no row was removed.
	ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) error

	Ping(ctx context.Context) error
	Close() error
}
