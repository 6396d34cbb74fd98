package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/db/queries"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// UserStore is the PostgreSQL implementation of repository.UserStore.
type UserStore struct {
	db *DB
}

var _ repository.UserStore = (*UserStore)(nil)

// NewUserStore creates a new Postgres-backed user store
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a new user
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, queries.CreateUser,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsEmailVerified,
		user.TwoFactorEnabled, user.Role, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by id
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID, opts repository.FindOptions) (*models.User, error) {
	query := queries.GetUserByID
	if opts.WithSecrets {
		query = queries.GetUserByIDWithSecrets
	}
	return s.findOne(ctx, query, id, opts)
}

// FindByEmail retrieves a user by exact email
func (s *UserStore) FindByEmail(ctx context.Context, email string, opts repository.FindOptions) (*models.User, error) {
	query := queries.GetUserByEmail
	if opts.WithSecrets {
		query = queries.GetUserByEmailWithSecrets
	}
	return s.findOne(ctx, query, email, opts)
}

func (s *UserStore) findOne(ctx context.Context, query string, arg interface{}, opts repository.FindOptions) (*models.User, error) {
	var (
		u          models.User
		lastAt     sql.NullTime
		lastIP     sql.NullString
		lastDevice sql.NullString
		secret     sql.NullString
	)
	dest := []interface{}{
		&u.ID, &u.Name, &u.Email, &u.IsEmailVerified, &u.TwoFactorEnabled, &u.Role,
		&lastAt, &lastIP, &lastDevice, &u.CreatedAt, &u.UpdatedAt,
	}
	if opts.WithSecrets {
		dest = append(dest, &u.PasswordHash, &secret)
	}

	if err := s.db.QueryRowContext(ctx, query, arg).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastAt.Valid {
		u.LastLogin = &models.LastLogin{
			Timestamp: lastAt.Time,
			IPAddress: lastIP.String,
			Device:    lastDevice.String,
		}
	}

	if opts.WithSecrets {
		u.TwoFactorSecret = secret.String
		codes, err := s.backupCodes(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if u.TwoFactorEnabled && codes == nil {
			codes = []string{}
		}
		u.BackupCodes = codes
	}
	return &u, nil
}

func (s *UserStore) backupCodes(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queries.GetBackupCodes, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get backup codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan backup code: %w", err)
		}
		codes = append(codes, hash)
	}
	return codes, rows.Err()
}

// EmailExists reports whether an account uses email
func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, queries.EmailExists, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// SetEmailVerified marks the user's email address as verified
func (s *UserStore) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, queries.SetEmailVerified, id)
}

// UpdatePassword overwrites the stored bcrypt hash
func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.execOne(ctx, queries.UpdatePassword, id, passwordHash)
}

// RecordLogin appends a history entry and, on success, updates last login
func (s *UserStore) RecordLogin(ctx context.Context, id uuid.UUID, event models.LoginEvent) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, queries.InsertLoginEvent,
			id, event.Timestamp, event.IPAddress, event.Device, event.Successful); err != nil {
			return fmt.Errorf("failed to append login history: %w", err)
		}
		if !event.Successful {
			return nil
		}
		return expectOne(tx.ExecContext(ctx, queries.UpdateLastLogin,
			id, event.Timestamp, event.IPAddress, event.Device))
	})
}

// LoginHistory returns the user's login history in insertion order
func (s *UserStore) LoginHistory(ctx context.Context, id uuid.UUID) ([]models.LoginEvent, error) {
	rows, err := s.db.QueryContext(ctx, queries.GetLoginHistory, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get login history: %w", err)
	}
	defer rows.Close()

	var events []models.LoginEvent
	for rows.Next() {
		var e models.LoginEvent
		if err := rows.Scan(&e.Timestamp, &e.IPAddress, &e.Device, &e.Successful); err != nil {
			return nil, fmt.Errorf("failed to scan login event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// SetPendingTwoFactorSecret stores a secret that is not yet enabled
func (s *UserStore) SetPendingTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return s.execOne(ctx, queries.SetPendingTwoFactorSecret, id, secret)
}

// EnableTwoFactor stores backup codes and flips the enabled flag atomically
func (s *UserStore) EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, codeHashes []string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := expectOne(tx.ExecContext(ctx, queries.EnableTwoFactor, id, secret)); err != nil {
			return err
		}
		return replaceCodes(ctx, tx, id, codeHashes)
	})
}

// DisableTwoFactor clears the secret and every backup code atomically
func (s *UserStore) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := expectOne(tx.ExecContext(ctx, queries.DisableTwoFactor, id)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queries.DeleteBackupCodes, id); err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}
		return nil
	})
}

// ReplaceBackupCodes swaps the stored set for codeHashes
func (s *UserStore) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codeHashes []string) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := expectOne(tx.ExecContext(ctx, queries.TouchUser, id)); err != nil {
			return err
		}
		return replaceCodes(ctx, tx, id, codeHashes)
	})
}

// ConsumeBackupCode removes one code hash with a single conditional delete
func (s *UserStore) ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) error {
	result, err := s.db.ExecContext(ctx, queries.ConsumeBackupCode, id, codeHash)
	if err != nil {
		return fmt.Errorf("failed to consume backup code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		debug.Debug("backup code not found for user %s", id)
		return repository.ErrBackupCodeNotFound
	}
	return nil
}

// Ping checks database connectivity
func (s *UserStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool
func (s *UserStore) Close() error {
	return s.db.Close()
}

func (s *UserStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	return expectOne(s.db.ExecContext(ctx, query, args...))
}

func replaceCodes(ctx context.Context, tx *sql.Tx, id uuid.UUID, codeHashes []string) error {
	if _, err := tx.ExecContext(ctx, queries.DeleteBackupCodes, id); err != nil {
		return fmt.Errorf("failed to clear backup codes: %w", err)
	}
	for i, hash := range codeHashes {
		if _, err := tx.ExecContext(ctx, queries.InsertBackupCode, id, hash, i); err != nil {
			return fmt.Errorf("failed to insert backup code: %w", err)
		}
	}
	return nil
}

// expectOne maps a zero-row update to repository.ErrNotFound.
func expectOne(result sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
