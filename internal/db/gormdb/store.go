// Package gormdb implements the credential store on an embedded SQLite
// database through gorm, for single-node and development deployments.
package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/drfintrack/fintrack-auth/pkg/debug"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the gorm implementation of repository.UserStore.
type Store struct {
	db *gorm.DB
}

var _ repository.UserStore = (*Store)(nil)

// Open opens (or creates) the SQLite database at dsn and migrates the schema.
// Use ":memory:" for an ephemeral database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: alive.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&userRecord{}, &backupCodeRecord{}, &loginEventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
	}

	debug.Info("Opened sqlite credential store at %s", dsn)
	return &Store{db: db}, nil
}

// Create inserts a new user
func (s *Store) Create(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(toRecord(user)).Error; err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by id
func (s *Store) FindByID(ctx context.Context, id uuid.UUID, opts repository.FindOptions) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id.String(), opts)
}

// FindByEmail retrieves a user by exact email
func (s *Store) FindByEmail(ctx context.Context, email string, opts repository.FindOptions) (*models.User, error) {
	return s.findOne(ctx, "email = ?", email, opts)
}

func (s *Store) findOne(ctx context.Context, where string, arg interface{}, opts repository.FindOptions) (*models.User, error) {
	var rec userRecord
	if err := s.db.WithContext(ctx).Where(where, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u, err := rec.toModel(opts.WithSecrets)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", rec.ID, err)
	}

	if opts.WithSecrets {
		var codes []backupCodeRecord
		if err := s.db.WithContext(ctx).Where("user_id = ?", rec.ID).Order("position").Find(&codes).Error; err != nil {
			return nil, fmt.Errorf("failed to get backup codes: %w", err)
		}
		if len(codes) > 0 || u.TwoFactorEnabled {
			u.BackupCodes = make([]string, 0, len(codes))
			for _, c := range codes {
				u.BackupCodes = append(u.BackupCodes, c.CodeHash)
			}
		}
	}
	return u, nil
}

// EmailExists reports whether an account uses email
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&userRecord{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// SetEmailVerified marks the user's email address as verified
func (s *Store) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	return s.update(s.db.WithContext(ctx), id, nil, map[string]any{"is_email_verified": true})
}

// UpdatePassword overwrites the stored bcrypt hash
func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.update(s.db.WithContext(ctx), id, nil, map[string]any{"password_hash": passwordHash})
}

// RecordLogin appends a history entry and, on success, updates last login
func (s *Store) RecordLogin(ctx context.Context, id uuid.UUID, event models.LoginEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := &loginEventRecord{
			UserID:     id.String(),
			OccurredAt: event.Timestamp,
			IPAddress:  event.IPAddress,
			Device:     event.Device,
			Successful: event.Successful,
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to append login history: %w", err)
		}
		if !event.Successful {
			return nil
		}
		res := tx.Model(&userRecord{}).Where("id = ?", id.String()).UpdateColumns(map[string]any{
			"last_login_at":     event.Timestamp,
			"last_login_ip":     event.IPAddress,
			"last_login_device": event.Device,
		})
		return rowsOrNotFound(res)
	})
}

// LoginHistory returns the user's login history in insertion order
func (s *Store) LoginHistory(ctx context.Context, id uuid.UUID) ([]models.LoginEvent, error) {
	var recs []loginEventRecord
	if err := s.db.WithContext(ctx).Where("user_id = ?", id.String()).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to get login history: %w", err)
	}
	events := make([]models.LoginEvent, 0, len(recs))
	for _, r := range recs {
		events = append(events, models.LoginEvent{
			Timestamp:  r.OccurredAt,
			IPAddress:  r.IPAddress,
			Device:     r.Device,
			Successful: r.Successful,
		})
	}
	return events, nil
}

// SetPendingTwoFactorSecret stores a secret that is not yet enabled
func (s *Store) SetPendingTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return s.update(s.db.WithContext(ctx), id,
		map[string]any{"two_factor_enabled": false},
		map[string]any{"two_factor_secret": secret})
}

// EnableTwoFactor stores backup codes and flips the enabled flag atomically
func (s *Store) EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, codeHashes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userRecord{}).
			Where("id = ? AND two_factor_enabled = ? AND two_factor_secret = ?", id.String(), false, secret).
			Updates(map[string]any{"two_factor_enabled": true, "updated_at": time.Now().UTC()})
		if err := rowsOrNotFound(res); err != nil {
			return err
		}
		return replaceCodes(tx, id, codeHashes)
	})
}

// DisableTwoFactor clears the secret and every backup code atomically
func (s *Store) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.update(tx, id, nil, map[string]any{
			"two_factor_enabled": false,
			"two_factor_secret":  nil,
		})
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id.String()).Delete(&backupCodeRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}
		return nil
	})
}

// ReplaceBackupCodes swaps the stored set for codeHashes
func (s *Store) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codeHashes []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.update(tx, id, nil, map[string]any{}); err != nil {
			return err
		}
		return replaceCodes(tx, id, codeHashes)
	})
}

// ConsumeBackupCode removes one code hash with a single conditional delete
func (s *Store) ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND code_hash = ?", id.String(), codeHash).
		Delete(&backupCodeRecord{})
	if res.Error != nil {
		return fmt.Errorf("failed to consume backup code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrBackupCodeNotFound
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database handle
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// update applies fields (plus updated_at) to the user matching id and the
// optional extra conditions.
func (s *Store) update(tx *gorm.DB, id uuid.UUID, where map[string]any, fields map[string]any) error {
	fields["updated_at"] = time.Now().UTC()
	q := tx.Model(&userRecord{}).Where("id = ?", id.String())
	if len(where) > 0 {
		q = q.Where(where)
	}
	return rowsOrNotFound(q.Updates(fields))
}

func replaceCodes(tx *gorm.DB, id uuid.UUID, codeHashes []string) error {
	if err := tx.Where("user_id = ?", id.String()).Delete(&backupCodeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear backup codes: %w", err)
	}
	if len(codeHashes) == 0 {
		return nil
	}
	recs := make([]backupCodeRecord, 0, len(codeHashes))
	for i, hash := range codeHashes {
		recs = append(recs, backupCodeRecord{UserID: id.String(), CodeHash: hash, Position: i})
	}
	if err := tx.Create(&recs).Error; err != nil {
		return fmt.Errorf("failed to insert backup codes: %w", err)
	}
	return nil
}

func rowsOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
