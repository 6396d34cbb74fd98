package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory repository.UserStore for handler and service
// tests. Returned users are copies.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	history map[uuid.UUID][]models.LoginEvent

	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]*models.User),
		history: make(map[uuid.UUID][]models.LoginEvent),
	}
}

func (m *MemoryStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = cloneUser(user, true)
	return nil
}

func (m *MemoryStore) FindByID(ctx context.Context, id uuid.UUID, opts repository.FindOptions) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u, opts.WithSecrets), nil
}

func (m *MemoryStore) FindByEmail(ctx context.Context, email string, opts repository.FindOptions) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	for _, u := range m.users {
		if u.Email == email {
			return cloneUser(u, opts.WithSecrets), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MemoryStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email, repository.FindOptions{})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *MemoryStore) SetEmailVerified(ctx context.Context, id uuid.UUID) error {
	return m.update(id, func(u *models.User) error {
		u.IsEmailVerified = true
		return nil
	})
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return m.update(id, func(u *models.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (m *MemoryStore) RecordLogin(ctx context.Context, id uuid.UUID, event models.LoginEvent) error {
	return m.update(id, func(u *models.User) error {
		m.history[id] = append(m.history[id], event)
		if event.Successful {
			u.LastLogin = &models.LastLogin{
				Timestamp: event.Timestamp,
				IPAddress: event.IPAddress,
				Device:    event.Device,
			}
		}
		return nil
	})
}

func (m *MemoryStore) LoginHistory(ctx context.Context, id uuid.UUID) ([]models.LoginEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return append([]models.LoginEvent(nil), m.history[id]...), nil
}

func (m *MemoryStore) SetPendingTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error {
	return m.update(id, func(u *models.User) error {
		if u.TwoFactorEnabled {
			return repository.ErrNotFound
		}
		u.TwoFactorSecret = secret
		return nil
	})
}

func (m *MemoryStore) EnableTwoFactor(ctx context.Context, id uuid.UUID, secret string, codeHashes []string) error {
	return m.update(id, func(u *models.User) error {
		if u.TwoFactorEnabled || u.TwoFactorSecret == "" || u.TwoFactorSecret != secret {
			return repository.ErrNotFound
		}
		u.TwoFactorEnabled = true
		u.BackupCodes = append([]string(nil), codeHashes...)
		return nil
	})
}

func (m *MemoryStore) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	return m.update(id, func(u *models.User) error {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = ""
		u.BackupCodes = nil
		return nil
	})
}

func (m *MemoryStore) ReplaceBackupCodes(ctx context.Context, id uuid.UUID, codeHashes []string) error {
	return m.update(id, func(u *models.User) error {
		u.BackupCodes = append([]string(nil), codeHashes...)
		return nil
	})
}

func (m *MemoryStore) ConsumeBackupCode(ctx context.Context, id uuid.UUID, codeHash string) error {
	return m.update(id, func(u *models.User) error {
		for i, h := range u.BackupCodes {
			if h == codeHash {
				u.BackupCodes = append(u.BackupCodes[:i:i], u.BackupCodes[i+1:]...)
				return nil
			}
		}
		return repository.ErrBackupCodeNotFound
	})
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FailWith
}

func (m *MemoryStore) Close() error { return nil }

// Get returns a copy of the stored user including secrets, or nil.
func (m *MemoryStore) Get(id uuid.UUID) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return cloneUser(u, true)
}

func (m *MemoryStore) update(id uuid.UUID, fn func(u *models.User) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func cloneUser(u *models.User, withSecrets bool) *models.User {
	c := *u
	if u.LastLogin != nil {
		last := *u.LastLogin
		c.LastLogin = &last
	}
	if withSecrets {
		c.BackupCodes = append([]string(nil), u.BackupCodes...)
	} else {
		c.PasswordHash = ""
		c.TwoFactorSecret = ""
		c.BackupCodes = nil
	}
	return &c
}
