package gormdb

import (
	"time"

	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/google/uuid"
)

type userRecord struct {
	ID               string  `gorm:"primaryKey;type:text"`
	Name             string  `gorm:"not null"`
	Email            string  `gorm:"uniqueIndex;not null"`
	PasswordHash     string  `gorm:"not null"`
	IsEmailVerified  bool    `gorm:"not null;default:false"`
	TwoFactorEnabled bool    `gorm:"not null;default:false"`
	TwoFactorSecret  *string
	Role             string `gorm:"not null;default:user"`
	LastLoginAt      *time.Time
	LastLoginIP      *string
	LastLoginDevice  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (userRecord) TableName() string { return "users" }

type backupCodeRecord struct {
	UserID   string `gorm:"primaryKey;type:text"`
	CodeHash string `gorm:"primaryKey;type:text"`
	Position int    `gorm:"not null"`
}

func (backupCodeRecord) TableName() string { return "user_backup_codes" }

type loginEventRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	UserID     string    `gorm:"index;not null"`
	OccurredAt time.Time `gorm:"not null"`
	IPAddress  string
	Device     string
	Successful bool
}

func (loginEventRecord) TableName() string { return "login_history" }

func toRecord(u *models.User) *userRecord {
	rec := &userRecord{
		ID:               u.ID.String(),
		Name:             u.Name,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		IsEmailVerified:  u.IsEmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		Role:             u.Role,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
	if u.TwoFactorSecret != "" {
		secret := u.TwoFactorSecret
		rec.TwoFactorSecret = &secret
	}
	return rec
}

func (r *userRecord) toModel(withSecrets bool) (*models.User, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:               id,
		Name:             r.Name,
		Email:            r.Email,
		IsEmailVerified:  r.IsEmailVerified,
		TwoFactorEnabled: r.TwoFactorEnabled,
		Role:             r.Role,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.LastLoginAt != nil {
		u.LastLogin = &models.LastLogin{Timestamp: *r.LastLoginAt}
		if r.LastLoginIP != nil {
			u.LastLogin.IPAddress = *r.LastLoginIP
		}
		if r.LastLoginDevice != nil {
			u.LastLogin.Device = *r.LastLoginDevice
		}
	}
	if withSecrets {
		u.PasswordHash = r.PasswordHash
		if r.TwoFactorSecret != nil {
			u.TwoFactorSecret = *r.TwoFactorSecret
		}
	}
	return u, nil
}
