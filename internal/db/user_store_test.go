package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/drfintrack/fintrack-auth/internal/db/queries"
	"github.com/drfintrack/fintrack-auth/internal/models"
	"github.com/drfintrack/fintrack-auth/internal/repository"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewUserStore(NewDB(mockDB)), mock
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

var publicColumns = []string{
	"id", "name", "email", "is_email_verified", "two_factor_enabled", "role",
	"last_login_at", "last_login_ip", "last_login_device", "created_at", "updated_at",
}

func TestUserStore_Create(t *testing.T) {
	store, mock := newMockStore(t)
	user := models.NewUser("Alice", "alice@x.com", "$2a$hash")

	mock.ExpectExec(q(queries.CreateUser)).
		WithArgs(user.ID, "Alice", "alice@x.com", "$2a$hash", false, false, models.RoleUser, user.CreatedAt, user.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(context.Background(), user))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Create_DuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)
	user := models.NewUser("Alice", "alice@x.com", "$2a$hash")

	mock.ExpectExec(q(queries.CreateUser)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := store.Create(context.Background(), user)
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(q(queries.GetUserByID)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindByID(context.Background(), id, repository.FindOptions{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByID_WithLastLogin(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(q(queries.GetUserByID)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(publicColumns).
			AddRow(id.String(), "Alice", "alice@x.com", true, false, "user",
				now, "203.0.113.9", "Desktop - Firefox", now, now))

	user, err := store.FindByID(context.Background(), id, repository.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Empty(t, user.PasswordHash)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, "203.0.113.9", user.LastLogin.IPAddress)
	assert.Equal(t, "Desktop - Firefox", user.LastLogin.Device)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmail_WithSecrets(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	cols := append(append([]string{}, publicColumns...), "password_hash", "two_factor_secret")
	mock.ExpectQuery(q(queries.GetUserByEmailWithSecrets)).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(id.String(), "Alice", "alice@x.com", true, true, "user",
				nil, nil, nil, now, now, "$2a$hash", "JBSWY3DPEHPK3PXP"))
	mock.ExpectQuery(q(queries.GetBackupCodes)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"code_hash"}).AddRow("h1").AddRow("h2"))

	user, err := store.FindByEmail(context.Background(), "alice@x.com", repository.FindOptions{WithSecrets: true})
	require.NoError(t, err)
	assert.Equal(t, "$2a$hash", user.PasswordHash)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", user.TwoFactorSecret)
	assert.Equal(t, []string{"h1", "h2"}, user.BackupCodes)
	assert.Nil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmail_EnabledWithNoCodesKeepsEmptySet(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now().UTC()

	cols := append(append([]string{}, publicColumns...), "password_hash", "two_factor_secret")
	mock.ExpectQuery(q(queries.GetUserByEmailWithSecrets)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(id.String(), "Alice", "alice@x.com", true, true, "user",
				nil, nil, nil, now, now, "$2a$hash", "JBSWY3DPEHPK3PXP"))
	mock.ExpectQuery(q(queries.GetBackupCodes)).
		WillReturnRows(sqlmock.NewRows([]string{"code_hash"}))

	user, err := store.FindByEmail(context.Background(), "alice@x.com", repository.FindOptions{WithSecrets: true})
	require.NoError(t, err)
	assert.NotNil(t, user.BackupCodes)
	assert.Empty(t, user.BackupCodes)
}

func TestUserStore_RecordLogin(t *testing.T) {
	id := uuid.New()
	ts := time.Now().UTC()

	t.Run("successful login updates last login", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(queries.InsertLoginEvent)).
			WithArgs(id, ts, "10.0.0.1", "Mobile - Safari", true).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec(q(queries.UpdateLastLogin)).
			WithArgs(id, ts, "10.0.0.1", "Mobile - Safari").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.RecordLogin(context.Background(), id, models.LoginEvent{
			Timestamp: ts, IPAddress: "10.0.0.1", Device: "Mobile - Safari", Successful: true,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed login only appends history", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(queries.InsertLoginEvent)).
			WithArgs(id, ts, "10.0.0.1", "Unknown - Unknown", false).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := store.RecordLogin(context.Background(), id, models.LoginEvent{
			Timestamp: ts, IPAddress: "10.0.0.1", Device: "Unknown - Unknown",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStore_ConsumeBackupCode(t *testing.T) {
	id := uuid.New()

	t.Run("consumed", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(q(queries.ConsumeBackupCode)).
			WithArgs(id, "hash").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.ConsumeBackupCode(context.Background(), id, "hash"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already used", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(q(queries.ConsumeBackupCode)).
			WithArgs(id, "hash").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.ConsumeBackupCode(context.Background(), id, "hash")
		assert.ErrorIs(t, err, repository.ErrBackupCodeNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStore_EnableTwoFactor(t *testing.T) {
	id := uuid.New()

	t.Run("stores codes and enables in one transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(queries.EnableTwoFactor)).WithArgs(id, "SECRET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q(queries.DeleteBackupCodes)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(q(queries.InsertBackupCode)).WithArgs(id, "h1", 0).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(q(queries.InsertBackupCode)).WithArgs(id, "h2", 1).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, store.EnableTwoFactor(context.Background(), id, "SECRET", []string{"h1", "h2"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already enabled or secret changed rolls back", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(q(queries.EnableTwoFactor)).WithArgs(id, "SECRET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.EnableTwoFactor(context.Background(), id, "SECRET", []string{"h1"})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserStore_DisableTwoFactor(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(q(queries.DisableTwoFactor)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(queries.DeleteBackupCodes)).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectCommit()

	require.NoError(t, store.DisableTwoFactor(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_SetPendingTwoFactorSecret_EnabledUser(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec(q(queries.SetPendingTwoFactorSecret)).
		WithArgs(id, "SECRET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetPendingTwoFactorSecret(context.Background(), id, "SECRET")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_LoginHistory(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	t1 := time.Now().UTC().Add(-time.Hour)
	t2 := time.Now().UTC()

	mock.ExpectQuery(q(queries.GetLoginHistory)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"occurred_at", "ip_address", "device", "successful"}).
			AddRow(t1, "1.1.1.1", "Desktop - Chrome", false).
			AddRow(t2, "1.1.1.1", "Desktop - Chrome", true))

	events, err := store.LoginHistory(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Successful)
	assert.True(t, events[1].Successful)
	assert.NoError(t, mock.ExpectationsWereMet())
}
