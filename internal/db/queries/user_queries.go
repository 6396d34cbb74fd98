package queries

const (
	userPublicColumns = `id, name, email, is_email_verified, two_factor_enabled, role,
			last_login_at, last_login_ip, last_login_device, created_at, updated_at`

	userSecretColumns = userPublicColumns + `, password_hash, two_factor_secret`

	CreateUser = `
		INSERT INTO users (id, name, email, password_hash, is_email_verified,
			two_factor_enabled, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	GetUserByID = `
		SELECT ` + userPublicColumns + `
		FROM users
		WHERE id = $1`

	GetUserByIDWithSecrets = `
		SELECT ` + userSecretColumns + `
		FROM users
		WHERE id = $1`

	GetUserByEmail = `
		SELECT ` + userPublicColumns + `
		FROM users
		WHERE email = $1`

	GetUserByEmailWithSecrets = `
		SELECT ` + userSecretColumns + `
		FROM users
		WHERE email = $1`

	EmailExists = `
		SELECT EXISTS(
			SELECT 1 FROM users
			WHERE email = $1
		)`

	SetEmailVerified = `
		UPDATE users
		SET is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1`

	UpdatePassword = `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	UpdateLastLogin = `
		UPDATE users
		SET last_login_at = $2, last_login_ip = $3, last_login_device = $4
		WHERE id = $1`
)
