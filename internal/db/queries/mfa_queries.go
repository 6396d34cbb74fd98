package queries

const (
	// Pending secrets can only be written while 2FA is disabled
	SetPendingTwoFactorSecret = `
		UPDATE users
		SET two_factor_secret = $2, updated_at = NOW()
		WHERE id = $1 AND two_factor_enabled = FALSE`

	EnableTwoFactor = `
		UPDATE users
		SET two_factor_enabled = TRUE, updated_at = NOW()
		WHERE id = $1 AND two_factor_enabled = FALSE AND two_factor_secret = $2`

	DisableTwoFactor = `
		UPDATE users
		SET two_factor_enabled = FALSE, two_factor_secret = NULL, updated_at = NOW()
		WHERE id = $1`

	TouchUser = `
		UPDATE users
		SET updated_at = NOW()
		WHERE id = $1`

	// Backup Code Queries
	GetBackupCodes = `
		SELECT code_hash
		FROM user_backup_codes
		WHERE user_id = $1
		ORDER BY position`

	DeleteBackupCodes = `
		DELETE FROM user_backup_codes
		WHERE user_id = $1`

	InsertBackupCode = `
		INSERT INTO user_backup_codes (user_id, code_hash, position)
		VALUES ($1, $2, $3)`

	// Single conditional delete; zero rows affected means the code was
	// already used or never existed
	ConsumeBackupCode = `
		DELETE FROM user_backup_codes
		WHERE user_id = $1 AND code_hash = $2`

	// Login History Queries
	InsertLoginEvent = `
		INSERT INTO login_history (user_id, occurred_at, ip_address, device, successful)
		VALUES ($1, $2, $3, $4, $5)`

	GetLoginHistory = `
		SELECT occurred_at, ip_address, device, successful
		FROM login_history
		WHERE user_id = $1
		ORDER BY id`
)
