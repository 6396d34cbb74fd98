package testutil

// Default test passwords
const (
	DefaultTestPassword = "TestPassword123!"
	WeakTestPassword    = "weak"
	StrongTestPassword  = "SuperSecure123!@#$%^&*()"
)

// Test JWT secret
const TestJWTSecret = "test-jwt-secret-for-testing-only"

// Stale backup code in the valid format that was never issued.
const UnknownBackupCode = "AAAA-BBBB-CCCC"

// ValidRegisterRequest returns a valid registration body
func ValidRegisterRequest(name, email string) map[string]string {
	return map[string]string{
		"name":     name,
		"email":    email,
		"password": DefaultTestPassword,
	}
}

// ValidLoginRequest returns a valid login body
func ValidLoginRequest(email string) map[string]string {
	return map[string]string{
		"email":    email,
		"password": DefaultTestPassword,
	}
}
