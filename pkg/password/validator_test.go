package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strictPolicy() Policy {
	return Policy{
		MinLength:           8,
		RequireUppercase:    true,
		RequireLowercase:    true,
		RequireNumbers:      true,
		RequireSpecialChars: true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		password    string
		policy      Policy
		expectError bool
		errorMsg    string
	}{
		{
			name:     "valid password with all requirements",
			password: "SecurePass123!",
			policy:   strictPolicy(),
		},
		{
			name:     "valid password exactly 8 chars",
			password: "Pass123!",
			policy:   strictPolicy(),
		},
		{
			name:        "too short password",
			password:    "Pass1!",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must be at least 8 characters long",
		},
		{
			name:        "empty password",
			password:    "",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must be at least 8 characters long",
		},
		{
			name:        "missing uppercase",
			password:    "password123!",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must contain at least one uppercase letter",
		},
		{
			name:        "missing lowercase",
			password:    "PASSWORD123!",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must contain at least one lowercase letter",
		},
		{
			name:        "missing number",
			password:    "PasswordTest!",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must contain at least one number",
		},
		{
			name:        "missing special character",
			password:    "Password123",
			policy:      strictPolicy(),
			expectError: true,
			errorMsg:    "Password must contain at least one special character",
		},
		{
			name:     "default policy does not require special characters",
			password: "Password123",
			policy:   DefaultPolicy(),
		},
		{
			name:     "registration example password",
			password: "Passw0rd!",
			policy:   DefaultPolicy(),
		},
		{
			name:     "unicode special characters",
			password: "Pass123€",
			policy:   strictPolicy(),
		},
		{
			name:     "custom minimum length",
			password: "Pass123!Test",
			policy: Policy{
				MinLength:        15,
				RequireUppercase: true,
			},
			expectError: true,
			errorMsg:    "Password must be at least 15 characters long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.password, tt.policy)

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				var valErr *ValidationError
				assert.ErrorAs(t, err, &valErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetComplexityDescription(t *testing.T) {
	assert.Equal(t,
		"Password must be at least 8 characters and contain at least an uppercase letter, a lowercase letter, a number and a special character.",
		GetComplexityDescription(strictPolicy()))
	assert.Equal(t,
		"Password must be at least 12 characters.",
		GetComplexityDescription(Policy{MinLength: 12}))
	assert.Equal(t,
		"Password must be at least 8 characters and contain at least a number.",
		GetComplexityDescription(Policy{MinLength: 8, RequireNumbers: true}))
}

func TestHashAndMatches(t *testing.T) {
	hash, err := Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)

	assert.True(t, Matches(hash, "Passw0rd!"))
	assert.False(t, Matches(hash, "passw0rd!"))
	assert.False(t, Matches("", "Passw0rd!"))
}
