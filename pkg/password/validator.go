package password

import (
	"fmt"
	"unicode"
)

// Policy describes the complexity rules a new password must satisfy.
type Policy struct {
	MinLength           int
	RequireUppercase    bool
	RequireLowercase    bool
	RequireNumbers      bool
	RequireSpecialChars bool
}

// DefaultPolicy is applied when no explicit policy is configured.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumbers:   true,
	}
}

// ValidationError represents a password validation error
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// Validate checks if a password meets the requirements of the policy
func Validate(password string, policy Policy) error {
	if len(password) < policy.MinLength {
		return &ValidationError{
			Rule:    "Length",
			Message: fmt.Sprintf("Password must be at least %d characters long", policy.MinLength),
		}
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if policy.RequireUppercase && !hasUpper {
		return &ValidationError{
			Rule:    "Uppercase",
			Message: "Password must contain at least one uppercase letter",
		}
	}

	if policy.RequireLowercase && !hasLower {
		return &ValidationError{
			Rule:    "Lowercase",
			Message: "Password must contain at least one lowercase letter",
		}
	}

	if policy.RequireNumbers && !hasNumber {
		return &ValidationError{
			Rule:    "Numbers",
			Message: "Password must contain at least one number",
		}
	}

	if policy.RequireSpecialChars && !hasSpecial {
		return &ValidationError{
			Rule:    "Special",
			Message: "Password must contain at least one special character",
		}
	}

	return nil
}

// GetComplexityDescription returns a human-readable description of password requirements
func GetComplexityDescription(policy Policy) string {
	desc := fmt.Sprintf("Password must be at least %d characters", policy.MinLength)

	var requirements []string
	if policy.RequireUppercase {
		requirements = append(requirements, "an uppercase letter")
	}
	if policy.RequireLowercase {
		requirements = append(requirements, "a lowercase letter")
	}
	if policy.RequireNumbers {
		requirements = append(requirements, "a number")
	}
	if policy.RequireSpecialChars {
		requirements = append(requirements, "a special character")
	}

	if len(requirements) > 0 {
		desc += " and contain at least"
		for i, req := range requirements {
			if i == len(requirements)-1 && len(requirements) > 1 {
				desc += " and"
			}
			desc += " " + req
			if i < len(requirements)-2 {
				desc += ","
			}
		}
	}

	return desc + "."
}
