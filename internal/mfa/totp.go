// Package mfa implements TOTP secrets, provisioning QR codes, single-use
// backup codes and second-factor classification.
package mfa

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/skip2/go-qrcode"
)

const (
	totpDigits     = otp.DigitsSix
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20
	qrSize         = 256
)

var totpAlgorithm = otp.AlgorithmSHA1

// ErrEmptyAccount is returned when a secret is requested without a label.
var ErrEmptyAccount = errors.New("account name is required")

// TOTP generates and checks authenticator-app codes for one issuer.
type TOTP struct {
	issuer string
	now    func() time.Time
}

// NewTOTP creates a TOTP service whose secrets are labelled "<issuer>:<account>".
func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer, now: time.Now}
}

// GenerateSecret creates a new random shared secret bound to accountName.
func (t *TOTP) GenerateSecret(accountName string) (*otp.Key, error) {
	if accountName == "" {
		return nil, ErrEmptyAccount
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      totpDigits,
		Algorithm:   totpAlgorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key, nil
}

// ProvisioningImage renders the key's otpauth URL as a PNG data URL.
func (t *TOTP) ProvisioningImage(key *otp.Key) (string, error) {
	png, err := qrcode.Encode(key.URL(), qrcode.Medium, qrSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// VerifyTOTP checks code against secret at the current time, accepting the
// previous and next 30 second steps.
func (t *TOTP) VerifyTOTP(secret, code string) bool {
	return t.VerifyTOTPAt(secret, code, t.now())
}

// VerifyTOTPAt checks code against secret at the given instant.
func (t *TOTP) VerifyTOTPAt(secret, code string, at time.Time) bool {
	if secret == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: totpAlgorithm,
	})
	return err == nil && valid
}

// CodeAt returns the code for secret at the given instant. Never exposed
// over HTTP.
func (t *TOTP) CodeAt(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: totpAlgorithm,
	})
}
