package mfa

import "regexp"

// Kind tags a submitted second-factor code.
type Kind int

const (
	KindInvalid Kind = iota
	KindTOTP
	KindBackupCode
)

func (k Kind) String() string {
	switch k {
	case KindTOTP:
		return "totp"
	case KindBackupCode:
		return "backup_code"
	default:
		return "invalid"
	}
}

var (
	totpPattern       = regexp.MustCompile(`^[0-9]{6}$`)
	backupCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
)

// SecondFactor is a classified code ready for the matching verifier.
type SecondFactor struct {
	Kind Kind
	Code string
}

// Classify decides once which verifier, if any, applies to code. Input is
// matched as given; no trimming or case folding is applied.
func Classify(code string) SecondFactor {
	switch {
	case len(code) == 6 && totpPattern.MatchString(code):
		return SecondFactor{Kind: KindTOTP, Code: code}
	case len(code) == 14 && backupCodePattern.MatchString(code):
		return SecondFactor{Kind: KindBackupCode, Code: code}
	default:
		return SecondFactor{Kind: KindInvalid}
	}
}
