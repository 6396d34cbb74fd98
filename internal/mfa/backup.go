package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultBackupCodeCount is the size of every generated batch.
	DefaultBackupCodeCount = 10

	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	backupGroupSize    = 4
	backupGroups       = 3
)

// GenerateBackupCodes returns count random codes formatted XXXX-XXXX-XXXX.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		count = DefaultBackupCodeCount
	}
	alphabetSize := big.NewInt(int64(len(backupCodeAlphabet)))

	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var b strings.Builder
		for g := 0; g < backupGroups; g++ {
			if g > 0 {
				b.WriteByte('-')
			}
			for c := 0; c < backupGroupSize; c++ {
				n, err := rand.Int(rand.Reader, alphabetSize)
				if err != nil {
					return nil, fmt.Errorf("failed to generate backup code: %w", err)
				}
				b.WriteByte(backupCodeAlphabet[n.Int64()])
			}
		}
		codes = append(codes, b.String())
	}
	return codes, nil
}

// HashBackupCode returns the hex SHA-256 digest stored for code.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// HashBackupCodes hashes each code, preserving order.
func HashBackupCodes(codes []string) []string {
	hashes := make([]string, len(codes))
	for i, code := range codes {
		hashes[i] = HashBackupCode(code)
	}
	return hashes
}

// VerifyBackupCode reports whether candidate hashes to a member of hashes.
func VerifyBackupCode(candidate string, hashes []string) bool {
	return indexOf(HashBackupCode(candidate), hashes) >= 0
}

// ConsumeBackupCode returns hashes without the entry matching candidate.
// The input slice is not modified.
func ConsumeBackupCode(candidate string, hashes []string) []string {
	idx := indexOf(HashBackupCode(candidate), hashes)
	if idx < 0 {
		return hashes
	}
	remaining := make([]string, 0, len(hashes)-1)
	remaining = append(remaining, hashes[:idx]...)
	return append(remaining, hashes[idx+1:]...)
}

func indexOf(hash string, hashes []string) int {
	found := -1
	for i, h := range hashes {
		if subtle.ConstantTimeCompare([]byte(h), []byte(hash)) == 1 && found < 0 {
			found = i
		}
	}
	return found
}
