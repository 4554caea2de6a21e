package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	digits = "0123456789"
	// Excludes ambiguous characters: 0, O, I, 1
	requestIdCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	resetTokenBytes = 20
)

// GenerateRandomString generates a cryptographically secure random string
// using the provided charset and length
func GenerateRandomString(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			panic(fmt.Sprintf("failed to generate random string: %v", err))
		}
		b[i] = charset[n.Int64()]
	}
	return string(b)
}

// GenerateOTP returns a numeric code of the given length. Leading zeros are
// allowed.
func GenerateOTP(length int) string {
	return GenerateRandomString(length, digits)
}

// GenerateRequestId returns a human readable ticket number like REQ-7KQ2M9XA.
func GenerateRequestId() string {
	return "REQ-" + GenerateRandomString(8, requestIdCharset)
}

// GenerateResetToken returns the raw token sent to the user. Only
// HashToken(raw) is persisted.
func GenerateResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
