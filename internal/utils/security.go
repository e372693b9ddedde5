package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeAlphabet is the alphabet of login codes and auth tokens
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the length of login codes and auth tokens
const CodeLength = 8

// MaskPhoneNumber masks a phone number for secure logging
// Keeps first 3 and last 4 characters visible, masks the rest
//
// Examples:
//   - "+1234567890" -> "+12****7890"
//   - "+123456" -> "****"
func MaskPhoneNumber(phone string) string {
	if len(phone) <= 6 {
		return "****"
	}

	return phone[:3] + "****" + phone[len(phone)-4:]
}

// GenerateCode returns a random CodeLength string drawn from CodeAlphabet
func GenerateCode() (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, CodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// IsCode reports whether s has the shape of a generated code
func IsCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for _, c := range s {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
