// Package otp implements the one-time-password gate in front of checkout:
// short-lived, single-use codes keyed by user.
package otp

import (
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// Generate produces a 6-character alphanumeric code.
func Generate() (string, error) {
	code := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
