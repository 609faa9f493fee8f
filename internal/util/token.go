// Package util holds small, shared helpers with no natural home of their
// own — the role internal/util plays in the teacher repo.
package util

import (
	"crypto/rand"
	"math/big"

	"github.com/pkg/errors"
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// TokenLength is the length of a server-assigned session bearer token
// (spec.md §3: "~20 alphanumeric chars, server-assigned").
const TokenLength = 20

// GenerateToken returns a cryptographically random alphanumeric token of
// TokenLength characters, suitable as a session bearer token.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenLength)
	alphabetSize := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", errors.Wrap(err, "generate session token")
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return string(buf), nil
}
