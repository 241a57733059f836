package utils

import (
	"crypto/rand"
	"fmt"
)

// no 0/O or 1/I lookalikes after the digits
const base34Table = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
const tableLen = byte(len(base34Table))

// RandBase34 generates a random base34 string of the given length.
// The control plane uses it for auth tokens.
func RandBase34(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	randBytes := make([]byte, length)
	if _, err := rand.Read(randBytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	for i := range randBytes {
		randBytes[i] = base34Table[randBytes[i]%tableLen]
	}
	return string(randBytes), nil
}
