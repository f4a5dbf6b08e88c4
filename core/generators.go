package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathrand "math/rand/v2"
	"strconv"
)

const (
	pinMin = 100000
	pinMax = 999999
)

// RandomPin draws a six digit registration PIN. The PIN is shown to the
// operator during registration and is not a secret.
func RandomPin() string {
	return strconv.Itoa(pinMin + mathrand.IntN(pinMax-pinMin+1))
}

// RandomVerifyToken returns 16 random bytes hex encoded.
func RandomVerifyToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generate webhook verify token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
