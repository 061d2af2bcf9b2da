package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// generateLocalToken creates the opaque marker persisted with the
// session record. It is never sent to the remote server and never
// parsed; it only proves a local session row was written by us.
func generateLocalToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	return hex.EncodeToString(b), nil
}
