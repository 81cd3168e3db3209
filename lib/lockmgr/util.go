package lockmgr

import (
	"crypto/rand"
)

const (
	ownerIDBytes = 32
)

// generateOwnerID creates a new random 256 bit owner ID
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDBytes)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}
