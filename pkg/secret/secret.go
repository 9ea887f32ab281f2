// Package secret hashes and verifies the pairing secret two devices exchange
// when establishing a peer-to-peer sync link.
package secret

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// Hash derives a storable bcrypt hash from a pairing secret.
func Hash(pairingSecret string) (string, error) {
	if len(pairingSecret) < 8 {
		return "", fmt.Errorf("pairing secret must be at least 8 characters")
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(pairingSecret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash pairing secret: %w", err)
	}

	return string(hashedBytes), nil
}

// Compare checks a presented pairing secret against the stored hash.
func Compare(hashedSecret, pairingSecret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(pairingSecret))
}
