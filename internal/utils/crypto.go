// internal/utils/crypto.go
package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/agentvault/av-backend/internal/models"
)

// DeriveAddress derives a deterministic account address from the given
// parts. The same parts always yield the same address, which makes class
// issuer identities collision-free lookups rather than random assignments.
func DeriveAddress(parts ...string) models.Address {
	hasher := sha256.New()
	hasher.Write([]byte(strings.Join(parts, "|")))
	sum := hasher.Sum(nil)
	return models.Address("0x" + hex.EncodeToString(sum[:20]))
}

// DeriveClassAddress derives the issuer address for a class key.
func DeriveClassAddress(name, symbol string, capacity uint64) models.Address {
	return DeriveAddress("class", name, symbol, fmt.Sprintf("%d", capacity))
}
