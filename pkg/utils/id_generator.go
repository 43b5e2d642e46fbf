// Package utils provides shared utility functions used across the application.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is intended to be importable by external projects (unlike
// internal/ which is compiler-enforced private). This is a community convention,
// not a Go language feature.
package utils

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateID creates a new UUID v4 string, used for request IDs.
//
// Go Learning Note — "github.com/google/uuid":
// uuid.New() creates a v4 (random) UUID. UUIDs can be generated without
// coordination, which is why they suit identifiers minted on many clients.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateTxHash returns a 32-byte hex hash for a mined transaction. Two
// random UUIDs supply the 32 bytes.
func GenerateTxHash() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

// GenerateAddress returns a random 20-byte account address, lowercased.
func GenerateAddress() string {
	a, b := uuid.New(), uuid.New()
	raw := append(a[:], b[:4]...)
	return "0x" + strings.ToLower(hex.EncodeToString(raw))
}
