// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// OTPDigits is the length of generated login codes.
const OTPDigits = 6

var otpSpan = big.NewInt(900_000)

// GenerateOTP returns a uniformly random 6-digit code in [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("sec: failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100_000), nil
}

// OTPHasher turns raw codes into the hex digests persisted in the database.
//
// When a key is configured the digest is a keyed BLAKE2b-256 MAC, otherwise
// plain SHA-256. Both produce 64 hex characters.
type OTPHasher struct {
	key []byte
}

// NewOTPHasher builds a hasher. An empty key selects SHA-256.
func NewOTPHasher(key string) (*OTPHasher, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("sec: otp hash key longer than %d bytes", blake2b.Size)
	}
	return &OTPHasher{key: []byte(key)}, nil
}

// Hash returns the hex digest of code.
func (hasher *OTPHasher) Hash(code string) string {
	if len(hasher.key) == 0 {
		sum := sha256.Sum256([]byte(code))
		return hex.EncodeToString(sum[:])
	}

	// New256 only fails for keys over 64 bytes, rejected in the constructor.
	mac, _ := blake2b.New256(hasher.key)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

// Match compares code against a stored digest in constant time.
func (hasher *OTPHasher) Match(code, storedHash string) bool {
	computed := hasher.Hash(code)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
