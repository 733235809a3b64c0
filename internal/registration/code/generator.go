// Package code generates the public identifiers carried by registrations:
// globally-unique registration numbers and per-competition-year display codes.
package code

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/craftlane/entrypay/internal/registration/domain"
)

// Alphabet excludes 0/O and 1/I to keep codes transcribable.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	RegistrationNumberLength = 10
	DisplayCodeLength        = 6
	DefaultMaxAttempts       = 10

	RegistrationNumberPrefix = "REG-"
)

type (
	// CandidateFunc produces a fresh candidate code.
	CandidateFunc func() (string, error)
	// ExistsFunc checks the candidate against the persistence store within
	// the caller's scope (global, or competition+year).
	ExistsFunc func(ctx context.Context, candidate string) (bool, error)
)

// Generate draws candidates until one passes the existence check, bounded by
// maxAttempts. Exhaustion returns ErrCodeExhausted: collisions should be
// exceedingly rare at these lengths, so running out of retries is a signal,
// not a condition to retry silently.
func Generate(ctx context.Context, candidate CandidateFunc, exists ExistsFunc, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		value, err := candidate()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, value)
		if err != nil {
			return "", err
		}
		if !taken {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrCodeExhausted, maxAttempts)
}

// RandomCandidate returns a CandidateFunc drawing length characters from
// Alphabet with crypto/rand, prefixed with prefix.
func RandomCandidate(prefix string, length int) CandidateFunc {
	return func() (string, error) {
		buf := make([]byte, length)
		max := big.NewInt(int64(len(Alphabet)))
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", err
			}
			buf[i] = Alphabet[n.Int64()]
		}
		return prefix + string(buf), nil
	}
}

// RegistrationNumberCandidate draws registration numbers (global scope).
func RegistrationNumberCandidate() CandidateFunc {
	return RandomCandidate(RegistrationNumberPrefix, RegistrationNumberLength)
}

// DisplayCodeCandidate draws display codes (competition+year scope).
func DisplayCodeCandidate() CandidateFunc {
	return RandomCandidate("", DisplayCodeLength)
}
