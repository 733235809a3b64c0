package code

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/craftlane/entrypay/internal/registration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReturnsFirstFreeCandidate(t *testing.T) {
	calls := 0
	candidate := func() (string, error) {
		calls++
		if calls < 3 {
			return "TAKEN", nil
		}
		return "FREE", nil
	}
	exists := func(ctx context.Context, c string) (bool, error) {
		return c == "TAKEN", nil
	}

	got, err := Generate(context.Background(), candidate, exists, 10)
	require.NoError(t, err)
	assert.Equal(t, "FREE", got)
	assert.Equal(t, 3, calls)
}

func TestGenerateExhaustsRetries(t *testing.T) {
	attempts := 0
	candidate := func() (string, error) {
		attempts++
		return "ALWAYS", nil
	}
	alwaysTaken := func(ctx context.Context, c string) (bool, error) {
		return true, nil
	}

	_, err := Generate(context.Background(), candidate, alwaysTaken, 10)
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)
	assert.Equal(t, 10, attempts)
}

func TestGenerateRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, RandomCandidate("", 6), func(ctx context.Context, c string) (bool, error) {
		return true, nil
	}, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomCandidateShape(t *testing.T) {
	candidate := RegistrationNumberCandidate()
	value, err := candidate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(value, RegistrationNumberPrefix))
	assert.Len(t, value, len(RegistrationNumberPrefix)+RegistrationNumberLength)
	for _, r := range strings.TrimPrefix(value, RegistrationNumberPrefix) {
		assert.Contains(t, Alphabet, string(r))
	}
}

// Generating many display codes within one scope concurrently must yield no
// duplicates when each winning candidate is recorded in the scope set.
func TestGenerateUniqueUnderConcurrency(t *testing.T) {
	const total = 10000

	var mu sync.Mutex
	seen := make(map[string]struct{}, total)

	exists := func(ctx context.Context, c string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		_, ok := seen[c]
		return ok, nil
	}
	claim := func(c string) bool {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := seen[c]; ok {
			return false
		}
		seen[c] = struct{}{}
		return true
	}

	var wg sync.WaitGroup
	errCh := make(chan error, total)
	codes := make(chan string, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				value, err := Generate(context.Background(), DisplayCodeCandidate(), exists, DefaultMaxAttempts)
				if err != nil {
					errCh <- err
					return
				}
				// claim can lose a race with an identical concurrent draw;
				// regenerate when that happens
				if claim(value) {
					codes <- value
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	close(codes)

	for err := range errCh {
		t.Fatalf("generate: %v", err)
	}

	unique := make(map[string]struct{}, total)
	for value := range codes {
		unique[value] = struct{}{}
	}
	assert.Len(t, unique, total)
}
