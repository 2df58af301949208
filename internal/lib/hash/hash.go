// Package hash hashes and checks passwords with bcrypt.
//
// bcrypt is CPU bound; a weighted semaphore caps how many hashes run at
// once so a burst of sign-ins cannot starve the rest of the process.
package hash

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const DefaultCost = 10

type Hasher struct {
	cost int
	sem  *semaphore.Weighted
}

// New creates a Hasher. cost <= 0 selects DefaultCost, maxConcurrent <= 0
// selects runtime.NumCPU().
func New(cost, maxConcurrent int) *Hasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}

	return &Hasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func (h *Hasher) Hash(ctx context.Context, password string) ([]byte, error) {
	const op = "hash.Hash"

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer h.sem.Release(1)

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return passHash, nil
}

// Verify reports whether password matches passHash. Any failure, including
// a cancelled context or a malformed hash, is reported as a mismatch.
func (h *Hasher) Verify(ctx context.Context, password string, passHash []byte) bool {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.sem.Release(1)

	return bcrypt.CompareHashAndPassword(passHash, []byte(password)) == nil
}
