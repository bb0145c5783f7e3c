package auth

import (
	"context"
	"sync"

	"ctp/utils"
)

// hashJob is one Argon2id hash-or-verify request dispatched off the
// request goroutine, since Argon2 is CPU-bound and gin handlers must not
// block the scheduler for more than a few milliseconds.
type hashJob struct {
	run  func() (string, bool, error)
	done chan hashResult
}

type hashResult struct {
	hash string
	ok   bool
	err  error
}

// HashPool runs Argon2id work on a small fixed number of worker goroutines,
// bounding how much CPU password hashing can steal from request handling
// concurrently.
type HashPool struct {
	jobs chan hashJob
	once sync.Once
}

// NewHashPool starts workers goroutines draining a bounded job queue.
func NewHashPool(workers int) *HashPool {
	if workers <= 0 {
		workers = 2
	}
	p := &HashPool{jobs: make(chan hashJob, workers*4)}
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *HashPool) loop() {
	for job := range p.jobs {
		hash, ok, err := job.run()
		job.done <- hashResult{hash: hash, ok: ok, err: err}
	}
}

// Hash computes a new Argon2id hash for password without blocking the
// caller's own goroutine's CPU budget.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	done := make(chan hashResult, 1)
	p.jobs <- hashJob{
		run: func() (string, bool, error) {
			h, err := utils.HashPassword(password)
			return h, false, err
		},
		done: done,
	}

	select {
	case res := <-done:
		return res.hash, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Verify checks password against stored off the request goroutine.
func (p *HashPool) Verify(ctx context.Context, password, stored string) (bool, error) {
	done := make(chan hashResult, 1)
	p.jobs <- hashJob{
		run: func() (string, bool, error) {
			return "", utils.VerifyPassword(password, stored), nil
		},
		done: done,
	}

	select {
	case res := <-done:
		return res.ok, res.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
