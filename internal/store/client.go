package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"

	"github.com/seantiz/topoctl/internal/model"
)

// DefaultMaxAttempts is the number of commit attempts a write or delete
// gets before a conflict becomes fatal.
const DefaultMaxAttempts = 2

// CommitError reports a write or delete that could not be committed. It
// is unrecoverable: the retry budget is spent or the failure was not a
// concurrency conflict.
type CommitError struct {
	Op        string
	Partition model.Partition
	Family    string
	Key       string
	Attempts  int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s %s/%s/%s failed after %d attempt(s): %v",
		e.Op, e.Partition, e.Family, e.Key, e.Attempts, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Client wraps a Store with the read and commit discipline used by the
// orchestrator: reads are best-effort, writes and deletes retry
// conflicts immediately up to a fixed number of attempts.
type Client struct {
	store       Store
	logger      *slog.Logger
	maxAttempts int
}

// NewClient returns a Client over s.
func NewClient(s Store, logger *slog.Logger) *Client {
	return &Client{store: s, logger: logger, maxAttempts: DefaultMaxAttempts}
}

// Store returns the underlying backend.
func (c *Client) Store() Store {
	return c.store
}

// Read returns the entity for family and key, or false when it does not
// exist. Backend failures are logged and reported as not found.
func (c *Client) Read(ctx context.Context, p model.Partition, family, key string) (*model.Entity, bool) {
	e, err := c.store.Get(ctx, p, family, key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("read failed, continuing without stored state",
			"partition", p, "family", family, "key", key, "error", err)
		return nil, false
	}
	return e, true
}

// Write commits e to partition p.
func (c *Client) Write(ctx context.Context, p model.Partition, e *model.Entity, mode WriteMode) error {
	return c.commit(ctx, "write", p, e.Family, e.Key, func() error {
		return c.store.Put(ctx, p, e, mode)
	})
}

// Delete removes the entity for family and key from partition p.
// Deleting an absent entity succeeds.
func (c *Client) Delete(ctx context.Context, p model.Partition, family, key string) error {
	return c.commit(ctx, "delete", p, family, key, func() error {
		err := c.store.Remove(ctx, p, family, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
}

func (c *Client) commit(ctx context.Context, op string, p model.Partition, family, key string, fn func() error) error {
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := fn()
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrConflict):
			conflictsTotal.WithLabelValues(string(p)).Inc()
			c.logger.WarnContext(ctx, "commit conflict",
				"op", op, "partition", p, "family", family, "key", key, "attempt", attempts)
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		// Conflicts are retried at once against fresh state.
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	switch {
	case err == nil:
		commitsTotal.WithLabelValues(string(p), op, "ok").Inc()
		return nil
	case errors.Is(err, ErrConflict):
		commitsTotal.WithLabelValues(string(p), op, "conflict").Inc()
	default:
		commitsTotal.WithLabelValues(string(p), op, "error").Inc()
	}
	return &CommitError{Op: op, Partition: p, Family: family, Key: key, Attempts: attempts, Err: err}
}
