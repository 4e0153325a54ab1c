package db

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is one attempt of a write.
type Operation func(ctx context.Context) error

// IsRetryable decides whether a failed Operation should be attempted again.
type IsRetryable func(err error) bool

const (
	DefaultMaxRetries = 3
	retryBackoff      = 50 * time.Millisecond
)

// Try runs op, retrying on duplicate key errors. Callers use it for
// find-or-create writes that can race on a unique index: the retry finds the
// row the other writer created.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries more times while retryable
// reports true. The wait between attempts grows linearly and is cut short
// when ctx is done.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		log.Printf("db: attempt %d failed with a retryable error: %v", attempt+1, err)
		select {
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}

// IsMongoDuplicateKeyError reports whether err carries a duplicate key
// (11000) write error, from a single or a bulk write.
func IsMongoDuplicateKeyError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) && hasDuplicateKey(we.WriteErrors) {
		return true
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	return false
}

func hasDuplicateKey(errs mongo.WriteErrors) bool {
	for _, e := range errs {
		if e.Code == 11000 {
			return true
		}
	}
	return false
}
