package store

import (
	"context"
	"errors"
	"time"

	"github.com/jw6ventures/volunteerportal/internal/metrics"
)

// observeDB times a repository operation; errp is read when the returned
// func runs. A miss is not counted as a failed operation.
func observeDB(ctx context.Context, operation string, errp *error) func() {
	start := time.Now()
	return func() {
		err := *errp
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		metrics.ObserveDB(ctx, operation, start, err)
	}
}
