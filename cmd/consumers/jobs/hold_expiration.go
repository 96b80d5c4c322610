package jobs

import (
	"context"
	"time"
)

// HoldSweeper expires lapsed holds and returns how many were released
type HoldSweeper interface {
	ExpireHolds(ctx context.Context) (int, error)
}

// NewHoldExpirationJob releases holds whose deadline has passed
func NewHoldExpirationJob(sweeper HoldSweeper, locker Locker, interval time.Duration) *Job {
	return newJob("expire-holds", interval, locker, sweeper.ExpireHolds)
}
