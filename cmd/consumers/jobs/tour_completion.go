package jobs

import (
	"context"
	"time"
)

type TourCompleter interface {
	CompleteTours(ctx context.Context) (int, error)
}

// NewTourCompletionJob flags tours whose start date has passed
func NewTourCompletionJob(completer TourCompleter, locker Locker, interval time.Duration) *Job {
	return newJob("complete-tours", interval, locker, completer.CompleteTours)
}
