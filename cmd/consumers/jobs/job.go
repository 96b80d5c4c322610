package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tourbook/internal/logger"

	"golang.org/x/sync/singleflight"
)

const leaseIntervals = 5

// Locker grants a cluster-wide lease so only one replica runs a job at a time
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Job runs fn on a fixed interval. Overlapping runs in one process are
// coalesced; across processes the optional Locker decides who runs.
type Job struct {
	name     string
	interval time.Duration
	locker   Locker
	fn       func(ctx context.Context) (int, error)
	log      *slog.Logger

	group singleflight.Group
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newJob(name string, interval time.Duration, locker Locker, fn func(ctx context.Context) (int, error)) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Job{
		name:     name,
		interval: interval,
		locker:   locker,
		fn:       fn,
		log:      logger.WithFields("job", name),
		stop:     make(chan struct{}),
	}
}

// Start runs the job immediately and then on every tick until Stop or ctx ends
func (j *Job) Start(ctx context.Context) {
	j.log.Info("Starting job", "interval", j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.tick(ctx)
		for {
			select {
			case <-ticker.C:
				j.tick(ctx)
			case <-j.stop:
				j.log.Info("Job stopped")
				return
			case <-ctx.Done():
				j.log.Info("Job stopped")
				return
			}
		}
	}()
}

// Stop waits for the current run to finish
func (j *Job) Stop() {
	j.once.Do(func() { close(j.stop) })
	j.wg.Wait()
}

func (j *Job) tick(ctx context.Context) {
	n, err := j.RunOnce(ctx)
	if err != nil {
		j.log.Error("Job run failed", "error", err)
		return
	}
	if n > 0 {
		j.log.Info("Job run completed", "processed", n)
	}
}

// leaseTTL outlives a run that overruns its interval; the lease is released
// as soon as the run returns
func (j *Job) leaseTTL() time.Duration {
	return leaseIntervals * j.interval
}

// RunOnce executes one run. Concurrent callers share the result of the run
// in flight. A run skipped because another replica holds the lease returns 0.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	v, err, _ := j.group.Do(j.name, func() (interface{}, error) {
		if j.locker != nil {
			release, ok, err := j.locker.TryLock(ctx, "tourbook:lock:"+j.name, j.leaseTTL())
			if err != nil {
				return 0, err
			}
			if !ok {
				j.log.Debug("Job lease held elsewhere, skipping")
				return 0, nil
			}
			defer release()
		}
		return j.fn(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
