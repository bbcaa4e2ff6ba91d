package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// AudioRetrier re-synthesizes audio for questions that still have none.
type AudioRetrier interface {
	RetryMissing(ctx context.Context) int
}

// RetryMissingAudio returns the cron job body. Each run is bounded by deadline.
func RetryMissingAudio(retrier AudioRetrier, deadline time.Duration) func() {
	return func() {
		log.Println("Running job: RetryMissingAudio...")

		ctx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()

		recovered := retrier.RetryMissing(ctx)
		if recovered == 0 {
			log.Println("No missing audio recovered.")
			return
		}
		log.Printf("Recovered audio for %d question(s).", recovered)
	}
}

// Schedule registers the retry job on a new cron scheduler, skipping a tick
// while the previous run is still going. An empty schedule disables it and
// returns a nil scheduler.
func Schedule(schedule string, retrier AudioRetrier, deadline time.Duration) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, RetryMissingAudio(retrier, deadline)); err != nil {
		return nil, err
	}
	return c, nil
}
