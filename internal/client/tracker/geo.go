package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/logging"
)

// ErrNoFix is returned by AcquireFix when not a single sample could be taken
// before the deadline.
var ErrNoFix = errors.New("no position fix acquired")

// AcquireFix polls the provider until a sample meets the accuracy target,
// giving up after the ceiling and settling for the best fix seen so far.
// Submissions wait on this so a cold GPS start does not block forever.
func AcquireFix(ctx context.Context, provider Provider, targetMeters float64,
	ceiling, poll time.Duration, log logging.Logger) (models.LocationSample, error) {

	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	var best models.LocationSample
	haveBest := false

	for {
		sample, err := provider.CurrentSample(ctx)
		if err != nil {
			log.Warn(ctx, "fix attempt failed", "error", err)
		} else {
			if sample.AccuracyMeters > 0 && sample.AccuracyMeters <= targetMeters {
				return sample, nil
			}
			if !haveBest || betterAccuracy(sample, best) {
				best = sample
				haveBest = true
			}
		}

		select {
		case <-ctx.Done():
			if haveBest {
				log.Info(ctx, "accuracy target not met, using best fix",
					"accuracyMeters", best.AccuracyMeters)
				return best, nil
			}
			return models.LocationSample{}, ErrNoFix
		case <-time.After(poll):
		}
	}
}

// betterAccuracy prefers a known accuracy over an unknown one and a smaller
// radius over a larger one.
func betterAccuracy(a, b models.LocationSample) bool {
	if a.AccuracyMeters <= 0 {
		return false
	}
	if b.AccuracyMeters <= 0 {
		return true
	}
	return a.AccuracyMeters < b.AccuracyMeters
}
