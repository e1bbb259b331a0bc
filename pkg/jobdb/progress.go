package jobdb

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// progressEvery is how many scanned records trigger a progress notice
// regardless of elapsed time.
const progressEvery = 100

// newProgressLogger returns the default ProgressFunc: a debug-level log line
// for the first record, every progressEvery records, or at most once per
// interval, whichever comes first.
func newProgressLogger(logger *zap.Logger, interval time.Duration) ProgressFunc {
	sometimes := &rate.Sometimes{First: 1, Every: progressEvery, Interval: interval}
	return func(scanned, loaded, total int) {
		sometimes.Do(func() {
			pct := 0.0
			if total > 0 {
				pct = 100 * float64(scanned) / float64(total)
			}
			logger.Debug("Reading job records",
				zap.Int("scanned", scanned),
				zap.Int("loaded", loaded),
				zap.Int("total", total),
				zap.Float64("percent", pct))
		})
	}
}
