package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type CountResetter interface {
	ResetDailyCounts(ctx context.Context) (int64, error)
}

// DailyResetWorker zeroes every meal's soldToday at local midnight.
type DailyResetWorker struct {
	catalog  CountResetter
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	stopChan chan struct{}
}

func NewDailyResetWorker(catalog CountResetter, loc *time.Location, logger *zap.Logger) *DailyResetWorker {
	if loc == nil {
		loc = time.Local
	}
	return &DailyResetWorker{
		catalog:  catalog,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (w *DailyResetWorker) Start(ctx context.Context) {
	w.logger.Info("starting daily reset worker", zap.String("location", w.loc.String()))

	for {
		now := w.now()
		timer := time.NewTimer(nextMidnight(now, w.loc).Sub(now))

		select {
		case <-timer.C:
			w.reset(ctx)

		case <-w.stopChan:
			timer.Stop()
			w.logger.Info("stopping daily reset worker")
			return

		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("context cancelled, stopping daily reset worker")
			return
		}
	}
}

func (w *DailyResetWorker) reset(ctx context.Context) {
	n, err := w.catalog.ResetDailyCounts(ctx)
	if err != nil {
		w.logger.Error("daily reset failed", zap.Error(err))
		return
	}
	w.logger.Info("daily reset complete", zap.Int64("meals", n))
}

func (w *DailyResetWorker) Stop() {
	close(w.stopChan)
}

// nextMidnight returns the first midnight in loc strictly after t.
func nextMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}
