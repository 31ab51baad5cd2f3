package monitor

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/tarikbc/accountmonitor/healthendpoint"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
)

type Operator interface {
	Operate(ctx context.Context)
}

// Runner drives an Operator once at startup and then on a fixed interval.
// A single-flight guard skips a tick while the previous run is still in
// progress, so a slow operation is never executed twice concurrently.
type Runner struct {
	operator Operator
	interval time.Duration
	clock    clock.Clock
	logger   lager.Logger
	metrics  healthendpoint.ScanCollector
	running  atomic.Bool
}

func NewRunner(operator Operator, interval time.Duration, clock clock.Clock, logger lager.Logger, metrics healthendpoint.ScanCollector) *Runner {
	return &Runner{
		operator: operator,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

func (r *Runner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	close(ready)
	ticker := r.clock.NewTicker(r.interval)

	r.logger.Info("started", lager.Data{"refresh_interval": r.interval})

	for {
		go r.operateOnce()
		select {
		case <-signals:
			ticker.Stop()
			r.logger.Info("stopped")
			return nil
		case <-ticker.C():
		}
	}
}

func (r *Runner) operateOnce() {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Info("skipped-overlapping-run")
		if r.metrics != nil {
			r.metrics.IncScansSkipped()
		}
		return
	}
	defer r.running.Store(false)

	r.operator.Operate(context.Background())
}
