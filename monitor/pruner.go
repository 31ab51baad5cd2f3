package monitor

import (
	"context"
	"time"

	"github.com/tarikbc/accountmonitor/db"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
)

// AlertDBPruner deletes resolved alerts older than the cutoff so the alert
// table does not grow without bound. Open alerts are never pruned.
type AlertDBPruner struct {
	alertDB        db.AlertDB
	cutoffDuration time.Duration
	clock          clock.Clock
	logger         lager.Logger
}

func NewAlertDBPruner(alertDB db.AlertDB, cutoffDuration time.Duration, clock clock.Clock, logger lager.Logger) *AlertDBPruner {
	return &AlertDBPruner{
		alertDB:        alertDB,
		cutoffDuration: cutoffDuration,
		clock:          clock,
		logger:         logger.Session("alert_db_pruner"),
	}
}

func (adp *AlertDBPruner) Operate(ctx context.Context) {
	timestamp := adp.clock.Now().Add(-adp.cutoffDuration).UnixMilli()

	logger := adp.logger.Session("pruning-alerts", lager.Data{"cutoff-time": timestamp})
	logger.Info("starting")
	defer logger.Info("completed")

	err := adp.alertDB.PruneAlerts(ctx, timestamp)
	if err != nil {
		adp.logger.Error("failed-prune-alerts", err)
		return
	}
}
