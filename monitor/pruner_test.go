package monitor_test

import (
	"errors"
	"time"

	"github.com/tarikbc/accountmonitor/fakes"
	"github.com/tarikbc/accountmonitor/monitor"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
)

var _ = Describe("AlertDBPruner", func() {
	var (
		logger  *lagertest.TestLogger
		fclock  *fakeclock.FakeClock
		alertDB *fakes.FakeAlertDB
		pruner  *monitor.AlertDBPruner
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("pruner")
		fclock = fakeclock.NewFakeClock(time.Unix(1700000000, 0))
		alertDB = fakes.NewFakeAlertDB()
		pruner = monitor.NewAlertDBPruner(alertDB, 30*24*time.Hour, fclock, logger)
	})

	It("prunes alerts resolved before the cutoff", func() {
		pruner.Operate(ctx())

		Expect(alertDB.PruneAlertsCallCount()).To(Equal(1))
		cutoff := fclock.Now().Add(-30 * 24 * time.Hour).UnixMilli()
		Expect(alertDB.PruneAlertsArgsForCall(0)).To(Equal(cutoff))
	})

	Context("when pruning fails", func() {
		BeforeEach(func() {
			alertDB.PruneAlertsErr = errors.New("db is down")
		})

		It("logs the failure and waits for the next cycle", func() {
			pruner.Operate(ctx())

			Expect(logger.Buffer()).To(gbytes.Say("failed-prune-alerts"))
		})
	})
})
