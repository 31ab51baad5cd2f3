package monitor_test

import (
	"context"
	"os"
	"time"

	"github.com/tarikbc/accountmonitor/monitor"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/tedsuo/ifrit"
)

type countingOperator struct {
	operated chan struct{}
	block    chan struct{}
}

func (o *countingOperator) Operate(ctx context.Context) {
	o.operated <- struct{}{}
	if o.block != nil {
		<-o.block
	}
}

var _ = Describe("Runner", func() {
	var (
		logger   *lagertest.TestLogger
		fclock   *fakeclock.FakeClock
		operator *countingOperator
		process  ifrit.Process
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("runner")
		fclock = fakeclock.NewFakeClock(time.Now())
		operator = &countingOperator{operated: make(chan struct{}, 10)}
	})

	JustBeforeEach(func() {
		runner := monitor.NewRunner(operator, time.Minute, fclock, logger, nil)
		process = ifrit.Invoke(runner)
	})

	AfterEach(func() {
		if operator.block != nil {
			close(operator.block)
		}
		process.Signal(os.Interrupt)
		Eventually(process.Wait()).Should(Receive())
	})

	It("runs once immediately on start", func() {
		Eventually(operator.operated).Should(Receive())
		Consistently(operator.operated, 100*time.Millisecond).ShouldNot(Receive())
	})

	It("runs again on every tick", func() {
		Eventually(operator.operated).Should(Receive())

		fclock.WaitForWatcherAndIncrement(time.Minute)
		Eventually(operator.operated).Should(Receive())

		fclock.WaitForWatcherAndIncrement(time.Minute)
		Eventually(operator.operated).Should(Receive())
	})

	Context("when a scan is still running at the next tick", func() {
		BeforeEach(func() {
			operator.block = make(chan struct{})
		})

		It("skips the overlapping run", func() {
			Eventually(operator.operated).Should(Receive())

			fclock.WaitForWatcherAndIncrement(time.Minute)
			Eventually(logger.Buffer()).Should(gbytes.Say("skipped-overlapping-run"))
			Consistently(operator.operated, 100*time.Millisecond).ShouldNot(Receive())
		})
	})
})
