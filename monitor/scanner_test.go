package monitor_test

import (
	"errors"
	"fmt"
	"time"

	"github.com/tarikbc/accountmonitor/fakes"
	"github.com/tarikbc/accountmonitor/models"
	"github.com/tarikbc/accountmonitor/monitor"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
)

func healthySnapshot(accountId string) *models.HealthSnapshot {
	return &models.HealthSnapshot{
		AccountId:    accountId,
		Status:       models.AccountStatusConnected,
		TokenStatus:  models.TokenStatusValid,
		ErrorRate:    0.01,
		ErrorCount:   1,
		RequestCount: 100,
	}
}

var _ = Describe("Scanner", func() {
	var (
		logger    *lagertest.TestLogger
		accountDB *fakes.FakeAccountDB
		configDB  *fakes.FakeAlertConfigDB
		provider  *fakes.FakeHealthProvider
		alerts    *fakes.FakeAlertManager
		scanner   *monitor.Scanner
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("scanner")
		accountDB = &fakes.FakeAccountDB{}
		configDB = fakes.NewFakeAlertConfigDB()
		provider = fakes.NewFakeHealthProvider()
		alerts = &fakes.FakeAlertManager{RaiseReturns: true}

		for i := 1; i <= 5; i++ {
			id := fmt.Sprintf("account-%d", i)
			accountDB.Accounts = append(accountDB.Accounts, &models.Account{
				Id:     id,
				UserId: "user-1",
				Name:   id,
				Active: true,
			})
			provider.Snapshots[id] = healthySnapshot(id)
		}
	})

	JustBeforeEach(func() {
		scanner = monitor.NewScanner(logger, clock.NewClock(), accountDB, configDB, provider, alerts,
			nil, nil, 2, time.Millisecond, time.Second)
		scanner.Operate(ctx())
	})

	It("walks every active account page by page", func() {
		Expect(accountDB.RetrievePages()).To(Equal([]int{1, 2, 3}))
		Expect(provider.RequestedAccounts()).To(HaveLen(5))
	})

	It("resolves every condition for a healthy account", func() {
		resolved := alerts.ResolvedConditions()
		Expect(resolved).To(ContainElement(models.AlertTypeTokenInvalid))
		Expect(resolved).To(ContainElement(models.AlertTypeConnectionLost))
		Expect(resolved).To(ContainElement(models.AlertTypeHighErrorRate))
		Expect(resolved).To(ContainElement(models.AlertTypeRateLimited))
		Expect(alerts.RaisedAlerts()).To(BeEmpty())
	})

	Context("when an account has an invalid token", func() {
		BeforeEach(func() {
			provider.Snapshots["account-2"].TokenStatus = models.TokenStatusInvalid
		})

		It("raises a critical tokenInvalid alert", func() {
			raised := alerts.RaisedAlerts()
			Expect(raised).To(HaveLen(1))
			Expect(raised[0].Type).To(Equal(models.AlertTypeTokenInvalid))
			Expect(raised[0].Severity).To(Equal(models.AlertSeverityCritical))
			Expect(raised[0].AccountId).To(Equal("account-2"))
		})

		It("raises even when the user disabled alerts", func() {
			// rerun with alerts disabled
			config := models.DefaultAlertConfig("user-1")
			config.Enabled = false
			configDB.SetConfig(config)
			scanner.Operate(ctx())

			Expect(alerts.RaisedAlerts()).NotTo(BeEmpty())
		})
	})

	Context("when an account keeps disconnecting", func() {
		BeforeEach(func() {
			provider.Snapshots["account-3"].Status = models.AccountStatusDisconnected
			provider.Snapshots["account-3"].DisconnectionCount = 4
		})

		It("raises a high-severity connectionLost alert", func() {
			raised := alerts.RaisedAlerts()
			Expect(raised).To(HaveLen(1))
			Expect(raised[0].Type).To(Equal(models.AlertTypeConnectionLost))
			Expect(raised[0].Severity).To(Equal(models.AlertSeverityHigh))
		})

		Context("and the user opted out of disconnection alerts", func() {
			BeforeEach(func() {
				config := models.DefaultAlertConfig("user-1")
				config.Triggers["disconnection"] = false
				configDB.SetConfig(config)
			})

			It("raises nothing and resolves any alert opened before the opt-out", func() {
				Expect(alerts.RaisedAlerts()).To(BeEmpty())
				Expect(alerts.ResolvedConditionsFor("account-3")).To(ContainElement(models.AlertTypeConnectionLost))
			})
		})

		Context("and the user raised the disconnection threshold", func() {
			BeforeEach(func() {
				config := models.DefaultAlertConfig("user-1")
				config.Thresholds["disconnectionWarning"] = 8
				configDB.SetConfig(config)
			})

			It("stays quiet below the override", func() {
				Expect(alerts.RaisedAlerts()).To(BeEmpty())
			})
		})
	})

	Context("when an account's error rate crosses the threshold", func() {
		BeforeEach(func() {
			provider.Snapshots["account-1"].ErrorRate = 0.2
			provider.Snapshots["account-1"].ErrorCount = 20
		})

		It("raises a medium highErrorRate alert carrying the classified status", func() {
			raised := alerts.RaisedAlerts()
			Expect(raised).To(HaveLen(1))
			Expect(raised[0].Type).To(Equal(models.AlertTypeHighErrorRate))
			Expect(raised[0].Severity).To(Equal(models.AlertSeverityMedium))
			Expect(raised[0].Data["status"]).To(Equal("warning"))
		})

		Context("and the rate is past the critical threshold", func() {
			BeforeEach(func() {
				provider.Snapshots["account-1"].ErrorRate = 0.3
			})

			It("classifies the alert as critical", func() {
				raised := alerts.RaisedAlerts()
				Expect(raised).To(HaveLen(1))
				Expect(raised[0].Data["status"]).To(Equal("critical"))
			})
		})

		Context("and the user opted out of error-rate alerts", func() {
			BeforeEach(func() {
				config := models.DefaultAlertConfig("user-1")
				config.Triggers["errorRate"] = false
				configDB.SetConfig(config)
			})

			It("raises nothing and resolves any alert opened before the opt-out", func() {
				Expect(alerts.RaisedAlerts()).To(BeEmpty())
				Expect(alerts.ResolvedConditionsFor("account-1")).To(ContainElement(models.AlertTypeHighErrorRate))
			})
		})
	})

	Context("when an account is rate limited", func() {
		BeforeEach(func() {
			provider.Snapshots["account-4"].RateLimited = true
		})

		It("raises a medium rateLimited alert regardless of triggers", func() {
			config := models.DefaultAlertConfig("user-1")
			config.Enabled = false
			configDB.SetConfig(config)
			scanner.Operate(ctx())

			var types []models.AlertType
			for _, raised := range alerts.RaisedAlerts() {
				types = append(types, raised.Type)
			}
			Expect(types).To(ContainElement(models.AlertTypeRateLimited))
		})
	})

	Context("when one account has no snapshot yet", func() {
		BeforeEach(func() {
			delete(provider.Snapshots, "account-2")
		})

		It("skips it with a log and keeps scanning", func() {
			Expect(logger.Buffer()).To(gbytes.Say("no-health-snapshot"))
			Expect(provider.RequestedAccounts()).To(HaveLen(5))
		})
	})

	Context("when one account's health query fails", func() {
		BeforeEach(func() {
			provider.Errs["account-2"] = errors.New("provider exploded")
		})

		It("isolates the failure and evaluates the other accounts", func() {
			Expect(logger.Buffer()).To(gbytes.Say("failed-evaluate-account"))
			Expect(provider.RequestedAccounts()).To(HaveLen(5))
			Expect(alerts.ResolvedConditions()).NotTo(BeEmpty())
		})
	})

	Context("when counting active accounts fails", func() {
		BeforeEach(func() {
			accountDB.CountErr = errors.New("db is down")
		})

		It("aborts the run before any page is read", func() {
			Expect(logger.Buffer()).To(gbytes.Say("failed-count-active-accounts"))
			Expect(accountDB.RetrievePages()).To(BeEmpty())
		})
	})

	Context("when a page cannot be read", func() {
		BeforeEach(func() {
			accountDB.RetrieveErr = errors.New("db is down")
		})

		It("aborts the run", func() {
			Expect(logger.Buffer()).To(gbytes.Say("failed-retrieve-active-accounts"))
			Expect(provider.RequestedAccounts()).To(BeEmpty())
		})
	})
})
