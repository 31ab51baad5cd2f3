package alert_test

import (
	"context"
	"time"

	"github.com/tarikbc/accountmonitor/alert"
	"github.com/tarikbc/accountmonitor/cache"
	"github.com/tarikbc/accountmonitor/fakes"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Service", func() {
	var (
		logger    *lagertest.TestLogger
		fclock    *fakeclock.FakeClock
		alertDB   *fakes.FakeAlertDB
		viewCache *cache.Cache
		service   *alert.Service
		newAlert  *models.Alert
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("alert-service")
		fclock = fakeclock.NewFakeClock(time.Unix(1700000000, 0))
		alertDB = fakes.NewFakeAlertDB()
		viewCache = cache.New(time.Minute)
		service = alert.NewService(logger, alertDB, viewCache, fclock)
		newAlert = &models.Alert{
			UserId:    "user-1",
			AccountId: "account-1",
			Type:      models.AlertTypeConnectionLost,
			Severity:  models.AlertSeverityHigh,
			Message:   "connection lost",
		}
	})

	Describe("Raise", func() {
		Context("when no alert of the triple exists", func() {
			It("creates the alert with id and creation time", func() {
				created, err := service.Raise(context.Background(), nil, newAlert)
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())
				Expect(alertDB.SaveAlertCallCount()).To(Equal(1))

				saved := alertDB.SaveAlertArgsForCall(0)
				Expect(saved.Id).NotTo(BeEmpty())
				Expect(saved.CreatedAt).To(Equal(fclock.Now().UnixMilli()))
				Expect(saved.Resolved).To(BeFalse())
			})

			It("invalidates the user's dashboard entries", func() {
				viewCache.Set("dashboard:alerts:user-1:summary", "stale", time.Minute)
				viewCache.Set("dashboard:alerts:user-2:summary", "fresh", time.Minute)

				_, err := service.Raise(context.Background(), nil, newAlert)
				Expect(err).NotTo(HaveOccurred())

				Expect(viewCache.Has("dashboard:alerts:user-1:summary")).To(BeFalse())
				Expect(viewCache.Has("dashboard:alerts:user-2:summary")).To(BeTrue())
			})
		})

		Context("when an open alert of the triple exists", func() {
			BeforeEach(func() {
				alertDB.GetLatestReturns = &models.Alert{
					Id:        "existing",
					Resolved:  false,
					CreatedAt: fclock.Now().UnixMilli(),
				}
			})

			It("suppresses the new alert", func() {
				created, err := service.Raise(context.Background(), nil, newAlert)
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeFalse())
				Expect(alertDB.SaveAlertCallCount()).To(BeZero())
			})
		})

		Context("when the latest alert is resolved but inside the cooldown window", func() {
			BeforeEach(func() {
				alertDB.GetLatestReturns = &models.Alert{
					Id:         "existing",
					Resolved:   true,
					CreatedAt:  fclock.Now().Add(-10 * time.Minute).UnixMilli(),
					ResolvedAt: fclock.Now().Add(-5 * time.Minute).UnixMilli(),
				}
			})

			It("suppresses the new alert", func() {
				created, err := service.Raise(context.Background(), nil, newAlert)
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeFalse())
			})

			It("creates it once the cooldown has elapsed", func() {
				fclock.Increment(25 * time.Minute)
				created, err := service.Raise(context.Background(), nil, newAlert)
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())
			})

			It("honors a shorter per-user cooldown", func() {
				config := models.DefaultAlertConfig("user-1")
				config.CooldownMinutes = 5
				created, err := service.Raise(context.Background(), config, newAlert)
				Expect(err).NotTo(HaveOccurred())
				Expect(created).To(BeTrue())
			})
		})
	})

	Describe("Resolve", func() {
		BeforeEach(func() {
			alertDB.SetAlert(&models.Alert{Id: "alert-1", UserId: "user-1", Resolved: false})
		})

		It("resolves an open alert", func() {
			err := service.Resolve(context.Background(), "alert-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(alertDB.ResolveAlertCallCount()).To(Equal(1))
		})

		It("is a no-op on an already-resolved alert", func() {
			alertDB.SetAlert(&models.Alert{Id: "alert-2", UserId: "user-1", Resolved: true, ResolvedAt: 123})
			err := service.Resolve(context.Background(), "alert-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(alertDB.ResolveAlertCallCount()).To(BeZero())
		})

		It("errors on an unknown alert", func() {
			err := service.Resolve(context.Background(), "no-such-alert")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ResolveCondition", func() {
		It("invalidates the dashboard only when alerts were actually resolved", func() {
			viewCache.Set("dashboard:alerts:user-1:summary", "stale", time.Minute)

			alertDB.ResolveByReturns = 0
			err := service.ResolveCondition(context.Background(), "user-1", "account-1", models.AlertTypeConnectionLost)
			Expect(err).NotTo(HaveOccurred())
			Expect(viewCache.Has("dashboard:alerts:user-1:summary")).To(BeTrue())

			alertDB.ResolveByReturns = 2
			err = service.ResolveCondition(context.Background(), "user-1", "account-1", models.AlertTypeConnectionLost)
			Expect(err).NotTo(HaveOccurred())
			Expect(viewCache.Has("dashboard:alerts:user-1:summary")).To(BeFalse())
		})
	})
})
