// Package alert owns the alert lifecycle: raising with deduplication and
// cooldown, idempotent resolution, and auto-resolution when a condition
// clears on a later scan.
package alert

import (
	"context"
	"time"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	uuid "github.com/nu7hatch/gouuid"
)

// CacheInvalidator drops cached dashboard views when alert state changes.
type CacheInvalidator interface {
	DeleteByPrefix(prefix string)
}

type Service struct {
	logger  lager.Logger
	alertDB db.AlertDB
	cache   CacheInvalidator
	clock   clock.Clock
}

func NewService(logger lager.Logger, alertDB db.AlertDB, cache CacheInvalidator, clock clock.Clock) *Service {
	return &Service{
		logger:  logger.Session("alert-service"),
		alertDB: alertDB,
		cache:   cache,
		clock:   clock,
	}
}

// Raise creates the alert unless deduplication suppresses it: no new alert
// for a (user, account, type) triple while an open alert of that triple
// exists, or within the cooldown window of the most recent creation,
// whichever is longer. It returns true when an alert was created.
func (s *Service) Raise(ctx context.Context, config *models.AlertConfig, alert *models.Alert) (bool, error) {
	latest, err := s.alertDB.GetLatestAlert(ctx, alert.UserId, alert.AccountId, alert.Type)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if latest != nil {
		if !latest.Resolved {
			s.logger.Debug("suppressed-open-alert", lager.Data{"userId": alert.UserId, "accountId": alert.AccountId, "alertType": alert.Type})
			return false, nil
		}
		if now.UnixMilli()-latest.CreatedAt < s.cooldown(config).Milliseconds() {
			s.logger.Debug("suppressed-cooldown", lager.Data{"userId": alert.UserId, "accountId": alert.AccountId, "alertType": alert.Type})
			return false, nil
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return false, err
	}
	alert.Id = id.String()
	alert.Resolved = false
	alert.CreatedAt = now.UnixMilli()
	alert.ResolvedAt = 0

	err = s.alertDB.SaveAlert(ctx, alert)
	if err != nil {
		return false, err
	}
	s.invalidate(alert.UserId)
	s.logger.Info("alert-raised", lager.Data{"alertId": alert.Id, "userId": alert.UserId, "accountId": alert.AccountId, "alertType": alert.Type, "severity": alert.Severity})
	return true, nil
}

// Resolve marks one alert resolved. Resolving an already-resolved alert is a
// no-op, not an error.
func (s *Service) Resolve(ctx context.Context, alertId string) error {
	alert, err := s.alertDB.GetAlert(ctx, alertId)
	if err != nil {
		return err
	}
	if alert.Resolved {
		return nil
	}
	err = s.alertDB.ResolveAlert(ctx, alertId, s.clock.Now().UnixMilli())
	if err != nil {
		return err
	}
	s.invalidate(alert.UserId)
	return nil
}

// ResolveCondition resolves every open alert of a (user, account, type)
// triple. The monitor calls it when a previously alerting condition has
// cleared on a subsequent scan.
func (s *Service) ResolveCondition(ctx context.Context, userId string, accountId string, alertType models.AlertType) error {
	resolved, err := s.alertDB.ResolveAlertsBy(ctx, userId, accountId, alertType, s.clock.Now().UnixMilli())
	if err != nil {
		return err
	}
	if resolved > 0 {
		s.invalidate(userId)
		s.logger.Info("condition-cleared", lager.Data{"userId": userId, "accountId": accountId, "alertType": alertType, "resolved": resolved})
	}
	return nil
}

func (s *Service) List(ctx context.Context, userId string, includeResolved bool) ([]*models.Alert, error) {
	return s.alertDB.RetrieveAlerts(ctx, userId, includeResolved, db.DESC)
}

func (s *Service) cooldown(config *models.AlertConfig) time.Duration {
	minutes := models.DefaultCooldownMinutes
	if config != nil && config.CooldownMinutes > 0 {
		minutes = config.CooldownMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *Service) invalidate(userId string) {
	if s.cache != nil {
		s.cache.DeleteByPrefix("dashboard:alerts:" + userId)
	}
}
