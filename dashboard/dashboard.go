package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/tarikbc/accountmonitor/cache"
	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/lager/v3"
)

const DefaultSummaryTTL = 30 * time.Second

// Provider serves dashboard reads over the alert store, caching the computed
// aggregates. Alert writes invalidate the per-user key space, so a summary is
// never staler than the TTL and usually fresher.
type Provider struct {
	logger     lager.Logger
	alertDB    db.AlertDB
	cache      *cache.Cache
	summaryTTL time.Duration
}

func NewProvider(logger lager.Logger, alertDB db.AlertDB, store *cache.Cache, summaryTTL time.Duration) *Provider {
	if summaryTTL <= 0 {
		summaryTTL = DefaultSummaryTTL
	}
	return &Provider{
		logger:     logger.Session("dashboard"),
		alertDB:    alertDB,
		cache:      store,
		summaryTTL: summaryTTL,
	}
}

// AlertSummary returns the aggregate counts over the user's alerts, open and
// resolved.
func (p *Provider) AlertSummary(ctx context.Context, userId string) (*models.AlertSummary, error) {
	key := summaryKey(userId)
	data, err := p.cache.GetOrSet(key, func() (interface{}, error) {
		return p.buildSummary(ctx, userId)
	}, p.summaryTTL)
	if err != nil {
		return nil, err
	}
	return data.(*models.AlertSummary), nil
}

func (p *Provider) buildSummary(ctx context.Context, userId string) (*models.AlertSummary, error) {
	alerts, err := p.alertDB.RetrieveAlerts(ctx, userId, true, db.DESC)
	if err != nil {
		p.logger.Error("build-summary-retrieve-alerts", err, lager.Data{"userId": userId})
		return nil, err
	}

	summary := &models.AlertSummary{
		UserId:     userId,
		BySeverity: map[models.AlertSeverity]int{},
		ByType:     map[models.AlertType]int{},
	}
	for _, alert := range alerts {
		summary.Total++
		if !alert.Resolved {
			summary.Open++
		}
		summary.BySeverity[alert.Severity]++
		summary.ByType[alert.Type]++
	}
	return summary, nil
}

// RecentAlerts returns the user's open alerts, newest first, capped at limit.
func (p *Provider) RecentAlerts(ctx context.Context, userId string, limit int) ([]*models.Alert, error) {
	key := recentKey(userId, limit)
	data, err := p.cache.GetOrSet(key, func() (interface{}, error) {
		alerts, err := p.alertDB.RetrieveAlerts(ctx, userId, false, db.DESC)
		if err != nil {
			p.logger.Error("recent-alerts-retrieve", err, lager.Data{"userId": userId})
			return nil, err
		}
		if limit > 0 && len(alerts) > limit {
			alerts = alerts[:limit]
		}
		return alerts, nil
	}, p.summaryTTL)
	if err != nil {
		return nil, err
	}
	return data.([]*models.Alert), nil
}

// Invalidate drops every cached dashboard entry for the user.
func (p *Provider) Invalidate(userId string) {
	p.cache.DeleteByPrefix(keyPrefix(userId))
}

func keyPrefix(userId string) string {
	return "dashboard:alerts:" + userId
}

func summaryKey(userId string) string {
	return keyPrefix(userId) + ":summary"
}

func recentKey(userId string, limit int) string {
	return fmt.Sprintf("%s:recent:%d", keyPrefix(userId), limit)
}
