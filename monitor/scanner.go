// Package monitor implements the scheduled account-health scan: a batched,
// sequential walk over every active account that evaluates worker health
// against resolved thresholds and drives the alert lifecycle.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/healthendpoint"
	"github.com/tarikbc/accountmonitor/models"
	"github.com/tarikbc/accountmonitor/threshold"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	circuit "github.com/rubyist/circuitbreaker"
)

// HealthProvider reports the current worker connection health of one
// account. A nil snapshot with nil error means no report is available yet.
type HealthProvider interface {
	HealthSnapshot(ctx context.Context, accountId string) (*models.HealthSnapshot, error)
}

// AlertManager is the slice of the alert service the scanner drives.
type AlertManager interface {
	Raise(ctx context.Context, config *models.AlertConfig, alert *models.Alert) (bool, error)
	ResolveCondition(ctx context.Context, userId string, accountId string, alertType models.AlertType) error
}

type Scanner struct {
	logger         lager.Logger
	clock          clock.Clock
	accountDB      db.AccountDB
	configDB       db.AlertConfigDB
	provider       HealthProvider
	alerts         AlertManager
	breaker        *circuit.Breaker
	metrics        healthendpoint.ScanCollector
	batchSize      int
	batchDelay     time.Duration
	accountTimeout time.Duration
}

func NewScanner(logger lager.Logger, clock clock.Clock, accountDB db.AccountDB, configDB db.AlertConfigDB,
	provider HealthProvider, alerts AlertManager, breaker *circuit.Breaker, metrics healthendpoint.ScanCollector,
	batchSize int, batchDelay time.Duration, accountTimeout time.Duration) *Scanner {
	return &Scanner{
		logger:         logger.Session("scanner"),
		clock:          clock,
		accountDB:      accountDB,
		configDB:       configDB,
		provider:       provider,
		alerts:         alerts,
		breaker:        breaker,
		metrics:        metrics,
		batchSize:      batchSize,
		batchDelay:     batchDelay,
		accountTimeout: accountTimeout,
	}
}

// Operate runs one full scan. A failure to enumerate accounts aborts the
// run; a failure against a single account is logged and the scan moves on.
func (s *Scanner) Operate(ctx context.Context) {
	logger := s.logger.Session("scan")
	logger.Info("starting")

	total, err := s.accountDB.CountActiveAccounts(ctx)
	if err != nil {
		logger.Error("failed-count-active-accounts", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncScansTotal()
	}
	if total == 0 {
		logger.Info("completed", lager.Data{"accountsProcessed": 0, "alertsCreated": 0})
		return
	}

	totalBatches := (total + s.batchSize - 1) / s.batchSize
	processed := 0
	created := 0

	for page := 1; page <= totalBatches; page++ {
		accounts, err := s.accountDB.RetrieveActiveAccounts(ctx, page, s.batchSize)
		if err != nil {
			logger.Error("failed-retrieve-active-accounts", err, lager.Data{"page": page})
			return
		}

		// accounts are evaluated one at a time to bound datastore load
		for _, account := range accounts {
			processed++
			n, err := s.evaluateAccount(ctx, account)
			if err != nil {
				logger.Error("failed-evaluate-account", err, lager.Data{"accountId": account.Id})
				continue
			}
			created += n
		}

		if page < totalBatches {
			s.clock.Sleep(s.batchDelay)
		}
	}

	if s.metrics != nil {
		s.metrics.AddAccountsProcessed(processed)
		s.metrics.AddAlertsCreated(created)
	}
	logger.Info("completed", lager.Data{"accountsProcessed": processed, "alertsCreated": created})
}

func (s *Scanner) evaluateAccount(ctx context.Context, account *models.Account) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.accountTimeout)
	defer cancel()

	var snapshot *models.HealthSnapshot
	fetch := func() error {
		var err error
		snapshot, err = s.provider.HealthSnapshot(ctx, account.Id)
		return err
	}
	var err error
	if s.breaker != nil {
		err = s.breaker.Call(fetch, 0)
	} else {
		err = fetch()
	}
	if err != nil {
		return 0, fmt.Errorf("health snapshot for account %s: %w", account.Id, err)
	}
	if snapshot == nil {
		s.logger.Info("no-health-snapshot", lager.Data{"accountId": account.Id})
		return 0, nil
	}

	config, err := s.configDB.GetAlertConfig(ctx, account.UserId)
	if err != nil {
		// config absence is normal; a read failure degrades to defaults
		s.logger.Error("failed-get-alert-config", err, lager.Data{"userId": account.UserId})
		config = nil
	}

	created := 0
	created += s.evaluateToken(ctx, config, account, snapshot)
	created += s.evaluateConnection(ctx, config, account, snapshot)
	created += s.evaluateErrorRate(ctx, config, account, snapshot)
	created += s.evaluateRateLimit(ctx, config, account, snapshot)
	return created, nil
}

// An invalid token is always raised, regardless of the user's trigger
// opt-outs: the account is unusable until the token is replaced.
func (s *Scanner) evaluateToken(ctx context.Context, config *models.AlertConfig, account *models.Account, snapshot *models.HealthSnapshot) int {
	if snapshot.TokenStatus != models.TokenStatusInvalid {
		s.resolve(ctx, account, models.AlertTypeTokenInvalid)
		return 0
	}
	return s.raise(ctx, config, &models.Alert{
		UserId:    account.UserId,
		AccountId: account.Id,
		Type:      models.AlertTypeTokenInvalid,
		Severity:  models.AlertSeverityCritical,
		Message:   fmt.Sprintf("Account %s has an invalid token and cannot connect", account.Name),
		Data:      map[string]interface{}{"tokenStatus": snapshot.TokenStatus},
	})
}

func (s *Scanner) evaluateConnection(ctx context.Context, config *models.AlertConfig, account *models.Account, snapshot *models.HealthSnapshot) int {
	limit := threshold.Effective(config, threshold.MetricDisconnection, threshold.KindWarning)
	met := snapshot.Status == models.AccountStatusDisconnected &&
		snapshot.DisconnectionCount > 0 &&
		float64(snapshot.DisconnectionCount) >= limit

	// an opted-out trigger also resolves, so an alert raised before the
	// opt-out does not stay open forever
	if !met || !alertsEnabled(config) || !config.TriggerEnabled(threshold.MetricDisconnection) {
		s.resolve(ctx, account, models.AlertTypeConnectionLost)
		return 0
	}
	return s.raise(ctx, config, &models.Alert{
		UserId:    account.UserId,
		AccountId: account.Id,
		Type:      models.AlertTypeConnectionLost,
		Severity:  models.AlertSeverityHigh,
		Message:   fmt.Sprintf("Account %s lost its connection %d times", account.Name, snapshot.DisconnectionCount),
		Data: map[string]interface{}{
			"disconnectionCount": snapshot.DisconnectionCount,
			"threshold":          limit,
		},
	})
}

func (s *Scanner) evaluateErrorRate(ctx context.Context, config *models.AlertConfig, account *models.Account, snapshot *models.HealthSnapshot) int {
	limit := threshold.Effective(config, threshold.MetricErrorRate, threshold.KindWarning)
	status := threshold.Classify(config, threshold.MetricErrorRate, snapshot.ErrorRate)
	if status == threshold.StatusHealthy ||
		!alertsEnabled(config) || !config.TriggerEnabled(threshold.MetricErrorRate) {
		s.resolve(ctx, account, models.AlertTypeHighErrorRate)
		return 0
	}
	return s.raise(ctx, config, &models.Alert{
		UserId:    account.UserId,
		AccountId: account.Id,
		Type:      models.AlertTypeHighErrorRate,
		Severity:  models.AlertSeverityMedium,
		Message:   fmt.Sprintf("Account %s error rate is %.2f, above the threshold of %.2f", account.Name, snapshot.ErrorRate, limit),
		Data: map[string]interface{}{
			"errorRate":    snapshot.ErrorRate,
			"errorCount":   snapshot.ErrorCount,
			"requestCount": snapshot.RequestCount,
			"threshold":    limit,
			"status":       string(status),
		},
	})
}

// Rate limiting is raised unconditionally, like an invalid token.
func (s *Scanner) evaluateRateLimit(ctx context.Context, config *models.AlertConfig, account *models.Account, snapshot *models.HealthSnapshot) int {
	if !snapshot.RateLimited {
		s.resolve(ctx, account, models.AlertTypeRateLimited)
		return 0
	}
	return s.raise(ctx, config, &models.Alert{
		UserId:    account.UserId,
		AccountId: account.Id,
		Type:      models.AlertTypeRateLimited,
		Severity:  models.AlertSeverityMedium,
		Message:   fmt.Sprintf("Account %s is being rate limited", account.Name),
		Data: map[string]interface{}{
			"rateLimitResetAt":   snapshot.RateLimitResetAt,
			"rateLimitRemaining": snapshot.RateLimitRemaining,
		},
	})
}

func (s *Scanner) raise(ctx context.Context, config *models.AlertConfig, alert *models.Alert) int {
	created, err := s.alerts.Raise(ctx, config, alert)
	if err != nil {
		s.logger.Error("failed-raise-alert", err, lager.Data{"accountId": alert.AccountId, "alertType": alert.Type})
		return 0
	}
	if created {
		return 1
	}
	return 0
}

func (s *Scanner) resolve(ctx context.Context, account *models.Account, alertType models.AlertType) {
	err := s.alerts.ResolveCondition(ctx, account.UserId, account.Id, alertType)
	if err != nil {
		s.logger.Error("failed-resolve-condition", err, lager.Data{"accountId": account.Id, "alertType": alertType})
	}
}

func alertsEnabled(config *models.AlertConfig) bool {
	return config == nil || config.Enabled
}
