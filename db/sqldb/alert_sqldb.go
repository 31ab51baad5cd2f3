package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/lager/v3"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var _ db.AlertDB = &AlertSQLDB{}

type AlertSQLDB struct {
	dbConfig db.DatabaseConfig
	logger   lager.Logger
	sqldb    *sqlx.DB
}

func NewAlertSQLDB(dbConfig db.DatabaseConfig, logger lager.Logger) (*AlertSQLDB, error) {
	sqldb, err := openConnection(dbConfig, logger, "alert-db")
	if err != nil {
		return nil, err
	}
	return &AlertSQLDB{
		dbConfig: dbConfig,
		logger:   logger,
		sqldb:    sqldb,
	}, nil
}

func (adb *AlertSQLDB) GetDBStatus() sql.DBStats {
	return adb.sqldb.Stats()
}

func (adb *AlertSQLDB) Close() error {
	err := adb.sqldb.Close()
	if err != nil {
		adb.logger.Error("close-alert-db", err, lager.Data{"dbConfig": adb.dbConfig})
		return err
	}
	return nil
}

func (adb *AlertSQLDB) SaveAlert(ctx context.Context, alert *models.Alert) error {
	dataBytes, err := json.Marshal(alert.Data)
	if err != nil {
		adb.logger.Error("save-alert-marshal-data", err, lager.Data{"alert": alert})
		return err
	}

	query := adb.sqldb.Rebind("INSERT INTO alerts" +
		"(alert_id, user_id, account_id, alert_type, severity, message, data, resolved, created_at, resolved_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err = adb.sqldb.ExecContext(ctx, query, alert.Id, alert.UserId, alert.AccountId, string(alert.Type),
		string(alert.Severity), alert.Message, string(dataBytes), alert.Resolved, alert.CreatedAt, alert.ResolvedAt)
	if err != nil {
		adb.logger.Error("save-alert", err, lager.Data{"query": query, "alert": alert})
	}
	return err
}

func (adb *AlertSQLDB) GetAlert(ctx context.Context, alertId string) (*models.Alert, error) {
	query := adb.sqldb.Rebind("SELECT alert_id, user_id, account_id, alert_type, severity, message, data, resolved, created_at, resolved_at " +
		"FROM alerts WHERE alert_id = ?")
	alert, err := adb.scanAlert(adb.sqldb.QueryRowContext(ctx, query, alertId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrDoesNotExist
	}
	if err != nil {
		adb.logger.Error("get-alert", err, lager.Data{"query": query, "alertId": alertId})
		return nil, err
	}
	return alert, nil
}

func (adb *AlertSQLDB) GetLatestAlert(ctx context.Context, userId string, accountId string, alertType models.AlertType) (*models.Alert, error) {
	query := adb.sqldb.Rebind("SELECT alert_id, user_id, account_id, alert_type, severity, message, data, resolved, created_at, resolved_at " +
		"FROM alerts WHERE user_id = ? AND account_id = ? AND alert_type = ? ORDER BY created_at DESC LIMIT 1")
	alert, err := adb.scanAlert(adb.sqldb.QueryRowContext(ctx, query, userId, accountId, string(alertType)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		adb.logger.Error("get-latest-alert", err, lager.Data{"query": query, "userId": userId, "accountId": accountId, "alertType": alertType})
		return nil, err
	}
	return alert, nil
}

func (adb *AlertSQLDB) RetrieveAlerts(ctx context.Context, userId string, includeResolved bool, orderType db.OrderType) ([]*models.Alert, error) {
	order := "DESC"
	if orderType == db.ASC {
		order = "ASC"
	}
	queryStr := "SELECT alert_id, user_id, account_id, alert_type, severity, message, data, resolved, created_at, resolved_at " +
		"FROM alerts WHERE user_id = ?"
	if !includeResolved {
		queryStr += " AND resolved = ?"
	}
	queryStr += " ORDER BY created_at " + order

	query := adb.sqldb.Rebind(queryStr)
	var rows *sql.Rows
	var err error
	if includeResolved {
		rows, err = adb.sqldb.QueryContext(ctx, query, userId)
	} else {
		rows, err = adb.sqldb.QueryContext(ctx, query, userId, false)
	}
	if err != nil {
		adb.logger.Error("retrieve-alerts", err, lager.Data{"query": query, "userId": userId})
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := adb.scanAlert(rows)
		if err != nil {
			adb.logger.Error("retrieve-alerts-scan", err)
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an open alert resolved. Resolving an already-resolved
// alert matches no row and is a no-op, which keeps the operation idempotent
// and resolved_at untouched after the first resolution.
func (adb *AlertSQLDB) ResolveAlert(ctx context.Context, alertId string, resolvedAt int64) error {
	query := adb.sqldb.Rebind("UPDATE alerts SET resolved = ?, resolved_at = ? WHERE alert_id = ? AND resolved = ?")
	_, err := adb.sqldb.ExecContext(ctx, query, true, resolvedAt, alertId, false)
	if err != nil {
		adb.logger.Error("resolve-alert", err, lager.Data{"query": query, "alertId": alertId})
	}
	return err
}

func (adb *AlertSQLDB) ResolveAlertsBy(ctx context.Context, userId string, accountId string, alertType models.AlertType, resolvedAt int64) (int64, error) {
	query := adb.sqldb.Rebind("UPDATE alerts SET resolved = ?, resolved_at = ? " +
		"WHERE user_id = ? AND account_id = ? AND alert_type = ? AND resolved = ?")
	result, err := adb.sqldb.ExecContext(ctx, query, true, resolvedAt, userId, accountId, string(alertType), false)
	if err != nil {
		adb.logger.Error("resolve-alerts-by", err, lager.Data{"query": query, "userId": userId, "accountId": accountId, "alertType": alertType})
		return 0, err
	}
	return result.RowsAffected()
}

func (adb *AlertSQLDB) PruneAlerts(ctx context.Context, before int64) error {
	query := adb.sqldb.Rebind("DELETE FROM alerts WHERE resolved = ? AND resolved_at <= ?")
	_, err := adb.sqldb.ExecContext(ctx, query, true, before)
	if err != nil {
		adb.logger.Error("prune-alerts", err, lager.Data{"query": query, "before": before})
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (adb *AlertSQLDB) scanAlert(row rowScanner) (*models.Alert, error) {
	var (
		alert     models.Alert
		alertType string
		severity  string
		dataStr   string
	)
	err := row.Scan(&alert.Id, &alert.UserId, &alert.AccountId, &alertType, &severity,
		&alert.Message, &dataStr, &alert.Resolved, &alert.CreatedAt, &alert.ResolvedAt)
	if err != nil {
		return nil, err
	}
	alert.Type = models.AlertType(alertType)
	alert.Severity = models.AlertSeverity(severity)
	if dataStr != "" {
		if err := json.Unmarshal([]byte(dataStr), &alert.Data); err != nil {
			adb.logger.Error("scan-alert-unmarshal-data", err, lager.Data{"data": dataStr})
			return nil, err
		}
	}
	return &alert, nil
}
