package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/lager/v3"
	"github.com/jmoiron/sqlx"
)

var _ db.AlertConfigDB = &AlertConfigSQLDB{}

// AlertConfigSQLDB stores one AlertConfig per user as a JSON document,
// upserted whole. Configs are never deleted, only overwritten.
type AlertConfigSQLDB struct {
	dbConfig db.DatabaseConfig
	logger   lager.Logger
	sqldb    *sqlx.DB
}

func NewAlertConfigSQLDB(dbConfig db.DatabaseConfig, logger lager.Logger) (*AlertConfigSQLDB, error) {
	sqldb, err := openConnection(dbConfig, logger, "alert-config-db")
	if err != nil {
		return nil, err
	}
	return &AlertConfigSQLDB{
		dbConfig: dbConfig,
		logger:   logger,
		sqldb:    sqldb,
	}, nil
}

func (cdb *AlertConfigSQLDB) GetDBStatus() sql.DBStats {
	return cdb.sqldb.Stats()
}

func (cdb *AlertConfigSQLDB) Close() error {
	err := cdb.sqldb.Close()
	if err != nil {
		cdb.logger.Error("close-alert-config-db", err, lager.Data{"dbConfig": cdb.dbConfig})
		return err
	}
	return nil
}

// GetAlertConfig returns nil without error when the user has no config yet;
// callers substitute defaults.
func (cdb *AlertConfigSQLDB) GetAlertConfig(ctx context.Context, userId string) (*models.AlertConfig, error) {
	var configJson []byte
	query := cdb.sqldb.Rebind("SELECT config_json FROM alert_configs WHERE user_id = ?")
	err := cdb.sqldb.QueryRowContext(ctx, query, userId).Scan(&configJson)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		cdb.logger.Error("get-alert-config", err, lager.Data{"query": query, "userId": userId})
		return nil, err
	}

	config := &models.AlertConfig{}
	err = json.Unmarshal(configJson, config)
	if err != nil {
		cdb.logger.Error("get-alert-config-unmarshal", err, lager.Data{"configJson": string(configJson)})
		return nil, err
	}
	return config, nil
}

func (cdb *AlertConfigSQLDB) SaveAlertConfig(ctx context.Context, config *models.AlertConfig) error {
	configJson, err := json.Marshal(config)
	if err != nil {
		cdb.logger.Error("save-alert-config-marshal", err, lager.Data{"config": config})
		return err
	}

	var query string
	switch cdb.sqldb.DriverName() {
	case db.PostgresDriverName:
		query = cdb.sqldb.Rebind("INSERT INTO alert_configs (user_id, config_json) VALUES (?, ?) " +
			"ON CONFLICT (user_id) DO UPDATE SET config_json = EXCLUDED.config_json")
	case db.MysqlDriverName:
		query = cdb.sqldb.Rebind("INSERT INTO alert_configs (user_id, config_json) VALUES (?, ?) " +
			"ON DUPLICATE KEY UPDATE config_json = VALUES(config_json)")
	default:
		return fmt.Errorf("unsupported database driver: %s", cdb.sqldb.DriverName())
	}

	_, err = cdb.sqldb.ExecContext(ctx, query, config.UserId, string(configJson))
	if err != nil {
		cdb.logger.Error("save-alert-config", err, lager.Data{"query": query, "userId": config.UserId})
	}
	return err
}
