package db

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tarikbc/accountmonitor/models"
)

const (
	PostgresDriverName = "postgres"
	MysqlDriverName    = "mysql"
)

type OrderType uint8

const (
	DESC OrderType = iota
	ASC
)

var ErrDoesNotExist = fmt.Errorf("doesn't exist")

type DatabaseConfig struct {
	URL                   string        `yaml:"url"`
	MaxOpenConnections    int           `yaml:"max_open_connections"`
	MaxIdleConnections    int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
	ConnectionMaxIdleTime time.Duration `yaml:"connection_max_idletime"`
}

type AlertDB interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, alertId string) (*models.Alert, error)
	GetLatestAlert(ctx context.Context, userId string, accountId string, alertType models.AlertType) (*models.Alert, error)
	RetrieveAlerts(ctx context.Context, userId string, includeResolved bool, orderType OrderType) ([]*models.Alert, error)
	ResolveAlert(ctx context.Context, alertId string, resolvedAt int64) error
	ResolveAlertsBy(ctx context.Context, userId string, accountId string, alertType models.AlertType, resolvedAt int64) (int64, error)
	PruneAlerts(ctx context.Context, before int64) error
	io.Closer
}

type AlertConfigDB interface {
	GetAlertConfig(ctx context.Context, userId string) (*models.AlertConfig, error)
	SaveAlertConfig(ctx context.Context, config *models.AlertConfig) error
	io.Closer
}

type AccountDB interface {
	CountActiveAccounts(ctx context.Context) (int, error)
	RetrieveActiveAccounts(ctx context.Context, page int, pageSize int) ([]*models.Account, error)
	io.Closer
}
