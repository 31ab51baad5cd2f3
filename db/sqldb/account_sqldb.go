package sqldb

import (
	"context"
	"database/sql"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/lager/v3"
	"github.com/jmoiron/sqlx"
)

var _ db.AccountDB = &AccountSQLDB{}

type AccountSQLDB struct {
	dbConfig db.DatabaseConfig
	logger   lager.Logger
	sqldb    *sqlx.DB
}

func NewAccountSQLDB(dbConfig db.DatabaseConfig, logger lager.Logger) (*AccountSQLDB, error) {
	sqldb, err := openConnection(dbConfig, logger, "account-db")
	if err != nil {
		return nil, err
	}
	return &AccountSQLDB{
		dbConfig: dbConfig,
		logger:   logger,
		sqldb:    sqldb,
	}, nil
}

func (adb *AccountSQLDB) GetDBStatus() sql.DBStats {
	return adb.sqldb.Stats()
}

func (adb *AccountSQLDB) Close() error {
	err := adb.sqldb.Close()
	if err != nil {
		adb.logger.Error("close-account-db", err, lager.Data{"dbConfig": adb.dbConfig})
		return err
	}
	return nil
}

func (adb *AccountSQLDB) CountActiveAccounts(ctx context.Context) (int, error) {
	var count int
	query := adb.sqldb.Rebind("SELECT COUNT(*) FROM accounts WHERE active = ?")
	err := adb.sqldb.QueryRowContext(ctx, query, true).Scan(&count)
	if err != nil {
		adb.logger.Error("count-active-accounts", err, lager.Data{"query": query})
		return 0, err
	}
	return count, nil
}

// RetrieveActiveAccounts pages through active accounts in stable id order so
// a full scan visits every account exactly once. Pages are 1-based.
func (adb *AccountSQLDB) RetrieveActiveAccounts(ctx context.Context, page int, pageSize int) ([]*models.Account, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := adb.sqldb.Rebind("SELECT account_id, user_id, name, active FROM accounts WHERE active = ? " +
		"ORDER BY account_id LIMIT ? OFFSET ?")
	rows, err := adb.sqldb.QueryContext(ctx, query, true, pageSize, offset)
	if err != nil {
		adb.logger.Error("retrieve-active-accounts", err, lager.Data{"query": query, "page": page, "pageSize": pageSize})
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	accounts := []*models.Account{}
	for rows.Next() {
		account := &models.Account{}
		if err = rows.Scan(&account.Id, &account.UserId, &account.Name, &account.Active); err != nil {
			adb.logger.Error("retrieve-active-accounts-scan", err)
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}
