package fakes

import (
	"context"
	"sync"

	"github.com/tarikbc/accountmonitor/models"
)

type FakeAccountDB struct {
	mutex sync.Mutex

	Accounts    []*models.Account
	CountErr    error
	RetrieveErr error

	retrievePages []int
}

func (f *FakeAccountDB) CountActiveAccounts(ctx context.Context) (int, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return len(f.Accounts), nil
}

func (f *FakeAccountDB) RetrieveActiveAccounts(ctx context.Context, page int, pageSize int) ([]*models.Account, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.retrievePages = append(f.retrievePages, page)
	if f.RetrieveErr != nil {
		return nil, f.RetrieveErr
	}
	start := (page - 1) * pageSize
	if start >= len(f.Accounts) {
		return []*models.Account{}, nil
	}
	end := start + pageSize
	if end > len(f.Accounts) {
		end = len(f.Accounts)
	}
	return f.Accounts[start:end], nil
}

func (f *FakeAccountDB) RetrievePages() []int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]int{}, f.retrievePages...)
}

func (f *FakeAccountDB) Close() error {
	return nil
}
