package fakes

import (
	"context"
	"sync"

	"github.com/tarikbc/accountmonitor/models"
)

type FakeHealthProvider struct {
	mutex sync.Mutex

	Snapshots map[string]*models.HealthSnapshot
	Errs      map[string]error

	requestedAccounts []string
}

func NewFakeHealthProvider() *FakeHealthProvider {
	return &FakeHealthProvider{
		Snapshots: map[string]*models.HealthSnapshot{},
		Errs:      map[string]error{},
	}
}

func (f *FakeHealthProvider) HealthSnapshot(ctx context.Context, accountId string) (*models.HealthSnapshot, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.requestedAccounts = append(f.requestedAccounts, accountId)
	if err, ok := f.Errs[accountId]; ok {
		return nil, err
	}
	return f.Snapshots[accountId], nil
}

func (f *FakeHealthProvider) RequestedAccounts() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string{}, f.requestedAccounts...)
}
