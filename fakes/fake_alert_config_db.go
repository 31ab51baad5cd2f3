package fakes

import (
	"context"
	"sync"

	"github.com/tarikbc/accountmonitor/models"
)

type FakeAlertConfigDB struct {
	mutex sync.Mutex

	configs map[string]*models.AlertConfig

	GetAlertConfigErr  error
	SaveAlertConfigErr error
	saveArgs           []*models.AlertConfig
}

func NewFakeAlertConfigDB() *FakeAlertConfigDB {
	return &FakeAlertConfigDB{configs: map[string]*models.AlertConfig{}}
}

func (f *FakeAlertConfigDB) GetAlertConfig(ctx context.Context, userId string) (*models.AlertConfig, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.GetAlertConfigErr != nil {
		return nil, f.GetAlertConfigErr
	}
	return f.configs[userId], nil
}

func (f *FakeAlertConfigDB) SaveAlertConfig(ctx context.Context, config *models.AlertConfig) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.saveArgs = append(f.saveArgs, config)
	if f.SaveAlertConfigErr != nil {
		return f.SaveAlertConfigErr
	}
	f.configs[config.UserId] = config
	return nil
}

func (f *FakeAlertConfigDB) SetConfig(config *models.AlertConfig) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.configs[config.UserId] = config
}

func (f *FakeAlertConfigDB) SaveAlertConfigCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.saveArgs)
}

func (f *FakeAlertConfigDB) SaveAlertConfigArgsForCall(i int) *models.AlertConfig {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.saveArgs[i]
}

func (f *FakeAlertConfigDB) Close() error {
	return nil
}
