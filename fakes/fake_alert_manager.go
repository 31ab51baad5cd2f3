package fakes

import (
	"context"
	"sync"

	"github.com/tarikbc/accountmonitor/models"
)

type FakeAlertManager struct {
	mutex sync.Mutex

	RaiseStub    func(ctx context.Context, config *models.AlertConfig, alert *models.Alert) (bool, error)
	RaiseReturns bool
	RaiseErr     error
	raisedAlerts []*models.Alert

	ResolveConditionErr error
	resolvedConditions  []resolvedCondition
}

type resolvedCondition struct {
	accountId string
	alertType models.AlertType
}

func (f *FakeAlertManager) Raise(ctx context.Context, config *models.AlertConfig, alert *models.Alert) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.raisedAlerts = append(f.raisedAlerts, alert)
	if f.RaiseStub != nil {
		return f.RaiseStub(ctx, config, alert)
	}
	return f.RaiseReturns, f.RaiseErr
}

func (f *FakeAlertManager) RaisedAlerts() []*models.Alert {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]*models.Alert{}, f.raisedAlerts...)
}

func (f *FakeAlertManager) ResolveCondition(ctx context.Context, userId string, accountId string, alertType models.AlertType) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resolvedConditions = append(f.resolvedConditions, resolvedCondition{accountId: accountId, alertType: alertType})
	return f.ResolveConditionErr
}

func (f *FakeAlertManager) ResolvedConditions() []models.AlertType {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	types := make([]models.AlertType, 0, len(f.resolvedConditions))
	for _, rc := range f.resolvedConditions {
		types = append(types, rc.alertType)
	}
	return types
}

func (f *FakeAlertManager) ResolvedConditionsFor(accountId string) []models.AlertType {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var types []models.AlertType
	for _, rc := range f.resolvedConditions {
		if rc.accountId == accountId {
			types = append(types, rc.alertType)
		}
	}
	return types
}
