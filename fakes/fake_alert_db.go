package fakes

import (
	"context"
	"sync"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"
)

type FakeAlertDB struct {
	mutex sync.Mutex

	alerts map[string]*models.Alert

	SaveAlertStub     func(ctx context.Context, alert *models.Alert) error
	saveAlertArgs     []*models.Alert
	SaveAlertReturns  error
	GetLatestReturns  *models.Alert
	GetLatestErr      error
	RetrieveReturns   []*models.Alert
	RetrieveErr       error
	ResolveAlertErr   error
	resolveAlertArgs  []string
	ResolveByReturns  int64
	ResolveByErr      error
	resolveByCalls    int
	PruneAlertsErr    error
	pruneAlertsBefore []int64
}

func NewFakeAlertDB() *FakeAlertDB {
	return &FakeAlertDB{alerts: map[string]*models.Alert{}}
}

func (f *FakeAlertDB) SaveAlert(ctx context.Context, alert *models.Alert) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.saveAlertArgs = append(f.saveAlertArgs, alert)
	if f.SaveAlertStub != nil {
		return f.SaveAlertStub(ctx, alert)
	}
	if f.SaveAlertReturns != nil {
		return f.SaveAlertReturns
	}
	f.alerts[alert.Id] = alert
	return nil
}

func (f *FakeAlertDB) SaveAlertCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.saveAlertArgs)
}

func (f *FakeAlertDB) SaveAlertArgsForCall(i int) *models.Alert {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.saveAlertArgs[i]
}

func (f *FakeAlertDB) GetAlert(ctx context.Context, alertId string) (*models.Alert, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	alert, ok := f.alerts[alertId]
	if !ok {
		return nil, db.ErrDoesNotExist
	}
	return alert, nil
}

func (f *FakeAlertDB) SetAlert(alert *models.Alert) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.alerts[alert.Id] = alert
}

func (f *FakeAlertDB) GetLatestAlert(ctx context.Context, userId string, accountId string, alertType models.AlertType) (*models.Alert, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.GetLatestReturns, f.GetLatestErr
}

func (f *FakeAlertDB) RetrieveAlerts(ctx context.Context, userId string, includeResolved bool, orderType db.OrderType) ([]*models.Alert, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.RetrieveErr != nil {
		return nil, f.RetrieveErr
	}
	if f.RetrieveReturns != nil {
		return f.RetrieveReturns, nil
	}
	result := []*models.Alert{}
	for _, alert := range f.alerts {
		if alert.UserId != userId {
			continue
		}
		if !includeResolved && alert.Resolved {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

func (f *FakeAlertDB) ResolveAlert(ctx context.Context, alertId string, resolvedAt int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resolveAlertArgs = append(f.resolveAlertArgs, alertId)
	if f.ResolveAlertErr != nil {
		return f.ResolveAlertErr
	}
	if alert, ok := f.alerts[alertId]; ok && !alert.Resolved {
		alert.Resolved = true
		alert.ResolvedAt = resolvedAt
	}
	return nil
}

func (f *FakeAlertDB) ResolveAlertCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.resolveAlertArgs)
}

func (f *FakeAlertDB) ResolveAlertsBy(ctx context.Context, userId string, accountId string, alertType models.AlertType, resolvedAt int64) (int64, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.resolveByCalls++
	return f.ResolveByReturns, f.ResolveByErr
}

func (f *FakeAlertDB) ResolveAlertsByCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.resolveByCalls
}

func (f *FakeAlertDB) PruneAlerts(ctx context.Context, before int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pruneAlertsBefore = append(f.pruneAlertsBefore, before)
	return f.PruneAlertsErr
}

func (f *FakeAlertDB) PruneAlertsCallCount() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.pruneAlertsBefore)
}

func (f *FakeAlertDB) PruneAlertsArgsForCall(i int) int64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.pruneAlertsBefore[i]
}

func (f *FakeAlertDB) Close() error {
	return nil
}
