package routes

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	SyncPath      = "/v1/sync"
	SyncRouteName = "Sync"

	AlertsPath         = "/v1/users/{userid}/alerts"
	GetAlertsRouteName = "GetAlerts"

	AlertSummaryPath         = "/v1/users/{userid}/alert_summary"
	GetAlertSummaryRouteName = "GetAlertSummary"

	ResolveAlertPath      = "/v1/alerts/{alertid}/resolve"
	ResolveAlertRouteName = "ResolveAlert"
)

// NewRouter builds the account-monitor route table. Handlers are attached by
// the servers that own them.
func NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Path(SyncPath).Methods(http.MethodGet).Name(SyncRouteName)
	r.Path(AlertsPath).Methods(http.MethodGet).Name(GetAlertsRouteName)
	r.Path(AlertSummaryPath).Methods(http.MethodGet).Name(GetAlertSummaryRouteName)
	r.Path(ResolveAlertPath).Methods(http.MethodPut).Name(ResolveAlertRouteName)

	return r
}
