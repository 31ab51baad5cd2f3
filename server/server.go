package server

import (
	"net/http"

	"github.com/tarikbc/accountmonitor/alert"
	"github.com/tarikbc/accountmonitor/config"
	"github.com/tarikbc/accountmonitor/dashboard"
	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/healthendpoint"
	"github.com/tarikbc/accountmonitor/helpers"
	"github.com/tarikbc/accountmonitor/ratelimiter"
	"github.com/tarikbc/accountmonitor/routes"
	"github.com/tarikbc/accountmonitor/syncserver"

	"code.cloudfoundry.org/lager/v3"
	"github.com/gorilla/mux"
	"github.com/tedsuo/ifrit"
)

type VarsFunc func(w http.ResponseWriter, r *http.Request, vars map[string]string)

func (vh VarsFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	vh(w, r, vars)
}

// NewServer assembles the public server: the alert REST endpoints and the
// websocket sync endpoint share one route table and one port.
func NewServer(logger lager.Logger, conf *config.Config, alertService *alert.Service, dashboardProvider *dashboard.Provider,
	configDB db.AlertConfigDB, verifier syncserver.TokenVerifier, limiter ratelimiter.Limiter,
	httpStatusCollector healthendpoint.HTTPStatusCollector) (ifrit.Runner, error) {
	ah := NewAlertHandler(logger, alertService, dashboardProvider)
	wsHandler := syncserver.NewWSMessageHandler(logger.Session("sync-server"), configDB, verifier, limiter, conf.Sync.KeepAliveInterval)

	httpStatusCollectMiddleware := healthendpoint.NewHTTPStatusCollectMiddleware(httpStatusCollector)
	r := routes.NewRouter()
	r.Use(httpStatusCollectMiddleware.Collect)
	r.Get(routes.SyncRouteName).Handler(wsHandler)
	r.Get(routes.GetAlertsRouteName).Handler(VarsFunc(ah.GetAlerts))
	r.Get(routes.GetAlertSummaryRouteName).Handler(VarsFunc(ah.GetAlertSummary))
	r.Get(routes.ResolveAlertRouteName).Handler(VarsFunc(ah.ResolveAlert))

	return helpers.NewHTTPServer(logger, conf.Server, r)
}
