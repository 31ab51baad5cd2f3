package server

import (
	"net/http"
	"strconv"

	"github.com/tarikbc/accountmonitor/alert"
	"github.com/tarikbc/accountmonitor/dashboard"
	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/helpers/handlers"

	"code.cloudfoundry.org/lager/v3"
)

type AlertHandler struct {
	logger       lager.Logger
	alertService *alert.Service
	dashboard    *dashboard.Provider
}

func NewAlertHandler(logger lager.Logger, alertService *alert.Service, dashboardProvider *dashboard.Provider) *AlertHandler {
	return &AlertHandler{
		logger:       logger,
		alertService: alertService,
		dashboard:    dashboardProvider,
	}
}

func (h *AlertHandler) GetAlerts(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	userId := vars["userid"]
	includeResolvedParam := r.URL.Query()["include_resolved"]

	h.logger.Debug("get-alerts", lager.Data{"userId": userId, "include_resolved": includeResolvedParam})

	includeResolved := false
	if len(includeResolvedParam) == 1 {
		parsed, err := strconv.ParseBool(includeResolvedParam[0])
		if err != nil {
			h.logger.Error("get-alerts-parse-include-resolved", err, lager.Data{"include_resolved": includeResolvedParam})
			handlers.WriteJSONResponse(w, http.StatusBadRequest, handlers.ErrorResponse{
				Code:    "Bad-Request",
				Message: "Error parsing include_resolved"})
			return
		}
		includeResolved = parsed
	} else if len(includeResolvedParam) > 1 {
		handlers.WriteJSONResponse(w, http.StatusBadRequest, handlers.ErrorResponse{
			Code:    "Bad-Request",
			Message: "Incorrect include_resolved parameter in query string"})
		return
	}

	alerts, err := h.alertService.List(r.Context(), userId, includeResolved)
	if err != nil {
		h.logger.Error("get-alerts-retrieve", err, lager.Data{"userId": userId})
		handlers.WriteJSONResponse(w, http.StatusInternalServerError, handlers.ErrorResponse{
			Code:    "Internal-Server-Error",
			Message: "Error getting alerts"})
		return
	}
	handlers.WriteJSONResponse(w, http.StatusOK, alerts)
}

func (h *AlertHandler) GetAlertSummary(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	userId := vars["userid"]

	h.logger.Debug("get-alert-summary", lager.Data{"userId": userId})

	summary, err := h.dashboard.AlertSummary(r.Context(), userId)
	if err != nil {
		h.logger.Error("get-alert-summary-build", err, lager.Data{"userId": userId})
		handlers.WriteJSONResponse(w, http.StatusInternalServerError, handlers.ErrorResponse{
			Code:    "Internal-Server-Error",
			Message: "Error getting alert summary"})
		return
	}
	handlers.WriteJSONResponse(w, http.StatusOK, summary)
}

func (h *AlertHandler) ResolveAlert(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	alertId := vars["alertid"]

	h.logger.Debug("resolve-alert", lager.Data{"alertId": alertId})

	err := h.alertService.Resolve(r.Context(), alertId)
	if err != nil {
		if err == db.ErrDoesNotExist {
			handlers.WriteJSONResponse(w, http.StatusNotFound, handlers.ErrorResponse{
				Code:    "Not-Found",
				Message: "Alert not found"})
			return
		}
		h.logger.Error("resolve-alert-resolve", err, lager.Data{"alertId": alertId})
		handlers.WriteJSONResponse(w, http.StatusInternalServerError, handlers.ErrorResponse{
			Code:    "Internal-Server-Error",
			Message: "Error resolving alert"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
