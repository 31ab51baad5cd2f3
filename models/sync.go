package models

// RPC names carried on the live sync channel. Authenticate must succeed on a
// connection before any other request is accepted.
const (
	SyncRPCAuthenticate = "authenticate"
	SyncRPCGetAlerts    = "get_performance_alerts"
	SyncRPCSetAlerts    = "set_performance_alerts"
	SyncRPCToggleAlert  = "toggle_performance_alert"
)

// SyncRequest is one client request on the sync channel. Fields beyond Id and
// Type are populated per RPC: Token/UserId for authenticate, Config for
// set_performance_alerts, MetricId/Enabled for toggle_performance_alert.
type SyncRequest struct {
	Id       string       `json:"id"`
	Type     string       `json:"type"`
	Token    string       `json:"token,omitempty"`
	UserId   string       `json:"userId,omitempty"`
	MetricId string       `json:"metricId,omitempty"`
	Enabled  bool         `json:"enabled,omitempty"`
	Config   *AlertConfig `json:"config,omitempty"`
}

// SyncResponse acknowledges a SyncRequest with the same Id. Config carries
// the server's authoritative copy when the RPC produced or read one.
type SyncResponse struct {
	Id      string       `json:"id"`
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Config  *AlertConfig `json:"config,omitempty"`
}
