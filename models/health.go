package models

const (
	AccountStatusConnected    = "connected"
	AccountStatusDisconnected = "disconnected"

	TokenStatusValid   = "valid"
	TokenStatusInvalid = "invalid"
)

// HealthSnapshot is a point-in-time report of one account's worker connection
// health, produced by the worker-health provider. The monitor only reads it.
type HealthSnapshot struct {
	AccountId          string  `json:"accountId"`
	Status             string  `json:"status"`
	TokenStatus        string  `json:"tokenStatus"`
	DisconnectionCount int     `json:"disconnectionCount"`
	ErrorRate          float64 `json:"errorRate"`
	ErrorCount         int     `json:"errorCount"`
	RequestCount       int     `json:"requestCount"`
	RateLimited        bool    `json:"rateLimited"`
	RateLimitResetAt   int64   `json:"rateLimitResetAt,omitempty"`
	RateLimitRemaining int     `json:"rateLimitRemaining,omitempty"`
}
