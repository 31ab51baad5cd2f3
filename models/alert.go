package models

type AlertType string

const (
	AlertTypeTokenInvalid   AlertType = "tokenInvalid"
	AlertTypeConnectionLost AlertType = "connectionLost"
	AlertTypeHighErrorRate  AlertType = "highErrorRate"
	AlertTypeRateLimited    AlertType = "rateLimited"
)

type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityWarning  AlertSeverity = "warning"
)

// An Alert records one raised condition against one account. It stays open
// until resolved; ResolvedAt is only meaningful once Resolved is true.
// Timestamps are UnixMilli.
type Alert struct {
	Id         string                 `json:"id"`
	UserId     string                 `json:"userId"`
	AccountId  string                 `json:"accountId"`
	Type       AlertType              `json:"type"`
	Severity   AlertSeverity          `json:"severity"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Resolved   bool                   `json:"resolved"`
	CreatedAt  int64                  `json:"createdAt"`
	ResolvedAt int64                  `json:"resolvedAt,omitempty"`
}

// AlertSummary is the dashboard aggregate over a user's alerts.
type AlertSummary struct {
	UserId     string                `json:"userId"`
	Total      int                   `json:"total"`
	Open       int                   `json:"open"`
	BySeverity map[AlertSeverity]int `json:"bySeverity"`
	ByType     map[AlertType]int     `json:"byType"`
}
