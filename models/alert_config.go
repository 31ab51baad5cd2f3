package models

const DefaultCooldownMinutes = 30

// AlertConfig is the per-user record of enabled alert triggers and numeric
// thresholds. Thresholds are keyed "<metricId>Warning" / "<metricId>Critical";
// a metric absent from Triggers is treated as opted in.
type AlertConfig struct {
	UserId          string             `json:"userId"`
	Enabled         bool               `json:"enabled"`
	Triggers        map[string]bool    `json:"triggers"`
	Thresholds      map[string]float64 `json:"thresholds"`
	CooldownMinutes int                `json:"cooldownMinutes"`
}

// DefaultAlertConfig is the config a user gets on first access, before any
// explicit configuration write.
func DefaultAlertConfig(userId string) *AlertConfig {
	return &AlertConfig{
		UserId:          userId,
		Enabled:         true,
		Triggers:        map[string]bool{},
		Thresholds:      map[string]float64{},
		CooldownMinutes: DefaultCooldownMinutes,
	}
}

// TriggerEnabled reports whether alerts for the given metric are opted in.
func (c *AlertConfig) TriggerEnabled(metricId string) bool {
	if c == nil {
		return true
	}
	if enabled, ok := c.Triggers[metricId]; ok {
		return enabled
	}
	return true
}
