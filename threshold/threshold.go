// Package threshold resolves effective warning/critical thresholds for a
// metric from a user's AlertConfig, falling back to the system default table,
// and classifies live values against them.
package threshold

import (
	"github.com/tarikbc/accountmonitor/models"
)

type Kind string

const (
	KindWarning  Kind = "Warning"
	KindCritical Kind = "Critical"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Metric ids known to the default table. The first six are dashboard system
// metrics; disconnection and errorRate gate the monitor's account conditions.
const (
	MetricCPU           = "cpu"
	MetricMemory        = "memory"
	MetricDisk          = "disk"
	MetricNetworkRx     = "network_rx"
	MetricNetworkTx     = "network_tx"
	MetricLoad          = "load"
	MetricDisconnection = "disconnection"
	MetricErrorRate     = "errorRate"
)

type defaultPair struct {
	warning  float64
	critical float64
}

// systemDefaults must stay identical to the table compiled into clients;
// the duplication across the boundary is intentional so a client can render
// optimistically before server confirmation.
var systemDefaults = map[string]defaultPair{
	MetricCPU:           {warning: 70, critical: 90},
	MetricMemory:        {warning: 80, critical: 95},
	MetricDisk:          {warning: 85, critical: 95},
	MetricNetworkRx:     {warning: 1e6, critical: 1e7},
	MetricNetworkTx:     {warning: 1e6, critical: 1e7},
	MetricLoad:          {warning: 2, critical: 5},
	MetricDisconnection: {warning: 3, critical: 10},
	MetricErrorRate:     {warning: 0.1, critical: 0.25},
}

// Effective returns the threshold for a metric: the user's override when the
// config has one, else the system default, else 0 for unknown metrics.
func Effective(config *models.AlertConfig, metricId string, kind Kind) float64 {
	if config != nil {
		if value, ok := config.Thresholds[metricId+string(kind)]; ok {
			return value
		}
	}
	pair, ok := systemDefaults[metricId]
	if !ok {
		return 0
	}
	if kind == KindCritical {
		return pair.critical
	}
	return pair.warning
}

// Classify maps a live value onto healthy/warning/critical. Critical is
// checked before warning so a misconfigured pair with warning > critical
// still resolves deterministically.
func Classify(config *models.AlertConfig, metricId string, value float64) Status {
	critical := Effective(config, metricId, KindCritical)
	warning := Effective(config, metricId, KindWarning)

	switch {
	case value >= critical:
		return StatusCritical
	case value >= warning:
		return StatusWarning
	default:
		return StatusHealthy
	}
}
