package healthendpoint

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScanCollector counts what the monitoring job does: scans started, scans
// skipped by the overlap guard, accounts evaluated and alerts created.
type ScanCollector interface {
	prometheus.Collector
	IncScansTotal()
	IncScansSkipped()
	AddAccountsProcessed(count int)
	AddAlertsCreated(count int)
}

type scanCollector struct {
	scansTotal        prometheus.Counter
	scansSkipped      prometheus.Counter
	accountsProcessed prometheus.Counter
	alertsCreated     prometheus.Counter
}

func NewScanCollector(namespace, subSystem string) ScanCollector {
	return &scanCollector{
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subSystem,
			Name:      "scans_total",
			Help:      "Number of health scans started",
		}),
		scansSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subSystem,
			Name:      "scans_skipped_total",
			Help:      "Number of scheduled scans skipped because the previous run was still in progress",
		}),
		accountsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subSystem,
			Name:      "accounts_processed_total",
			Help:      "Number of accounts evaluated across all scans",
		}),
		alertsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subSystem,
			Name:      "alerts_created_total",
			Help:      "Number of alerts created across all scans",
		}),
	}
}

func (c *scanCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.scansTotal.Desc()
	ch <- c.scansSkipped.Desc()
	ch <- c.accountsProcessed.Desc()
	ch <- c.alertsCreated.Desc()
}

func (c *scanCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- c.scansTotal
	ch <- c.scansSkipped
	ch <- c.accountsProcessed
	ch <- c.alertsCreated
}

func (c *scanCollector) IncScansTotal()   { c.scansTotal.Inc() }
func (c *scanCollector) IncScansSkipped() { c.scansSkipped.Inc() }

func (c *scanCollector) AddAccountsProcessed(count int) {
	c.accountsProcessed.Add(float64(count))
}

func (c *scanCollector) AddAlertsCreated(count int) {
	c.alertsCreated.Add(float64(count))
}
