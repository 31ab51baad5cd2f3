package healthendpoint

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

type DatabaseStatus interface {
	GetDBStatus() sql.DBStats
}

type databaseStatusCollector struct {
	descs    []*prometheus.Desc
	dbStatus DatabaseStatus
}

// NewDatabaseStatusCollector exposes connection-pool statistics of one
// database as gauges named <dbName>_<stat>.
func NewDatabaseStatusCollector(namespace, subSystem string, dbName string, dbStatus DatabaseStatus) prometheus.Collector {
	stats := []struct{ name, help string }{
		{"max_open_connections", "Maximum number of open connections to the database"},
		{"open_connections", "The number of established connections both in use and idle"},
		{"in_use", "The number of connections currently in use"},
		{"idle", "The number of idle connections"},
		{"wait_count", "The total number of connections waited for"},
		{"wait_duration", "The total time blocked waiting for a new connection"},
	}

	c := &databaseStatusCollector{dbStatus: dbStatus}
	for _, s := range stats {
		c.descs = append(c.descs, prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subSystem, dbName+"_"+s.name), s.help, nil, nil))
	}
	return c
}

func (c *databaseStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *databaseStatusCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.dbStatus.GetDBStatus()
	values := []float64{
		float64(stats.MaxOpenConnections),
		float64(stats.OpenConnections),
		float64(stats.InUse),
		float64(stats.Idle),
		float64(stats.WaitCount),
		float64(stats.WaitDuration),
	}
	for i, d := range c.descs {
		m, err := prometheus.NewConstMetric(d, prometheus.GaugeValue, values[i])
		if err == nil {
			ch <- m
		}
	}
}
