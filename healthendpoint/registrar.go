package healthendpoint

import (
	"code.cloudfoundry.org/lager/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RegisterCollectors registers the given collectors plus the standard go and
// process collectors. Registration failures are logged, not fatal.
func RegisterCollectors(registrar prometheus.Registerer, col []prometheus.Collector, logger lager.Logger) {
	err := registrar.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err != nil {
		logger.Error("failed-register-process-collector", err)
	}
	err = registrar.Register(collectors.NewGoCollector())
	if err != nil {
		logger.Error("failed-register-go-collector", err)
	}

	for _, c := range col {
		err := registrar.Register(c)
		if err != nil {
			logger.Error("failed-register-collector", err, lager.Data{"collector": c})
		}
	}
}
