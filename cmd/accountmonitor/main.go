package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tarikbc/accountmonitor/alert"
	"github.com/tarikbc/accountmonitor/cache"
	"github.com/tarikbc/accountmonitor/config"
	"github.com/tarikbc/accountmonitor/dashboard"
	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/db/sqldb"
	"github.com/tarikbc/accountmonitor/healthendpoint"
	"github.com/tarikbc/accountmonitor/helpers"
	"github.com/tarikbc/accountmonitor/monitor"
	"github.com/tarikbc/accountmonitor/ratelimiter"
	"github.com/tarikbc/accountmonitor/server"
	"github.com/tarikbc/accountmonitor/syncserver"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/cenk/backoff"
	"github.com/prometheus/client_golang/prometheus"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/sigmon"
)

func main() {
	var path string
	flag.StringVar(&path, "c", "", "config file")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stdout, "missing config file\nUsage:use '-c' option to specify the config file path")
		os.Exit(1)
	}
	conf, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stdout, "%s\n", err.Error())
		os.Exit(1)
	}
	logger := helpers.InitLoggerFromConfig(&conf.Logging, "accountmonitor")
	amClock := clock.NewClock()

	var alertDB db.AlertDB
	alertDB, err = sqldb.NewAlertSQLDB(conf.Db[config.AlertDbName], logger.Session("alert-db"))
	if err != nil {
		logger.Error("failed to connect alert database", err, lager.Data{"dbConfig": conf.Db[config.AlertDbName]})
		os.Exit(1)
	}
	defer alertDB.Close()

	var configDB db.AlertConfigDB
	configDB, err = sqldb.NewAlertConfigSQLDB(conf.Db[config.AlertDbName], logger.Session("alertconfig-db"))
	if err != nil {
		logger.Error("failed to connect alert-config database", err, lager.Data{"dbConfig": conf.Db[config.AlertDbName]})
		os.Exit(1)
	}
	defer configDB.Close()

	var accountDB db.AccountDB
	accountDB, err = sqldb.NewAccountSQLDB(conf.Db[config.AccountDbName], logger.Session("account-db"))
	if err != nil {
		logger.Error("failed to connect account database", err, lager.Data{"dbConfig": conf.Db[config.AccountDbName]})
		os.Exit(1)
	}
	defer accountDB.Close()

	httpStatusCollector := healthendpoint.NewHTTPStatusCollector("accountmonitor", "public")
	scanCollector := healthendpoint.NewScanCollector("accountmonitor", "monitor")
	promRegistry := prometheus.NewRegistry()
	healthendpoint.RegisterCollectors(promRegistry, []prometheus.Collector{
		healthendpoint.NewDatabaseStatusCollector("accountmonitor", "monitor", "alertDB", alertDB.(*sqldb.AlertSQLDB)),
		healthendpoint.NewDatabaseStatusCollector("accountmonitor", "monitor", "accountDB", accountDB.(*sqldb.AccountSQLDB)),
		scanCollector,
		httpStatusCollector,
	}, logger.Session("accountmonitor-prometheus"))

	viewCache := cache.New(conf.Cache.TTL)
	alertService := alert.NewService(logger, alertDB, viewCache, amClock)
	dashboardProvider := dashboard.NewProvider(logger, alertDB, viewCache, conf.Cache.SummaryTTL)

	healthClient := monitor.NewHealthClient(logger, conf.Monitor.ProviderURL, conf.Monitor.AccountTimeout)
	scanner := monitor.NewScanner(logger, amClock, accountDB, configDB, healthClient, alertService,
		newProviderBreaker(conf), scanCollector, conf.Monitor.BatchSize, conf.Monitor.BatchDelay, conf.Monitor.AccountTimeout)
	scanRunner := monitor.NewRunner(scanner, conf.Monitor.ScanInterval, amClock, logger.Session("scan-runner"), scanCollector)

	pruner := monitor.NewAlertDBPruner(alertDB, conf.Pruner.CutoffDuration, amClock, logger)
	pruneRunner := monitor.NewRunner(pruner, conf.Pruner.RefreshInterval, amClock, logger.Session("prune-runner"), nil)

	verifier := syncserver.NewJWTTokenVerifier(conf.Sync.TokenSecret)
	limiter := ratelimiter.DefaultRateLimiter(conf.Sync.RateLimit.MaxAmount, conf.Sync.RateLimit.ValidDuration,
		amClock, logger.Session("sync-rate-limiter"))

	httpServer, err := server.NewServer(logger.Session("http_server"), conf, alertService, dashboardProvider,
		configDB, verifier, limiter, httpStatusCollector)
	if err != nil {
		logger.Error("failed to create http server", err)
		os.Exit(1)
	}
	healthServer, err := healthendpoint.NewServer(logger.Session("health-server"), conf.Health.Port, promRegistry)
	if err != nil {
		logger.Error("failed to create health server", err)
		os.Exit(1)
	}

	members := grouper.Members{
		{Name: "scan-runner", Runner: scanRunner},
		{Name: "prune-runner", Runner: pruneRunner},
		{Name: "http_server", Runner: httpServer},
		{Name: "health_server", Runner: healthServer},
	}

	monitorProcess := ifrit.Invoke(sigmon.New(grouper.NewOrdered(os.Interrupt, members)))

	logger.Info("started")

	err = <-monitorProcess.Wait()
	if err != nil {
		logger.Error("exited-with-failure", err)
		os.Exit(1)
	}

	logger.Info("exited")
}

func newProviderBreaker(conf *config.Config) *circuit.Breaker {
	bf := backoff.NewExponentialBackOff()
	bf.InitialInterval = conf.CircuitBreaker.BackOffInitialInterval
	bf.MaxInterval = conf.CircuitBreaker.BackOffMaxInterval
	bf.MaxElapsedTime = 0
	bf.Reset()
	return circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    bf,
		ShouldTrip: circuit.ConsecutiveTripFunc(conf.CircuitBreaker.ConsecutiveFailureCount),
	})
}

func loadConfig(path string) (*config.Config, error) {
	configFileBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %s", path, err.Error())
	}

	conf, err := config.LoadConfig(configFileBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %s", path, err.Error())
	}

	err = conf.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate configuration: %s", err.Error())
	}
	return conf, nil
}
