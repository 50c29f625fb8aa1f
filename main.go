package main

import (
    "flag"
    "fmt"
    "os"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/sirupsen/logrus"

    "measure_worker/estimator"
)

var logger = logrus.New()

func init() {
    logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
    logger.SetOutput(os.Stdout)
    setLogLevel(os.Getenv("LOG_LEVEL"))
}

// setLogLevel falls back to info for empty or unknown levels.
func setLogLevel(level string) {
    lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
    if err != nil {
        lvl = logrus.InfoLevel
    }
    logger.SetLevel(lvl)
}

func main() {
    // Load environment from .env for local development.
    _ = godotenv.Load(".env")
    setLogLevel(os.Getenv("LOG_LEVEL"))

    var requestID int64
    var service, migrateOnly bool
    var configPath, metricsAddr string
    flag.Int64Var(&requestID, "estimate-request-id", 0, "ID of estimate_requests row to process (omit to run service)")
    flag.BoolVar(&service, "service", false, "Run as background service listening to Sidekiq queue")
    flag.StringVar(&configPath, "config", os.Getenv("ESTIMATOR_CONFIG"), "YAML file overriding estimator defaults")
    flag.BoolVar(&migrateOnly, "migrate", false, "Apply database migrations and exit")
    flag.StringVar(&metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "Serve Prometheus metrics on this address")
    flag.Parse()

    driver, dsn, err := driverAndDSNFromEnv()
    if err != nil {
        logger.WithError(err).Fatal("database config error")
    }
    s, err := openStore(driver, dsn)
    if err != nil {
        logger.WithError(err).Fatal("connect error")
    }
    defer s.db.Close()
    if err := s.db.Ping(); err != nil {
        logger.WithError(err).Fatal("database not reachable")
    }

    if migrateOnly || driver == driverSQLite {
        if err := s.migrateUp(); err != nil {
            logger.WithError(err).Fatal("migrate failed")
        }
        if migrateOnly {
            version, dirty, _ := s.migrationVersion()
            logger.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("migrations applied")
            return
        }
    }

    cfg, err := estimator.LoadConfig(configPath)
    if err != nil {
        logger.WithError(err).Fatal("estimator config error")
    }

    if metricsAddr != "" {
        serveMetrics(metricsAddr)
    }

    if service || (requestID == 0 && flag.NArg() == 0) {
        if err := runService(s, cfg); err != nil {
            logger.WithError(err).Fatal("service stopped")
        }
        return
    }

    if requestID == 0 && flag.NArg() > 0 {
        var v int64
        if _, err := fmt.Sscan(flag.Arg(0), &v); err == nil {
            requestID = v
        }
    }
    if requestID == 0 {
        logger.Fatal("missing --estimate-request-id <id> argument or --service")
    }

    if err := processEstimateRequest(s, cfg, requestID); err != nil {
        logger.WithError(err).Fatal("processing failed")
    }
}
