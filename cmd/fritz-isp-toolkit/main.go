package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paketb0te/fritz-isp-toolkit/internal/config"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/analyzer"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/connectivity"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/fritz"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/logger"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/logstore"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/publisher"
	"github.com/paketb0te/fritz-isp-toolkit/pkg/scanner"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("fritz-isp-toolkit failed")
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := initializeConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := verifyRouters(cfg); err != nil {
		return err
	}

	store, err := initializeStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Warn("Could not close log store")
		}
	}()

	scan, err := initializeScanner(cfg, store)
	if err != nil {
		return err
	}

	publishers, err := initializePublishers(cfg)
	if err != nil {
		return err
	}

	results, err := scan.ScanAll(ctx, cfg.RouterAddresses)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	for _, result := range results {
		if err := publisher.PublishAll(result, publishers); err != nil {
			return fmt.Errorf("publishing results for %s: %w", result.RouterAddress, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"routers":    len(results),
		"publishers": len(publishers),
	}).Info("ISP toolkit run completed")
	return nil
}

func initializeConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// verifyRouters refuses to start a scan cycle when any configured
// router is unreachable.
func verifyRouters(cfg *config.Config) error {
	for _, address := range cfg.RouterAddresses {
		checker := connectivity.NewChecker(connectivity.Config{
			Address: address,
			Port:    cfg.RouterPort,
			Timeout: cfg.RequestTimeout,
		})
		if err := checker.VerifyConnectivity(); err != nil {
			return err
		}
	}
	return nil
}

func initializeStore(cfg *config.Config) (logstore.Store, error) {
	switch cfg.LogStore {
	case "sqlite":
		return logstore.OpenSQLiteStore(cfg.SQLitePath)
	default:
		return logstore.NewFileStore(cfg.LogDir), nil
	}
}

func initializeScanner(cfg *config.Config, store logstore.Store) (*scanner.Scanner, error) {
	an, err := initializeAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	factory := func(address string) scanner.DeviceClient {
		return fritz.NewClient(address, cfg.RouterUsername, cfg.RouterPassword,
			fritz.WithPort(cfg.RouterPort),
			fritz.WithTimeout(time.Duration(cfg.RequestTimeout)*time.Second),
		)
	}
	return scanner.NewScanner(factory, store, an, cfg.ConcurrentScans), nil
}

func initializeAnalyzer(cfg *config.Config) (*analyzer.Analyzer, error) {
	if cfg.RulesFile == "" {
		return analyzer.New(), nil
	}
	return analyzer.Load(cfg.RulesFile)
}

func initializePublishers(cfg *config.Config) ([]publisher.Publisher, error) {
	factory := publisher.NewPublisherFactory()
	settings := cfg.PublisherSettings()

	publishers := make([]publisher.Publisher, 0, len(cfg.Notifiers))
	for _, name := range cfg.Notifiers {
		p, err := factory.CreatePublisher(name, settings)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}
	return publishers, nil
}
