// Package app wires configuration, storage, the backend client and services
// into one App shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/lanfund/internal/clients/lanfund"
	"github.com/bobmcallan/lanfund/internal/common"
	"github.com/bobmcallan/lanfund/internal/interfaces"
	"github.com/bobmcallan/lanfund/internal/services/ledger"
	"github.com/bobmcallan/lanfund/internal/services/portfolio"
	"github.com/bobmcallan/lanfund/internal/services/refresh"
	"github.com/bobmcallan/lanfund/internal/services/report"
	"github.com/bobmcallan/lanfund/internal/storage"
)

// App holds all initialized services and clients.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Clock            *common.Clock
	Storage          interfaces.StorageManager
	Backend          interfaces.FundBackend
	LedgerService    interfaces.LedgerService
	PortfolioService interfaces.PortfolioService
	RefreshService   interfaces.RefreshService
	ReportService    interfaces.ReportService
	StartupTime      time.Time

	refreshCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, LANFUND_CONFIG,
// lanfund.toml next to the binary, then config/lanfund.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("LANFUND_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "lanfund.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/lanfund.toml"
		}
	}
	return configPath
}

// NewApp loads configuration and initializes every service.
// configPath may be empty, in which case ResolveConfigPath decides.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return New(config, logger, storageManager, startupStart)
}

// New wires services over an already opened storage manager.
func New(config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager, startupTime time.Time) (*App, error) {
	loc, err := config.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	clock := common.NewClock(loc)

	backend := lanfund.NewClient(
		lanfund.WithBaseURL(config.Backend.BaseURL),
		lanfund.WithCredentials(config.Backend.Username, config.Backend.Password),
		lanfund.WithRateLimit(config.Backend.RateLimit),
		lanfund.WithTimeout(config.Backend.GetTimeout()),
		lanfund.WithLogger(logger),
	)
	if config.Backend.Username == "" {
		logger.Warn().Msg("Backend credentials not configured - writes will fail if the backend requires login")
	}

	ledgerService := ledger.NewService(storageManager.KeyValueStorage(), logger)
	portfolioService := portfolio.NewService(backend, ledgerService, logger,
		portfolio.WithGroup(config.Backend.Group),
		portfolio.WithClock(clock),
	)
	refreshService := refresh.NewService(portfolioService, backend, logger,
		refresh.WithInterval(config.Refresh.GetInterval()),
		refresh.WithPages(config.Refresh.Pages...),
	)
	reportService := report.NewService(logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Clock:            clock,
		Storage:          storageManager,
		Backend:          backend,
		LedgerService:    ledgerService,
		PortfolioService: portfolioService,
		RefreshService:   refreshService,
		ReportService:    reportService,
		StartupTime:      startupTime,
	}

	logger.Info().Dur("startup", time.Since(startupTime)).Msg("App initialized")

	return a, nil
}

// StartRefresh launches the background page refresher.
func (a *App) StartRefresh() {
	ctx, cancel := context.WithCancel(context.Background())
	a.refreshCancel = cancel
	a.RefreshService.Start(ctx)
}

// Close releases all resources held by the App.
// Shutdown order: stop refresher, close storage.
func (a *App) Close() {
	if a.refreshCancel != nil {
		a.RefreshService.Stop()
		a.refreshCancel()
		a.refreshCancel = nil
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}
