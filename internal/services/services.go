package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"beatpass-guard/internal/api/beatpass"
	"beatpass-guard/internal/config"
	"beatpass-guard/internal/core/bpmcolumn"
	"beatpass-guard/internal/core/dashboard"
	"beatpass-guard/internal/core/events"
	"beatpass-guard/internal/core/protection"
	"beatpass-guard/internal/interfaces"
	"beatpass-guard/internal/shared"
	"beatpass-guard/internal/store"
)

// ServiceContainer holds all application services
type ServiceContainer struct {
	Config           interfaces.ConfigService
	APIClient        interfaces.TrackAPI
	Pending          *PendingService
	Guard            *protection.Guard
	SubmitGate       *protection.SubmitGate
	Notifier         *shared.Notifier
	Logger           interfaces.LoggerService
	WarningCollector interfaces.WarningCollectorService
	Bus              *events.Bus
	Orchestrator     *protection.Orchestrator
	Dashboard        *dashboard.Dashboard
	Populator        *bpmcolumn.Populator

	closers []func() error
}

// NewServiceContainer creates a new service container with all services initialized
func NewServiceContainer(cfg *config.Config, httpClient *http.Client) (*ServiceContainer, error) {
	// Create logger first as other services may need it
	logger := NewConsoleLogger()
	logger.SetDebugMode(cfg.Debug)

	warningCollector := shared.NewWarningCollector(true)
	notifier := shared.NewNotifier(os.Stdout, cfg.NotificationDuration())
	bus := events.NewBus()

	client := beatpass.NewClient(beatpass.OptionsFromConfig(cfg), httpClient)

	pendingStore, err := store.Open(cfg.PendingStorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pending store: %w", err)
	}

	// One guard per process; the orchestrator and form submissions share it
	guard := protection.NewGuard()
	orchestrator := protection.NewOrchestrator(client, guard, pendingStore, notifier, logger, bus, protection.OptionsFromConfig(cfg))

	populatorOpts := bpmcolumn.Options{
		BatchSize:  cfg.BatchSize,
		BatchDelay: cfg.BatchDelay(),
	}
	if shared.IsTTY() {
		populatorOpts.Progress = os.Stderr
	}

	return &ServiceContainer{
		Config:           NewConfigService(),
		APIClient:        client,
		Pending:          NewPendingService(pendingStore, client, logger, warningCollector, protection.OptionsFromConfig(cfg)),
		Guard:            guard,
		SubmitGate:       protection.NewSubmitGate(guard),
		Notifier:         notifier,
		Logger:           logger,
		WarningCollector: warningCollector,
		Bus:              bus,
		Orchestrator:     orchestrator,
		Dashboard:        dashboard.New(client, dashboard.NewConsolePresenter(os.Stdout), guard, logger, warningCollector),
		Populator:        bpmcolumn.NewPopulator(client, warningCollector, logger, populatorOpts),
		closers:          []func() error{pendingStore.Close},
	}, nil
}

// Close releases resources held by the container
func (sc *ServiceContainer) Close() error {
	var firstErr error
	for _, c := range sc.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	sc.closers = nil
	return firstErr
}

// ConfigService implementation
type ConfigService struct{}

func NewConfigService() *ConfigService {
	return &ConfigService{}
}

// LoadConfig reads the JSON file, fills defaults and applies environment overrides
func (cs *ConfigService) LoadConfig(configFile string) (*config.Config, error) {
	cfg := &config.Config{}
	if err := config.LoadConfig(configFile, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	config.ApplyEnvOverrides(cfg)
	return cfg, nil
}

func (cs *ConfigService) SaveConfig(configFile string, cfg *config.Config) error {
	return config.SaveConfig(configFile, cfg)
}

func (cs *ConfigService) ValidateConfig(cfg *config.Config) error {
	return cfg.Validate()
}

func (cs *ConfigService) GetDefaultConfig() *config.Config {
	return config.GetDefaultConfig()
}

func (cs *ConfigService) EnsureConfigExists(configFile string) error {
	if !shared.FileExists(configFile) {
		defaultConfig := cs.GetDefaultConfig()
		return cs.SaveConfig(configFile, defaultConfig)
	}
	return nil
}

// PendingService manages the pending-submission buffer and replays it
type PendingService struct {
	store    interfaces.PendingStore
	api      interfaces.TrackAPI
	logger   interfaces.LoggerService
	warnings interfaces.WarningCollectorService
	retry    protection.Options
}

func NewPendingService(pendingStore interfaces.PendingStore, api interfaces.TrackAPI, logger interfaces.LoggerService, warnings interfaces.WarningCollectorService, retry protection.Options) *PendingService {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = shared.DefaultMaxRetries
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = time.Second
	}
	if retry.MaxDelay < retry.InitialDelay {
		retry.MaxDelay = retry.InitialDelay
	}
	return &PendingService{store: pendingStore, api: api, logger: logger, warnings: warnings, retry: retry}
}

// Get returns the buffered submission, or nil when the buffer is empty
func (ps *PendingService) Get(ctx context.Context) (*store.PendingSubmission, error) {
	return ps.store.Get(ctx)
}

// Clear empties the buffer
func (ps *PendingService) Clear(ctx context.Context) error {
	return ps.store.Clear(ctx)
}

// Retry re-submits the buffered payload and clears it once the server accepts it.
// It returns (nil, nil) when nothing is pending.
func (ps *PendingService) Retry(ctx context.Context) (*store.PendingSubmission, error) {
	pending, err := ps.store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending submission: %w", err)
	}
	if pending == nil {
		return nil, nil
	}

	ps.logger.Debug("Replaying pending submission %s for track %s", pending.ID, pending.Request.TrackID)
	err = shared.RetryWithBackoffForHTTPWithDebug(ctx, ps.retry.MaxRetries, ps.retry.InitialDelay, ps.retry.MaxDelay, func() error {
		return ps.api.SavePlaybackURL(ctx, pending.Request)
	}, ps.retry.Debug)
	if err != nil {
		ps.warnings.AddPendingBufferWarning(pending.Request.TrackID, err.Error())
		return pending, fmt.Errorf("failed to submit pending playback url: %w", err)
	}

	if err := ps.store.Clear(ctx); err != nil {
		return pending, fmt.Errorf("submitted but failed to clear pending buffer: %w", err)
	}
	return pending, nil
}

// ConsoleLogger implementation
type ConsoleLogger struct {
	debugMode bool
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{debugMode: false}
}

func (cl *ConsoleLogger) Info(message string, args ...interface{}) {
	shared.ColorInfo.Printf(message+"\n", args...)
}

func (cl *ConsoleLogger) Warning(message string, args ...interface{}) {
	shared.ColorWarning.Printf("⚠️ "+message+"\n", args...)
}

func (cl *ConsoleLogger) Error(message string, args ...interface{}) {
	shared.ColorError.Printf("❌ "+message+"\n", args...)
}

func (cl *ConsoleLogger) Debug(message string, args ...interface{}) {
	if !cl.debugMode {
		return
	}
	fmt.Printf("🐛 DEBUG: "+message+"\n", args...)
}

func (cl *ConsoleLogger) Success(message string, args ...interface{}) {
	shared.ColorSuccess.Printf("✅ "+message+"\n", args...)
}

func (cl *ConsoleLogger) SetDebugMode(enabled bool) {
	cl.debugMode = enabled
}
