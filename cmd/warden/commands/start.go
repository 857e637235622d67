package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/agent/cloud"
	"github.com/teranos/warden/agent/monitor"
	"github.com/teranos/warden/agent/notify"
	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/agent/store"
	"github.com/teranos/warden/config"
	"github.com/teranos/warden/db"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/server"
	"github.com/teranos/warden/sym"
	"github.com/teranos/warden/version"
)

// StartCmd starts the warden daemon
var StartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the warden daemon",
	Long: `Start the warden daemon in foreground mode.

The daemon will:
- Serve the localhost API for submissions, queries, and the event stream
- Run queued jobs one at a time, capturing output under the base dir
- Track reported scalars and evaluate notification conditions
- Poll the cloud backend for remote commands when credentials exist
- Run until interrupted (Ctrl+C) or asked to stop, draining gracefully

A second daemon on the same port refuses to start; the port bind is the
single-instance guard.

Examples:
  warden start                # Start with human-readable logs
  warden start --json-logs    # Structured logs for machine consumption
  warden start -v             # More detail`,
	RunE: runStart,
}

var startJSONLogs bool

func init() {
	StartCmd.Flags().BoolVar(&startJSONLogs, "json-logs", false, "Emit structured JSON logs")
}

func runStart(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = logger.VerbosityInfo
	}
	if err := logger.InitializeWithVerbosity(startJSONLogs, verbosity); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Cleanup()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.EnsureBaseDir(); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.ServerPort()
	}

	// Audit database
	database, err := db.OpenWithMigrations(cfg.DatabasePath(), logger.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	st := store.New(database, logger.ComponentLogger("agent.store"))

	// Notifiers
	notifiers := notify.NewCollection(logger.ComponentLogger("agent.notify"))
	notifiers.SetSink(st.RecordNotification)
	if cfg.Notify.LoggingEnabled {
		notifiers.Register(notify.NewLoggingNotifier(logger.ComponentLogger("agent.notify")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cloud channel, only when credentials exist
	cloudClient := setupCloud(ctx, cfg, notifiers)

	// Scheduler
	sched := scheduler.New(notifiers, st, logger.ComponentLogger("agent.scheduler"))
	specs, err := config.LoadConditions(cfg.ConditionsPath())
	if err != nil {
		logger.Logger.Warnw("Failed to load conditions file",
			logger.FieldPath, cfg.ConditionsPath(),
			logger.FieldError, err)
	} else if len(specs) > 0 {
		sched.SetConditionSpecs(specs)
	}

	// External process monitor; an exited pid ends its job
	procmon := monitor.New(0, func(id uuid.UUID) {
		if err := sched.UnregisterExternalJob(id); err != nil {
			logger.Logger.Warnw("Failed to finish exited external job",
				logger.FieldJobID, id,
				logger.FieldError, err)
		}
	}, logger.ComponentLogger("agent.monitor"))

	// Remote command poller
	if cloudClient != nil {
		poller := cloud.NewTaskPoller(cloudClient.PopTasks, taskHandler(sched),
			cfg.CloudPollInterval(), logger.ComponentLogger("agent.cloud"))
		go poller.Run(ctx)
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	srv := server.New(sched, server.Options{
		Store:          st,
		Monitor:        procmon,
		AllowedOrigins: cfg.GetServerAllowedOrigins(),
		Logger:         logger.ComponentLogger("server"),
	})

	if !startJSONLogs {
		printStartupBanner(verbosity, port, cfg.AgentBaseDir(), cfg.DatabasePath(), cloudClient != nil)
	}
	logger.AddOpenSymbol(logger.Logger).Infow("Warden daemon starting",
		logger.FieldPort, port,
		logger.FieldVersion, version.Get().Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	// Wait for a shutdown trigger: signal, API stop request, or serve failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.AddCloseSymbol(logger.Logger).Infow("Signal received, shutting down",
			"signal", sig.String())
	case <-srv.StopRequested():
		logger.AddCloseSymbol(logger.Logger).Infow("Stop requested over API, shutting down")
	case err := <-errCh:
		return err
	}

	// Stop order: cloud poller first, then the server drains the scheduler
	// and the monitor before closing client connections.
	cancel()
	if err := srv.Stop(); err != nil {
		logger.Logger.Warnw("Server shutdown incomplete", logger.FieldError, err)
	}

	select {
	case <-errCh:
	case <-time.After(server.ShutdownTimeout):
		logger.Logger.Warnw("Serve loop did not return, exiting anyway")
	}

	logger.AddCloseSymbol(logger.Logger).Infow("Warden daemon stopped")
	return nil
}

// setupCloud wires the cloud notifier and returns the client for the task
// poller, or nil when no usable credentials exist. Failures here never block
// startup; the agent runs fine without the cloud channel.
func setupCloud(ctx context.Context, cfg *config.Config, notifiers *notify.Collection) *cloud.Client {
	if !cfg.Notify.CloudEnabled {
		return nil
	}
	creds, err := config.LoadCredentials(config.CredentialsPath())
	if err != nil {
		logger.Logger.Warnw("Failed to load credentials, cloud channel disabled",
			logger.FieldError, err)
		return nil
	}
	if !creds.HasToken() {
		return nil
	}

	baseURL := cfg.Cloud.BaseURL
	if creds.BaseURL != "" {
		baseURL = creds.BaseURL
	}
	if baseURL == "" {
		logger.Logger.Warnw("Credentials present but no cloud base URL configured, cloud channel disabled")
		return nil
	}

	log := logger.ComponentLogger("agent.cloud")
	tokens := cloud.NewTokenStore(baseURL, creds.RefreshToken, nil, log)
	client := cloud.NewClient(baseURL, tokens, log, cloud.Options{
		Timeout:             cfg.CloudTimeout(),
		UnauthorizedRetries: cfg.Cloud.RefreshAttempts,
		RetryDelay:          cfg.RefreshDelay(),
		RequestsPerMinute:   int(cfg.Cloud.RequestsPerSecond * 60),
	})
	notifiers.Register(notify.NewCloudNotifier(client.Post, client.UploadFile, log))

	// Re-login without a daemon restart: watch the credentials file and swap
	// the refresh token in place.
	if watcher, err := config.NewCredentialsWatcher(config.CredentialsPath()); err != nil {
		log.Warnw("Failed to watch credentials file", logger.FieldError, err)
	} else {
		watcher.OnReload(func(c *config.Credentials) error {
			tokens.SetRefreshToken(c.RefreshToken)
			return nil
		})
		watcher.Start()
		config.SetGlobalWatcher(watcher)
	}

	// Announce the agent; best effort
	go func() {
		announceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := client.NotifyAgentStart(announceCtx, version.Get().Version); err != nil {
			log.Warnw("Failed to announce agent start", logger.FieldError, err)
		}
	}()

	log.Infow(sym.Cloud+" Cloud channel enabled", logger.FieldAddress, baseURL)
	return client
}

// taskHandler executes remote commands popped from the cloud.
func taskHandler(sched *scheduler.Scheduler) cloud.TaskHandler {
	return func(ctx context.Context, task cloud.Task) error {
		switch task.Type {
		case cloud.TaskStopJob:
			id, err := sched.FindJobID(task.JobIdentifier)
			if err != nil {
				return err
			}
			sched.StopJob(id)
			return nil
		default:
			logger.Logger.Warnw("Unsupported remote task", "task", task.String())
			return nil
		}
	}
}
