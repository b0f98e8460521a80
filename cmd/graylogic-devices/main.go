// Gray Logic Devices - device inventory service
//
// This is the main entry point for the device service. It serves the
// device REST API, streams changes over WebSocket and, when enabled,
// mirrors them to MQTT and InfluxDB.
//
// Usage:
//
//	graylogic-devices                       run the service
//	graylogic-devices token <role> <name>   print an access token
//	graylogic-devices migrate status        list applied and pending migrations
//	graylogic-devices migrate down          roll back the latest migration
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-devices/migrations"

	"github.com/nerrad567/gray-logic-devices/internal/api"
	"github.com/nerrad567/gray-logic-devices/internal/audit"
	"github.com/nerrad567/gray-logic-devices/internal/auth"
	"github.com/nerrad567/gray-logic-devices/internal/device"
	"github.com/nerrad567/gray-logic-devices/internal/events"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devices/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "token":
			err = printToken(os.Stdout, os.Args[2:])
		case "migrate":
			err = runMigrate(context.Background(), os.Stdout, os.Args[2:])
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Devices",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	history := device.NewSQLiteStateHistoryRepository(db.DB)
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB), history, nil)
	registry.SetLogger(log.With("component", "registry"))
	registry.SetPageLimits(cfg.Devices.DefaultPageSize, cfg.Devices.MaxPageSize)

	// Audit trail, drained before the database closes
	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo)
	recorder.SetLogger(log.With("component", "audit"))
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		recorder.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
	}()

	checks := map[string]api.HealthChecker{"database": db}
	publishers := events.Fanout{recorder}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, listener, mqttErr := startMQTT(cfg, registry, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			if stopErr := listener.Stop(); stopErr != nil {
				log.Warn("error stopping command listener", "error", stopErr)
			}
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		checks["mqtt"] = mqttClient
		publishers = append(publishers, events.NewMQTTPublisher(mqttClient, byte(cfg.MQTT.QoS)))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		registry.SetStateRecorder(influxClient)
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// WebSocket hub, run for the lifetime of the process
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	publishers = append(publishers, hub)
	registry.SetEventPublisher(publishers)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.With("component", "api"),
		Devices:  registry,
		Hub:      hub,
		Checks:   checks,
		Stats:    db,
		Audit:    auditRepo,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	go pruneHistoryLoop(ctx, history, cfg.GetHistoryRetention(), cfg.GetPruneInterval(), log)

	log.Info("initialisation complete, waiting for shutdown signal",
		"address", server.Addr(),
		"auth_enabled", cfg.Security.AuthEnabled,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, hub, InfluxDB, MQTT, audit, database.

	log.Info("Gray Logic Devices stopped")
	return nil
}

// startMQTT connects to the broker and starts the state command listener.
func startMQTT(cfg *config.Config, registry *device.Registry, log *logging.Logger) (*mqtt.Client, *events.CommandListener, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.With("component", "mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	listener := events.NewCommandListener(client, registry, byte(cfg.MQTT.QoS))
	listener.SetLogger(log.With("component", "commands"))
	if err := listener.Start(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("starting command listener: %w", err)
	}
	return client, listener, nil
}

// historyPruner deletes old state history.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// pruneHistoryLoop prunes state history older than retention every interval
// until ctx is cancelled. A zero retention disables pruning.
func pruneHistoryLoop(ctx context.Context, pruner historyPruner, retention, interval time.Duration, log *logging.Logger) {
	if retention <= 0 || interval <= 0 {
		log.Info("state history pruning disabled")
		return
	}

	prune := func() {
		deleted, err := pruner.PruneHistory(ctx, retention)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn("pruning state history failed", "error", err)
			}
			return
		}
		if deleted > 0 {
			log.Info("pruned state history", "deleted", deleted, "retention", retention.String())
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// printToken writes a signed access token for the given role and subject.
// The secret and lifetime come from the loaded configuration.
func printToken(w io.Writer, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: graylogic-devices token <role> <subject>")
	}
	role, err := auth.ParseRole(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return fmt.Errorf("security.jwt.secret is not set")
	}

	ttl := time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.GenerateAccessToken(args[1], role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(w, token)
	return nil
}

// runMigrate handles "migrate status" and "migrate down" against the
// configured database.
func runMigrate(ctx context.Context, w io.Writer, args []string) error {
	if len(args) != 1 || (args[0] != "status" && args[0] != "down") {
		return fmt.Errorf("usage: graylogic-devices migrate status|down")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-only or committed by now

	if args[0] == "down" {
		m, err := db.Rollback(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Fprintln(w, "no migrations applied")
			return nil
		}
		fmt.Fprintf(w, "rolled back %s %s\n", m.Version, m.Name)
		return nil
	}

	status, err := db.Status(ctx)
	if err != nil {
		return err
	}
	for _, r := range status.Applied {
		fmt.Fprintf(w, "applied  %s  %s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
