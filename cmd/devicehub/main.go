// DeviceHub Core - Device Inventory and Lending Service
//
// This is the main entry point for the DeviceHub Core application.
// DeviceHub keeps an inventory of lab devices and tracks who holds them:
//   - Device CRUD with one image per device
//   - Username/password accounts with a server-side session cookie
//   - Take/return lending that keeps device and user records consistent
//
// Inventory events are pushed to WebSocket clients and, when enabled,
// published over MQTT and recorded in InfluxDB.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/devicehub/devicehub-core/migrations"

	"github.com/devicehub/devicehub-core/internal/api"
	"github.com/devicehub/devicehub-core/internal/auth"
	"github.com/devicehub/devicehub-core/internal/device"
	"github.com/devicehub/devicehub-core/internal/events"
	"github.com/devicehub/devicehub-core/internal/infrastructure/config"
	"github.com/devicehub/devicehub-core/internal/infrastructure/database"
	"github.com/devicehub/devicehub-core/internal/infrastructure/influxdb"
	"github.com/devicehub/devicehub-core/internal/infrastructure/logging"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mongodb"
	"github.com/devicehub/devicehub-core/internal/infrastructure/mqtt"
	"github.com/devicehub/devicehub-core/internal/lending"
	"github.com/devicehub/devicehub-core/internal/session"
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

// sessionSweepInterval is how often expired session records are removed.
const sessionSweepInterval = 10 * time.Minute

// Schema maintenance commands selected by flags.
const (
	migrateStatusCmd = "status"
	migrateDownCmd   = "down"
)

func main() {
	migrateStatus := flag.Bool("migrate-status", false, "print applied and pending SQLite migrations and exit")
	migrateDown := flag.Bool("migrate-down", false, "revert the latest SQLite migration and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch {
	case *migrateStatus:
		err = runMigrate(ctx, migrateStatusCmd, os.Stdout)
	case *migrateDown:
		err = runMigrate(ctx, migrateDownCmd, os.Stdout)
	default:
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// stores groups the repositories backing the service, whichever driver
// provides them.
type stores struct {
	devices  device.Repository
	images   device.ImageRepository
	users    auth.UserRepository
	sessions session.Repository
	health   api.HealthChecker
	close    func() error
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DeviceHub Core",
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

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database", "driver", cfg.Database.Driver)
		if closeErr := st.close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	checks := map[string]api.HealthChecker{"database": st.health}

	var sinks []events.Sink

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		sinks = append(sinks, events.NewMQTTSink(mqttClient, log))
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		sinks = append(sinks, events.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	fanout := events.NewFanout(log, append(sinks, hub)...)
	defer fanout.Close()

	registry := device.NewRegistry(st.devices, st.images, fanout)
	registry.SetLogger(log)

	lendingSvc := lending.NewService(st.devices, st.users, fanout)
	lendingSvc.SetLogger(log)

	sessionStore := session.NewStore(st.sessions, session.OptionsFromConfig(cfg.Session))
	go sweepSessions(ctx, sessionStore, log)

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Session:  cfg.Session,
		Logger:   log,
		Registry: registry,
		Lending:  lendingSvc,
		Users:    st.users,
		Sessions: sessionStore,
		Hub:      hub,
		Checks:   checks,
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

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, event fanout, InfluxDB, MQTT, database.

	log.Info("DeviceHub Core stopped")
	return nil
}

// openStores connects the configured persistence backend and builds the
// repositories on top of it.
func openStores(ctx context.Context, cfg *config.Config, log *logging.Logger) (*stores, error) {
	switch cfg.Database.Driver {
	case config.DriverMongoDB:
		client, err := mongodb.Connect(ctx, cfg.Database.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to MongoDB: %w", err)
		}
		if err := client.EnsureIndexes(ctx); err != nil {
			client.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("creating MongoDB indexes: %w", err)
		}
		log.Info("database connected",
			"driver", config.DriverMongoDB,
			"database", cfg.Database.MongoDB.Database,
		)

		return &stores{
			devices:  device.NewMongoRepository(client.Collection(mongodb.CollectionDevices)),
			images:   device.NewMongoImageRepository(client.Collection(mongodb.CollectionImages)),
			users:    auth.NewMongoUserRepository(client.Collection(mongodb.CollectionUsers)),
			sessions: session.NewMongoRepository(client.Collection(mongodb.CollectionSessions)),
			health:   client,
			close:    client.Close,
		}, nil

	default:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.SQLite.Path,
			WALMode:     cfg.Database.SQLite.WALMode,
			BusyTimeout: cfg.Database.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		log.Info("database connected",
			"driver", config.DriverSQLite,
			"path", db.Path(),
		)

		if err := db.Migrate(ctx); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database migrations complete")

		return &stores{
			devices:  device.NewSQLiteRepository(db.DB),
			images:   device.NewSQLiteImageRepository(db.DB),
			users:    auth.NewUserRepository(db.DB),
			sessions: session.NewSQLiteRepository(db.DB),
			health:   db,
			close:    db.Close,
		}, nil
	}
}

// runMigrate runs a schema maintenance command against the configured
// SQLite database and writes a report to out. MongoDB has no schema to
// migrate, so the commands refuse to run against it.
func runMigrate(ctx context.Context, command string, out io.Writer) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		return errors.New("migrations only apply to the sqlite driver")
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.SQLite.Path,
		WALMode:     cfg.Database.SQLite.WALMode,
		BusyTimeout: cfg.Database.SQLite.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	switch command {
	case migrateStatusCmd:
		status, err := db.MigrationStatus(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		fmt.Fprintf(out, "database: %s\n", db.Path())
		for _, a := range status.Applied {
			fmt.Fprintf(out, "applied  %s  %s\n", a.Version, a.AppliedAt.Format(time.RFC3339))
		}
		for _, m := range status.Pending {
			fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
		}
		return nil

	case migrateDownCmd:
		reverted, err := db.MigrateDown(ctx)
		if err != nil {
			return fmt.Errorf("reverting migration: %w", err)
		}
		if reverted == nil {
			fmt.Fprintln(out, "nothing to revert")
			return nil
		}
		fmt.Fprintf(out, "reverted %s  %s\n", reverted.Version, reverted.Name)
		return nil

	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}

// healthCheck verifies every backing connection is healthy before the API
// starts serving.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// sweepSessions periodically deletes expired session records until ctx is done.
func sweepSessions(ctx context.Context, store *session.Store, log *logging.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteExpired(ctx)
			if err != nil {
				log.Warn("deleting expired sessions failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("expired sessions deleted", "count", n)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses DEVICEHUB_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DEVICEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
