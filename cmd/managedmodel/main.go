// managedmodel serves a SQLite-backed entity store.
//
// It opens (or creates from the embedded template) the database, brings the
// schema up to date, registers the example entities, and exposes them over
// the admin HTTP API. Entity changes are streamed to WebSocket clients and,
// when enabled, published to MQTT. Every change is also kept in the
// change_log table. Per-statement timings go to InfluxDB
// when enabled.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/quells/managedmodel/internal/api"
	"github.com/quells/managedmodel/internal/audit"
	"github.com/quells/managedmodel/internal/controller"
	"github.com/quells/managedmodel/internal/example"
	"github.com/quells/managedmodel/internal/infrastructure/config"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/internal/infrastructure/influxdb"
	"github.com/quells/managedmodel/internal/infrastructure/logging"
	"github.com/quells/managedmodel/internal/infrastructure/mqtt"
	"github.com/quells/managedmodel/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// configEnv names the environment variable holding the config file path.
// When unset, defaults and MANAGEDMODEL_* overrides are used.
const configEnv = "MANAGEDMODEL_CONFIG"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	godotenv.Load() //nolint:errcheck // .env is optional

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting managedmodel",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := os.Getenv(configEnv)
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Close() //nolint:errcheck // Best-effort on shutdown

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	db.SetLogger(log.With("component", "database"))
	log.Info("database opened", "path", db.Path())

	applied, err := db.Migrate(ctx, example.Schema1())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	schemaVersion, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database migrations complete", "applied", applied, "schema_version", schemaVersion)

	var publishers []controller.Option

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
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		publishers = append(publishers, controller.WithPublisher(mqttClient))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			db.SetMetrics(nil)
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		db.SetMetrics(influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	changes := audit.NewRepository(db)
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	opts := append(publishers,
		controller.WithPublisher(changes),
		controller.WithPublisher(hub),
		controller.WithLogger(log.With("component", "controller")),
	)
	ctrl := controller.New(db, opts...)
	for _, newFn := range example.Entities() {
		if regErr := ctrl.Register(newFn); regErr != nil {
			return fmt.Errorf("registering entity: %w", regErr)
		}
	}
	log.Info("entities registered", "tables", ctrl.Tables())

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			DB:      db,
			Catalog: ctrl,
			Changes: changes,
			Hub:     hub,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openDatabase opens the configured database, seeding it from the embedded
// blank template or from database.template when that is set.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	var (
		template     fs.FS = migrations.Template()
		templateName       = migrations.TemplateName
	)
	if cfg.Database.Template != "" {
		template = os.DirFS(filepath.Dir(cfg.Database.Template))
		templateName = filepath.Base(cfg.Database.Template)
	}

	db, err := database.Open(ctx, database.Config{
		Path:            cfg.Database.Path,
		WALMode:         cfg.Database.WALMode,
		BusyTimeout:     cfg.Database.BusyTimeout,
		QueueSize:       cfg.Database.QueueSize,
		Template:        template,
		TemplateName:    templateName,
		CompactOnClose:  cfg.Compaction.OnClose,
		CompactSchedule: cfg.Compaction.Schedule,
	})
	if err != nil {
		if db != nil {
			db.Close() //nolint:errcheck // Already failing
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}
