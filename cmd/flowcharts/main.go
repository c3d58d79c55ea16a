package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/flowcharts/internal/config"
	"github.com/saltyorg/flowcharts/internal/database"
	"github.com/saltyorg/flowcharts/internal/logging"
	"github.com/saltyorg/flowcharts/internal/maintenance"
	"github.com/saltyorg/flowcharts/internal/web"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultDBPath = "./flowcharts.db"

// CLI flags
var (
	port             int
	bind             string
	allowSubnet      string
	dbPath           string
	logFile          string
	verbosity        int
	optimizeSchedule string

	// Timeout flags (advanced)
	readTimeout     time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
)

func main() {
	// FLOWCHARTS_* environment settings provide defaults; flags override them
	settings := config.NewLoader(config.NewEnvSettings())

	rootCmd := &cobra.Command{
		Use:   "flowcharts",
		Short: "Flowcharts - flowchart document storage server",
		Long:  `Flowcharts stores named flowchart documents as JSON in a local SQLite file and serves them over a small HTTP API.`,
		RunE:  run,
	}

	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", defaultDBPath, "SQLite database path (or set DB_PATH env var)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: flowcharts.log next to the database)")

	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (default 5000, or set PORT env var)")
	rootCmd.Flags().StringVarP(&bind, "bind", "b", "0.0.0.0", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	rootCmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")
	rootCmd.Flags().StringVar(&optimizeSchedule, "optimize-schedule",
		settings.String("maintenance.optimize_schedule", maintenance.DefaultSchedule),
		"Cron schedule for PRAGMA optimize (empty to disable)")

	// Advanced timeout flags
	defaults := config.DefaultTimeoutConfig()
	rootCmd.Flags().DurationVar(&readTimeout, "read-timeout",
		settings.Duration("server.read_timeout", defaults.ServerRead), "Maximum time to read a request")
	rootCmd.Flags().DurationVar(&idleTimeout, "idle-timeout",
		settings.Duration("server.idle_timeout", defaults.ServerIdle), "Keep-alive idle timeout")
	rootCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout",
		settings.Duration("server.shutdown_timeout", defaults.Shutdown), "Time allowed for in-flight requests on shutdown")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("flowcharts %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "vacuum",
		Short: "Rebuild the database file to reclaim space, then exit",
		RunE:  runVacuum,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveDBPath applies the DB_PATH env var when the flag was left at its default
func resolveDBPath() {
	if dbPath == defaultDBPath {
		if envDB := os.Getenv("DB_PATH"); envDB != "" {
			dbPath = envDB
		}
	}
}

// setupLogging installs the global logger. The returned closer flushes the log
// file and may be nil.
func setupLogging() io.Closer {
	return logging.Setup(logging.Options{
		Verbosity: verbosity,
		FilePath:  logFile,
		DBPath:    dbPath,
	}, config.NewLoader(config.NewEnvSettings()))
}

// openDatabase opens the database file and makes sure the schema exists
func openDatabase(ctx context.Context) (*database.DB, error) {
	db, err := database.New(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func run(cmd *cobra.Command, args []string) error {
	// Check for PORT env var if flag not set
	if port == 0 {
		if envPort := os.Getenv("PORT"); envPort != "" {
			if _, err := fmt.Sscanf(envPort, "%d", &port); err != nil {
				return fmt.Errorf("invalid PORT environment variable %q: %w", envPort, err)
			}
		} else {
			port = 5000
		}
	}
	resolveDBPath()

	if bind != "" {
		if ip := net.ParseIP(bind); ip == nil {
			return fmt.Errorf("invalid bind address: %s", bind)
		}
	}

	var allowedNet *net.IPNet
	if allowSubnet != "" {
		_, parsedNet, err := net.ParseCIDR(allowSubnet)
		if err != nil {
			return fmt.Errorf("invalid allow-subnet CIDR: %s", allowSubnet)
		}
		allowedNet = parsedNet
	}

	if logCloser := setupLogging(); logCloser != nil {
		defer logCloser.Close()
	}

	config.SetGlobalTimeouts(&config.TimeoutConfig{
		ServerRead: readTimeout,
		ServerIdle: idleTimeout,
		Shutdown:   shutdownTimeout,
	})

	log.Info().
		Str("version", version).
		Int("port", port).
		Str("bind", bind).
		Str("allow_subnet", allowSubnet).
		Str("database", dbPath).
		Msg("Starting Flowcharts")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	scheduler := maintenance.New(db, optimizeSchedule)
	if started, err := scheduler.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start database maintenance")
	} else if !started {
		log.Debug().Msg("Database maintenance disabled")
	} else {
		log.Debug().Time("next_run", scheduler.NextRun()).Msg("Next database optimization")
	}
	defer scheduler.Stop()

	server := web.NewServer(db, port, bind, allowedNet)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Server error")
		return err
	}

	log.Info().Msg("Flowcharts stopped")
	return nil
}

func runVacuum(cmd *cobra.Command, args []string) error {
	resolveDBPath()
	if logCloser := setupLogging(); logCloser != nil {
		defer logCloser.Close()
	}

	ctx := context.Background()
	db, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	if err := db.Vacuum(ctx); err != nil {
		return err
	}

	log.Info().Str("database", db.Path()).Dur("duration", time.Since(start)).Msg("Database vacuumed")
	return nil
}
