package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"recon-engine/core/config"
	"recon-engine/core/database"
	"recon-engine/core/loader"
	"recon-engine/core/logger"
	"recon-engine/core/middleware/auth"
	"recon-engine/core/middleware/rayid"
	"recon-engine/core/recon"
	"recon-engine/core/storage"

	"recon-engine/feature/history"
	"recon-engine/feature/reconciliation"
	"recon-engine/feature/reports"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (Optional)
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed, run history will not be persisted", zap.Error(err))
		} else {
			db = conn
			logg.Info("Connected to history database")
		}

		// 4. Initialize Storage (Optional)
		var store storage.Client
		if client, err := storage.NewClient(cfg.Storage); err != nil {
			logg.Warn("Storage client creation failed, report archiving disabled", zap.Error(err))
		} else {
			store = client
		}

		// 5. Initialize Engine with configured policies
		engine := recon.NewEngine(logg)
		if err := cfg.Recon.Apply(engine); err != nil {
			logg.Fatal("Invalid policy configuration", zap.Error(err))
		}
		engine.Subscribe(func(engineID, message string) {
			logg.Debug("Engine event", zap.String("engine", engineID), zap.String("event", message))
		})

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We log our own startup message
		})

		// Middleware Registration
		// RayID must be first to trace everything
		app.Use(rayid.New())

		// Logging Middleware (Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Auth (Protect API)
		app.Use(auth.New(cfg.Server.ApiKey))

		// 7. Register and Load Features
		reconFeature := reconciliation.NewFeature(engine, logg)

		mgr := loader.NewManager(logg)
		mgr.Register(reconFeature)
		mgr.Register(history.NewFeature(db, engine, logg))
		mgr.Register(reports.NewFeature(reconFeature.Service(), store, cfg.Storage.Bucket, logg))

		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
		engine.Close()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
