package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/crypto/bcrypt"

	"github.com/hotspotvend/HotspotVend/app/models"
	"github.com/hotspotvend/HotspotVend/app/repository"
	"github.com/hotspotvend/HotspotVend/internal/pkg/actuator"
	"github.com/hotspotvend/HotspotVend/internal/pkg/cache"
	"github.com/hotspotvend/HotspotVend/internal/pkg/database"
	"github.com/hotspotvend/HotspotVend/internal/pkg/entitlement"
	"github.com/hotspotvend/HotspotVend/internal/pkg/env"
	"github.com/hotspotvend/HotspotVend/internal/pkg/ledgerarchive"
	"github.com/hotspotvend/HotspotVend/internal/pkg/payment"
	"github.com/hotspotvend/HotspotVend/internal/pkg/router"
	"github.com/hotspotvend/HotspotVend/internal/pkg/worker"
)

func main() {
	app, manager := NewApplication()

	// Listen in the background so the main goroutine can wait for a
	// shutdown signal and stop the workers before the process exits.
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000")))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		manager.Stop()
		log.Fatal(err)
	case sig := <-sigCh:
		log.Printf("Received %s, shutting down", sig)
		manager.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}

func NewApplication() (*fiber.App, *worker.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	factory := repository.GetGlobalFactory()

	if err := models.LoadSettings(database.GetDB()); err != nil {
		log.Printf("Failed to load portal settings, using defaults: %v", err)
	}

	// Entitlement service: charge gateways + network actuator + storage
	registry := payment.SetupRegistry(factory.GetVoucherRepository())
	svc := entitlement.NewServiceFromDB(database.GetDB(), registry, actuator.SetupActuator())

	// Background workers (expiry sweep, reconciliation, counter flush,
	// ledger archive)
	manager := worker.NewManager(svc, setupArchiver(factory))
	manager.Start()

	// Find the project root so the OpenAPI document is found whether the
	// binary runs from the repo root or from a container workdir.
	basePaths := []string{
		"./",
		"../../",
	}
	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: models.GetAppSettings().GetPortalName(),
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Authorizer: metricsAuthorizer,
	}), monitor.New())

	// SWAGGER / OPENAPI
	if basePath != "" {
		openAPICfg := swagger.Config{
			BasePath: "/docs/api/",
			FilePath: basePath + "public/docs/v1/openapi.yml",
			Path:     "v1",
		}
		app.Use(swagger.New(openAPICfg))
	} else {
		log.Print("public/docs not found, skipping OpenAPI route")
	}

	// ROUTER
	router.InstallRouter(app, svc)

	return app, manager
}

// metricsAuthorizer checks /metrics credentials against the bcrypt hash in
// METRICS_PASSWORD_HASH so the plaintext password never lives in the env.
func metricsAuthorizer(user, pass string) bool {
	if user != env.GetEnv("METRICS_USER", "admin") {
		return false
	}
	hash := env.GetEnv("METRICS_PASSWORD_HASH", "")
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}

// setupArchiver builds the S3 ledger archiver, or returns nil when object
// storage is not configured so the worker simply is not started.
func setupArchiver(factory *repository.Factory) worker.Archiver {
	cfg, err := ledgerarchive.LoadConfig()
	if err != nil {
		log.Printf("Ledger archive disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}

	archiver, err := ledgerarchive.NewArchiver(cfg, factory.GetPaymentRepository(), factory.GetSettingRepository())
	if err != nil {
		log.Printf("Ledger archive disabled: %v", err)
		return nil
	}
	return archiver
}
