package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docstore/docs"
	"docstore/internal/config"
	handlers "docstore/internal/http/handler"
	"docstore/internal/http/middleware"
	"docstore/internal/logging"
	"docstore/internal/model"
	"docstore/internal/otel"
	"docstore/internal/service"
)

// multipart framing on top of the largest accepted file
const bodyLimitSlack = 1 << 20

// @title Document Store API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc := logging.Location(cfg.TZLocation)
	log := logging.New(os.Stdout, cfg.LogLevel, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}

	registry, closeRegistry, err := openRegistry(ctx, cfg, logging.Component(log, "registry"))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.RegistryDriver).Msg("failed to open metadata registry")
	}
	defer closeRegistry()

	blobs, err := openBlobStore(cfg, logging.Component(log, "storage"))
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.BlobDriver).Msg("failed to open blob store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register service metrics")
	}
	docSvc := service.NewDocumentService(blobs, registry,
		service.WithLogger(log),
		service.WithMetrics(metrics),
		service.WithMaxUploadBytes(cfg.Storage.MaxUploadBytes),
	)

	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    int(model.MaxUploadBytes) + bodyLimitSlack,
	})

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(logging.Component(log, "http")))
	app.Use(otelfiber.Middleware())
	app.Use(promMiddleware.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	handlers.RegisterRoutes(app, registry, docSvc)

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("tracing shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("registry_driver", cfg.Storage.RegistryDriver).
		Str("blob_driver", cfg.Storage.BlobDriver).
		Msg("listening")

	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
