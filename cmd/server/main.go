package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"altessa/internal/auth"
	"altessa/internal/catalog"
	"altessa/internal/config"
	"altessa/internal/contact"
	"altessa/internal/database"
	"altessa/internal/events"
	"altessa/internal/gallery"
	"altessa/internal/live"
	"altessa/internal/logger"
	"altessa/internal/media"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var startTime = time.Now()

func main() {
	// Load .env file in development
	var envErr error
	if os.Getenv("APP_ENV") != "production" {
		envErr = godotenv.Load()
	}

	cfg := config.Load()

	log := logger.Must(cfg.App.Env, cfg.App.Debug)
	defer log.Sync()
	if envErr != nil {
		log.Debug("no .env file found")
	}

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connections
	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	redisClient, err := database.NewRedisConnection(cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	minioClient, err := database.NewMinIOConnection(ctx, cfg.MinIO, log)
	if err != nil {
		log.Fatal("failed to connect to MinIO", zap.Error(err))
	}

	// Events: log, live websocket feed and optionally Kafka
	hub := live.NewHub(log.Named("live"))
	go hub.Run(ctx)

	publisher := events.Fanout{events.NewLogPublisher(log.Named("events")), hub}
	if cfg.Kafka.Enabled {
		publisher = append(publisher, events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log.Named("kafka")))
		log.Info("publishing catalog events to kafka", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	// Media
	objectStore := media.NewMinIOStore(minioClient)
	renderer := media.NewRenderer(objectStore, cfg.MinIO.BucketRenders, log.Named("render"))
	uploader := media.NewUploader(objectStore, cfg.MinIO.BucketMedia, cfg.App.PublicURL, cfg.MinIO.MaxUploadBytes, log.Named("upload"))
	mediaHandler := media.NewHandler(objectStore, renderer, uploader, log.Named("media"), true, cfg.MinIO.BucketMedia)

	// Catalog
	catalogService := catalog.NewService(
		catalog.NewPostgresStore(db),
		catalog.NewRedisCache(redisClient),
		publisher,
		uploader,
		log.Named("catalog"),
		catalog.Options{
			PageSize:     cfg.Catalog.PageSize,
			MaxPageSize:  cfg.Catalog.MaxPageSize,
			RelatedLimit: cfg.Catalog.RelatedLimit,
			CacheTTL:     cfg.Catalog.CacheTTL,
			Lens: gallery.LensConfig{
				ZoomScale: cfg.Gallery.ZoomScale,
				LensSize:  cfg.Gallery.LensSize,
			},
		},
	)
	catalogHandler := catalog.NewHandler(catalogService, log.Named("catalog"))

	// Auth
	jwtService := auth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenDuration,
		cfg.JWT.RefreshTokenDuration,
	)
	authService := auth.NewService(
		auth.NewPostgresUserStore(db),
		auth.NewSessionStore(redisClient),
		auth.NewRedisThrottle(redisClient),
		jwtService,
		log.Named("auth"),
		auth.ServiceOptions{
			AdminEmail:  cfg.Admin.Email,
			MaxAttempts: cfg.Admin.LoginAttempts,
			Window:      cfg.Admin.LoginWindow,
		},
	)
	authHandler := auth.NewAuthHandler(authService, log.Named("auth"))

	// Contact
	var mailer contact.Mailer = contact.NewLogMailer(log.Named("mail"))
	if cfg.Mail.Provider == "resend" {
		mailer = contact.NewResendMailer(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.SendTimeout)
	}
	contactService := contact.NewService(mailer, log.Named("contact"), contact.Options{
		From:     cfg.Mail.From,
		To:       cfg.Mail.To,
		LogoPath: cfg.Mail.LogoPath,
	})
	contactHandler := contact.NewHandler(contactService,
		contact.Links(cfg.Social.WhatsAppPhone, cfg.Social.WhatsAppMessage, cfg.Social.Instagram))

	liveHandler := live.NewHandler(hub, live.NewRedisPresence(redisClient, 0), log.Named("live"))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Altessa",
		ServerHeader: "Altessa",
		ErrorHandler: newErrorHandler(log, cfg.App.Env),
		BodyLimit:    int(cfg.MinIO.MaxUploadBytes) * 4,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		hctx, hcancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer hcancel()

		if err := db.PingContext(hctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "Database connection failed",
			})
		}

		if err := redisClient.Ping(hctx).Err(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "Redis connection failed",
			})
		}

		if ok, err := minioClient.BucketExists(hctx, cfg.MinIO.BucketMedia); err != nil || !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  "Object storage unavailable",
			})
		}

		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": cfg.App.Version,
			"uptime":  time.Since(startTime).String(),
			"services": fiber.Map{
				"postgres": "connected",
				"redis":    "connected",
				"minio":    "connected",
				"kafka":    cfg.Kafka.Enabled,
			},
		})
	})

	// Public storage and image rendering
	app.Get("/storage/v1/object/public/:bucket/*", mediaHandler.ServeObject)
	app.Get("/storage/v1/render/image/public/:bucket/*", mediaHandler.RenderImage)

	// Live catalog feed
	app.Get("/ws/catalog", liveHandler.Upgrade, liveHandler.Serve())

	// API routes
	api := app.Group("/api/v1")

	api.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Altessa API v1",
			"status":  "operational",
		})
	})

	// Storefront (public)
	api.Get("/products", catalogHandler.ListProducts)
	api.Get("/products/:id", catalogHandler.GetProduct)
	api.Get("/products/:id/gallery", catalogHandler.GetGallery)
	api.Get("/categories", catalogHandler.ListCategories)
	api.Get("/subcategories", catalogHandler.ListSubcategories)
	api.Post("/gallery/lens", catalogHandler.Lens)
	api.Post("/contact", contactHandler.Submit)
	api.Get("/social", contactHandler.Social)
	api.Get("/live/stats", liveHandler.Stats)

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Get("/me", auth.AuthMiddleware(jwtService), authHandler.Me)

	// Admin
	requireAdmin := []fiber.Handler{auth.AuthMiddleware(jwtService), auth.RequireAdmin(cfg.Admin.Email)}

	api.Post("/revalidate", append(requireAdmin, catalogHandler.Revalidate)...)
	api.Get("/revalidate", append(requireAdmin, catalogHandler.Revalidate)...)

	admin := api.Group("/admin", requireAdmin...)
	admin.Post("/products", catalogHandler.CreateProduct)
	admin.Put("/products/:id", catalogHandler.UpdateProduct)
	admin.Delete("/products/:id", catalogHandler.DeleteProduct)
	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/subcategories", catalogHandler.CreateSubcategory)
	admin.Delete("/subcategories/:id", catalogHandler.DeleteSubcategory)
	admin.Post("/media", mediaHandler.Upload)
	admin.Delete("/media", mediaHandler.Delete)

	// Start server with graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%s", cfg.App.Port)
		log.Info("server starting",
			zap.String("addr", addr),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
		)

		if err := app.Listen(addr); err != nil {
			log.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	cancel()
	<-hub.Done()

	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		log.Warn("failed to close event publishers", zap.Error(err))
	}
	log.Info("server stopped")
}

func newErrorHandler(log *zap.Logger, env string) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		if env != "production" || code >= fiber.StatusInternalServerError {
			log.Warn("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": message,
			"code":  code,
		})
	}
}
