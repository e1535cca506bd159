package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visionwell/vision-screening/backend/internal/adapters/cache"
	"github.com/visionwell/vision-screening/backend/internal/adapters/database"
	"github.com/visionwell/vision-screening/backend/internal/adapters/events"
	"github.com/visionwell/vision-screening/backend/internal/adapters/providers/directory"
	"github.com/visionwell/vision-screening/backend/internal/adapters/providers/registration"
	"github.com/visionwell/vision-screening/backend/internal/adapters/search"
	"github.com/visionwell/vision-screening/backend/internal/api/handlers"
	"github.com/visionwell/vision-screening/backend/internal/api/middleware"
	"github.com/visionwell/vision-screening/backend/internal/api/routes"
	"github.com/visionwell/vision-screening/backend/internal/application/services"
	"github.com/visionwell/vision-screening/backend/internal/domain/providers"
	"github.com/visionwell/vision-screening/backend/internal/domain/repositories"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/postgres"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/redis"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/typesense"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/observability"
	"github.com/visionwell/vision-screening/backend/pkg/config"
	"github.com/visionwell/vision-screening/backend/pkg/secrets"
)

func main() {
	// Overlay Vault secrets onto the environment before reading config
	vaultCfg := secrets.LoadVaultConfigFromEnv("")
	if result, err := secrets.ApplyVaultSecrets(context.Background(), vaultCfg); err != nil {
		log.Printf("Warning: Failed to load Vault secrets: %v", err)
	} else if result.Enabled {
		log.Printf("Vault secrets loaded from %s (%d loaded, %d skipped)", result.Path, result.Loaded, result.Skipped)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - caching and presence degrade gracefully
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
		typesenseClient = nil
	} else {
		log.Println("Typesense client initialized successfully")
	}

	flags := services.NewFeatureFlags()

	// Initialize adapters
	sessionAdapter := database.NewSessionAdapter(pgClient)
	inventoryAdapter := database.NewInventoryAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		inventoryAdapter = database.NewCachedInventoryAdapter(inventoryAdapter, cacheProvider)
	}

	// Initialize event bus for the advisory presence overlay
	var eventBus providers.EventBus
	if redisClient != nil && flags.PresenceEnabled() {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available or presence turned off)")
	}

	var outcomeSearchRepo repositories.OutcomeSearchRepository
	if typesenseClient != nil && flags.HistorySearchEnabled() {
		adapter := search.NewTypesenseAdapter(typesenseClient)

		// Ensure schema exists
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}

		outcomeSearchRepo = adapter
	}

	// Per-operator bearer tokens flow from the auth middleware through the
	// request context into the outbound service calls.
	credentials := providers.ContextCredentialProvider{}

	directoryProvider := directory.NewDirectoryProvider(cfg.Directory.BaseURL, cfg.Directory.Timeout, credentials)
	registrationProvider := registration.NewRegistrationProvider(cfg.Registration.BaseURL, cfg.Registration.Timeout, credentials)

	// Initialize services
	registrationService := services.NewRegistrationService(registrationProvider)
	presenceService := services.NewPresenceService(eventBus)
	historyService := services.NewHistoryService(sessionAdapter, outcomeSearchRepo, directoryProvider)

	workflowService := services.NewWorkflowService(
		sessionAdapter,
		inventoryAdapter,
		directoryProvider,
		registrationService,
		presenceService,
	)
	workflowService.SetHistoryService(historyService)

	notificationService, err := services.NewNotificationService()
	if err != nil {
		log.Printf("Warning: delivery notifications disabled: %v", err)
	} else {
		workflowService.SetDeliveryNotifier(notificationService)
		log.Println("Delivery notifications enabled")
	}

	// Initialize handlers
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	studentHandler := handlers.NewStudentHandler(directoryProvider)
	historyHandler := handlers.NewHistoryHandler(historyService)
	inventoryHandler := handlers.NewInventoryHandler(inventoryAdapter)

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
		log.Println("Cache middleware initialized successfully")
	}

	// Warm the frame catalog and keep inventory caches consistent with
	// completed workflows.
	var cacheInvalidation *services.CacheInvalidationService
	if cacheProvider != nil {
		warming := services.NewCacheWarmingService(inventoryAdapter, cacheProvider)
		go func() {
			warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer warmCancel()
			if err := warming.WarmCache(warmCtx); err != nil {
				log.Printf("Warning: cache warming failed: %v", err)
			}
		}()

		if eventBus != nil {
			cacheInvalidation = services.NewCacheInvalidationService(cacheProvider, eventBus)
			if err := cacheInvalidation.Start(); err != nil {
				log.Printf("Warning: cache invalidation disabled: %v", err)
				cacheInvalidation = nil
			}
		}
	}

	// Set up router
	router := routes.NewRouter(
		workflowHandler,
		studentHandler,
		historyHandler,
		inventoryHandler,
		cacheMiddleware,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	if cacheInvalidation != nil {
		cacheInvalidation.Stop()
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Server stopped")
}
