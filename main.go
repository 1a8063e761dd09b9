package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/chuka-black-market/marketplace/config"
	"github.com/chuka-black-market/marketplace/database"
	"github.com/chuka-black-market/marketplace/handlers"
	"github.com/chuka-black-market/marketplace/nats_service"
	"github.com/chuka-black-market/marketplace/relay"
	"github.com/chuka-black-market/marketplace/repository"
	"github.com/chuka-black-market/marketplace/service"
	"github.com/chuka-black-market/marketplace/storage"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// --- Listing Store ---
	var store service.Store
	switch cfg.StoreBackend {
	case "memory":
		store = repository.NewMemoryListingRepository()
		log.Println("Using in-memory listing store")
	case "postgres":
		db, err := database.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to prepare schema: %v", err)
		}
		store = repository.NewListingRepository(db)
		log.Println("Database connected")
	default:
		log.Fatalf("Unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	// --- Image storage ---
	opts := handlers.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		JWTSecret:      cfg.JWTSecret,
		BodyLimit:      cfg.BodyLimit,
		AccessLog:      true,
	}
	var images storage.ImageStore
	switch cfg.Storage.Backend {
	case "local":
		local, err := storage.NewLocalStore(cfg.Storage.UploadDir, cfg.Storage.PublicPath)
		if err != nil {
			log.Fatalf("Failed to prepare upload directory: %v", err)
		}
		images = local
		opts.UploadDir = local.Dir()
		opts.UploadPath = local.PublicPath()
	case "gridfs":
		client, err := database.NewMongoClient(ctx, cfg.Storage.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		gridfs, err := storage.NewGridFSStore(client.Database(cfg.Storage.MongoDB), cfg.Storage.Bucket, "/api/images")
		if err != nil {
			log.Fatalf("Failed to open GridFS: %v", err)
		}
		images = gridfs
		opts.Images = gridfs
	default:
		log.Fatalf("Unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}

	// --- Broadcast relay ---
	var bus relay.Bus = relay.NewLocalBus()
	if cfg.Relay.NatsURL != "" {
		natsSvc, err := nats_service.NewNatsService(cfg.Relay.NatsURL, cfg.Relay.Subject)
		if err != nil {
			log.Fatalf("Failed to initialize NATS Service: %v", err)
		}
		defer natsSvc.Close()
		bus = natsSvc
		log.Println("NATS Service Initialized")
	}
	policy, err := relay.ParsePolicy(cfg.Relay.SlowConsumer)
	if err != nil {
		log.Fatalf("Invalid relay configuration: %v", err)
	}
	hub, err := relay.NewHub(bus, relay.Options{QueueSize: cfg.Relay.QueueSize, Policy: policy})
	if err != nil {
		log.Fatalf("Failed to start relay: %v", err)
	}
	defer hub.Close()

	if cfg.JWTSecret == "" {
		log.Println("JWT_SECRET not set: listing mutations are open to every caller")
	}

	svc := service.NewListingService(store, images)
	app := handlers.NewApp(svc, hub, opts)

	// --- Start Server ---
	go func() {
		log.Printf("Starting server on %s", cfg.Addr)
		if err := app.Listen(cfg.Addr); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until signal received

	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error shutting down Fiber: %v", err)
	}

	// Relay, NATS, Mongo and the database pool are closed by defers in main

	log.Println("Server gracefully stopped")
}
