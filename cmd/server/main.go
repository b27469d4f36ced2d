package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/auctionalerts/auction-alert-system/internal/api"
	"github.com/auctionalerts/auction-alert-system/internal/config"
	"github.com/auctionalerts/auction-alert-system/internal/database"
	"github.com/auctionalerts/auction-alert-system/internal/kafka"
	"github.com/auctionalerts/auction-alert-system/internal/learning"
	"github.com/auctionalerts/auction-alert-system/internal/matching"
	"github.com/auctionalerts/auction-alert-system/internal/pipeline"
	"github.com/auctionalerts/auction-alert-system/internal/redis"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	log.Println("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v (continuing without cache)", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Connected to Redis cache")
	}

	// Create Kafka producer for alert and learning events
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
	defer producer.Close()
	log.Printf("Kafka producer initialized (brokers: %v, topic: %s)", cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Seed the parameter registry; learned values of existing rows survive.
	if err := pipeline.RegisterDefaultParameters(ctx, db); err != nil {
		log.Fatalf("Failed to register learning parameters: %v", err)
	}

	// Create and start Kafka consumer for normalized listings
	consumer := kafka.NewListingsConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.ListingsTopic,
		cfg.Kafka.ConsumerGroup,
		db,
	)
	go func() {
		log.Printf("Starting Kafka listings consumer for topic: %s (group: %s)",
			cfg.Kafka.ListingsTopic, cfg.Kafka.ConsumerGroup)
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Kafka listings consumer error: %v", err)
		}
	}()

	// Wire the matching pass, outcome sweep, and learning loop
	matcher := matching.NewMatcher(matching.NewScorer(), cfg.Matching.Workers)

	var tokenCache pipeline.TokenCache
	var statsCache pipeline.StatsCache
	if redisClient != nil {
		tokenCache = redisClient
		statsCache = redisClient
	}

	pass := pipeline.NewMatchingPass(db, producer, tokenCache, matcher)
	sweep := pipeline.NewOutcomeSweep(db, cfg.Matching.SilenceWindow)

	aggregator := learning.NewOutcomeAggregator(db, cfg.Learning.OutcomeWindow)
	policies := map[string]learning.Policy{
		pipeline.ConfidenceThresholdParam: &learning.ClickRatePolicy{
			TargetMin: cfg.Learning.TargetMin,
			TargetMax: cfg.Learning.TargetMax,
			MinAlerts: cfg.Learning.MinAlerts,
		},
	}
	loop := learning.NewLoop(aggregator, db, db, policies)
	learnJob := pipeline.NewLearningJob(loop, aggregator, producer, statsCache,
		int(cfg.Learning.OutcomeWindow.Hours()/24))

	// Schedule the periodic jobs
	scheduler := pipeline.NewScheduler()
	mustSchedule(scheduler, cfg.Matching.PassSchedule, "matching-pass", func(ctx context.Context) error {
		_, err := pass.Run(ctx)
		return err
	})
	mustSchedule(scheduler, cfg.Matching.SweepSchedule, "outcome-sweep", func(ctx context.Context) error {
		_, err := sweep.Run(ctx)
		return err
	})
	mustSchedule(scheduler, cfg.Learning.Schedule, "learning-loop", func(ctx context.Context) error {
		_, err := learnJob.Run(ctx)
		return err
	})
	scheduler.Start()

	// Set up HTTP handler and routes
	handler := api.NewHandler(db, loop, pass, learnJob, redisClient)
	router := api.SetupRoutes(handler)

	// Create HTTP server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Cancel context to stop the Kafka consumer, then stop the scheduler
	cancel()
	scheduler.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Close the Kafka consumer
	if err := consumer.Close(); err != nil {
		log.Printf("Error closing Kafka listings consumer: %v", err)
	}

	log.Println("Server stopped")
}

func mustSchedule(s *pipeline.Scheduler, schedule, name string, fn func(ctx context.Context) error) {
	if err := s.AddJob(schedule, name, fn); err != nil {
		log.Fatalf("Failed to schedule %s: %v", name, err)
	}
}

func runMigrations(databaseUrl string) error {
	m, err := migrate.New("file://./db/migrations", databaseUrl)
	if err != nil {
		return err
	}

	// Apply all available migrations up to the latest version
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	if err == migrate.ErrNoChange {
		log.Println("No migrations to apply; database is up to date.")
	}
	return nil
}
