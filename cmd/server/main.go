package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/AungKyawPhyo1142/be-sentria/internal/broker"
	"github.com/AungKyawPhyo1142/be-sentria/internal/client/geocode"
	"github.com/AungKyawPhyo1142/be-sentria/internal/constants"
	"github.com/AungKyawPhyo1142/be-sentria/internal/consumer"
	"github.com/AungKyawPhyo1142/be-sentria/internal/poller"
	"github.com/AungKyawPhyo1142/be-sentria/internal/repository"
	"github.com/AungKyawPhyo1142/be-sentria/internal/server"
	"github.com/AungKyawPhyo1142/be-sentria/internal/service"
	"github.com/AungKyawPhyo1142/be-sentria/internal/ws"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/logger"
	"github.com/AungKyawPhyo1142/be-sentria/pkg/metrics"
)

const serviceName = "report_service"

func main() {
	// Missing env files are fine in production where the environment is
	// injected directly.
	if err := godotenv.Load(); err != nil {
		_ = godotenv.Load("config.env")
	}

	log := logger.NewLogger(serviceName)

	rabbitURL := mustEnv(log, constants.RabbitURLEnv)
	factCheckQueue := mustEnv(log, constants.FactCheckQueueEnv)
	resultQueue := mustEnv(log, constants.FactCheckResultQueueEnv)
	notificationQueue := mustEnv(log, constants.NotificationQueueEnv)
	redisURL := mustEnv(log, constants.RedisURLEnv)
	mongoURI := mustEnv(log, constants.MongoURIEnv)
	databaseURL := mustEnv(log, constants.DatabaseURLEnv)
	mongoDatabase := getEnv(constants.MongoDatabaseEnv, "sentria")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()
	db.SetMaxOpenConns(getEnvAsInt(log, "DB_MAX_OPEN_CONNS", 25))
	db.SetMaxIdleConns(getEnvAsInt(log, "DB_MAX_IDLE_CONNS", 5))
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := pingDatabase(db); err != nil {
		log.WithError(err).Fatal("failed to ping database")
	}
	log.Info("connected to relational store")

	// Geospatial index / dedup cache
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Fatal("invalid REDIS_URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Fatal("failed to ping redis")
	}
	log.Info("connected to redis")

	// Document store
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.WithError(err).Fatal("failed to connect to document store")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(disconnectCtx); err != nil {
			log.WithError(err).Error("failed to disconnect document store")
		}
	}()
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		log.WithError(err).Fatal("failed to ping document store")
	}
	log.Info("connected to document store")
	collection := mongoClient.Database(mongoDatabase).Collection(constants.DisasterCollectionName)

	m := metrics.NewMetrics(serviceName)

	// Broker: one connection, confirm-mode publish channel, queues declared up front
	brokerClient := broker.NewClient(rabbitURL, []string{factCheckQueue, resultQueue, notificationQueue}, log, m)
	if err := brokerClient.Connect(ctx); err != nil {
		// Not fatal: the client reconnects lazily and Publish degrades to false.
		log.WithError(err).Error("initial broker connection failed, will retry on demand")
	}
	defer brokerClient.Close()

	// Repositories and services
	reportRepo := repository.NewReportRepository(db)
	detailRepo := repository.NewReportDetailRepository(collection)
	locationRepo := repository.NewLocationRepository(redisClient)

	hub := ws.NewHub(log, m, locationRepo)
	defer hub.Close()

	geocoder := geocode.New(getEnv("GEOCODE_BASE_URL", ""), "sentria-report-service/1.0")
	scoreService := service.NewScoreService(reportRepo, detailRepo, hub, log)
	reportService := service.NewReportService(reportRepo, detailRepo, brokerClient, geocoder, factCheckQueue, log)

	// Consumers
	resultConsumer := consumer.NewFactCheckResultConsumer(reportRepo, detailRepo, service.VerdictPolicy{}, scoreService, log)
	notificationConsumer := consumer.NewNotificationConsumer(hub, m, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := brokerClient.Consume(ctx, resultQueue, resultConsumer.Handle); err != nil {
			log.WithError(err).Error("fact-check result consumer stopped")
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := brokerClient.Consume(ctx, notificationQueue, notificationConsumer.Handle); err != nil {
			log.WithError(err).Error("notification consumer stopped")
		}
	}()

	// Earthquake feed poller
	earthquakePoller := poller.NewEarthquakePoller(getEnv("EARTHQUAKE_FEED_URL", ""), notificationQueue, locationRepo, brokerClient, m, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		earthquakePoller.Run(ctx)
	}()

	// HTTP surface: websocket endpoint, the report entry points, metrics and
	// liveness. No middleware or routing framework; just enough surface to
	// drive the pipeline.
	mux := http.NewServeMux()
	reportHandler := server.NewReportHandler(reportService, log)
	mux.Handle("/ws", hub)
	mux.Handle("/reports", reportHandler)
	mux.Handle("/reports/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: mux,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}

	wg.Wait()
	log.Info("server stopped")
}

func pingDatabase(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

func mustEnv(log *logger.Logger, key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.WithField("key", key).Fatal("required environment variable is not set")
	}
	return value
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(log *logger.Logger, key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.WithField("key", key).Warnf("invalid value %q, using default %d", valueStr, defaultValue)
		return defaultValue
	}
	return value
}
