package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jlairapp/faceFlipper/internal"
	"github.com/jlairapp/faceFlipper/internal/account"
	"github.com/jlairapp/faceFlipper/internal/health"
	"github.com/jlairapp/faceFlipper/internal/middleware"
	"github.com/jlairapp/faceFlipper/internal/storage"
	"github.com/jlairapp/faceFlipper/internal/upload"
	"github.com/jlairapp/faceFlipper/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "1.0.0"

func main() {
	config, err := internal.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
		return
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	maxFileSize, err := config.MaxFileSizeBytes()
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading max file size")
		return
	}
	expires, err := config.ObjectExpiresAt()
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading object expiry")
		return
	}

	if err := os.MkdirAll(config.UploadRoot, 0755); err != nil {
		log.Fatal().Err(err).Str("uploadRoot", config.UploadRoot).Msg("Error creating upload root")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owners, err := newAccountRepository(config)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing accounts")
		return
	}

	objectStore, err := storage.NewBackend(ctx, &storage.BackendConfig{
		Type:        storage.StorageType(config.StorageType),
		LocalPath:   config.StorageLocalPath,
		S3Endpoint:  config.S3Endpoint,
		S3Bucket:    config.S3Bucket,
		S3AccessKey: config.AWSKeyID,
		S3SecretKey: config.AWSSecretKey,
		S3Region:    config.S3Region,
		S3UseSSL:    config.S3UseSSL,
		ExternalURL: config.ExternalURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing object storage")
		return
	}

	tracker, err := newTracker(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing upload tracker")
		return
	}

	hub := websocket.NewHub()
	go hub.Run()

	chunkStore := upload.NewChunkStore(config.UploadRoot)
	committer := upload.NewCommitPipeline(owners, objectStore, expires, config.RemoteWriteTimeout)
	coordinator := upload.NewCoordinator(chunkStore, committer, tracker, hub, maxFileSize)

	sweeper := upload.NewSweeper(chunkStore, tracker, config.ChunkRetention, config.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	authMiddleware := middleware.NewAuthMiddleware(config.JWTSecret)
	cors := middleware.NewCORSMiddleware(config.Origins())
	requestHandler := internal.NewRequestHandler(
		cors,
		authMiddleware,
		health.NewEndpoints(version, config.UploadRoot),
		upload.NewEndpoints(coordinator, config.FileInputName),
		websocket.NewHandler(hub, authMiddleware, cors.AllowsRequest),
	)

	server := internal.NewServer(requestHandler)

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down")
		if err := server.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	addr := fmt.Sprintf(":%d", config.Port)
	log.Info().Str("addr", addr).Str("storage", config.StorageType).Msg("Great! App is ready.")
	if err := server.ListenAndServe(addr); err != nil {
		log.Fatal().Err(err).Msg("Error starting server")
	}
}

func newAccountRepository(config *internal.Config) (upload.Owners, error) {
	if config.DatabaseURL == "" {
		log.Warn().Msg("DATABASE_URL not set, using in-memory accounts")
		return account.NewMemoryRepository(), nil
	}

	db, err := internal.NewDB(config.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return account.NewPostgresRepository(db), nil
}

func newTracker(ctx context.Context, config *internal.Config) (upload.Tracker, error) {
	if config.RedisAddr == "" {
		return upload.NewMemoryTracker(), nil
	}

	rdb := upload.NewRedisClient(upload.RedisConfig{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return upload.NewRedisTracker(rdb, 0), nil
}
