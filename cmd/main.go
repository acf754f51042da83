package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/Dosada05/duel-system/config"
	"github.com/Dosada05/duel-system/db"
	"github.com/Dosada05/duel-system/events"
	"github.com/Dosada05/duel-system/handlers"
	"github.com/Dosada05/duel-system/leaderboard"
	"github.com/Dosada05/duel-system/live"
	"github.com/Dosada05/duel-system/models"
	"github.com/Dosada05/duel-system/repositories"
	"github.com/Dosada05/duel-system/routes"
	"github.com/Dosada05/duel-system/services"
	"github.com/Dosada05/duel-system/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	// Хранилище доказательств опционально: без R2 судьи работают
	// без загрузки файлов.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewR2Uploader(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 evidence storage initialized")
	}

	bus := events.NewBus(logger)

	var cache *leaderboard.Cache
	if cfg.RedisAddr != "" {
		cache, err = leaderboard.NewCache(leaderboard.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer cache.Close()
		bus.Subscribe(events.TypeRatingUpdated, cache.HandleRatingUpdated)
		logger.Info("leaderboard cache initialized", slog.String("addr", cfg.RedisAddr))
	}

	var kafka *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err = events.NewKafkaPublisher(events.KafkaPublisherConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to kafka", slog.Any("error", err))
			os.Exit(1)
		}
		bus.SubscribeAll(kafka.Handle)
		logger.Info("kafka event mirror initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	liveHub := live.NewHub(logger)
	go liveHub.Run()
	bus.SubscribeAll(liveHub.HandleEvent)
	logger.Info("live hub started")

	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	seasonRepo := repositories.NewPostgresSeasonRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	stateRepo := repositories.NewPostgresMatchStateRepository(dbConn)
	resultRepo := repositories.NewPostgresGameResultRepository(dbConn)
	penaltyRepo := repositories.NewPostgresPenaltySettingsRepository(dbConn)
	refereeRepo := repositories.NewPostgresRefereeRepository(dbConn)
	caseRepo := repositories.NewPostgresRefereeCaseRepository(dbConn)
	logger.Info("repositories initialized")

	// Таймеры создаются раньше судейского сервиса, который обрабатывает
	// их истечение, поэтому колбэк связывается поздно.
	var refereeService services.RefereeService
	timers := services.NewStageTimers(logger, func(matchID int, stage models.MatchStage) {
		if refereeService != nil {
			refereeService.HandleStageExpiry(matchID, stage)
		}
	})
	defer timers.Stop()

	playerService := services.NewPlayerService(playerRepo, logger)
	seasonService := services.NewSeasonService(dbConn, seasonRepo, bus, logger, cfg.SeasonWarningWindow, nil)
	ratingService := services.NewRatingService(dbConn, ratingRepo, seasonRepo, bus, logger, cfg.DecayInterval, nil)
	authService := services.NewAuthService(refereeRepo, logger)
	penaltyService := services.NewPenaltyService(penaltyRepo, logger)
	matchService := services.NewMatchService(
		dbConn,
		matchRepo,
		stateRepo,
		resultRepo,
		penaltyRepo,
		seasonRepo,
		caseRepo,
		refereeRepo,
		ratingService,
		bus,
		logger,
		timers,
		services.StageWindows{
			Preparation: cfg.PreparationWindow,
			Game:        cfg.GameWindow,
		},
	)
	refereeService = services.NewRefereeService(
		dbConn,
		refereeRepo,
		caseRepo,
		matchRepo,
		matchService,
		uploader,
		bus,
		logger,
		nil,
	)
	logger.Info("services initialized")

	go runScheduler(cfg.SchedulerInterval, logger, seasonService, ratingService)

	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Match:     handlers.NewMatchHandler(matchService, playerService),
		Rating:    handlers.NewRatingHandler(ratingService, cache),
		Season:    handlers.NewSeasonHandler(seasonService, ratingService),
		Referee:   handlers.NewRefereeHandler(refereeService),
		Penalty:   handlers.NewPenaltyHandler(penaltyService),
		WebSocket: handlers.NewWebSocketHandler(liveHub, logger),
	}
	router := routes.InitRoutes(h, []byte(cfg.JWTSecretKey))
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server stopped gracefully")
		}
	}

	if kafka != nil {
		if err := kafka.Close(); err != nil {
			logger.Error("failed to close kafka publisher", slog.Any("error", err))
		}
	}
}

// runScheduler продвигает жизненный цикл сезона и периодически выполняет
// инфляцию RD неактивных игроков.
func runScheduler(interval time.Duration, logger *slog.Logger, seasons services.SeasonService, ratings services.RatingService) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("season scheduler started", slog.Duration("interval", interval))

	tick := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := seasons.AutoUpdateSeasonStatuses(ctx); err != nil {
			logger.Error("scheduler: season status update failed", slog.Any("error", err))
		}

		season, err := seasons.GetActiveSeason(ctx)
		if err != nil {
			if !errors.Is(err, services.ErrNoActiveSeason) {
				logger.Error("scheduler: active season lookup failed", slog.Any("error", err))
			}
			return
		}
		affected, err := ratings.ApplySeasonDecay(ctx, season.ID)
		if err != nil {
			logger.Error("scheduler: rating decay failed", slog.Any("error", err))
			return
		}
		if affected > 0 {
			logger.Info("scheduler: rating decay applied",
				slog.Int("season_id", season.ID),
				slog.Int("ratings_affected", affected))
		}
	}

	tick()
	for range ticker.C {
		tick()
	}
}
