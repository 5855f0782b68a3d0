package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/coursehub/coursehub-api/api/swagger"
	"github.com/coursehub/coursehub-api/internal/handler"
	"github.com/coursehub/coursehub-api/internal/repository"
	"github.com/coursehub/coursehub-api/internal/router"
	"github.com/coursehub/coursehub-api/internal/service"
	"github.com/coursehub/coursehub-api/pkg/cache"
	"github.com/coursehub/coursehub-api/pkg/config"
	"github.com/coursehub/coursehub-api/pkg/database"
	"github.com/coursehub/coursehub-api/pkg/jobs"
	"github.com/coursehub/coursehub-api/pkg/logger"
	"github.com/coursehub/coursehub-api/pkg/mail"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

// @title CourseHub API
// @version 0.1.0
// @description Course marketplace for instructors, students and parents
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir, cfg.Uploads.PublicBaseURL)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	// Reap staged submission uploads that were never attached to a hand-in.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.CleanupOlderThan("staging/submissions", 24*time.Hour)
				if err != nil {
					logr.Warn("staged upload cleanup failed", zap.Error(err))
				} else if len(removed) > 0 {
					logr.Info("reaped abandoned staged uploads", zap.Int("count", len(removed)))
				}
			}
		}
	}()

	var mailer mail.Mailer
	if cfg.Mail.Provider == "sendgrid" && cfg.Mail.APIKey != "" {
		mailer = mail.NewSendGridMailer(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		mailer = mail.NewConsoleMailer(logr)
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewStudentProfileRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)

	notifications := service.NewNotificationService(mailer, metricsService, cfg.BaseURL, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	authService := service.NewAuthService(userRepo, notifications, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, nil, logr)
	profileService := service.NewStudentProfileService(profileRepo, enrollmentRepo, nil, logr)
	courseService := service.NewCourseService(courseRepo, enrollmentRepo, cacheService, userRepo, cfg.Catalog.CacheTTL, nil, logr)
	sessionService := service.NewSessionService(sessionRepo, courseRepo, metricsService, service.SessionConfig{
		InitialBatchSize: cfg.Scheduler.InitialBatchSize,
		MaxIterations:    cfg.Scheduler.MaxIterations,
	}, nil, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, profileRepo, userRepo, notifications, userRepo, nil, logr)
	homeworkService := service.NewHomeworkService(homeworkRepo, courseRepo, enrollmentRepo, nil, logr)
	submissionService := service.NewSubmissionService(submissionRepo, homeworkRepo, courseRepo, enrollmentRepo, profileRepo, userRepo, notifications, userRepo, signer, store, nil, logr)
	resourceService := service.NewResourceService(resourceRepo, courseRepo, enrollmentRepo, store, nil, logr)
	ratingService := service.NewRatingService(ratingRepo, courseRepo, enrollmentRepo, cacheService, nil, logr)
	messageService := service.NewMessageService(messageRepo, courseRepo, userRepo, enrollmentRepo, cacheService, cfg.Catalog.UnreadTTL, nil, logr)
	exportService := service.NewExportService(enrollmentRepo, courseRepo, logr)

	deps := router.Dependencies{
		Logger:         logr,
		AuthService:    authService,
		MetricsService: metricsService,
		UserRepo:       userRepo,

		Auth:        handler.NewAuthHandler(authService),
		Users:       handler.NewUserHandler(userService),
		Profiles:    handler.NewStudentProfileHandler(profileService),
		Courses:     handler.NewCourseHandler(courseService),
		Sessions:    handler.NewSessionHandler(sessionService),
		Enrollments: handler.NewEnrollmentHandler(enrollmentService),
		Homeworks:   handler.NewHomeworkHandler(homeworkService),
		Submissions: handler.NewSubmissionHandler(submissionService, cfg.BaseURL+cfg.APIPrefix, cfg.Uploads.MaxFileSizeBytes),
		Resources:   handler.NewResourceHandler(resourceService, cfg.Uploads.MaxFileSizeBytes),
		Ratings:     handler.NewRatingHandler(ratingService),
		Messages:    handler.NewMessageHandler(messageService),
		Exports:     handler.NewExportHandler(exportService),
		Metrics:     handler.NewMetricsHandler(metricsService),

		ReadyCheck: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(pingCtx); err != nil {
				return err
			}
			if redisClient != nil {
				return redisClient.Ping(pingCtx).Err()
			}
			return nil
		},
	}

	engine := router.New(cfg, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
