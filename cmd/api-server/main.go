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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/medconsult-app/medconsult-api/api/swagger"
	"github.com/medconsult-app/medconsult-api/internal/handler"
	"github.com/medconsult-app/medconsult-api/internal/middleware"
	"github.com/medconsult-app/medconsult-api/internal/models"
	"github.com/medconsult-app/medconsult-api/internal/repository"
	"github.com/medconsult-app/medconsult-api/internal/service"
	"github.com/medconsult-app/medconsult-api/pkg/cache"
	"github.com/medconsult-app/medconsult-api/pkg/config"
	"github.com/medconsult-app/medconsult-api/pkg/database"
	"github.com/medconsult-app/medconsult-api/pkg/lock"
	"github.com/medconsult-app/medconsult-api/pkg/logger"
	corsmiddleware "github.com/medconsult-app/medconsult-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medconsult-app/medconsult-api/pkg/middleware/requestid"
	"github.com/medconsult-app/medconsult-api/pkg/payment"
	"github.com/medconsult-app/medconsult-api/pkg/storage"
)

// @title MedConsult API
// @version 1.0.0
// @description Appointment scheduling and consultation platform API
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	validate := validator.New()

	// Redis is optional; without it the slot cache is disabled and schedule
	// edits fall back to database-level locking only.
	var (
		cacheSvc *service.CacheService
		locker   lock.ScheduleLocker = lock.NoopLocker{}
	)
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
	} else {
		defer redisClient.Close()
		if cfg.Slots.CacheEnabled {
			cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), cfg.Slots.CacheTTL, logr)
		}
		locker = lock.NewRedisScheduleLocker(redisClient, cfg.Schedule.LockTTL)
	}

	userRepo := repository.NewUserRepository(db)
	apptRepo := repository.NewAppointmentRepository(db)
	availRepo := repository.NewAvailabilityRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	prescriptionRepo := repository.NewPrescriptionRepository(db)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "medconsult-api",
		DefaultTimezone:    cfg.Schedule.DefaultTZ,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	apptSvc := service.NewAppointmentService(apptRepo, availRepo, userRepo, paymentRepo, userRepo, cacheSvc, metricsSvc, validate, logr, cfg.Schedule.DefaultTZ)
	rescheduleSvc := service.NewRescheduleService(apptRepo, userRepo, apptSvc, metricsSvc, validate, logr, cfg.Schedule.DefaultTZ)
	availSvc := service.NewAvailabilityService(availRepo, apptRepo, locker, userRepo, apptSvc, validate, logr, cfg.Schedule.DefaultTZ)

	var provider payment.Provider
	if cfg.Payments.Enabled {
		provider = payment.NewClient(cfg.Payments.ProviderBaseURL, cfg.Payments.SecretKey, cfg.Payments.RequestTimeout)
	}
	paymentSvc := service.NewPaymentService(paymentRepo, apptRepo, provider, userRepo, validate, logr, service.PaymentConfig{
		AmountCents: cfg.Payments.AmountCents,
		Currency:    cfg.Payments.Currency,
		SuccessURL:  cfg.Payments.SuccessURL,
		CancelURL:   cfg.Payments.CancelURL,
	})

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	prescriptionSvc := service.NewPrescriptionService(prescriptionRepo, store, signer, validate, logr, cfg.Documents.MaxFileSizeBytes)

	authHandler := handler.NewAuthHandler(authSvc, userSvc)
	userHandler := handler.NewUserHandler(userSvc)
	apptHandler := handler.NewAppointmentHandler(apptSvc, rescheduleSvc)
	availHandler := handler.NewAvailabilityHandler(availSvc)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	prescriptionHandler := handler.NewPrescriptionHandler(prescriptionSvc)
	documentHandler := handler.NewDocumentHandler(prescriptionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(authSvc)
	v1 := r.Group(cfg.APIPrefix)
	{
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/signup/patient", authHandler.SignupPatient)
		v1.POST("/auth/signup/doctor", authHandler.SignupDoctor)
		v1.POST("/auth/refresh", authHandler.Refresh)
		v1.POST("/auth/logout", auth, authHandler.Logout)
		v1.PUT("/auth/password", auth, authHandler.ChangePassword)
		v1.GET("/auth/me", auth, authHandler.Me)

		v1.GET("/doctors", auth, userHandler.ListDoctors)
		v1.GET("/doctors/:id/slots", auth, apptHandler.ListSlots)
		v1.GET("/settings", auth, userHandler.GetSettings)
		v1.PUT("/settings", auth, userHandler.UpdateSettings)

		patientOnly := middleware.RequireRoles(models.RolePatient)
		doctorOnly := middleware.RequireRoles(models.RoleDoctor)

		v1.POST("/appointments", auth, patientOnly, apptHandler.CreateBlock)
		v1.GET("/appointments", auth, apptHandler.ListBlocks)
		v1.POST("/appointments/status", auth, doctorOnly, apptHandler.BulkSetStatus)
		v1.POST("/appointments/cancel", auth, doctorOnly, apptHandler.CancelSlots)
		v1.POST("/appointments/reschedule", auth, patientOnly, apptHandler.RequestReschedule)
		v1.POST("/appointments/reschedule/:id/decision", auth, doctorOnly, apptHandler.DecideReschedule)

		v1.GET("/availability", auth, doctorOnly, availHandler.ListWindows)
		v1.PUT("/availability", auth, doctorOnly, availHandler.UpsertWindow)
		v1.DELETE("/availability/slot", auth, doctorOnly, availHandler.DeleteSlot)

		v1.POST("/payments/checkout", auth, patientOnly, paymentHandler.Checkout)
		v1.POST("/payments/confirm", auth, patientOnly, paymentHandler.Confirm)
		v1.GET("/payments", auth, paymentHandler.List)

		v1.POST("/prescriptions", auth, doctorOnly, prescriptionHandler.Create)
		v1.GET("/prescriptions", auth, prescriptionHandler.List)
		v1.PUT("/prescriptions/:id/status", auth, doctorOnly, prescriptionHandler.SetStatus)
		v1.GET("/prescriptions/export", auth, prescriptionHandler.Export)

		v1.POST("/documents", auth, documentHandler.Upload)
		v1.GET("/documents", auth, documentHandler.List)
		v1.GET("/documents/:id/url", auth, documentHandler.SignURL)
		v1.GET("/documents/download", documentHandler.Download)

		v1.GET("/ops/metrics", auth, middleware.RequireRoles(models.RoleAdmin),
			middleware.Audit(userRepo, models.AuditActionOpsMetricsView, "ops"), metricsHandler.Snapshot)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
