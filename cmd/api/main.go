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

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dhtms/tms-api/api/swagger"
	"github.com/dhtms/tms-api/internal/handler"
	"github.com/dhtms/tms-api/internal/middleware"
	"github.com/dhtms/tms-api/internal/models"
	"github.com/dhtms/tms-api/internal/repository"
	"github.com/dhtms/tms-api/internal/service"
	"github.com/dhtms/tms-api/pkg/cache"
	"github.com/dhtms/tms-api/pkg/config"
	"github.com/dhtms/tms-api/pkg/database"
	"github.com/dhtms/tms-api/pkg/export"
	"github.com/dhtms/tms-api/pkg/jobs"
	"github.com/dhtms/tms-api/pkg/logger"
	corsmiddleware "github.com/dhtms/tms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dhtms/tms-api/pkg/middleware/requestid"
)

// @title District Health TMS API
// @version 1.0.0
// @description Training management for the district health administration
// @BasePath /api
// @schemes http
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	institutionRepo := repository.NewInstitutionRepository(db)
	hallRepo := repository.NewHallRepository(db)
	blockRepo := repository.NewHallBlockRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	nominationRepo := repository.NewNominationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	hallRequestRepo := repository.NewHallRequestRepository(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	availabilitySvc := service.NewAvailabilityService(hallRepo, trainingRepo, blockRepo, logr)
	hallSvc := service.NewHallService(hallRepo, nil, logr)
	trainingSvc := service.NewTrainingService(trainingRepo, hallRepo, availabilitySvc, nominationRepo, nil, logr)
	blockSvc := service.NewHallBlockService(blockRepo, trainingRepo, hallRepo, availabilitySvc, nil, logr)
	nominationSvc := service.NewNominationService(nominationRepo, trainingRepo, userRepo, notificationSvc, nil, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)
	institutionSvc := service.NewInstitutionService(institutionRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, trainingRepo, nominationRepo, redisClient, cfg.Attendance.SessionTTL, nil, logr)
	hallRequestSvc := service.NewHallRequestService(hallRequestRepo, trainingRepo, hallRepo, availabilitySvc, notificationSvc, nil, logr)
	analyticsSvc := service.NewAnalyticsService(service.AnalyticsServiceParams{
		Repo:         analyticsRepo,
		Trainings:    trainingRepo,
		Institutions: institutionRepo,
		Cache:        redisClient,
		CacheTTL:     cfg.Analytics.DashboardCacheTTL,
		Logger:       logr,
	})
	certificateSvc := service.NewCertificateService(trainingRepo, nominationRepo, export.NewCertificateRenderer(), notificationSvc, cfg.Certificates.IssuerName, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	institutionHandler := handler.NewInstitutionHandler(institutionSvc)
	hallHandler := handler.NewHallHandler(hallSvc, availabilitySvc, metricsSvc)
	blockHandler := handler.NewHallBlockHandler(blockSvc, metricsSvc)
	trainingHandler := handler.NewTrainingHandler(trainingSvc, certificateSvc, metricsSvc)
	nominationHandler := handler.NewNominationHandler(nominationSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	hallRequestHandler := handler.NewHallRequestHandler(hallRequestSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "postgres"})
			return
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "redis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	users := protected.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer, models.RoleInstitutionalAdmin), userHandler.List)
		users.GET("/pending", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Pending)
		users.GET("/:id", userHandler.Get)
		users.POST("", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Create)
		users.PUT("/:id", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Deactivate)
		users.PUT("/:id/approve", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Approve)
		users.DELETE("/:id/reject", middleware.RequireRoles(models.RoleMasterAdmin), userHandler.Reject)
	}

	institutions := protected.Group("/institutions")
	{
		institutions.GET("", institutionHandler.List)
		institutions.GET("/:id", institutionHandler.Get)
		institutions.POST("", middleware.RequireRoles(models.RoleMasterAdmin), institutionHandler.Create)
		institutions.PUT("/:id", middleware.RequireRoles(models.RoleMasterAdmin), institutionHandler.Update)
		institutions.DELETE("/:id", middleware.RequireRoles(models.RoleMasterAdmin), institutionHandler.Delete)
	}

	halls := protected.Group("/halls")
	{
		halls.GET("", hallHandler.List)
		halls.GET("/available", hallHandler.Available)
		halls.GET("/:id", hallHandler.Get)
		halls.GET("/:id/availability-details", hallHandler.AvailabilityDetails)
		halls.GET("/:id/availability", hallHandler.ListSlots)
		halls.GET("/:id/blocks", blockHandler.ListByHall)
		halls.POST("", middleware.RequireRoles(models.RoleMasterAdmin), hallHandler.Create)
		halls.DELETE("/:id", middleware.RequireRoles(models.RoleMasterAdmin), hallHandler.Delete)
		halls.POST("/:id/availability", middleware.RequireRoles(models.RoleMasterAdmin), hallHandler.AddSlot)
		halls.DELETE("/:id/availability/:slotId", middleware.RequireRoles(models.RoleMasterAdmin), hallHandler.RemoveSlot)
	}

	blocks := protected.Group("/hall-blocks")
	blocks.Use(middleware.RequireRoles(models.RoleMasterAdmin))
	{
		blocks.POST("", middleware.Audit(userRepo, models.AuditActionBlockCreate, "hall_block"), blockHandler.Create)
		blocks.DELETE("/:id", blockHandler.Delete)
	}

	hallRequests := protected.Group("/hall-requests")
	{
		hallRequests.GET("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), hallRequestHandler.List)
		hallRequests.POST("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), hallRequestHandler.Create)
		hallRequests.PUT("/:id/decision", middleware.RequireRoles(models.RoleMasterAdmin), middleware.Audit(userRepo, models.AuditActionHallRequestDecide, "hall_request"), hallRequestHandler.Decide)
	}

	trainings := protected.Group("/trainings")
	{
		trainings.GET("", trainingHandler.List)
		trainings.GET("/:id", trainingHandler.Get)
		trainings.POST("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), trainingHandler.Create)
		trainings.PUT("/:id", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), trainingHandler.Update)
		trainings.PATCH("/:id/status", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), trainingHandler.UpdateStatus)
		trainings.DELETE("/:id", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), middleware.Audit(userRepo, models.AuditActionTrainingDelete, "training"), trainingHandler.Delete)
		trainings.POST("/:id/certificates", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), trainingHandler.GenerateCertificates)
		trainings.GET("/:id/certificates/:participantId", trainingHandler.DownloadCertificate)
		trainings.GET("/:id/attendance", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), attendanceHandler.ListByTraining)
		trainings.POST("/:id/attendance/session", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), attendanceHandler.StartSession)
		trainings.DELETE("/:id/attendance/session", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), attendanceHandler.StopSession)
	}

	nominations := protected.Group("/nominations")
	{
		nominations.GET("", nominationHandler.List)
		nominations.GET("/busy-participants", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer, models.RoleInstitutionalAdmin), nominationHandler.BusyParticipants)
		nominations.GET("/check-busy", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer, models.RoleInstitutionalAdmin), nominationHandler.CheckBusy)
		nominations.POST("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleInstitutionalAdmin), nominationHandler.Create)
		nominations.PUT("/:id/decision", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), nominationHandler.Decide)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.POST("", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), attendanceHandler.Mark)
		attendance.POST("/scan", middleware.RequireRoles(models.RoleParticipant), attendanceHandler.Scan)
	}

	analytics := protected.Group("/analytics")
	{
		analytics.GET("/dashboard", analyticsHandler.Dashboard)
		analytics.GET("/trainings/:id", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer), analyticsHandler.Training)
		analytics.GET("/institutions/:id", middleware.RequireRoles(models.RoleMasterAdmin, models.RoleProgramOfficer, models.RoleInstitutionalAdmin), analyticsHandler.Institution)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.PUT("/read-all", notificationHandler.MarkAllRead)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
