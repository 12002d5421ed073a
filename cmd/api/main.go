package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campushq/dept-portal-api/api/swagger"
	"github.com/campushq/dept-portal-api/internal/handler"
	internalmiddleware "github.com/campushq/dept-portal-api/internal/middleware"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/repository"
	"github.com/campushq/dept-portal-api/internal/service"
	"github.com/campushq/dept-portal-api/internal/timetable"
	"github.com/campushq/dept-portal-api/pkg/cache"
	"github.com/campushq/dept-portal-api/pkg/config"
	"github.com/campushq/dept-portal-api/pkg/database"
	"github.com/campushq/dept-portal-api/pkg/logger"
	corsmiddleware "github.com/campushq/dept-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/dept-portal-api/pkg/middleware/requestid"
	"github.com/campushq/dept-portal-api/pkg/storage"
)

// @title Department Portal API
// @version 1.0.0
// @description Timetable generation and roster management for academic departments
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Scheduler.ResultCacheTTL, logr, redisClient != nil)

	subjectRepo := repository.NewSubjectRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)

	timetableSvc := service.NewTimetableService(
		subjectRepo, staffRepo, roomRepo, timetableRepo, db,
		cacheSvc, metricsSvc, validate, logr,
		service.TimetableConfig{
			ProposalTTL:       cfg.Scheduler.ProposalTTL,
			GenerationTimeout: cfg.Scheduler.GenerationTimeout,
			RepairIterations:  cfg.Scheduler.RepairIterations,
			Workers:           cfg.Scheduler.Workers,
			ResultCacheTTL:    cfg.Scheduler.ResultCacheTTL,
			Defaults:          timetable.ConstraintSet{}.Normalize(),
		},
	)
	choiceSvc := service.NewChoiceService(staffRepo, subjectRepo, validate, logr, service.ChoiceConfig{
		MinCore:      cfg.Choice.MinCore,
		MaxElectives: cfg.Choice.MaxElectives,
		MaxCredits:   cfg.Choice.MaxCredits,
		MaxLabs:      cfg.Choice.MaxLabs,
	})
	var archive *storage.LocalStorage
	if cfg.Exports.Enabled {
		archive, err = storage.NewLocalStorage(cfg.Exports.Dir)
		if err != nil {
			logr.Sugar().Warnw("export archive unavailable", "error", err)
			archive = nil
		}
	}
	exportSvc := service.NewExportService(timetableRepo, subjectRepo, staffRepo, roomRepo, archive, logr,
		timetable.ConstraintSet{}.Normalize(), cfg.Exports.Enabled)
	subjectSvc := service.NewSubjectService(subjectRepo, cacheSvc, validate, logr)
	staffSvc := service.NewStaffService(staffRepo, cacheSvc, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, cacheSvc, validate, logr)

	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	choiceHandler := handler.NewChoiceHandler(choiceSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	staffHandler := handler.NewStaffHandler(staffSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(cfg.JWT.Secret))

	adminOrHOD := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleHOD)
	anyRole := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleHOD, models.RoleStaff)

	timetables := api.Group("/timetables")
	{
		timetables.POST("/generate", adminOrHOD, timetableHandler.Generate)
		timetables.GET("/jobs/:jobId", adminOrHOD, timetableHandler.JobStatus)
		timetables.POST("", adminOrHOD, timetableHandler.Save)
		timetables.GET("", anyRole, timetableHandler.List)
		timetables.GET("/:id", anyRole, timetableHandler.Get)
		timetables.POST("/:id/publish", adminOrHOD, timetableHandler.Publish)
		timetables.DELETE("/:id", adminOrHOD, timetableHandler.Delete)
		timetables.POST("/:id/assignments/move", adminOrHOD, timetableHandler.Move)
		timetables.POST("/:id/assignments/swap", adminOrHOD, timetableHandler.Swap)
		timetables.DELETE("/:id/assignments/:assignmentId", adminOrHOD, timetableHandler.DeleteAssignment)
		timetables.GET("/:id/export", anyRole, timetableHandler.Export)
	}

	api.POST("/choices/validate", anyRole, choiceHandler.Validate)

	subjects := api.Group("/subjects")
	{
		subjects.GET("", anyRole, subjectHandler.List)
		subjects.GET("/:id", anyRole, subjectHandler.Get)
		subjects.POST("", adminOrHOD, subjectHandler.Create)
		subjects.PUT("/:id", adminOrHOD, subjectHandler.Update)
		subjects.DELETE("/:id", adminOrHOD, subjectHandler.Deactivate)
	}

	staff := api.Group("/staff")
	{
		staff.GET("", anyRole, staffHandler.List)
		staff.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleHOD), "SELF"), staffHandler.Get)
		staff.POST("", adminOrHOD, staffHandler.Create)
		staff.PUT("/:id", adminOrHOD, staffHandler.Update)
		staff.DELETE("/:id", adminOrHOD, staffHandler.Deactivate)
	}

	rooms := api.Group("/rooms")
	{
		rooms.GET("", anyRole, roomHandler.List)
		rooms.GET("/:id", anyRole, roomHandler.Get)
		rooms.POST("", adminOrHOD, roomHandler.Create)
		rooms.DELETE("/:id", adminOrHOD, roomHandler.Deactivate)
	}

	api.GET("/metrics/status", adminOrHOD, metricsHandler.Status)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timetableSvc.Start(ctx)
	defer timetableSvc.Stop()

	if archive != nil && cfg.Exports.Retention > 0 {
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					removed, err := archive.CleanupOlderThan(cfg.Exports.Retention)
					if err != nil {
						logr.Sugar().Warnw("export archive sweep failed", "error", err)
					} else if removed > 0 {
						logr.Sugar().Infow("export archive swept", "removed", removed)
					}
				}
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if cacheRepo != nil {
		_ = cacheRepo.Close()
	}
}
