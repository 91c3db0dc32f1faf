package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/pawshome/adoption-workflow/internal/application/service"
	"github.com/pawshome/adoption-workflow/internal/config"
	"github.com/pawshome/adoption-workflow/internal/infrastructure/persistence/repository"
	"github.com/pawshome/adoption-workflow/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/pawshome/adoption-workflow/internal/interfaces/http"
	"github.com/pawshome/adoption-workflow/pkg/database"
	"github.com/pawshome/adoption-workflow/pkg/utils"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting adoption workflow service",
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	txManager := sqlite.NewDB(db.DB, logger)
	appRepo := repository.NewApplicationRepository(db.DB, logger)
	timelineRepo := repository.NewTimelineRepository(db.DB, logger)
	visitRepo := repository.NewHomeVisitRepository(db.DB, logger)

	sugared := &sugaredLogger{logger.Sugar()}
	workflowService := service.NewWorkflowService(appRepo, timelineRepo, visitRepo, txManager, sugared)
	timelineService := service.NewTimelineService(appRepo, timelineRepo, txManager, sugared)

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, workflowService, timelineService, sugared)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited")
}

// sugaredLogger adapts zap's sugared logger to the service Logger interface
type sugaredLogger struct {
	*zap.SugaredLogger
}

func (l *sugaredLogger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
}

func (l *sugaredLogger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}
