// Точка входа Portfolio Tracker — учёт портфеля ценных бумаг.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт сервисный слой и API handlers, запускает фоновую очистку
// просроченных отчётов, topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/portfolio-tracker/internal/api/handlers"
	"github.com/bigkaa/portfolio-tracker/internal/api/middleware"
	"github.com/bigkaa/portfolio-tracker/internal/auth"
	"github.com/bigkaa/portfolio-tracker/internal/config"
	"github.com/bigkaa/portfolio-tracker/internal/database"
	"github.com/bigkaa/portfolio-tracker/internal/repository"
	"github.com/bigkaa/portfolio-tracker/internal/server"
	"github.com/bigkaa/portfolio-tracker/internal/service"
	"github.com/bigkaa/portfolio-tracker/internal/storage/filestore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Portfolio Tracker запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	userRepo := repository.NewUserRepository(pool)
	instrumentRepo := repository.NewInstrumentRepository(pool)
	holdingRepo := repository.NewHoldingRepository(pool)
	allocationRepo := repository.NewAllocationRepository(pool)
	reportRepo := repository.NewReportRepository(pool)

	// 6. Файлы отчётов и access token
	files, err := filestore.New(cfg.ReportDir)
	if err != nil {
		logger.Error("Ошибка инициализации директории отчётов",
			slog.String("dir", cfg.ReportDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		logger.Error("Ошибка создания TokenIssuer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Services
	clock := service.RealClock{}
	instrumentCache := service.NewInstrumentCache(instrumentRepo, cfg.InstrumentCacheSize, cfg.InstrumentCacheTTL)

	usersSvc := service.NewUserService(userRepo, tokens, logger)
	holdingsSvc := service.NewHoldingService(holdingRepo, instrumentCache, logger)
	generator := service.NewReportGenerator(
		holdingRepo, allocationRepo, reportRepo, files,
		clock, cfg.ReportTTL,
		logger,
	)
	accessGate := service.NewReportAccessGate(reportRepo, files, clock, logger)
	sweeper := service.NewSweeperService(reportRepo, files, clock, cfg.SweepInterval, logger)

	// 8. API handler и middleware аутентификации
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), files)
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		usersSvc,
		holdingsSvc,
		generator,
		accessGate,
		logger,
	)
	tokenAuth := middleware.NewTokenAuth(tokens, logger)

	// 9. Фоновая очистка просроченных отчётов
	sweeper.Start(ctx)
	logger.Info("Фоновые задачи запущены",
		slog.String("report_dir", files.BaseDir()),
		slog.String("interval", cfg.SweepInterval.String()),
		slog.String("report_ttl", cfg.ReportTTL.String()),
	)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"portfolio-tracker",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, tokenAuth)
	runErr := srv.Run()
	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
	}

	// 12. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	sweeper.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Portfolio Tracker остановлен")
	if runErr != nil {
		pgDB.Close()
		pool.Close()
		os.Exit(1)
	}
}
