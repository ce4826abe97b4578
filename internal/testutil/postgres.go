// Пакет testutil — общие помощники для тестов.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/portfolio-tracker/internal/config"
)

// PostgresConfig запускает PostgreSQL в Docker-контейнере через testcontainers
// и возвращает конфиг, указывающий на него. Контейнер останавливается в t.Cleanup.
// Без TEST_INTEGRATION тест пропускается.
func PostgresConfig(t *testing.T) *config.Config {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("portfolio_test"),
		postgres.WithUsername("portfolio"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	t.Setenv("PT_DB_HOST", host)
	t.Setenv("PT_DB_PORT", port.Port())
	t.Setenv("PT_DB_NAME", "portfolio_test")
	t.Setenv("PT_DB_USER", "portfolio")
	t.Setenv("PT_DB_PASSWORD", "test-password")
	t.Setenv("PT_DB_SSL_MODE", "disable")
	t.Setenv("PT_JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	return cfg
}

// Logger возвращает логгер для тестов, пропускающий всё ниже Error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
