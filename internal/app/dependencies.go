package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/marekforys/invoice-crud-system/internal/domain"
	"github.com/marekforys/invoice-crud-system/internal/metrics"
	"github.com/marekforys/invoice-crud-system/internal/storage/memory"
	"github.com/marekforys/invoice-crud-system/internal/storage/postgres"
)

// Dependencies содержит зависимости приложения.
type Dependencies struct {
	Repo    domain.InvoiceRepository
	Store   *postgres.Store // nil при in-memory хранилище
	Metrics *metrics.InvoiceMetrics
	Logger  *log.Entry
}

// NewDependencies инициализирует хранилище и метрики. PostgreSQL
// выбирается при заданном DSN; миграции применяются один раз на старте.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Metrics: metrics.NewInvoiceMetrics(),
		Logger:  logger,
	}

	if cfg.PostgresDSN == "" {
		logger.Warn("INVOICE_POSTGRES_DSN не задан, используется in-memory хранилище: данные не переживут перезапуск")
		deps.Repo = memory.NewInvoiceRepository()
		return deps, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Info("подключение к PostgreSQL установлено, схема актуальна")
	deps.Store = store
	deps.Repo = postgres.NewInvoiceRepository(store)
	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	return d.Store.Close()
}
