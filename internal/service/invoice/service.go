package invoicesvc

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/marekforys/invoice-crud-system/internal/domain"
	"github.com/marekforys/invoice-crud-system/internal/metrics"
)

// Service — единственная валидированная точка входа в ядро: проверяет
// предусловия и оркестрирует вызовы репозитория, поэтому слой хранения
// может рассчитывать на корректный вход.
type Service struct {
	repo    domain.InvoiceRepository
	logger  *log.Entry
	metrics *metrics.InvoiceMetrics
}

// NewService конструирует сервис с зависимостями. metrics может быть nil.
func NewService(repo domain.InvoiceRepository, logger *log.Entry, m *metrics.InvoiceMetrics) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "invoice-service")
	}
	return &Service{repo: repo, logger: logger, metrics: m}
}

// CreateInvoice создаёт счёт с позициями и сохраняет его.
// Нулевые позиции (пустое описание и нулевая цена) молча пропускаются.
func (s *Service) CreateInvoice(ctx context.Context, customerName string, items []domain.LineItem) (domain.Invoice, error) {
	inv, err := domain.NewInvoice(customerName)
	if err != nil {
		return domain.Invoice{}, err
	}

	for _, item := range items {
		if item.Description == "" && item.Price.IsZero() {
			continue
		}
		if err := inv.AddItem(item); err != nil {
			return domain.Invoice{}, err
		}
	}

	saved, err := s.repo.Save(ctx, inv)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordInvoiceCreated()
	s.logger.WithFields(log.Fields{
		"invoice_id": saved.ID,
		"customer":   saved.CustomerName,
		"items":      len(saved.Items),
	}).Info("счёт создан")
	return saved, nil
}

// GetByID возвращает счёт или ErrInvoiceNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	return s.repo.FindByID(ctx, id)
}

// GetAll возвращает все счета.
func (s *Service) GetAll(ctx context.Context) ([]domain.Invoice, error) {
	return s.repo.FindAll(ctx)
}

// Search — сквозной вызов репозитория без дополнительной валидации.
func (s *Service) Search(ctx context.Context, query string) ([]domain.Invoice, error) {
	return s.repo.Search(ctx, query)
}

// AddLineItem добавляет позицию к существующему счёту.
func (s *Service) AddLineItem(ctx context.Context, invoiceID, description string, price decimal.Decimal) (domain.Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}
	item, err := domain.NewLineItem(description, price)
	if err != nil {
		return domain.Invoice{}, err
	}

	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := inv.AddItem(item); err != nil {
		return domain.Invoice{}, err
	}
	return s.repo.Save(ctx, inv)
}

// UpdateLineItems полностью заменяет позиции счёта. Входной список
// валидируется целиком до какой-либо мутации: при первом некорректном
// элементе счёт остаётся нетронутым.
func (s *Service) UpdateLineItems(ctx context.Context, invoiceID string, items []domain.LineItem) (domain.Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}

	validated := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		if item.Description == "" && item.Price.IsZero() {
			continue
		}
		li, err := domain.NewLineItem(item.Description, item.Price)
		if err != nil {
			return domain.Invoice{}, err
		}
		validated = append(validated, li)
	}

	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Items = validated
	return s.repo.Save(ctx, inv)
}

// AddPayment записывает платёж по счёту. Проверка переплаты остаётся за
// доменной моделью; нулевое when означает "сегодня".
func (s *Service) AddPayment(ctx context.Context, invoiceID string, amount decimal.Decimal, method string, when time.Time, reference string) (domain.Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Invoice{}, domain.ErrPaymentAmountNotPositive
	}
	if strings.TrimSpace(method) == "" {
		return domain.Invoice{}, domain.ErrPaymentMethodRequired
	}

	inv, err := s.repo.AddPayment(ctx, id, amount, strings.TrimSpace(method), when, reference)
	if err != nil {
		return domain.Invoice{}, err
	}

	s.metrics.RecordPaymentRecorded()
	s.logger.WithFields(log.Fields{
		"invoice_id": inv.ID,
		"amount":     amount.String(),
		"method":     strings.TrimSpace(method),
		"paid":       inv.IsPaid(),
	}).Info("платёж записан")
	return inv, nil
}

// PaymentHistory — сквозной вызов репозитория.
func (s *Service) PaymentHistory(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return nil, domain.ErrInvoiceIDRequired
	}
	return s.repo.PaymentHistory(ctx, id)
}

// DeleteInvoice удаляет счёт каскадно и сообщает, существовала ли запись.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID string) (bool, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return false, domain.ErrInvoiceIDRequired
	}

	removed, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.metrics.RecordInvoiceDeleted()
		s.logger.WithField("invoice_id", id).Info("счёт удалён")
	}
	return removed, nil
}

// UpdateInvoice пересохраняет счёт целиком (переименование, смена даты,
// правка позиций). Это update, а не upsert: несуществующий id — ошибка.
func (s *Service) UpdateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	if strings.TrimSpace(inv.ID) == "" {
		return domain.Invoice{}, domain.ErrInvoiceIDRequired
	}
	if strings.TrimSpace(inv.CustomerName) == "" {
		return domain.Invoice{}, domain.ErrCustomerNameRequired
	}
	if inv.Date.IsZero() {
		return domain.Invoice{}, domain.ErrInvoiceDateRequired
	}

	if _, err := s.repo.FindByID(ctx, inv.ID); err != nil {
		return domain.Invoice{}, err
	}
	return s.repo.Save(ctx, inv)
}
