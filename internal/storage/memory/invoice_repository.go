package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marekforys/invoice-crud-system/internal/domain"
)

// invoiceRepositoryInMemory — простая in-memory реализация InvoiceRepository.
type invoiceRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Invoice
}

// NewInvoiceRepository возвращает in-memory репозиторий для локальной
// разработки и тестов.
func NewInvoiceRepository() domain.InvoiceRepository {
	return &invoiceRepositoryInMemory{
		items: make(map[string]domain.Invoice),
	}
}

// Save перезаписывает счёт целиком; текущие наборы позиций и платежей
// становятся единственным источником истины.
func (r *invoiceRepositoryInMemory) Save(_ context.Context, inv domain.Invoice) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Храним копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[inv.ID] = inv.Clone()
	return inv, nil
}

// FindByID возвращает копию счёта или ErrInvoiceNotFound, если его нет.
func (r *invoiceRepositoryInMemory) FindByID(_ context.Context, id string) (domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.items[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return inv.Clone(), nil
}

// FindAll возвращает копии всех счетов.
func (r *invoiceRepositoryInMemory) FindAll(_ context.Context) ([]domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Invoice, 0, len(r.items))
	for _, inv := range r.items {
		result = append(result, inv.Clone())
	}
	return result, nil
}

// Search фильтрует счета подстрокой без учёта регистра по имени клиента
// или описанию позиции; пустой после обрезки запрос означает "без фильтра".
func (r *invoiceRepositoryInMemory) Search(_ context.Context, query string) ([]domain.Invoice, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Invoice, 0, len(r.items))
	for _, inv := range r.items {
		if q == "" || matches(inv, q) {
			result = append(result, inv.Clone())
		}
	}
	return result, nil
}

// DeleteByID удаляет счёт вместе с дочерними коллекциями (они живут
// внутри агрегата) и сообщает, существовала ли запись.
func (r *invoiceRepositoryInMemory) DeleteByID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

// AddPayment добавляет платёж через доменную модель под мьютексом записи,
// поэтому проверка остатка и запись атомарны на уровне слота.
func (r *invoiceRepositoryInMemory) AddPayment(_ context.Context, id string, amount decimal.Decimal, method string, when time.Time, reference string) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.items[id]
	if !ok {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}

	updated := inv.Clone()
	if err := updated.AddPayment(amount, method, when, reference); err != nil {
		return domain.Invoice{}, err
	}
	r.items[id] = updated
	return updated.Clone(), nil
}

// PaymentHistory возвращает платежи счёта в хронологическом порядке.
func (r *invoiceRepositoryInMemory) PaymentHistory(_ context.Context, id string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.items[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv.PaymentHistory(), nil
}

func matches(inv domain.Invoice, q string) bool {
	if strings.Contains(strings.ToLower(inv.CustomerName), q) {
		return true
	}
	for _, item := range inv.Items {
		if strings.Contains(strings.ToLower(item.Description), q) {
			return true
		}
	}
	return false
}

var _ domain.InvoiceRepository = (*invoiceRepositoryInMemory)(nil)
