package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceRepository описывает требования к хранилищу счетов.
// Агрегат (счёт + позиции + платежи) — единая граница консистентности:
// мутирующие операции атомарны, половинчатых записей хранилище не видит.
type InvoiceRepository interface {
	// Save сохраняет счёт по id (upsert заголовка) и полностью заменяет
	// наборы позиций и платежей текущим состоянием агрегата.
	Save(ctx context.Context, inv Invoice) (Invoice, error)
	// FindByID загружает счёт со всеми позициями (в порядке добавления)
	// и платежами (в хронологическом порядке) или ErrInvoiceNotFound.
	FindByID(ctx context.Context, id string) (Invoice, error)
	// FindAll возвращает все счета с полной гидратацией агрегатов.
	FindAll(ctx context.Context) ([]Invoice, error)
	// Search ищет подстроку без учёта регистра в имени клиента или
	// описании позиции; пустой после обрезки запрос возвращает все счета.
	Search(ctx context.Context, query string) ([]Invoice, error)
	// DeleteByID удаляет счёт каскадно вместе с позициями и платежами;
	// возвращает, существовала ли запись.
	DeleteByID(ctx context.Context, id string) (bool, error)
	// AddPayment загружает счёт, добавляет платёж через доменную модель
	// и сохраняет его; возвращает обновлённый агрегат.
	AddPayment(ctx context.Context, id string, amount decimal.Decimal, method string, when time.Time, reference string) (Invoice, error)
	// PaymentHistory возвращает платежи счёта в хронологическом порядке
	// без гидратации остального агрегата.
	PaymentHistory(ctx context.Context, id string) ([]Payment, error)
}
