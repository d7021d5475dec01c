package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout — формат календарных дат в хранилище и API (ISO, без времени).
const DateLayout = "2006-01-02"

// DateOnly обрезает момент времени до календарной даты в UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today возвращает текущую календарную дату в UTC.
func Today() time.Time {
	return DateOnly(time.Now())
}

// LineItem — позиция счёта. Цена может быть отрицательной (скидка).
type LineItem struct {
	Description string
	Price       decimal.Decimal
}

// NewLineItem создаёт позицию, отклоняя пустое описание.
func NewLineItem(description string, price decimal.Decimal) (LineItem, error) {
	if strings.TrimSpace(description) == "" {
		return LineItem{}, ErrItemDescriptionRequired
	}
	return LineItem{Description: strings.TrimSpace(description), Price: price}, nil
}

// Equal сравнивает позиции; цены сравниваются численно,
// поэтому 10.00 и 10 считаются равными.
func (li LineItem) Equal(other LineItem) bool {
	return li.Description == other.Description && li.Price.Equal(other.Price)
}

// Payment — платёж по счёту. После добавления не изменяется.
type Payment struct {
	ID        string
	Amount    decimal.Decimal
	Method    string
	Date      time.Time
	Reference string
}

// Invoice агрегирует счёт: клиента, дату, позиции и историю платежей.
// Порядок Items — порядок добавления; порядок Payments — порядок записи,
// хронологическое представление даёт PaymentHistory.
type Invoice struct {
	ID           string
	CustomerName string
	Date         time.Time
	Items        []LineItem
	Payments     []Payment
}

// NewInvoice создаёт счёт с новым идентификатором и сегодняшней датой.
func NewInvoice(customerName string) (Invoice, error) {
	name := strings.TrimSpace(customerName)
	if name == "" {
		return Invoice{}, ErrCustomerNameRequired
	}
	return Invoice{
		ID:           uuid.NewString(),
		CustomerName: name,
		Date:         Today(),
	}, nil
}

// RestoreInvoice восстанавливает счёт из хранилища; позиции и платежи
// прикрепляются вызывающей стороной.
func RestoreInvoice(id, customerName string, date time.Time) (Invoice, error) {
	if strings.TrimSpace(id) == "" {
		return Invoice{}, ErrInvoiceIDRequired
	}
	if strings.TrimSpace(customerName) == "" {
		return Invoice{}, ErrCustomerNameRequired
	}
	if date.IsZero() {
		return Invoice{}, ErrInvoiceDateRequired
	}
	return Invoice{
		ID:           strings.TrimSpace(id),
		CustomerName: strings.TrimSpace(customerName),
		Date:         DateOnly(date),
	}, nil
}

// SetCustomerName переименовывает клиента, отклоняя пустые значения.
func (inv *Invoice) SetCustomerName(customerName string) error {
	name := strings.TrimSpace(customerName)
	if name == "" {
		return ErrCustomerNameRequired
	}
	inv.CustomerName = name
	return nil
}

// AddItem добавляет позицию в конец списка.
func (inv *Invoice) AddItem(item LineItem) error {
	if strings.TrimSpace(item.Description) == "" {
		return ErrItemDescriptionRequired
	}
	inv.Items = append(inv.Items, item)
	return nil
}

// AddPayment добавляет платёж. Сумма должна быть положительной и не
// превышать остаток на момент добавления. Нулевая дата when означает
// "сегодня".
func (inv *Invoice) AddPayment(amount decimal.Decimal, method string, when time.Time, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrPaymentAmountNotPositive
	}
	if strings.TrimSpace(method) == "" {
		return ErrPaymentMethodRequired
	}
	if amount.GreaterThan(inv.RemainingBalance()) {
		return ErrOverpayment
	}

	date := Today()
	if !when.IsZero() {
		date = DateOnly(when)
	}
	inv.Payments = append(inv.Payments, Payment{
		ID:        uuid.NewString(),
		Amount:    amount,
		Method:    strings.TrimSpace(method),
		Date:      date,
		Reference: reference,
	})
	return nil
}

// PaymentHistory возвращает копию платежей, отсортированную по дате
// по возрастанию; при равных датах сохраняется порядок записи.
func (inv *Invoice) PaymentHistory() []Payment {
	history := make([]Payment, len(inv.Payments))
	copy(history, inv.Payments)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Date.Before(history[j].Date)
	})
	return history
}

// Total — сумма цен всех позиций.
func (inv *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.Price)
	}
	return total
}

// AmountPaid — сумма всех платежей.
func (inv *Invoice) AmountPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range inv.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// RemainingBalance — остаток к оплате: Total минус AmountPaid.
func (inv *Invoice) RemainingBalance() decimal.Decimal {
	return inv.Total().Sub(inv.AmountPaid())
}

// IsPaid — счёт оплачен, если остаток неположителен. Пустой счёт без
// платежей считается оплаченным (остаток равен нулю).
func (inv *Invoice) IsPaid() bool {
	return inv.RemainingBalance().LessThanOrEqual(decimal.Zero)
}

// LastPaymentDate возвращает дату последнего записанного платежа
// или нулевое время, если платежей не было.
func (inv *Invoice) LastPaymentDate() time.Time {
	if len(inv.Payments) == 0 {
		return time.Time{}
	}
	return inv.Payments[len(inv.Payments)-1].Date
}

// LastPaymentMethod возвращает способ последнего записанного платежа.
func (inv *Invoice) LastPaymentMethod() string {
	if len(inv.Payments) == 0 {
		return ""
	}
	return inv.Payments[len(inv.Payments)-1].Method
}

// Clone возвращает глубокую копию счёта; слайсы не разделяются.
func (inv Invoice) Clone() Invoice {
	cp := inv
	cp.Items = make([]LineItem, len(inv.Items))
	copy(cp.Items, inv.Items)
	cp.Payments = make([]Payment, len(inv.Payments))
	copy(cp.Payments, inv.Payments)
	return cp
}
