package domain

import (
	"errors"
	"fmt"
)

// Маркеры категорий ошибок. Конкретные ошибки валидации оборачивают
// ErrValidation, поэтому их можно классифицировать через errors.Is.
var (
	// ErrValidation — входные данные нарушают предусловие; вызывающая
	// сторона может исправить запрос и повторить.
	ErrValidation = errors.New("validation failed")
	// ErrStorage — сбой слоя хранения; частичные записи уже откатаны.
	ErrStorage = errors.New("storage failure")
	// ErrInvoiceNotFound возвращается, если счёт не найден в репозитории.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

var (
	// Ошибка пустого идентификатора счёта.
	ErrInvoiceIDRequired = fmt.Errorf("%w: invoice id is required", ErrValidation)
	// Ошибка пустого имени клиента.
	ErrCustomerNameRequired = fmt.Errorf("%w: customer name is required", ErrValidation)
	// Ошибка отсутствующей даты счёта.
	ErrInvoiceDateRequired = fmt.Errorf("%w: invoice date is required", ErrValidation)
	// Ошибка пустого описания позиции.
	ErrItemDescriptionRequired = fmt.Errorf("%w: item description is required", ErrValidation)
	// Ошибка отсутствующей цены позиции.
	ErrItemPriceRequired = fmt.Errorf("%w: item price is required", ErrValidation)
	// Ошибка неположительной суммы платежа.
	ErrPaymentAmountNotPositive = fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	// Ошибка пустого способа оплаты.
	ErrPaymentMethodRequired = fmt.Errorf("%w: payment method is required", ErrValidation)
	// ErrOverpayment — платёж превышает остаток по счёту.
	ErrOverpayment = fmt.Errorf("%w: payment amount exceeds remaining balance", ErrValidation)
)

// IsValidation проверяет, относится ли ошибка к категории валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, является ли ошибка отсутствием счёта.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound)
}

// IsStorage проверяет, является ли ошибка сбоем хранилища.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
