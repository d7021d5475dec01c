package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/marekforys/invoice-crud-system/internal/domain"
)

func newMockRepo(t *testing.T) (*invoiceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &invoiceRepository{db: db}, mock
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func testInvoice(t *testing.T) domain.Invoice {
	t.Helper()
	inv, err := domain.RestoreInvoice("inv-1", "Acme Co", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	inv.Items = []domain.LineItem{{Description: "Consulting", Price: mustDecimal(t, "100.00")}}
	inv.Payments = []domain.Payment{{
		ID:        "pay-1",
		Amount:    mustDecimal(t, "40.00"),
		Method:    "CASH",
		Date:      time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Reference: "ref-1",
	}}
	return inv
}

func expectHydration(mock sqlmock.Sqlmock, invoiceID string, items, payments *sqlmock.Rows) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT description, price")).
		WithArgs(invoiceID).
		WillReturnRows(items)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, amount, method, date, reference")).
		WithArgs(invoiceID).
		WillReturnRows(payments)
}

func emptyItems() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"description", "price"})
}

func emptyPayments() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "amount", "method", "date", "reference"})
}

func TestSave_UpsertAndReplaceChildrenInOneTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	inv := testInvoice(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs("inv-1", "Acme Co", "2024-03-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM line_items WHERE invoice_id = $1")).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM payments WHERE invoice_id = $1")).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO line_items")).
		WithArgs("inv-1", "Consulting", "100.00", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs("pay-1", "inv-1", "40.00", "CASH", "2024-03-02", "ref-1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	saved, err := repo.Save(context.Background(), inv)
	require.NoError(t, err)
	require.Equal(t, "inv-1", saved.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_RollsBackOnChildFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	inv := testInvoice(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs("inv-1", "Acme Co", "2024-03-01").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM line_items WHERE invoice_id = $1")).
		WithArgs("inv-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Save(context.Background(), inv)
	require.True(t, domain.IsStorage(err), "expected storage error, got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_HydratesChildrenInOrder(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_name, date")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}).
			AddRow("inv-1", "Acme Co", "2024-03-01"))
	expectHydration(mock, "inv-1",
		emptyItems().
			AddRow("Consulting", "100.00").
			AddRow("Cloud Services", "25.50"),
		emptyPayments().
			AddRow("pay-1", "40.00", "CASH", "2024-03-02", "").
			AddRow("pay-2", "60.00", "CARD", "2024-03-03", "ref-2"))

	inv, err := repo.FindByID(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Equal(t, "Acme Co", inv.CustomerName)
	require.Len(t, inv.Items, 2)
	require.Equal(t, "Consulting", inv.Items[0].Description)
	require.True(t, inv.Items[1].Price.Equal(mustDecimal(t, "25.50")))
	require.Len(t, inv.Payments, 2)
	require.Equal(t, "pay-1", inv.Payments[0].ID)
	require.True(t, inv.IsPaid())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_name, date")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}))

	_, err := repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_BlankQueryFallsBackToFindAll(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}))

	invoices, err := repo.Search(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, invoices)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_LowercasesLikePattern(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN line_items")).
		WithArgs("%cloud%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}).
			AddRow("inv-1", "Acme Co", "2024-03-01"))
	expectHydration(mock, "inv-1",
		emptyItems().AddRow("Cloud Services", "25.50"),
		emptyPayments())

	invoices, err := repo.Search(context.Background(), "  CLOUd  ")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "Cloud Services", invoices[0].Items[0].Description)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invoices WHERE id = $1")).
		WithArgs("inv-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := repo.DeleteByID(context.Background(), "inv-1")
	require.NoError(t, err)
	require.True(t, removed)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invoices WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err = repo.DeleteByID(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPayment_InsertsRowWithinTx(t *testing.T) {
	repo, mock := newMockRepo(t)
	when := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_name, date")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}).
			AddRow("inv-1", "Acme Co", "2024-03-01"))
	expectHydration(mock, "inv-1",
		emptyItems().AddRow("Consulting", "100.00"),
		emptyPayments().AddRow("pay-1", "40.00", "CASH", "2024-03-02", ""))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(sqlmock.AnyArg(), "inv-1", "60.00", "CARD", "2024-03-05", "ref-2", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	inv, err := repo.AddPayment(context.Background(), "inv-1", mustDecimal(t, "60.00"), "CARD", when, "ref-2")
	require.NoError(t, err)
	require.True(t, inv.IsPaid())
	require.Len(t, inv.Payments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPayment_OverpaymentRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, customer_name, date")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_name", "date"}).
			AddRow("inv-1", "Acme Co", "2024-03-01"))
	expectHydration(mock, "inv-1",
		emptyItems().AddRow("Consulting", "100.00"),
		emptyPayments().AddRow("pay-1", "90.00", "CASH", "2024-03-02", ""))
	mock.ExpectRollback()

	_, err := repo.AddPayment(context.Background(), "inv-1", mustDecimal(t, "20.00"), "CARD", time.Time{}, "")
	require.ErrorIs(t, err, domain.ErrOverpayment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHistory(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoices WHERE id = $1")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("inv-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, amount, method, date, reference")).
		WithArgs("inv-1").
		WillReturnRows(emptyPayments().
			AddRow("pay-1", "20.00", "CARD", "2023-01-01", "").
			AddRow("pay-2", "30.00", "CASH", "2023-01-02", ""))

	history, err := repo.PaymentHistory(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "pay-1", history[0].ID)
	require.True(t, history[1].Amount.Equal(mustDecimal(t, "30.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentHistory_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoices WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.PaymentHistory(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrInvoiceNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
