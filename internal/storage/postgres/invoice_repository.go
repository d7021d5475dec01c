package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marekforys/invoice-crud-system/internal/domain"
)

const opTimeout = 5 * time.Second

type invoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository создаёт PostgreSQL-реализацию InvoiceRepository.
func NewInvoiceRepository(store *Store) domain.InvoiceRepository {
	return &invoiceRepository{db: store.DB()}
}

// querier объединяет *sql.DB и *sql.Tx для загрузки дочерних строк.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Save выполняет upsert заголовка и полную замену дочерних строк
// (удаление + повторная вставка) одной транзакцией.
func (r *invoiceRepository) Save(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, storageErr("begin tx", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsertInvoiceTx(ctx, tx, inv); err != nil {
		return domain.Invoice{}, err
	}
	if err = replaceChildrenTx(ctx, tx, inv); err != nil {
		return domain.Invoice{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Invoice{}, storageErr("commit save invoice", err)
	}

	return inv, nil
}

// FindByID загружает заголовок и оба дочерних набора.
func (r *invoiceRepository) FindByID(ctx context.Context, id string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return loadInvoice(ctx, r.db, id)
}

// FindAll гидратирует каждый счёт отдельно: один запрос заголовков и по
// два запроса дочерних строк на счёт.
func (r *invoiceRepository) FindAll(ctx context.Context) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.queryInvoices(ctx, `
		SELECT id, customer_name, date
		FROM invoices
	`)
}

// Search ищет подстроку без учёта регистра в имени клиента или описании
// позиции; пустой после обрезки запрос означает "без фильтра".
func (r *invoiceRepository) Search(ctx context.Context, query string) ([]domain.Invoice, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return r.FindAll(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	like := "%" + strings.ToLower(q) + "%"
	return r.queryInvoices(ctx, `
		SELECT DISTINCT i.id, i.customer_name, i.date
		FROM invoices i
		LEFT JOIN line_items li ON li.invoice_id = i.id
		WHERE LOWER(i.customer_name) LIKE $1
		   OR LOWER(li.description) LIKE $1
	`, like)
}

// DeleteByID удаляет заголовок; дочерние строки снимает каскад схемы.
func (r *invoiceRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return false, storageErr("delete invoice", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("delete invoice rows affected", err)
	}
	return affected > 0, nil
}

// AddPayment загружает агрегат, применяет доменную проверку платежа и
// вставляет новую строку платежа в той же транзакции.
func (r *invoiceRepository) AddPayment(ctx context.Context, id string, amount decimal.Decimal, method string, when time.Time, reference string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, storageErr("begin tx", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var inv domain.Invoice
	inv, err = loadInvoice(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, err
	}

	if err = inv.AddPayment(amount, method, when, reference); err != nil {
		return domain.Invoice{}, err
	}

	added := inv.Payments[len(inv.Payments)-1]
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, date, reference, position)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		added.ID, inv.ID, added.Amount.String(), added.Method,
		added.Date.Format(domain.DateLayout), added.Reference, len(inv.Payments)-1,
	); err != nil {
		return domain.Invoice{}, storageErr("insert payment", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Invoice{}, storageErr("commit add payment", err)
	}

	return inv, nil
}

// PaymentHistory читает платежи в хронологическом порядке без гидратации
// остального агрегата.
func (r *invoiceRepository) PaymentHistory(ctx context.Context, id string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM invoices WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, storageErr("check invoice exists", err)
	}

	return loadPayments(ctx, r.db, id)
}

func (r *invoiceRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list invoices", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoiceRow(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate invoice rows", err)
	}

	for i := range invoices {
		if err := hydrate(ctx, r.db, &invoices[i]); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

func upsertInvoiceTx(ctx context.Context, tx *sql.Tx, inv domain.Invoice) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (id, customer_name, date)
		VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET
			customer_name = excluded.customer_name,
			date = excluded.date
	`, inv.ID, inv.CustomerName, inv.Date.Format(domain.DateLayout)); err != nil {
		return storageErr("upsert invoice", err)
	}
	return nil
}

// replaceChildrenTx реализует семантику "save — единственный источник
// истины": старые дочерние строки удаляются, текущее состояние агрегата
// вставляется заново.
func replaceChildrenTx(ctx context.Context, tx *sql.Tx, inv domain.Invoice) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM line_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return storageErr("delete line items", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE invoice_id = $1`, inv.ID); err != nil {
		return storageErr("delete payments", err)
	}

	for i, item := range inv.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO line_items (invoice_id, description, price, position)
			VALUES ($1,$2,$3,$4)
		`, inv.ID, item.Description, item.Price.String(), i); err != nil {
			return storageErr("insert line item", err)
		}
	}

	for i, p := range inv.Payments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, invoice_id, amount, method, date, reference, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, p.ID, inv.ID, p.Amount.String(), p.Method, p.Date.Format(domain.DateLayout), p.Reference, i); err != nil {
			return storageErr("insert payment", err)
		}
	}

	return nil
}

func loadInvoice(ctx context.Context, q querier, id string) (domain.Invoice, error) {
	var (
		invoiceID string
		customer  string
		date      string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, customer_name, date
		FROM invoices
		WHERE id = $1
	`, id).Scan(&invoiceID, &customer, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return domain.Invoice{}, storageErr("select invoice", err)
	}

	inv, err := restoreInvoiceRow(invoiceID, customer, date)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := hydrate(ctx, q, &inv); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func hydrate(ctx context.Context, q querier, inv *domain.Invoice) error {
	items, err := loadItems(ctx, q, inv.ID)
	if err != nil {
		return err
	}
	payments, err := loadPayments(ctx, q, inv.ID)
	if err != nil {
		return err
	}
	inv.Items = items
	inv.Payments = payments
	return nil
}

func loadItems(ctx context.Context, q querier, invoiceID string) ([]domain.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT description, price
		FROM line_items
		WHERE invoice_id = $1
		ORDER BY position ASC
	`, invoiceID)
	if err != nil {
		return nil, storageErr("load line items", err)
	}
	defer rows.Close()

	items := make([]domain.LineItem, 0)
	for rows.Next() {
		var (
			description string
			priceRaw    string
		)
		if err := rows.Scan(&description, &priceRaw); err != nil {
			return nil, storageErr("scan line item", err)
		}
		price, err := decimal.NewFromString(priceRaw)
		if err != nil {
			return nil, storageErr("parse line item price", err)
		}
		items = append(items, domain.LineItem{Description: description, Price: price})
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate line items", err)
	}

	return items, nil
}

// loadPayments возвращает платежи в хронологическом порядке; равные даты
// упорядочены позицией записи.
func loadPayments(ctx context.Context, q querier, invoiceID string) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, amount, method, date, reference
		FROM payments
		WHERE invoice_id = $1
		ORDER BY date ASC, position ASC
	`, invoiceID)
	if err != nil {
		return nil, storageErr("load payments", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var (
			p         domain.Payment
			amountRaw string
			dateRaw   string
		)
		if err := rows.Scan(&p.ID, &amountRaw, &p.Method, &dateRaw, &p.Reference); err != nil {
			return nil, storageErr("scan payment", err)
		}
		if p.Amount, err = decimal.NewFromString(amountRaw); err != nil {
			return nil, storageErr("parse payment amount", err)
		}
		if p.Date, err = time.ParseInLocation(domain.DateLayout, dateRaw, time.UTC); err != nil {
			return nil, storageErr("parse payment date", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate payments", err)
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoiceRow(rs rowScanner) (domain.Invoice, error) {
	var id, customer, date string
	if err := rs.Scan(&id, &customer, &date); err != nil {
		return domain.Invoice{}, storageErr("scan invoice row", err)
	}
	return restoreInvoiceRow(id, customer, date)
}

func restoreInvoiceRow(id, customer, dateRaw string) (domain.Invoice, error) {
	date, err := time.ParseInLocation(domain.DateLayout, dateRaw, time.UTC)
	if err != nil {
		return domain.Invoice{}, storageErr("parse invoice date", err)
	}
	inv, err := domain.RestoreInvoice(id, customer, date)
	if err != nil {
		return domain.Invoice{}, storageErr("restore invoice", err)
	}
	return inv, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}

var _ domain.InvoiceRepository = (*invoiceRepository)(nil)
