package rest

import (
	"github.com/marekforys/invoice-crud-system/internal/domain"
)

// DTO отдают деньги точными десятичными строками, а даты — ISO-строками,
// чтобы JSON-клиенты не теряли точность на float.
type invoiceDTO struct {
	ID               string        `json:"id"`
	CustomerName     string        `json:"customerName"`
	Date             string        `json:"date"`
	Total            string        `json:"total"`
	Paid             bool          `json:"paid"`
	AmountPaid       string        `json:"amountPaid"`
	RemainingBalance string        `json:"remainingBalance"`
	Items            []lineItemDTO `json:"items"`
	PaymentHistory   []paymentDTO  `json:"paymentHistory"`
}

type lineItemDTO struct {
	Description string `json:"description"`
	Price       string `json:"price"`
}

type paymentDTO struct {
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Date      string `json:"date"`
	Reference string `json:"reference"`
}

func toInvoiceDTO(inv domain.Invoice) invoiceDTO {
	items := make([]lineItemDTO, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, lineItemDTO{
			Description: item.Description,
			Price:       item.Price.String(),
		})
	}

	return invoiceDTO{
		ID:               inv.ID,
		CustomerName:     inv.CustomerName,
		Date:             inv.Date.Format(domain.DateLayout),
		Total:            inv.Total().String(),
		Paid:             inv.IsPaid(),
		AmountPaid:       inv.AmountPaid().String(),
		RemainingBalance: inv.RemainingBalance().String(),
		Items:            items,
		PaymentHistory:   toPaymentDTOs(inv.PaymentHistory()),
	}
}

func toInvoiceDTOs(invoices []domain.Invoice) []invoiceDTO {
	dtos := make([]invoiceDTO, 0, len(invoices))
	for _, inv := range invoices {
		dtos = append(dtos, toInvoiceDTO(inv))
	}
	return dtos
}

func toPaymentDTOs(payments []domain.Payment) []paymentDTO {
	dtos := make([]paymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, paymentDTO{
			Amount:    p.Amount.String(),
			Method:    p.Method,
			Date:      p.Date.Format(domain.DateLayout),
			Reference: p.Reference,
		})
	}
	return dtos
}
