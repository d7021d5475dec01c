package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/marekforys/invoice-crud-system/internal/storage/memory"

	invoicesvc "github.com/marekforys/invoice-crud-system/internal/service/invoice"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newTestRouter() *gin.Engine {
	svc := invoicesvc.NewService(memory.NewInvoiceRepository(), nil, nil)
	return NewRouter(NewHandler(svc, nil, nil))
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeInvoice(t *testing.T, rec *httptest.ResponseRecorder) invoiceDTO {
	t.Helper()
	var dto invoiceDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto
}

func createTestInvoice(t *testing.T, router *gin.Engine) invoiceDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/invoices", gin.H{
		"customerName": "Acme Co",
		"items": []gin.H{
			{"description": "Consulting", "price": "100.00"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeInvoice(t, rec)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestCreateInvoice_ReturnsComputedFields(t *testing.T) {
	router := newTestRouter()

	dto := createTestInvoice(t, router)
	require.NotEmpty(t, dto.ID)
	require.Equal(t, "Acme Co", dto.CustomerName)
	require.Equal(t, "100.00", dto.Total)
	require.Equal(t, "0", dto.AmountPaid)
	require.Equal(t, "100.00", dto.RemainingBalance)
	require.False(t, dto.Paid)
	require.Len(t, dto.Items, 1)
	require.Empty(t, dto.PaymentHistory)
}

func TestCreateInvoice_LegacyNameField(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/invoices", gin.H{"name": "Globex"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "Globex", decodeInvoice(t, rec).CustomerName)
}

func TestCreateInvoice_Validation(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/invoices", gin.H{"customerName": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Позиция без цены отклоняется до обращения к сервису.
	rec = doJSON(t, router, http.MethodPost, "/invoices", gin.H{
		"customerName": "Acme Co",
		"items":        []gin.H{{"description": "Consulting"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetInvoice(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodGet, "/invoices/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, created.ID, decodeInvoice(t, rec).ID)

	rec = doJSON(t, router, http.MethodGet, "/invoices/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListInvoices(t *testing.T) {
	router := newTestRouter()
	createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodGet, "/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dtos []invoiceDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)
}

func TestSearch_QueryParamSemantics(t *testing.T) {
	router := newTestRouter()
	createTestInvoice(t, router)

	// Без параметра q результат всегда пуст.
	rec := doJSON(t, router, http.MethodGet, "/search", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dtos []invoiceDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Empty(t, dtos)

	// Пустая строка означает "без фильтра".
	rec = doJSON(t, router, http.MethodGet, "/search?q=", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)

	rec = doJSON(t, router, http.MethodGet, "/search?q=consult", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Len(t, dtos, 1)

	rec = doJSON(t, router, http.MethodGet, "/search?q=warehouse", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dtos))
	require.Empty(t, dtos)
}

func TestAddLineItem(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/items", gin.H{
		"description": "Cloud Services",
		"price":       "25.50",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeInvoice(t, rec)
	require.Len(t, dto.Items, 2)
	require.Equal(t, "125.50", dto.Total)

	rec = doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/items", gin.H{
		"description": "No price",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateLineItems(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodPut, "/invoices/"+created.ID+"/items", gin.H{
		"items": []gin.H{
			{"description": "Support", "price": "50.00"},
			{"description": "Hosting", "price": "30.00"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeInvoice(t, rec)
	require.Len(t, dto.Items, 2)
	require.Equal(t, "80.00", dto.Total)
}

func TestPaymentsFlow(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/payments", gin.H{
		"amount": "40.00",
		"method": "CASH",
		"date":   "2024-03-02",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeInvoice(t, rec)
	require.Equal(t, "40.00", dto.AmountPaid)
	require.False(t, dto.Paid)

	rec = doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/payments", gin.H{
		"amount":    "60.00",
		"method":    "CARD",
		"reference": "wire-7",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	dto = decodeInvoice(t, rec)
	require.True(t, dto.Paid)
	require.Equal(t, "0.00", dto.RemainingBalance)

	rec = doJSON(t, router, http.MethodGet, "/invoices/"+created.ID+"/payments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payments []paymentDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payments))
	require.Len(t, payments, 2)
	require.Equal(t, "2024-03-02", payments[0].Date)
	require.Equal(t, "wire-7", payments[1].Reference)
}

func TestAddPayment_Errors(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	// Переплата.
	rec := doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/payments", gin.H{
		"amount": "150.00",
		"method": "CASH",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Некорректная дата.
	rec = doJSON(t, router, http.MethodPost, "/invoices/"+created.ID+"/payments", gin.H{
		"amount": "10.00",
		"method": "CASH",
		"date":   "03/02/2024",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Несуществующий счёт.
	rec = doJSON(t, router, http.MethodPost, "/invoices/missing/payments", gin.H{
		"amount": "10.00",
		"method": "CASH",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteInvoice(t *testing.T) {
	router := newTestRouter()
	created := createTestInvoice(t, router)

	rec := doJSON(t, router, http.MethodDelete, "/invoices/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/invoices/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/invoices", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}
