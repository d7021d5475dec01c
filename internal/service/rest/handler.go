package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/marekforys/invoice-crud-system/internal/domain"
	"github.com/marekforys/invoice-crud-system/internal/metrics"
	invoicesvc "github.com/marekforys/invoice-crud-system/internal/service/invoice"
)

// Handler реализует REST API поверх сервиса счетов.
type Handler struct {
	svc     *invoicesvc.Service
	logger  *log.Entry
	metrics *metrics.InvoiceMetrics
}

// NewHandler конструирует обработчик с зависимостями. metrics может быть nil.
func NewHandler(svc *invoicesvc.Service, logger *log.Entry, m *metrics.InvoiceMetrics) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "rest")
	}
	return &Handler{svc: svc, logger: logger, metrics: m}
}

// NewRouter собирает gin-движок со всеми маршрутами API.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.corsMiddleware(), h.timingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.GET("/invoices", h.listInvoices)
	router.GET("/invoices/:id", h.getInvoice)
	router.GET("/search", h.searchInvoices)
	router.POST("/invoices", h.createInvoice)
	router.POST("/invoices/:id/items", h.addLineItem)
	router.PUT("/invoices/:id/items", h.updateLineItems)
	router.POST("/invoices/:id/payments", h.addPayment)
	router.GET("/invoices/:id/payments", h.paymentHistory)
	router.DELETE("/invoices/:id", h.deleteInvoice)

	return router
}

// corsMiddleware выставляет разрешительные CORS-заголовки и отвечает
// на preflight-запросы.
func (h *Handler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			c.String(http.StatusOK, "OK")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) timingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.RecordOperationDuration(c.Request.Method+" "+route, time.Since(start))
	}
}

type lineItemBody struct {
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

type createInvoiceBody struct {
	CustomerName string         `json:"customerName"`
	Name         string         `json:"name"` // запасное имя поля из старых клиентов
	Items        []lineItemBody `json:"items"`
}

type updateItemsBody struct {
	Items []lineItemBody `json:"items"`
}

type addPaymentBody struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Date      string          `json:"date"` // ISO yyyy-mm-dd
	Reference string          `json:"reference"`
}

func (h *Handler) listInvoices(c *gin.Context) {
	invoices, err := h.svc.GetAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTOs(invoices))
}

func (h *Handler) getInvoice(c *gin.Context) {
	inv, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTO(inv))
}

// searchInvoices различает отсутствующий и пустой параметр q: без
// параметра результат пуст, пустая строка означает "без фильтра".
func (h *Handler) searchInvoices(c *gin.Context) {
	q, ok := c.GetQuery("q")
	if !ok {
		c.JSON(http.StatusOK, []invoiceDTO{})
		return
	}
	invoices, err := h.svc.Search(c.Request.Context(), q)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTOs(invoices))
}

func (h *Handler) createInvoice(c *gin.Context) {
	var body createInvoiceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	customerName := body.CustomerName
	if customerName == "" {
		customerName = body.Name
	}

	items, err := toLineItems(body.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}

	inv, err := h.svc.CreateInvoice(c.Request.Context(), customerName, items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toInvoiceDTO(inv))
}

func (h *Handler) addLineItem(c *gin.Context) {
	var body lineItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if body.Price == nil {
		h.respondError(c, domain.ErrItemPriceRequired)
		return
	}

	inv, err := h.svc.AddLineItem(c.Request.Context(), c.Param("id"), body.Description, *body.Price)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) updateLineItems(c *gin.Context) {
	var body updateItemsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	items, err := toLineItems(body.Items)
	if err != nil {
		h.respondError(c, err)
		return
	}

	inv, err := h.svc.UpdateLineItems(c.Request.Context(), c.Param("id"), items)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) addPayment(c *gin.Context) {
	var body addPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var when time.Time
	if body.Date != "" {
		parsed, err := time.ParseInLocation(domain.DateLayout, body.Date, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment date, expected yyyy-mm-dd"})
			return
		}
		when = parsed
	}

	inv, err := h.svc.AddPayment(c.Request.Context(), c.Param("id"), body.Amount, body.Method, when, body.Reference)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceDTO(inv))
}

func (h *Handler) paymentHistory(c *gin.Context) {
	payments, err := h.svc.PaymentHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentDTOs(payments))
}

func (h *Handler) deleteInvoice(c *gin.Context) {
	removed, err := h.svc.DeleteInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError переводит доменную таксономию ошибок в HTTP-статусы:
// валидация — 400, отсутствие счёта — 404, остальное — 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.logger.WithError(err).Error("внутренняя ошибка при обработке запроса")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}

func toLineItems(bodies []lineItemBody) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, 0, len(bodies))
	for _, b := range bodies {
		if b.Description == "" && b.Price == nil {
			// Нулевые элементы списка молча пропускаются.
			continue
		}
		if b.Price == nil {
			return nil, domain.ErrItemPriceRequired
		}
		items = append(items, domain.LineItem{Description: b.Description, Price: *b.Price})
	}
	return items, nil
}
