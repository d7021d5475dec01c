package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvoiceMetrics содержит метрики операций со счетами.
// Нулевой указатель безопасен: запись метрик тогда не выполняется.
type InvoiceMetrics struct {
	invoicesCreated  prometheus.Counter
	invoicesDeleted  prometheus.Counter
	paymentsRecorded prometheus.Counter

	opDuration *prometheus.HistogramVec
}

// NewInvoiceMetrics создаёт метрики в default-реестре prometheus.
func NewInvoiceMetrics() *InvoiceMetrics {
	return newInvoiceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newInvoiceMetricsWithRegisterer(registerer prometheus.Registerer) *InvoiceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &InvoiceMetrics{
		invoicesCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "invoice_created_total",
			Help: "Total number of invoices created",
		}),
		invoicesDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "invoice_deleted_total",
			Help: "Total number of invoices deleted",
		}),
		paymentsRecorded: registerCounter(registerer, prometheus.CounterOpts{
			Name: "invoice_payments_recorded_total",
			Help: "Total number of payments recorded against invoices",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "invoice_operation_duration_seconds",
			Help:    "Duration of invoice service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordInvoiceCreated увеличивает счётчик созданных счетов.
func (m *InvoiceMetrics) RecordInvoiceCreated() {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc()
}

// RecordInvoiceDeleted увеличивает счётчик удалённых счетов.
func (m *InvoiceMetrics) RecordInvoiceDeleted() {
	if m == nil {
		return
	}
	m.invoicesDeleted.Inc()
}

// RecordPaymentRecorded увеличивает счётчик записанных платежей.
func (m *InvoiceMetrics) RecordPaymentRecorded() {
	if m == nil {
		return
	}
	m.paymentsRecorded.Inc()
}

// RecordOperationDuration записывает длительность операции сервиса.
func (m *InvoiceMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
