package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "service_orders_created_total",
		Help: "Total number of service orders created",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "service_orders_completed_total",
		Help: "Total number of service orders completed",
	})

	OrdersReopenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "service_orders_reopened_total",
		Help: "Total number of completed service orders reopened",
	})

	OrdersCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "service_orders_canceled_total",
		Help: "Total number of service orders canceled",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "service_orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"operation", "reason"})

	StockMovementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_total",
		Help: "Total number of stock movements recorded",
	}, []string{"type"})

	StockUnderflowTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_underflow_total",
		Help: "Total number of consumptions allowed below zero stock",
	})

	IncomeRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "income_transactions_recorded_total",
		Help: "Total number of income ledger entries recorded",
	})

	CompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_completion_latency_seconds",
		Help:    "Latency of the order completion workflow",
		Buckets: prometheus.DefBuckets,
	})

	ReopenLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_reopen_latency_seconds",
		Help:    "Latency of the order reopening workflow",
		Buckets: prometheus.DefBuckets,
	})

	InvoicesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiscal_invoices_issued_total",
		Help: "Total number of fiscal invoice stubs issued",
	})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of low stock alerts raised",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
