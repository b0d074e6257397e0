package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/service"
	"marealta-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	inventory *service.InventoryService
	finance   *service.FinanceService
	registry  *service.RegistryService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	inventory *service.InventoryService,
	finance *service.FinanceService,
	registry *service.RegistryService,
) *Handler {
	return &Handler{
		orders:    orders,
		inventory: inventory,
		finance:   finance,
		registry:  registry,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.authMiddleware())
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id", h.updateOrderDetails)
		v1.POST("/orders/:id/items", h.addItem)
		v1.PUT("/orders/:id/items/:itemID", h.editItem)
		v1.DELETE("/orders/:id/items/:itemID", h.removeItem)
		v1.PATCH("/orders/:id/status", h.setStatus)
		v1.POST("/orders/:id/complete", h.completeOrder)
		v1.POST("/orders/:id/reopen", h.reopenOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		v1.GET("/parts", h.listParts)
		v1.POST("/parts", h.createPart)
		v1.GET("/parts/:id", h.getPart)
		v1.PUT("/parts/:id", h.updatePart)
		v1.GET("/parts/:id/movements", h.listPartMovements)
		v1.POST("/parts/:id/receive", h.receiveStock)
		v1.POST("/parts/:id/adjust", h.adjustStock)
		v1.GET("/movements", h.listMovements)

		v1.GET("/transactions", h.listTransactions)
		v1.POST("/transactions/expenses", h.recordExpense)
		v1.POST("/transactions/:id/cancel", h.cancelTransaction)

		v1.GET("/clients", h.listClients)
		v1.POST("/clients", h.createClient)
		v1.GET("/clients/:id", h.getClient)
		v1.PUT("/clients/:id", h.updateClient)
		v1.GET("/boats", h.listBoats)
		v1.POST("/boats", h.createBoat)
		v1.GET("/boats/:id", h.getBoat)
		v1.PUT("/boats/:id", h.updateBoat)
		v1.GET("/marinas", h.listMarinas)
		v1.POST("/marinas", h.createMarina)
		v1.GET("/marinas/:id", h.getMarina)
		v1.PUT("/marinas/:id", h.updateMarina)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// authMiddleware resolves the bearer token against the users collection.
// The token is an opaque lookup, nothing more.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(token) > len(prefix) && token[:len(prefix)] == prefix {
			token = token[len(prefix):]
		}

		user, err := h.registry.UserByToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve token"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
			return
		}

		c.Set("user_name", user.Name)
		c.Set("user_role", user.Role)
		c.Next()
	}
}

func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderDetails(c *gin.Context) {
	var req service.UpdateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.UpdateDetails(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.AddItem(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type editItemRequest struct {
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

func (h *Handler) editItem(c *gin.Context) {
	var req editItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.EditItem(c.Request.Context(), c.Param("id"), c.Param("itemID"), req.Quantity, req.UnitPrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) removeItem(c *gin.Context) {
	order, err := h.orders.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) setStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orders.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) completeOrder(c *gin.Context) {
	order, err := h.orders.Complete(c.Request.Context(), c.Param("id"), c.GetString("user_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) reopenOrder(c *gin.Context) {
	order, err := h.orders.Reopen(c.Request.Context(), c.Param("id"), c.GetString("user_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type cancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listParts(c *gin.Context) {
	parts, err := h.registry.ListParts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parts": parts})
}

func (h *Handler) getPart(c *gin.Context) {
	part, err := h.registry.GetPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, part)
}

func (h *Handler) createPart(c *gin.Context) {
	var part models.Part
	if err := c.ShouldBindJSON(&part); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.registry.CreatePart(c.Request.Context(), part)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type receiveStockRequest struct {
	Quantity int             `json:"quantity" binding:"required,min=1"`
	UnitCost decimal.Decimal `json:"unit_cost" binding:"required"`
	Reason   string          `json:"reason"`
}

func (h *Handler) receiveStock(c *gin.Context) {
	var req receiveStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "Entrada por nota fiscal"
	}

	part, movement, err := h.inventory.Receive(c.Request.Context(),
		c.Param("id"), req.Quantity, req.UnitCost, req.Reason, c.GetString("user_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part": part, "movement": movement})
}

type adjustStockRequest struct {
	NewQuantity *int   `json:"new_quantity" binding:"required"`
	Reason      string `json:"reason"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req adjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Reason == "" {
		req.Reason = "Ajuste de inventário"
	}

	part, movement, err := h.inventory.Adjust(c.Request.Context(),
		c.Param("id"), *req.NewQuantity, req.Reason, c.GetString("user_name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"part": part, "movement": movement})
}

func (h *Handler) listPartMovements(c *gin.Context) {
	movements, err := h.registry.ListMovements(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func (h *Handler) listMovements(c *gin.Context) {
	movements, err := h.registry.ListMovements(c.Request.Context(), c.Query("part_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func (h *Handler) listTransactions(c *gin.Context) {
	transactions, err := h.registry.ListTransactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

type recordExpenseRequest struct {
	Category       string          `json:"category" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description" binding:"required"`
	DocumentNumber string          `json:"document_number,omitempty"`
	Status         string          `json:"status,omitempty"`
}

func (h *Handler) recordExpense(c *gin.Context) {
	var req recordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	entry, err := h.finance.RecordExpense(c.Request.Context(),
		req.Category, req.Amount, req.Description, req.DocumentNumber, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) cancelTransaction(c *gin.Context) {
	entry, err := h.finance.CancelTransaction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) updatePart(c *gin.Context) {
	var part models.Part
	if err := c.ShouldBindJSON(&part); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.registry.UpdatePart(c.Request.Context(), c.Param("id"), part)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) getClient(c *gin.Context) {
	client, err := h.registry.GetClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *Handler) updateClient(c *gin.Context) {
	var client models.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.registry.UpdateClient(c.Request.Context(), c.Param("id"), client)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) getBoat(c *gin.Context) {
	boat, err := h.registry.GetBoat(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, boat)
}

func (h *Handler) updateBoat(c *gin.Context) {
	var boat models.Boat
	if err := c.ShouldBindJSON(&boat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.registry.UpdateBoat(c.Request.Context(), c.Param("id"), boat)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) getMarina(c *gin.Context) {
	marina, err := h.registry.GetMarina(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, marina)
}

func (h *Handler) updateMarina(c *gin.Context) {
	var marina models.Marina
	if err := c.ShouldBindJSON(&marina); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.registry.UpdateMarina(c.Request.Context(), c.Param("id"), marina)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) listClients(c *gin.Context) {
	clients, err := h.registry.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (h *Handler) createClient(c *gin.Context) {
	var client models.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.registry.CreateClient(c.Request.Context(), client)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listBoats(c *gin.Context) {
	boats, err := h.registry.ListBoats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boats": boats})
}

func (h *Handler) createBoat(c *gin.Context) {
	var boat models.Boat
	if err := c.ShouldBindJSON(&boat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.registry.CreateBoat(c.Request.Context(), boat)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listMarinas(c *gin.Context) {
	marinas, err := h.registry.ListMarinas(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marinas": marinas})
}

func (h *Handler) createMarina(c *gin.Context) {
	var marina models.Marina
	if err := c.ShouldBindJSON(&marina); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.registry.CreateMarina(c.Request.Context(), marina)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// respondError maps workflow errors to HTTP statuses
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, ledger.ErrInvalidQuantity):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, ledger.ErrPartNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrOrderLocked), errors.Is(err, ledger.ErrStockUnderflow):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
