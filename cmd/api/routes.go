package main

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/service"
)

type routerDeps struct {
	db       *sql.DB
	wallets  service.WalletService
	orders   service.OrderService
	payments service.PaymentService
	refunds  service.RefundService
	refills  service.RefillService
}

// newRouter builds the HTTP edge. Handlers are pass-through: parse, call a
// service, translate the error. Authentication itself lives upstream; the
// gateway forwards the authenticated user in X-User-ID.
func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(metrics.HTTPMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, database.Health(deps.db))
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/webhooks/payment", func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		signature := c.GetHeader("Stripe-Signature")
		if err := deps.payments.HandleWebhookEvent(c.Request.Context(), payload, signature); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	})

	api := r.Group("/api")
	api.Use(requireUser())
	{
		api.POST("/orders", createOrder(deps))
		api.GET("/orders", listOrders(deps))
		api.GET("/orders/:id", getOrder(deps))
		api.PUT("/orders/:id/status", updateOrderStatus(deps))
		api.POST("/orders/:id/cancel", cancelOrder(deps))
		api.POST("/orders/:id/payment-intent", createPaymentIntent(deps))
		api.POST("/orders/:id/confirm-cod", confirmCOD(deps))
		api.GET("/orders/:id/payments", listOrderPayments(deps))

		api.GET("/wallet", walletBalance(deps))
		api.GET("/wallet/transactions", walletHistory(deps))

		api.POST("/refills", upsertRefill(deps))
		api.GET("/refills", listRefills(deps))
		api.PUT("/refills/:id", updateRefillQuantity(deps))
		api.DELETE("/refills/:id", deactivateRefill(deps))
		api.POST("/refills/:id/order", orderFromRefill(deps))
	}

	admin := r.Group("/admin")
	admin.Use(requireUser())
	{
		admin.GET("/wallets/:userID", adminWalletView(deps))
		admin.POST("/wallets/:userID/credit", creditWallet(deps))
		admin.POST("/orders/:id/refund", processRefund(deps))
		admin.GET("/orders/:id/refunds", listOrderRefunds(deps))
		admin.GET("/refunds", listRefunds(deps))
		admin.GET("/refunds/:id", getRefund(deps))
	}

	return r
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.GetHeader("X-User-ID"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID"})
			return
		}
		c.Set("userID", id)
		c.Next()
	}
}

func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet("userID").(uuid.UUID)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// statusFor maps domain sentinels onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrStockDepleted),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrDuplicatePayment),
		errors.Is(err, domain.ErrTransactionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type orderItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"required,gt=0"`
}

type createOrderRequest struct {
	Items         []orderItemRequest   `json:"items" binding:"required,min=1,dive"`
	Delivery      domain.DeliveryInfo  `json:"delivery"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" binding:"required"`
	WalletAmount  decimal.Decimal      `json:"wallet_amount"`
}

func createOrder(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items := make([]service.OrderItemInput, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, service.OrderItemInput{
				ProductID: it.ProductID,
				VariantID: it.VariantID,
				Quantity:  it.Quantity,
			})
		}

		order, err := deps.orders.Create(c.Request.Context(), service.CreateOrderInput{
			BuyerID:       currentUser(c),
			Items:         items,
			Delivery:      req.Delivery,
			PaymentMethod: req.PaymentMethod,
			WalletAmount:  req.WalletAmount,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrders(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := deps.orders.ListByBuyer(c.Request.Context(), currentUser(c), 0)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrder(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		order, err := deps.orders.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if order.BuyerID != currentUser(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

func updateOrderStatus(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := deps.orders.UpdateStatus(c.Request.Context(), id, req.Status, currentUser(c), req.Reason)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func cancelOrder(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		order, err := deps.orders.Cancel(c.Request.Context(), id, currentUser(c), req.Reason)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func createPaymentIntent(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		intent, err := deps.payments.CreateIntent(c.Request.Context(), id, currentUser(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, intent)
	}
}

func confirmCOD(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := deps.payments.ConfirmCOD(c.Request.Context(), id, currentUser(c)); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"confirmed": true})
	}
}

func listOrderPayments(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		user := currentUser(c)
		payments, err := deps.payments.ListOrderPayments(c.Request.Context(), id, &user)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payments)
	}
}

func walletBalance(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		balance, err := deps.wallets.Balance(c.Request.Context(), currentUser(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"balance": balance})
	}
}

func walletHistory(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := deps.wallets.History(c.Request.Context(), currentUser(c), 0)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

type creditWalletRequest struct {
	Amount    decimal.Decimal        `json:"amount" binding:"required"`
	Source    domain.WalletTxnSource `json:"source"`
	Reference string                 `json:"reference"`
}

func adminWalletView(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathID(c, "userID")
		if !ok {
			return
		}
		balance, err := deps.wallets.Balance(c.Request.Context(), userID)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		history, err := deps.wallets.History(c.Request.Context(), userID, 0)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance, "transactions": history})
	}
}

func creditWallet(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := pathID(c, "userID")
		if !ok {
			return
		}
		var req creditWalletRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		source := req.Source
		if source == "" {
			source = domain.SourceAdmin
		}
		op, err := deps.wallets.Credit(c.Request.Context(), userID, req.Amount, source, req.Reference, map[string]any{
			"credited_by": currentUser(c).String(),
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, op)
	}
}

type refundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"required"`
}

func processRefund(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req refundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := deps.refunds.Process(c.Request.Context(), orderID, req.Amount, req.Reason, currentUser(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listOrderRefunds(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := pathID(c, "id")
		if !ok {
			return
		}
		refunds, err := deps.refunds.ListByOrder(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, refunds)
	}
}

func listRefunds(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		refunds, err := deps.refunds.ListAll(c.Request.Context(), 0)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, refunds)
	}
}

func getRefund(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		refund, err := deps.refunds.Get(c.Request.Context(), id)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, refund)
	}
}

type refillRequest struct {
	ProductID uuid.UUID  `json:"product_id" binding:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Quantity  int        `json:"quantity" binding:"required,gt=0"`
}

func upsertRefill(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refillRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := deps.refills.UpsertProfile(c.Request.Context(), service.RefillProfileInput{
			UserID:    currentUser(c),
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Quantity:  req.Quantity,
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, profile)
	}
}

func listRefills(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		profiles, err := deps.refills.ListProfiles(c.Request.Context(), currentUser(c))
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, profiles)
	}
}

func updateRefillQuantity(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Quantity int `json:"quantity" binding:"required,gt=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := deps.refills.UpdateQuantity(c.Request.Context(), id, currentUser(c), req.Quantity); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": true})
	}
}

func deactivateRefill(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := deps.refills.Deactivate(c.Request.Context(), id, currentUser(c)); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deactivated": true})
	}
}

func orderFromRefill(deps routerDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Delivery domain.DeliveryInfo `json:"delivery"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order, err := deps.refills.CreateOrder(c.Request.Context(), id, currentUser(c), req.Delivery)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}
