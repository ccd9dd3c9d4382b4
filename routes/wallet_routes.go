package routes

import (
	handlers "ridewallet/internal/handlers/shared"
	"ridewallet/internal/middleware"
	"ridewallet/pkg/auth"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Wallet   *handlers.WalletHandler
	Webhook  *handlers.WebhookHandler
	Order    *handlers.OrderHandler
	Realtime *handlers.RealtimeHandler
}

// SetupWalletRoutes registers the wallet, payment, order and realtime API
func SetupWalletRoutes(r *gin.RouterGroup, h *Handlers, verifier auth.Verifier, log *logger.Logger) {
	authRequired := middleware.AuthRequired(verifier, log)

	// Stripe authenticates with the signature header, not a bearer token
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/stripe", h.Webhook.HandleStripeWebhook)
	}

	payments := r.Group("/payments")
	payments.Use(authRequired)
	{
		payments.POST("/checkout", h.Wallet.CreateCheckoutSession)
		payments.GET("/status", h.Wallet.GetPaymentStatus)
	}

	wallets := r.Group("/wallets")
	wallets.Use(authRequired)
	{
		wallets.GET("/me", h.Wallet.GetMyWallet)
		wallets.POST("/transfer", h.Wallet.Transfer)
		wallets.GET("/:id/transactions", h.Wallet.GetTransactions)
	}

	orders := r.Group("/orders")
	orders.Use(authRequired, middleware.PrivilegedRequired())
	{
		orders.POST("/:id/complete", h.Order.CompleteOrder)
	}

	r.GET("/ws", authRequired, h.Realtime.Connect)
}
