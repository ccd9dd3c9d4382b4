package handlers

import (
	"ridewallet/internal/middleware"
	"ridewallet/internal/models"
	"ridewallet/internal/services"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	checkoutService      services.CheckoutService
	paymentStatusService services.PaymentStatusService
	transferService      services.TransferService
	walletService        services.WalletService
	logger               *logger.Logger
}

func NewWalletHandler(
	checkoutService services.CheckoutService,
	paymentStatusService services.PaymentStatusService,
	transferService services.TransferService,
	walletService services.WalletService,
	log *logger.Logger,
) *WalletHandler {
	return &WalletHandler{
		checkoutService:      checkoutService,
		paymentStatusService: paymentStatusService,
		transferService:      transferService,
		walletService:        walletService,
		logger:               log,
	}
}

// CreateCheckoutSession starts a wallet top-up
func (h *WalletHandler) CreateCheckoutSession(c *gin.Context) {
	var request models.TopUpRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	session, err := h.checkoutService.CreateTopUpSession(c.Request.Context(), middleware.GetCaller(c), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Checkout session created successfully", session)
}

// GetPaymentStatus reports the state of a checkout session for polling clients
func (h *WalletHandler) GetPaymentStatus(c *gin.Context) {
	status, err := h.paymentStatusService.GetPaymentStatus(c.Request.Context(), middleware.GetCaller(c), c.Query("session_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Payment status retrieved successfully", status)
}

// Transfer moves funds between two wallets
func (h *WalletHandler) Transfer(c *gin.Context) {
	var request models.TransferRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.transferService.Transfer(c.Request.Context(), middleware.GetCaller(c), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Transfer completed successfully", result)
}

// GetMyWallet returns the caller's wallet
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	wallet, err := h.walletService.GetMyWallet(c.Request.Context(), middleware.GetCaller(c), c.Query("user_type"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Wallet retrieved successfully", wallet)
}

// GetTransactions lists a wallet's ledger entries
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	txns, total, err := h.walletService.ListTransactions(c.Request.Context(), middleware.GetCaller(c), c.Param("id"), params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.PaginatedResponse(c, "Transactions retrieved successfully", txns, utils.CreatePaginationMeta(params, total))
}
