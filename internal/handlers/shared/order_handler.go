package handlers

import (
	"ridewallet/internal/middleware"
	"ridewallet/internal/models"
	"ridewallet/internal/services"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService services.OrderService
	logger       *logger.Logger
}

func NewOrderHandler(orderService services.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       log,
	}
}

// CompleteOrder credits the driver's wallet for a completed delivery
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	var request models.OrderCompletionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.orderService.CompleteOrder(c.Request.Context(), middleware.GetCaller(c), c.Param("id"), &request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Order credited successfully"
	if result.Duplicate {
		message = "Order was already credited"
	}
	utils.SuccessResponse(c, message, result)
}
