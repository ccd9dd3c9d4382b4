package handlers

import (
	"errors"

	"ridewallet/internal/services"
	"ridewallet/internal/utils"
	"ridewallet/pkg/logger"

	"github.com/gin-gonic/gin"
)

// respondError renders service errors in the API envelope. Anything that is
// not an AppError is logged and reported as an internal error.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		log.WithContext(c.Request.Context()).WithError(err).Error("Unhandled service error")
		utils.InternalServerErrorResponse(c)
		return
	}

	if appErr.Status >= 500 {
		log.WithContext(c.Request.Context()).WithError(appErr).Error("Request failed")
	}
	if len(appErr.Details) > 0 {
		utils.ErrorResponseWithDetails(c, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	utils.ErrorResponse(c, appErr.Status, appErr.Code, appErr.Message)
}
