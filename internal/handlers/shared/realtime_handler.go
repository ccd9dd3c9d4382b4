package handlers

import (
	"ridewallet/internal/middleware"
	"ridewallet/internal/utils"
	"ridewallet/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type RealtimeHandler struct {
	wsHandler *websocket.Handler
}

func NewRealtimeHandler(wsHandler *websocket.Handler) *RealtimeHandler {
	return &RealtimeHandler{wsHandler: wsHandler}
}

// Connect upgrades to a websocket that receives the caller's wallet updates
func (h *RealtimeHandler) Connect(c *gin.Context) {
	caller := middleware.GetCaller(c)
	if caller == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	h.wsHandler.ServeClient(c, caller.UserID, caller.UserType)
}
