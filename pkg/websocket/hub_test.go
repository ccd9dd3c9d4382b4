package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_SendToUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	userID := uuid.New()
	handler := NewHandler(hub, []string{"*"})
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) { handler.ServeClient(c, userID, "customer") })

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	welcome := readMessage(t, conn)
	assert.Equal(t, "welcome", welcome.Type)
	assert.Equal(t, 1, hub.ClientCount())

	ok := hub.SendToUser(userID, Message{Type: "wallet_credited", Data: map[string]interface{}{"balance": "25.00"}})
	require.True(t, ok)

	update := readMessage(t, conn)
	assert.Equal(t, "wallet_credited", update.Type)
	assert.Equal(t, UserRoom(userID), update.RoomID)
	assert.Equal(t, "25.00", update.Data["balance"])

	// Messages for other users are not delivered to this connection.
	hub.SendToUser(uuid.New(), Message{Type: "wallet_credited"})
	hub.SendToUser(userID, Message{Type: "wallet_debited"})
	assert.Equal(t, "wallet_debited", readMessage(t, conn).Type)
}

func TestHandler_RejectsUnknownOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	handler := NewHandler(hub, []string{"https://app.example.com"})
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) { handler.ServeClient(c, uuid.New(), "driver") })

	srv := httptest.NewServer(router)
	defer srv.Close()

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}
