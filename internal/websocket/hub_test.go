package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

func signed(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "role": role}).SignedString(testSecret)
	require.NoError(t, err)
	return tok
}

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ServeWs(hub, c, testSecret, func(role string) bool { return role != "guest" })
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
}

func TestServeWs_DeliversPublishedMessages(t *testing.T) {
	hub, srv := newServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, signed(t, "viewer")), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, hub.Publish([]byte(`{"type":"approval.decided"}`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"approval.decided"}`, string(msg))
}

func TestServeWs_RejectsBadTokens(t *testing.T) {
	_, srv := newServer(t)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"role not allowed", signed(t, "guest"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPublish_DropsWhenQueueFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	for i := 0; i < cap(hub.broadcast); i++ {
		require.True(t, hub.Publish([]byte("x")))
	}
	assert.False(t, hub.Publish([]byte("overflow")))
}
