package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-tool/internal/models"
)

type knownSessions map[string]bool

func (k knownSessions) Exists(ctx context.Context, id string) (bool, error) {
	return k[id], nil
}

func TestHub_RejectsBadSessions(t *testing.T) {
	hub := NewHub(nil, knownSessions{"abc12345": true})

	rr := httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	hub.HandleWebSocket(rr, httptest.NewRequest(http.MethodGet, "/ws?session=unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHub_DeliversToSession(t *testing.T) {
	hub := NewHub(nil, knownSessions{"abc12345": true})
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=abc12345"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ConnectionCount("abc12345") == 1 }, time.Second, 10*time.Millisecond)

	hub.SendToSession("abc12345", models.WSMessage{Type: "progress", Payload: models.ProgressEvent{Fraction: 0.45, Stage: "uploading"}})
	hub.SendToSession("other", models.WSMessage{Type: "progress"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type    string               `json:"type"`
		Payload models.ProgressEvent `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, "uploading", msg.Payload.Stage)
	assert.InDelta(t, 0.45, msg.Payload.Fraction, 1e-9)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ConnectionCount("abc12345") == 0 }, 2*time.Second, 10*time.Millisecond)
}
