package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastToUser(t *testing.T) {
	h := NewHub()
	a1 := &Client{UserID: "a", Send: make(chan []byte, 1)}
	a2 := &Client{UserID: "a", Send: make(chan []byte, 1)}
	b := &Client{UserID: "b", Send: make(chan []byte, 1)}
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	assert.Equal(t, 2, h.ConnectedUsers())

	h.BroadcastToUser("a", map[string]string{"type": "notification"})
	require.Len(t, a1.Send, 1)
	require.Len(t, a2.Send, 1)
	assert.Len(t, b.Send, 0)
	assert.JSONEq(t, `{"type":"notification"}`, string(<-a1.Send))

	// full buffers drop instead of blocking
	h.BroadcastToUser("a", "x")
	h.BroadcastToUser("a", "y")
	assert.Len(t, a2.Send, 1)

	a1.Close()
	a2.Close()
	assert.Equal(t, 1, h.ConnectedUsers())
	h.BroadcastToUser("a", "after close")
}

func TestNilHubIsInert(t *testing.T) {
	var h *Hub
	h.BroadcastToUser("a", "x")
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)

	open := originChecker(nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.True(t, open(req))

	check := originChecker([]string{"https://app.fundhub.io"})
	assert.False(t, check(req))
	req.Header.Set("Origin", "https://app.fundhub.io")
	assert.True(t, check(req))
	req.Header.Del("Origin")
	assert.True(t, check(req))
}
