package kds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tableflow/api/internal/apiclient"
	"github.com/tableflow/api/internal/enum"
	"github.com/tableflow/api/internal/events"
	"github.com/tableflow/api/internal/kvstore"
	"github.com/tableflow/api/internal/model"
)

func TestPushURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8080/api", "ws://localhost:8080/api/ws/branches/3/orders"},
		{"https://kitchen.example.com/api/", "wss://kitchen.example.com/api/ws/branches/3/orders"},
	}
	for _, tt := range tests {
		got, err := PushURL(tt.base, 3)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := PushURL("ftp://host/api", 3)
	assert.Error(t, err)
}

func TestSubscribe_TriggersPollerPerEvent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ws/branches/1/orders", r.URL.Path)
		ck, err := r.Cookie(apiclient.KDSCookie)
		if assert.NoError(t, err) {
			assert.Equal(t, "tok", ck.Value)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		other, _ := json.Marshal(map[string]any{"type": enum.EventOrderCreated, "payload": events.OrderEvent{BranchID: 2}})
		mine, _ := json.Marshal(map[string]any{"type": enum.EventOrderCreated, "payload": events.OrderEvent{BranchID: 1, OrderID: 9}})
		_ = conn.WriteMessage(websocket.TextMessage, other)
		_ = conn.WriteMessage(websocket.TextMessage, mine)
		// Keep the connection open until the client goes away.
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	tokens := NewTokenStore(kvstore.NewMemory(), time.Minute)
	require.NoError(t, tokens.Set(context.Background(), model.KDSLogin{BranchID: 1, KDSToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	gate := NewGate(1, nil, tokens)
	p := NewPoller(1, nil, gate, time.Hour)
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Subscribe(ctx, srv.URL+"/api", p) }()

	select {
	case <-p.trigger:
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh triggered")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscribe_ResetsDelayAfterConnecting(t *testing.T) {
	base, limit := reconnectDelay, maxReconnectDelay
	reconnectDelay, maxReconnectDelay = 5*time.Millisecond, time.Hour
	t.Cleanup(func() { reconnectDelay, maxReconnectDelay = base, limit })

	const failures = 4
	var attempts, streams atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= failures {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		streams.Add(1)
		conn.Close()
	}))
	defer srv.Close()

	tokens := NewTokenStore(kvstore.NewMemory(), time.Minute)
	require.NoError(t, tokens.Set(context.Background(), model.KDSLogin{BranchID: 1, KDSToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}))
	p := NewPoller(1, nil, NewGate(1, nil, tokens), time.Hour)
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Subscribe(ctx, srv.URL+"/api", p) }()

	// Without a reset the delay would keep doubling from 80ms and only a
	// handful of streams would fit in the window.
	assert.Eventually(t, func() bool { return streams.Load() >= 15 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
