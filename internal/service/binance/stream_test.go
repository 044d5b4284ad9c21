package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PolyEdge/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceStream_Run(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		select {
		case subscribed <- sub.Params[0]:
		default:
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"result":null,"id":1}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"e":"aggTrade","s":"BTCUSDT","p":"97500.10","q":"0.01","m":false}`))
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := config.Default().Feeds.Binance
	cfg.WebSocketURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.ReconnectDelay = 10 * time.Millisecond
	s := NewPriceStream(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case ch := <-subscribed:
		assert.Equal(t, "btcusdt@aggTrade", ch)
	case <-time.After(2 * time.Second):
		t.Fatal("stream never subscribed")
	}

	require.Eventually(t, func() bool {
		p, ok := s.Latest(time.Minute)
		return ok && p == 97500.10
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestPriceStream_LatestEmpty(t *testing.T) {
	s := NewPriceStream(config.Default().Feeds.Binance)
	_, ok := s.Latest(time.Hour)
	assert.False(t, ok)
}
