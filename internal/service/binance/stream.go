package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"PolyEdge/pkg/config"
	applogger "PolyEdge/pkg/logger"

	"github.com/gorilla/websocket"
)

// PriceStream follows the aggTrade stream and keeps the last traded price.
type PriceStream struct {
	websocketURL   string
	symbol         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	now            func() time.Time
	l              *applogger.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	mu      sync.RWMutex
	price   float64
	updated time.Time
}

// NewPriceStream creates a stream for cfg.Symbol.
func NewPriceStream(cfg config.BinanceConfig) *PriceStream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &PriceStream{
		websocketURL:   cfg.WebSocketURL,
		symbol:         strings.ToLower(cfg.Symbol),
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		now:            time.Now,
		l:              applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (s *PriceStream) SetLogger(l *applogger.Logger) { s.l = l }

// Latest returns the last price if it is younger than maxAge.
func (s *PriceStream) Latest(maxAge time.Duration) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.price <= 0 || s.now().Sub(s.updated) > maxAge {
		return 0, false
	}
	return s.price, true
}

func (s *PriceStream) set(p float64) {
	s.mu.Lock()
	s.price, s.updated = p, s.now()
	s.mu.Unlock()
}

// Connect dials the websocket and subscribes to the aggregate trade channel.
func (s *PriceStream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("binance stream connect: %w", err)
	}
	sub := map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{s.symbol + "@aggTrade"},
		"id":     1,
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return fmt.Errorf("binance stream subscribe: %w", err)
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.l.Info("binance stream connected", applogger.String("symbol", s.symbol))
	return nil
}

type aggTrade struct {
	Event string `json:"e"`
	Price string `json:"p"`
}

// Run keeps the stream connected until ctx is done, reconnecting after read failures.
func (s *PriceStream) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.Connect(ctx); err != nil {
			s.l.Warn("binance stream connect failed", applogger.Error(err))
		} else if err := s.read(ctx); err != nil && ctx.Err() == nil {
			s.l.Warn("binance stream read failed", applogger.Error(err))
		}
		_ = s.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *PriceStream) read(ctx context.Context) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("binance stream not connected")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				s.connMu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				s.connMu.Unlock()
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("binance stream read: %w", err)
		}
		var m aggTrade
		if err := json.Unmarshal(b, &m); err != nil || m.Event != "aggTrade" {
			// subscription acks and unknown frames
			continue
		}
		if p, err := strconv.ParseFloat(m.Price, 64); err == nil && p > 0 {
			s.set(p)
		}
	}
}

// Close closes the websocket connection.
func (s *PriceStream) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
