package polymarket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
	"PolyEdge/pkg/config"
	xhttp "PolyEdge/pkg/http"
	applogger "PolyEdge/pkg/logger"

	"github.com/google/uuid"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// ErrInvalidOrder is returned before submission for orders that cannot be filled.
var ErrInvalidOrder = errors.New("invalid order")

// GatewayError is a rejection reported by the order gateway.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string { return "order gateway: " + e.Message }

// validateOrder checks size and price. A token id is only required by the live gateway.
func validateOrder(o models.Order) error {
	switch {
	case !(o.Notional > 0):
		return fmt.Errorf("%w: notional %.2f", ErrInvalidOrder, o.Notional)
	case !(o.LimitPrice > 0 && o.LimitPrice < 1):
		return fmt.Errorf("%w: price %.4f outside (0,1)", ErrInvalidOrder, o.LimitPrice)
	}
	return nil
}

// PaperExecutor fills every valid order immediately at its limit price.
// Markets listed without token ids can still be paper traded.
type PaperExecutor struct {
	clock models.Clock
}

var _ domrepo.Executor = (*PaperExecutor)(nil)

// NewPaperExecutor creates a simulated venue. clock may be nil.
func NewPaperExecutor(clock models.Clock) *PaperExecutor {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &PaperExecutor{clock: clock}
}

func (p *PaperExecutor) PlaceOrder(_ context.Context, o models.Order) (models.Fill, error) {
	if err := validateOrder(o); err != nil {
		return models.Fill{}, err
	}
	return models.Fill{
		OrderID:  "paper-" + uuid.NewString(),
		Price:    o.LimitPrice,
		Notional: o.Notional,
		FilledAt: p.clock(),
	}, nil
}

func (p *PaperExecutor) Mode() string { return ModePaper }

// LiveExecutor submits fill-or-kill orders to a signing gateway that holds the venue credentials.
type LiveExecutor struct {
	cfg   config.ExecutionConfig
	http  *xhttp.Client
	clock models.Clock
	l     *applogger.Logger
}

var _ domrepo.Executor = (*LiveExecutor)(nil)

// NewLiveExecutor creates a gateway-backed executor.
func NewLiveExecutor(cfg config.ExecutionConfig) *LiveExecutor {
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if cfg.APIKey != "" {
		opts = append(opts, xhttp.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return &LiveExecutor{
		cfg:   cfg,
		http:  xhttp.NewClient(opts...),
		clock: func() time.Time { return time.Now().UTC() },
		l:     applogger.NewNop(),
	}
}

// SetLogger injects a structured logger.
func (e *LiveExecutor) SetLogger(l *applogger.Logger) { e.l = l }

type gatewayOrder struct {
	TokenID   string  `json:"token_id"`
	Side      string  `json:"side"`
	Amount    float64 `json:"amount"`
	Price     float64 `json:"price"`
	OrderType string  `json:"order_type"`
}

type gatewayResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderID"`
	Price   string `json:"price"`
	Error   string `json:"error"`
}

func (e *LiveExecutor) PlaceOrder(ctx context.Context, o models.Order) (models.Fill, error) {
	if err := validateOrder(o); err != nil {
		return models.Fill{}, err
	}
	if o.TokenID == "" {
		return models.Fill{}, fmt.Errorf("%w: missing token id", ErrInvalidOrder)
	}

	var res gatewayResponse
	err := e.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     strings.TrimRight(e.cfg.URL, "/") + "/order",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: gatewayOrder{
			TokenID:   o.TokenID,
			Side:      string(o.Action),
			Amount:    o.Notional,
			Price:     o.LimitPrice,
			OrderType: "FOK",
		},
	}, &res)
	if err != nil {
		return models.Fill{}, fmt.Errorf("place order: %w", err)
	}
	if res.Error != "" {
		return models.Fill{}, &GatewayError{Message: res.Error}
	}
	if res.OrderID == "" {
		return models.Fill{}, &GatewayError{Message: "response carried no order id"}
	}

	price := o.LimitPrice
	if v, err := strconv.ParseFloat(res.Price, 64); err == nil && v > 0 && v < 1 {
		price = v
	}
	e.l.Info("order placed",
		applogger.String("order_id", res.OrderID),
		applogger.String("token_id", o.TokenID),
		applogger.String("action", string(o.Action)),
		applogger.Float64("amount", o.Notional),
		applogger.Float64("price", price),
	)
	return models.Fill{
		OrderID:  res.OrderID,
		Price:    price,
		Notional: o.Notional,
		FilledAt: e.clock(),
	}, nil
}

func (e *LiveExecutor) Mode() string { return ModeLive }

// NewExecutor picks the paper or live executor from trading.paper.
func NewExecutor(cfg *config.Config, l *applogger.Logger) domrepo.Executor {
	if cfg.Trading.Paper {
		return NewPaperExecutor(nil)
	}
	e := NewLiveExecutor(cfg.Execution)
	if l != nil {
		e.SetLogger(l)
	}
	return e
}
