package api

import (
	"context"
	"errors"
	"time"

	"PolyEdge/internal/domain/models"
	"PolyEdge/internal/services/ledger"
	"PolyEdge/internal/services/risk"
	xhttp "PolyEdge/pkg/http"
	applogger "PolyEdge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Ledger is the read and settle surface of the position ledger.
type Ledger interface {
	Stats() models.LedgerStats
	Portfolio() models.Portfolio
	Positions(status models.PositionStatus) []models.Position
	Position(id string) (models.Position, error)
	Close(ctx context.Context, id string, exitPrice, pnl float64, reason string) (models.Position, error)
	Expire(ctx context.Context, id string, pnl float64, reason string) (models.Position, error)
}

// KellyPreview is the sizing the engine would apply right now.
type KellyPreview struct {
	OurProb       float64 `json:"our_prob"`
	MarketProb    float64 `json:"market_prob"`
	Edge          float64 `json:"edge"`
	KellyFraction float64 `json:"kelly_fraction"`
	Stake         float64 `json:"stake"`
	Approved      bool    `json:"approved"`
	Reason        string  `json:"reason,omitempty"`
}

// PortfolioEchoHandler serves the ledger over HTTP.
type PortfolioEchoHandler struct {
	logger  *applogger.Logger
	ledger  Ledger
	sizer   *risk.Sizer
	mode    string
	started time.Time
}

var _ xhttp.Handler = (*PortfolioEchoHandler)(nil)

func NewPortfolioEchoHandler(logger *applogger.Logger, l Ledger, sizer *risk.Sizer, mode string) *PortfolioEchoHandler {
	return &PortfolioEchoHandler{logger: logger, ledger: l, sizer: sizer, mode: mode, started: time.Now()}
}

func (h *PortfolioEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/stats", h.Stats)
	g.GET("/positions", h.Positions)
	g.GET("/positions/:id", h.Position)
	g.POST("/positions/:id/close", h.Close)
	g.POST("/positions/:id/expire", h.Expire)
	g.GET("/kelly", h.Kelly)
}

func (h *PortfolioEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"mode":   h.mode,
		"uptime": time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *PortfolioEchoHandler) Stats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.ledger.Stats())
}

func (h *PortfolioEchoHandler) Positions(c echo.Context) error {
	req := &models.PositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var status models.PositionStatus
	if req.Status != "all" {
		status = models.PositionStatus(req.Status)
	}
	rows := h.ledger.Positions(status)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *PortfolioEchoHandler) Position(c echo.Context) error {
	pos, err := h.ledger.Position(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	return xhttp.SuccessResponse(c, pos)
}

func (h *PortfolioEchoHandler) Close(c echo.Context) error {
	req := &models.ClosePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := c.Param("id")
	pos, err := h.ledger.Position(id)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.appError(err))
	}

	pnl := ledger.SettlementPnL(pos, *req.ExitPrice)
	if req.PnL != nil {
		pnl = *req.PnL
	}
	pos, err = h.ledger.Close(c.Request().Context(), id, *req.ExitPrice, pnl, req.Reason)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	return xhttp.SuccessResponse(c, pos)
}

// Expire settles a position that resolved without a redeemable exit; the stake is lost unless pnl is given.
func (h *PortfolioEchoHandler) Expire(c echo.Context) error {
	req := &models.ExpirePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := c.Param("id")
	pos, err := h.ledger.Position(id)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.appError(err))
	}

	pnl := -pos.SizeUSD
	if req.PnL != nil {
		pnl = *req.PnL
	}
	pos, err = h.ledger.Expire(c.Request().Context(), id, pnl, req.Reason)
	if err != nil {
		return xhttp.AppErrorResponse(c, h.appError(err))
	}
	return xhttp.SuccessResponse(c, pos)
}

func (h *PortfolioEchoHandler) Kelly(c echo.Context) error {
	req := &models.KellyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d := h.sizer.CalculateBetSize(req.OurProb, req.MarketProb, h.ledger.Portfolio())
	return xhttp.SuccessResponse(c, KellyPreview{
		OurProb:       req.OurProb,
		MarketProb:    req.MarketProb,
		Edge:          req.OurProb - req.MarketProb,
		KellyFraction: h.sizer.Kelly(req.OurProb, req.MarketProb),
		Stake:         d.Stake,
		Approved:      d.Approved(),
		Reason:        d.Reason,
	})
}

func (h *PortfolioEchoHandler) appError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrPositionNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, ledger.ErrPositionNotOpen):
		return xhttp.ConflictError(err.Error())
	default:
		h.logger.Error("ledger operation failed", applogger.Error(err))
		return xhttp.InternalError("ledger operation failed").WithError(err)
	}
}
