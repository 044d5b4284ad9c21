package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteRequest struct {
	Prob   float64 `query:"prob" json:"prob" validate:"gt=0,lt=1"`
	Status string  `query:"status" json:"status" default:"open" validate:"oneof=open closed"`
}

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func newTestServer() *Server {
	return NewServer(routes(func(e *echo.Echo) {
		e.GET("/quote", func(c echo.Context) error {
			req := &quoteRequest{}
			if verr := ReadAndValidateRequest(c, req); verr != nil {
				return BadRequestResponse(c, verr)
			}
			return SuccessResponse(c, req)
		})
		e.GET("/missing", func(c echo.Context) error {
			return AppErrorResponse(c, NotFoundError("position"))
		})
		e.GET("/boom", func(c echo.Context) error {
			panic("boom")
		})
	}), WithMetricsPath(""))
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_ValidatesAndDefaults(t *testing.T) {
	s := newTestServer()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/quote?prob=0.4", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Status int          `json:"status"`
		Data   quoteRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, "open", ok.Data.Status)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/quote?prob=1.5&status=pending", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 2)
	assert.Equal(t, "ERR_LT", bad.Data[0].Code)
	assert.Equal(t, "prob", bad.Data[0].Field)
	assert.Equal(t, "ERR_ONEOF", bad.Data[1].Code)
	assert.Equal(t, "status must be one of: open, closed", bad.Data[1].Message)
}

func TestServer_AppErrorAndRecovery(t *testing.T) {
	s := newTestServer()

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodOptions, "/quote", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
	rec := serve(s, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.True(t, strings.Contains(rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost))
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))

	req = httptest.NewRequest(http.MethodGet, "/quote?prob=0.5", nil)
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
