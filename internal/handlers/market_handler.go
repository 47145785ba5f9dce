package handlers

import (
	"context"
	"errors"
	"net/http"

	"market-cache-api/internal/cache"
	"market-cache-api/internal/market"
	"market-cache-api/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// MarketHandler serves the cached market data endpoints of the dashboard.
type MarketHandler struct {
	svc *market.Service
	log zerolog.Logger
}

func NewMarketHandler(svc *market.Service, log zerolog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, log: log}
}

// GetPrice handles GET /api/price?coinId=
func (h *MarketHandler) GetPrice(c *gin.Context) {
	q, err := h.svc.Price(c.Request.Context(), c.DefaultQuery("coinId", market.DefaultCoinID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// GetTimeseries handles GET /api/timeseries?coinId=&interval=&range=
func (h *MarketHandler) GetTimeseries(c *gin.Context) {
	ts, err := h.svc.Timeseries(c.Request.Context(),
		c.DefaultQuery("coinId", market.DefaultCoinID),
		c.DefaultQuery("interval", "hour"),
		c.DefaultQuery("range", string(cache.Range24h)),
	)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

// GetPairs handles GET /api/pairs?token=
func (h *MarketHandler) GetPairs(c *gin.Context) {
	token := c.DefaultQuery("token", market.DefaultToken)
	pairs, err := h.svc.Pairs(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"pairs": pairs,
		"count": len(pairs),
	})
}

// GetHolders handles GET /api/holders?token=
func (h *MarketHandler) GetHolders(c *gin.Context) {
	stats, err := h.svc.Holders(c.Request.Context(), c.DefaultQuery("token", market.DefaultToken))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSentiment handles GET /api/sentiment?coin=
func (h *MarketHandler) GetSentiment(c *gin.Context) {
	s, err := h.svc.Sentiment(c.Request.Context(), c.DefaultQuery("coin", market.DefaultCoinID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// fail maps service errors to responses. Anything that is not a bad request or a
// missing asset came from the upstream provider.
func (h *MarketHandler) fail(c *gin.Context, err error) {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, market.ErrInvalidCoinID),
		errors.Is(err, market.ErrInvalidToken),
		errors.Is(err, market.ErrInvalidInterval),
		errors.Is(err, cache.ErrUnknownTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, market.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &statusErr) && statusErr.RateLimited():
		h.log.Warn().Str("url", statusErr.URL).Msg("upstream rate limited")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream provider is rate limiting requests"})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("upstream request failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch data from upstream provider"})
	}
}
