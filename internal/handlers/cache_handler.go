package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"market-cache-api/internal/audit"
	"market-cache-api/internal/cache"
	"market-cache-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CacheHandler serves the cache management endpoints.
type CacheHandler struct {
	registry *cache.Registry
	events   *audit.Log
	log      zerolog.Logger
}

func NewCacheHandler(registry *cache.Registry, events *audit.Log, log zerolog.Logger) *CacheHandler {
	return &CacheHandler{registry: registry, events: events, log: log}
}

/*
*
Get handles GET /api/cache
Read-only inspection plus the cleanup sweep, selected by the action query param:
stats, keys (optional pattern), cleanup, history (optional limit).
*/
func (h *CacheHandler) Get(c *gin.Context) {
	switch action := c.Query("action"); action {
	case "stats":
		all := h.registry.Stats()
		instances := make(map[string]cache.Stats, len(all))
		for _, s := range all {
			instances[s.Name] = s
		}
		c.JSON(http.StatusOK, gin.H{
			"instances": instances,
			"total":     cache.Sum("total", all),
		})

	case "keys":
		pattern := c.Query("pattern")
		c.JSON(http.StatusOK, gin.H{
			"pattern": pattern,
			"keys":    h.registry.Keys(pattern),
		})

	case "cleanup":
		removed := h.registry.Cleanup()
		total := cache.Total(removed)
		h.record(c, models.CacheEvent{Action: models.ActionCleanup, Removed: total})
		c.JSON(http.StatusOK, gin.H{
			"removed": removed,
			"total":   total,
		})

	case "history":
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		events, err := h.events.Recent(c.Request.Context(), limit)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to list cache events")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cache history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"events": events,
			"count":  len(events),
		})

	default:
		badAction(c, action, "stats, keys, cleanup, history")
	}
}

/*
*
Delete handles DELETE /api/cache
Invalidation selected by the action query param: clear, pattern (pattern),
timerange (timeRange), coin (coinId). A missing selector is rejected before
any cache is touched.
*/
func (h *CacheHandler) Delete(c *gin.Context) {
	var (
		selector string
		removed  map[string]int
		err      error
	)

	action := c.Query("action")
	switch action {
	case "clear":
		h.registry.ClearAll()
		h.record(c, models.CacheEvent{Action: models.ActionClear, FullWipe: true})
		c.JSON(http.StatusOK, gin.H{
			"cleared": "all",
			"message": "All caches cleared",
		})
		return

	case "pattern":
		if selector = c.Query("pattern"); selector == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
			return
		}
		removed, err = h.registry.InvalidatePattern(selector)

	case "timerange":
		if selector = c.Query("timeRange"); selector == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timeRange is required"})
			return
		}
		removed, err = h.registry.InvalidateTimeRange(selector)

	case "coin":
		if selector = c.Query("coinId"); selector == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "coinId is required"})
			return
		}
		removed, err = h.registry.InvalidateCoin(selector)

	default:
		badAction(c, action, "clear, pattern, timerange, coin")
		return
	}

	if err != nil {
		writeCacheError(c, err)
		return
	}

	total := cache.Total(removed)
	h.record(c, models.CacheEvent{
		Action:   models.CacheAction(action),
		Selector: selector,
		Removed:  total,
	})
	c.JSON(http.StatusOK, gin.H{
		"action":   action,
		"selector": selector,
		"removed":  removed,
		"total":    total,
	})
}

// record audits a management action. The cache change already happened, so a failure
// here is logged and not reported to the caller.
func (h *CacheHandler) record(c *gin.Context, ev models.CacheEvent) {
	ev.Actor = c.GetString("username")
	if _, err := h.events.Record(c.Request.Context(), ev); err != nil {
		h.log.Error().Err(err).Str("action", string(ev.Action)).Msg("failed to record cache event")
	}
}

func badAction(c *gin.Context, action, valid string) {
	msg := "action is required"
	if action != "" {
		msg = "unknown action " + strconv.Quote(action)
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": msg + ", expected one of: " + valid,
	})
}

func writeCacheError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrEmptyPattern),
		errors.Is(err, cache.ErrEmptyCoinID),
		errors.Is(err, cache.ErrUnknownTimeRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to invalidate cache"})
	}
}
