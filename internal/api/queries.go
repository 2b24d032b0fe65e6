package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/projection"
)

type lineupParams struct {
	AsOfSeq *int64 `form:"asOfSeq" binding:"omitempty,min=1"`
}

type positionStatsParams struct {
	AsOfSecond *int `form:"asOfSecond" binding:"omitempty,min=0"`
}

type eventsParams struct {
	Period string `form:"period"`
}

type playerStatsParams struct {
	GameID string    `form:"gameId"`
	From   time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To     time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
}

func (h *httpHandler) lineupHandler(c *gin.Context) {
	var p lineupParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.writeError(c, errBadBody{err})
		return
	}
	var opts []projection.LineupOption
	if p.AsOfSeq != nil {
		opts = append(opts, projection.AsOfSeq(*p.AsOfSeq))
	}
	lineup, err := h.Ledger.GameLineup(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lineup)
}

func (h *httpHandler) positionStatsHandler(c *gin.Context) {
	var p positionStatsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.writeError(c, errBadBody{err})
		return
	}
	var opts []projection.StatsOption
	if p.AsOfSecond != nil {
		opts = append(opts, projection.AsOfSecond(*p.AsOfSecond))
	}
	stats, err := h.Ledger.PlayerPositionStats(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": nonNil(stats)})
}

func (h *httpHandler) eventsHandler(c *gin.Context) {
	var p eventsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.writeError(c, errBadBody{err})
		return
	}
	events, err := h.Ledger.Events(c.Request.Context(), c.Param("id"), p.Period)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": nonNil(events)})
}

func (h *httpHandler) conflictsHandler(c *gin.Context) {
	conflicts, err := h.Ledger.Conflicts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conflicts": nonNil(conflicts)})
}

func (h *httpHandler) eventHandler(c *gin.Context) {
	ev, err := h.Ledger.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *httpHandler) dependentsHandler(c *gin.Context) {
	deps, err := h.Ledger.DependentEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deps)
}

func (h *httpHandler) playerStatsHandler(c *gin.Context) {
	var p playerStatsParams
	if err := c.ShouldBindQuery(&p); err != nil {
		h.writeError(c, errBadBody{err})
		return
	}
	q := engine.PlayerStatsQuery{
		TeamID: c.Param("id"),
		GameID: p.GameID,
		Range:  model.DateRange{From: p.From},
	}
	if !p.To.IsZero() {
		// A date covers the whole day.
		q.Range.To = p.To.Add(24*time.Hour - time.Nanosecond)
	}
	stats, err := h.Ledger.PlayerStats(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": nonNil(stats)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
