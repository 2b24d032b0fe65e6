package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/gameledger/internal/engine"
)

// keepAlive is how long the feed stays silent before sending a ping.
const keepAlive = 15 * time.Second

// feedHandler streams change notifications for one or more game teams as
// Server-Sent Events. Each event is named after its action.
func (h *httpHandler) feedHandler(c *gin.Context) {
	ids := c.QueryArray("gameTeamId")
	if len(ids) == 0 {
		h.writeError(c, &engine.Error{Code: engine.ErrCodeValidation, Op: "feed", Message: "gameTeamId is required"})
		return
	}

	sub := h.Ledger.Subscribe(ids...)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	h.Logger.Debug("feed opened", "game_team_ids", ids)

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		waitCtx, cancel := context.WithTimeout(ctx, keepAlive)
		m, err := sub.Next(waitCtx)
		cancel()
		switch {
		case err == nil:
			c.SSEvent(string(m.Action), m)
			return true
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		default:
			h.Logger.Debug("feed closed", "game_team_ids", ids, "reason", err)
			return false
		}
	})
}
