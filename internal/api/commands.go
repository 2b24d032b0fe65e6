package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
)

// commandHandler runs POST /commands/:operation. Commands that record events
// need the X-User-ID header; its value replaces any recorder in the body.
func (h *httpHandler) commandHandler(c *gin.Context) {
	op := c.Param("operation")
	user := c.GetHeader(UserHeader)
	if user == "" && engine.RecordsEvents(op) {
		h.writeError(c, errNoUser)
		return
	}

	res, err := h.Ledger.Dispatch(c.Request.Context(), op, bodyDecoder(c), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// bodyDecoder binds the JSON body. An empty body leaves the input zero.
func bodyDecoder(c *gin.Context) engine.Decoder {
	return func(v any) error {
		if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	}
}

func (h *httpHandler) registerGameTeamHandler(c *gin.Context) {
	var gt model.GameTeam
	if err := c.ShouldBindJSON(&gt); err != nil {
		h.writeError(c, errBadBody{err})
		return
	}
	if err := h.Ledger.RegisterGameTeam(c.Request.Context(), gt); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gt)
}
