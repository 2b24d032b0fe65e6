// Package api exposes the ledger over HTTP with gin.
//
// Commands are POST /v1/commands/<operation> with a JSON body; the recorder's
// identity comes from the X-User-ID header. Queries are plain GETs, and
// GET /v1/feed streams change notifications as Server-Sent Events.
package api

import (
	"context"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/roach88/gameledger/internal/engine"
	"github.com/roach88/gameledger/internal/model"
	"github.com/roach88/gameledger/internal/notify"
	"github.com/roach88/gameledger/internal/projection"
)

// UserHeader carries the id of the user recording an event.
const UserHeader = "X-User-ID"

// Router is the interface for a router.
type Router interface {
	GET(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	POST(relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes
	Use(middleware ...gin.HandlerFunc) gin.IRoutes
	Group(relativePath string, handlers ...gin.HandlerFunc) *gin.RouterGroup
}

// Ledger is the engine surface the HTTP layer serves. *engine.Engine
// implements it.
type Ledger interface {
	Dispatch(ctx context.Context, name string, decode engine.Decoder, user string) (engine.Result, error)
	RegisterGameTeam(ctx context.Context, gt model.GameTeam) error

	GameLineup(ctx context.Context, gameTeamID string, opts ...projection.LineupOption) (projection.GameLineup, error)
	DependentEvents(ctx context.Context, eventID string) (model.DependentEventsResult, error)
	PlayerPositionStats(ctx context.Context, gameTeamID string, opts ...projection.StatsOption) ([]projection.PlayerStats, error)
	PlayerStats(ctx context.Context, q engine.PlayerStatsQuery) ([]projection.PlayerStats, error)
	Events(ctx context.Context, gameTeamID, period string) ([]model.GameEvent, error)
	Conflicts(ctx context.Context, gameTeamID string) ([]model.ConflictInfo, error)
	Event(ctx context.Context, eventID string) (model.GameEvent, error)

	Subscribe(gameTeamIDs ...string) *notify.Subscription
}

// HTTPOptions contains all the options needed for the HTTP handler.
type HTTPOptions struct {
	// Ledger is the engine the handlers call.
	Ledger Ledger

	// Router is where the routes are registered.
	Router Router

	// Logger receives handler errors. Nil discards.
	Logger *slog.Logger
}

// NewHTTPHandler registers the command, query and feed routes on
// opts.Router.
func NewHTTPHandler(opts HTTPOptions) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &httpHandler{HTTPOptions: opts}
	r := opts.Router

	r.POST("/commands/:operation", h.commandHandler)
	r.POST("/game-teams", h.registerGameTeamHandler)

	r.GET("/game-teams/:id/lineup", h.lineupHandler)
	r.GET("/game-teams/:id/position-stats", h.positionStatsHandler)
	r.GET("/game-teams/:id/events", h.eventsHandler)
	r.GET("/game-teams/:id/conflicts", h.conflictsHandler)
	r.GET("/events/:id", h.eventHandler)
	r.GET("/events/:id/dependents", h.dependentsHandler)
	r.GET("/teams/:id/player-stats", h.playerStatsHandler)

	r.GET("/feed", h.feedHandler)
}

type httpHandler struct {
	HTTPOptions
}
