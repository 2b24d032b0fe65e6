package api

import (
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Ledger Ledger
	Logger *slog.Logger

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string
}

// NewRouter builds the gin engine serving the ledger under /v1.
func NewRouter(opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	corsConfig := cors.DefaultConfig()
	if len(opts.CORSOrigins) == 0 || slices.Contains(opts.CORSOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = opts.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", UserHeader}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	NewHTTPHandler(HTTPOptions{
		Ledger: opts.Ledger,
		Router: r.Group("/v1"),
		Logger: opts.Logger,
	})
	return r
}

// requestLogger logs one line per request at debug, or warn for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= 500 {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"user", c.GetHeader(UserHeader),
			"duration", time.Since(start),
		)
	}
}
