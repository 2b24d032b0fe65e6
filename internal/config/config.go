// Package config loads gameledger settings.
//
// Settings resolve in three layers. An embedded CUE schema supplies defaults
// and constraints, an optional CUE (or JSON) file is unified with it, and
// GAMELEDGER_* environment variables override the result. Command-line flags
// are applied by the caller last, followed by Validate.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaSource []byte

// Config is the resolved configuration.
type Config struct {
	DatabasePath          string   `json:"databasePath" env:"GAMELEDGER_DATABASE_PATH"`
	ListenAddr            string   `json:"listenAddr" env:"GAMELEDGER_LISTEN_ADDR"`
	ConflictWindowSeconds int      `json:"conflictWindowSeconds" env:"GAMELEDGER_CONFLICT_WINDOW_SECONDS"`
	MaxTxAttempts         int      `json:"maxTxAttempts" env:"GAMELEDGER_MAX_TX_ATTEMPTS"`
	RetryBackoffMs        int      `json:"retryBackoffMs" env:"GAMELEDGER_RETRY_BACKOFF_MS"`
	CORSOrigins           []string `json:"corsOrigins" env:"GAMELEDGER_CORS_ORIGINS"`
	LogLevel              string   `json:"logLevel" env:"GAMELEDGER_LOG_LEVEL"`
}

// Error reports a configuration value the schema rejects.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() && e.Pos.Filename() != "" {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults, ignoring the environment.
func Default() Config {
	cfg, err := resolve("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load resolves the configuration from the schema, the file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg, err := resolve(path)
	if err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolve(path string) (Config, error) {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return Config{}, err
	}

	v := def
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		file := ctx.CompileBytes(data, cue.Filename(path))
		if err := file.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = def.Unify(file)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg against the schema. Callers run it after applying
// overrides of their own.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	def, err := schema(ctx)
	if err != nil {
		return err
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// RetryBackoff returns the base backoff between transaction attempts.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func schema(ctx *cue.Context) (cue.Value, error) {
	root := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return root.LookupPath(cue.ParsePath("#Config")), nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	field := ""
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	format, args := first.Msg()
	cfgErr := &Error{Field: field, Message: fmt.Sprintf(format, args...)}
	if positions := errors.Positions(first); len(positions) > 0 {
		cfgErr.Pos = positions[0]
	}
	return cfgErr
}
