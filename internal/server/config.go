package server

import (
	"github.com/raysh454/tagscope/internal/app"
	"github.com/raysh454/tagscope/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AppConfig configures the underlying pipeline. Nil means defaults.
	AppConfig *app.Config

	// Persist enables the run store. When false the server keeps nothing.
	Persist bool

	// Logger overrides the default stdout logger.
	Logger logging.Logger
}
