// Package httpserver exposes health checks and the voice websocket over HTTP.
package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Providers names the configured collaborators for the health report.
type Providers struct {
	Transcription string `json:"transcription"`
	LLM           string `json:"llm"`
	TTS           string `json:"tts"`
	Vision        string `json:"vision"`
	Store         string `json:"store"`
}

// Voice is the websocket endpoint.
type Voice interface {
	http.Handler
	Active() int
}

type healthReport struct {
	Status            string    `json:"status"`
	ActiveConnections int       `json:"active_connections"`
	Providers         Providers `json:"providers"`
}

// Server bundles HTTP router and dependencies.
type Server struct {
	Router http.Handler
}

// New constructs the HTTP server with routes.
func New(voice Voice, providers Providers, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := newEcho(logger)

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthReport{
			Status:            "ok",
			ActiveConnections: voice.Active(),
			Providers:         providers,
		})
	})
	e.GET("/ws", echo.WrapHandler(voice))

	return &Server{Router: e}
}
