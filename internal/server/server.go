// Package server exposes the search tools over HTTP.
package server

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/hession/llmseo/internal/config"
	"github.com/hession/llmseo/internal/enhance"
	"github.com/hession/llmseo/internal/logger"
	"github.com/hession/llmseo/internal/tools"
	"github.com/hession/llmseo/internal/trafficlog"
)

// Deps are the components the handlers serve.
type Deps struct {
	Registry *tools.Registry
	Search   *tools.SearchWebTool
	Enhancer *enhance.Enhancer
	Traffic  *trafficlog.Logger
}

// Server is the search proxy.
type Server struct {
	cfg     config.ServerConfig
	deps    Deps
	version string
	http    *http.Server
}

// New builds the HTTP server and registers every route.
func New(cfg config.ServerConfig, deps Deps, version string) *Server {
	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if cfg.Address != "" {
		opts = append(opts, http.Address(cfg.Address))
	}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, http.Timeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	if deps.Traffic != nil {
		opts = append(opts, http.Filter(deps.Traffic.Middleware))
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		version: version,
		http:    http.NewServer(opts...),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.http.Route("/")
	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/logs/stats", s.logStats)
	r.GET("/logs/clear", s.clearLogs)
	r.GET("/mcp/tools", s.listTools)
	r.POST("/mcp/tools/{name}", s.callTool)
	r.GET("/custom-entries", s.customEntries)
	r.POST("/custom-entries", s.addCustomEntry)

	s.http.Handle("/mcp", s.mcpHandler())
}

// ServeHTTP lets tests drive the full filter chain.
func (s *Server) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	s.http.ServeHTTP(w, r)
}

// HTTP returns the kratos transport server.
func (s *Server) HTTP() *http.Server {
	return s.http
}

func (s *Server) name() string {
	if s.cfg.Name == "" {
		return "llmseo"
	}
	return s.cfg.Name
}

// Run serves until ctx is canceled or the process receives a stop signal.
func (s *Server) Run(ctx context.Context) error {
	name := s.name()
	app := kratos.New(
		kratos.Name(name),
		kratos.Version(s.version),
		kratos.Context(ctx),
		kratos.Logger(log.NewStdLogger(logger.Writer(logger.INFO))),
		kratos.Server(s.http),
	)
	logger.Info("Starting %s %s on %s", name, s.version, s.cfg.Address)
	return app.Run()
}
