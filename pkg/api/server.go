// Package api is the HTTP surface of a clone: the shared endpoints every
// worker exposes, the role-specific specialization endpoint, and — when the
// clone is the coordinator — the orchestration set. Handlers translate wire
// payloads; all behavior lives in the packages underneath.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omegalab/clonenet/pkg/clone"
	"github.com/omegalab/clonenet/pkg/coordinator"
)

// Server hosts one clone's HTTP endpoints.
type Server struct {
	clone       *clone.Clone
	coordinator *coordinator.Coordinator
	engine      *gin.Engine
	httpServer  *http.Server
	metrics     *httpMetrics
}

// NewServer assembles the engine and routes for worker. coord is nil for
// specialists; when present, the coordinator endpoint set is mounted too.
func NewServer(worker *clone.Clone, coord *coordinator.Coordinator) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		clone:       worker,
		coordinator: coord,
		metrics:     newHTTPMetrics(prometheus.NewRegistry(), worker.Role().ID),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(s.metrics.instrument())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	engine.POST("/task", s.handleTask)
	engine.POST("/artifacts", s.handleStoreArtifact)
	engine.GET("/artifacts", s.handleListArtifacts)
	engine.GET("/artifacts/:id", s.handleGetArtifact)
	engine.DELETE("/artifacts/:id", s.handleDeleteArtifact)
	engine.GET("/audit", s.handleAudit)

	if verb := worker.Role().Verb; verb != "" {
		engine.POST(verb, s.handleSpecialization)
	}

	if coord != nil {
		engine.GET("/network-status", s.handleNetworkStatus)
		engine.POST("/delegate", s.handleDelegate)
		engine.POST("/orchestrate", s.handleOrchestrate)
		engine.POST("/register", s.handleRegister)
	}

	s.engine = engine
	return s
}

// Handler exposes the engine for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listener on port and serves until Shutdown. It blocks the
// way http.Server.ListenAndServe does.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains outstanding handlers within ctx's deadline, then releases
// the port.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
