// Package server exposes an agent over HTTP: a message endpoint that runs a
// turn, agent metadata, health, Prometheus metrics and the routes contributed
// by installed plugins.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/engine"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/runner"
)

// PluginPrefix is the path prefix of plugin routes.
const PluginPrefix = "/plugins"

// Agent is the runtime surface the server needs.
type Agent interface {
	core.Runtime
	Routes() []core.Route
	Plugins() []string
	EnsureConnection(ctx context.Context, params engine.ConnectionParams) error
}

// TurnHandler runs a single turn for an incoming message.
type TurnHandler interface {
	HandleMessage(ctx context.Context, message *core.Memory, callback core.HandlerCallback) (*runner.TurnResult, error)
}

// Options configures a Server.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Gatherer backs /metrics. Defaults to the global Prometheus registry.
	Gatherer prometheus.Gatherer
	Debug    bool
	Logger   logging.Logger
}

// Server serves one agent.
type Server struct {
	agent      Agent
	turns      TurnHandler
	opts       Options
	router     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// APIResponse is the JSON envelope of every non-plugin endpoint.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	RoomID    string         `json:"roomId" binding:"required"`
	EntityID  string         `json:"entityId" binding:"required"`
	Text      string         `json:"text" binding:"required"`
	Name      string         `json:"name,omitempty"`
	UserName  string         `json:"userName,omitempty"`
	Source    string         `json:"source,omitempty"`
	ServerID  string         `json:"serverId,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AgentInfo is returned by GET /v1/agent.
type AgentInfo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Plugins    []string `json:"plugins"`
	Actions    []string `json:"actions"`
	Providers  []string `json:"providers"`
	Evaluators []string `json:"evaluators"`
}

// New builds the router for agent. Plugin routes are read once, so the
// agent should be initialized first.
func New(agent Agent, turns TurnHandler, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:         ":3000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		Gatherer:     prometheus.DefaultGatherer,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(opts.Logger))

	s := &Server{
		agent:     agent,
		turns:     turns,
		opts:      opts,
		router:    router,
		startTime: time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/v1")
	api.GET("/agent", s.handleAgent)
	api.POST("/messages", s.handleMessage)

	s.mountPluginRoutes()
}

var routeMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodConnect: {},
	http.MethodOptions: {},
	http.MethodTrace:   {},
}

// mountPluginRoutes registers plugin routes under PluginPrefix. A route with
// an unknown method, a taken method and path, or a path the router rejects
// is logged and skipped.
func (s *Server) mountPluginRoutes() {
	plugins := s.router.Group(PluginPrefix)
	seen := make(map[string]struct{})

	for _, route := range s.agent.Routes() {
		method := strings.ToUpper(route.Type)
		if method == "" {
			method = http.MethodGet
		}

		path := "/" + strings.TrimPrefix(route.Path, "/")
		key := method + " " + path

		if _, ok := routeMethods[method]; !ok {
			s.opts.Logger.Warn("plugin route has an unsupported method", "route", key, "name", route.Name)
			continue
		}

		if route.Handler == nil {
			s.opts.Logger.Warn("plugin route has no handler", "route", key)
			continue
		}

		if _, dup := seen[key]; dup {
			s.opts.Logger.Warn("plugin route already mounted", "route", key, "name", route.Name)
			continue
		}

		handler := route.Handler
		if err := mount(plugins, method, path, func(c *gin.Context) {
			handler(c.Writer, c.Request, s.agent)
		}); err != nil {
			s.opts.Logger.Warn("failed to mount plugin route", "route", key, "name", route.Name, "error", err)
			continue
		}

		seen[key] = struct{}{}

		s.opts.Logger.Debug("plugin route mounted", "route", key, "name", route.Name)
	}
}

// mount turns a router panic, such as a conflicting wildcard segment, into an
// error.
func mount(group *gin.RouterGroup, method, path string, handler gin.HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid route: %v", r)
		}
	}()

	group.Handle(method, path, handler)

	return nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.opts.Logger.Info("starting server", "addr", s.opts.Addr, "agent_id", s.agent.AgentID())

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: gin.H{
			"status":   "ok",
			"agentId":  s.agent.AgentID(),
			"uptime":   time.Since(s.startTime).String(),
			"database": s.agent.Adapter() != nil,
		},
	})
}

func (s *Server) handleAgent(c *gin.Context) {
	info := AgentInfo{
		ID:         s.agent.AgentID(),
		Name:       s.agent.Character().Name,
		Plugins:    s.agent.Plugins(),
		Actions:    []string{},
		Providers:  []string{},
		Evaluators: []string{},
	}

	for _, a := range s.agent.Actions() {
		info.Actions = append(info.Actions, a.Name())
	}

	for _, p := range s.agent.Providers() {
		info.Providers = append(info.Providers, p.Name())
	}

	for _, e := range s.agent.Evaluators() {
		info.Evaluators = append(info.Evaluators, e.Name())
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: info})
}

func (s *Server) handleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIResponse{Error: "invalid request: " + err.Error()})
		return
	}

	if req.Source == "" {
		req.Source = "api"
	}

	ctx := c.Request.Context()

	if err := s.agent.EnsureConnection(ctx, engine.ConnectionParams{
		EntityID:  req.EntityID,
		RoomID:    req.RoomID,
		ServerID:  req.ServerID,
		ChannelID: req.ChannelID,
		Name:      req.Name,
		UserName:  req.UserName,
		Source:    req.Source,
		Type:      core.ChannelTypeAPI,
		Metadata:  req.Metadata,
	}); err != nil {
		s.opts.Logger.Error("failed to ensure connection", "room_id", req.RoomID, "entity_id", req.EntityID, "error", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Error: err.Error()})

		return
	}

	message := &core.Memory{
		ID:        core.NewID(),
		EntityID:  req.EntityID,
		AgentID:   s.agent.AgentID(),
		RoomID:    req.RoomID,
		CreatedAt: time.Now(),
		Content:   core.Content{Text: req.Text, Source: req.Source},
	}

	result, err := s.turns.HandleMessage(ctx, message, nil)
	if err != nil {
		s.opts.Logger.Error("turn failed", "message_id", message.ID, "error", err)
		c.JSON(http.StatusInternalServerError, APIResponse{Error: err.Error()})

		return
	}

	c.JSON(http.StatusOK, APIResponse{Success: true, Data: result})
}
