package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/reload"
)

// Router provides embeddable HTTP handlers for controlling programs.
// Endpoints:
//
//	GET  {basePath}/programs               every program in display order
//	GET  {basePath}/programs/:name         one program with uptime and resources
//	POST {basePath}/programs/:name/launch
//	POST {basePath}/programs/:name/kill
//	POST {basePath}/programs/:name/restart
//	POST {basePath}/reload                 reread the configuration file
//	GET  {basePath}/metrics                prometheus exposition
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	ctl      *lifecycle.Controller
	reloader Reloader
	metrics  http.Handler
	log      *slog.Logger
	basePath string
}

// Reloader is satisfied by *reload.Handler.
type Reloader interface {
	Reload() (reload.Result, error)
}

type Option func(*Router)

// WithReloader enables POST /reload.
func WithReloader(rl Reloader) Option { return func(r *Router) { r.reloader = rl } }

// WithMetricsHandler overrides the handler mounted at /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(r *Router) { r.metrics = h } }

func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.log = l } }

// NewRouter constructs a Router with configurable basePath.
func NewRouter(ctl *lifecycle.Controller, basePath string, opts ...Option) *Router {
	r := &Router{ctl: ctl, basePath: sanitizeBase(basePath), log: logger.Discard()}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil && metrics.Enabled() {
		r.metrics = metrics.Handler()
	}
	return r
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/programs", r.handleList)
	group.GET("/programs/:name", r.handleDescribe)
	group.POST("/programs/:name/launch", r.handleLaunch)
	group.POST("/programs/:name/kill", r.handleKill)
	group.POST("/programs/:name/restart", r.handleRestart)
	group.POST("/reload", r.handleReload)
	if r.metrics != nil {
		group.GET("/metrics", gin.WrapH(r.metrics))
	}
	return g
}

// NewServer builds an http.Server for addr. The caller owns ListenAndServe
// and Shutdown.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// kill may wait for stopwaitsecs before answering
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type actionResp struct {
	Program string `json:"program"`
	Action  string `json:"action"`
	Forced  bool   `json:"forced,omitempty"`
}

func (r *Router) name(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid program name: allowed [A-Za-z0-9._-] and no '..'"})
		return "", false
	}
	return name, true
}

func (r *Router) handleList(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.ctl.Snapshot())
}

func (r *Router) handleDescribe(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	d, err := r.ctl.Describe(name)
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (r *Router) handleLaunch(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	if err := r.ctl.Launch(name); err != nil {
		writeError(c, err)
		return
	}
	r.log.Info("program launched via api", "program", name, "remote", c.ClientIP())
	writeJSON(c, http.StatusOK, actionResp{Program: name, Action: "launch"})
}

func (r *Router) handleKill(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	res, err := r.ctl.Stop(name)
	if err != nil {
		writeError(c, err)
		return
	}
	r.log.Info("program killed via api", "program", name, "forced", res.Forced, "remote", c.ClientIP())
	writeJSON(c, http.StatusOK, actionResp{Program: name, Action: "kill", Forced: res.Forced})
}

func (r *Router) handleRestart(c *gin.Context) {
	name, ok := r.name(c)
	if !ok {
		return
	}
	if err := r.ctl.Restart(name); err != nil {
		writeError(c, err)
		return
	}
	r.log.Info("program restarted via api", "program", name, "remote", c.ClientIP())
	writeJSON(c, http.StatusOK, actionResp{Program: name, Action: "restart"})
}

func (r *Router) handleReload(c *gin.Context) {
	if r.reloader == nil {
		writeJSON(c, http.StatusNotImplemented, errorResp{Error: "reload not available"})
		return
	}
	res, err := r.reloader.Reload()
	if err != nil {
		writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
