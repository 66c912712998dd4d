// Package api serves category queries and Lua chunks over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/luatable"
	"github.com/cattools/cattools/internal/metrics"
	"github.com/cattools/cattools/internal/scribunto"
	appmw "github.com/cattools/cattools/internal/web/middleware"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// Pinger reports replica health
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler serves the HTTP API. Every request is one render with its own
// expensive-call budget under a server-generated render key.
type Handler struct {
	toolbox  *categories.Toolbox
	engine   *scribunto.Engine
	counters scribunto.CounterSource
	db       Pinger
	logger   *zap.Logger
}

// NewHandler creates the API handler
func NewHandler(tb *categories.Toolbox, engine *scribunto.Engine, counters scribunto.CounterSource, db Pinger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		toolbox:  tb,
		engine:   engine,
		counters: counters,
		db:       db,
		logger:   logger,
	}
}

// Routes builds the router with the standard middleware stack
func (h *Handler) Routes(opts ...RouterOption) http.Handler {
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Use(appmw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmw.Logging(h.logger, "/healthz", "/metrics"))
	r.Use(appmw.Recovery(h.logger))
	if cfg.timeout > 0 {
		r.Use(appmw.Deadline(cfg.timeout))
	}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories/{category}/pages", h.categoryPages)
		r.Get("/categories/{category}/members/{ns}/*", h.categoryHasPage)
		r.Post("/membership", h.membership)
		r.Post("/invoke", h.invoke)
	})
	return r
}

// renderKey names the budget of one request. X-Request-ID comes from the
// client, so it cannot key the budget on its own.
func (h *Handler) renderKey(r *http.Request) string {
	key := uuid.NewString()
	h.logger.Debug("render started", appmw.RequestIDField(r.Context()), zap.String("render", key))
	return key
}

// render returns the toolbox bound to a fresh budget for this request
func (h *Handler) render(r *http.Request) *categories.Toolbox {
	return h.toolbox.ForRender(h.counters(h.renderKey(r)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn("replica ping failed", zap.Error(err))
			renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PagesResponse is the body of a category listing
type PagesResponse struct {
	Category string                  `json:"category"`
	Pages    []categories.PageRecord `json:"pages"`
}

func (h *Handler) categoryPages(w http.ResponseWriter, r *http.Request) {
	p := params{req: r}

	ns, err := p.QueryInt("ns")
	if err != nil {
		renderError(w, err)
		return
	}
	limit, err := p.QueryInt("limit")
	if err != nil {
		renderError(w, err)
		return
	}
	offset, err := p.QueryInt("offset")
	if err != nil {
		renderError(w, err)
		return
	}
	recency, err := p.QueryBool("orderByRecency")
	if err != nil {
		renderError(w, err)
		return
	}

	category := p.PathParam("category")
	pages, err := h.render(r).CategoryPages(r.Context(), category, ns, categories.PagesOptions{
		SortkeyPrefix:  p.QueryString("sortkeyPrefix"),
		OrderByRecency: recency,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, PagesResponse{
		Category: categories.Space2Underscore(category),
		Pages:    pages,
	})
}

func (h *Handler) categoryHasPage(w http.ResponseWriter, r *http.Request) {
	p := params{req: r}

	ns, err := p.PathParamInt("ns")
	if err != nil {
		renderError(w, err)
		return
	}

	// the title is the rest of the path, so subpages keep their slashes
	title := p.PathParam("*")
	if title == "" {
		renderError(w, badRequest("title is required"))
		return
	}

	member, err := h.render(r).CategoryHasPage(r.Context(), p.PathParam("category"), ns, title)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]bool{"member": member})
}

// MembershipRequest is the body of POST /api/membership
type MembershipRequest struct {
	PageIDs    []int64  `json:"pageIds"`
	Categories []string `json:"categories"`
	Mode       string   `json:"mode"`
}

// MembershipResponse maps page ids to their result
type MembershipResponse struct {
	Mode    string         `json:"mode"`
	Results map[int64]bool `json:"results"`
}

func (h *Handler) membership(w http.ResponseWriter, r *http.Request) {
	var req MembershipRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}

	mode, err := finder.ParseMode(req.Mode)
	if err != nil {
		renderError(w, badRequest("%s", err.Error()))
		return
	}

	results, err := h.render(r).ArePagesInCategories(r.Context(), req.PageIDs, req.Categories, mode)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, MembershipResponse{Mode: mode.String(), Results: results})
}

// InvokeRequest is the body of POST /api/invoke
type InvokeRequest struct {
	Source string `json:"source"`
}

// InvokeResponse carries the values returned by the chunk
type InvokeResponse struct {
	Results []luatable.Value `json:"results"`
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderError(w, err)
		return
	}
	if req.Source == "" {
		renderError(w, badRequest("source is required"))
		return
	}

	values, err := h.engine.Run(r.Context(), h.renderKey(r), req.Source)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results := make([]luatable.Value, len(values))
	for i, v := range values {
		results[i] = luatable.Normalize(v)
	}
	renderJSON(w, http.StatusOK, InvokeResponse{Results: results})
}

// fail logs server-side failures and renders err
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", appmw.RequestIDField(r.Context()), zap.Error(err))
	}
	renderError(w, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %s", err.Error())
	}
	return nil
}

// RouterOption configures Routes
type RouterOption func(*routerConfig)

type routerConfig struct {
	timeout time.Duration
}

// WithRequestTimeout bounds every request's context
func WithRequestTimeout(d time.Duration) RouterOption {
	return func(c *routerConfig) { c.timeout = d }
}
