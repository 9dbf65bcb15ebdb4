// Package httpapi serves resolved options over HTTP. Reads come from a
// snapshot Source; writes go to a runtime override layer that is stacked
// above every file layer.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/schema/openapi"
)

// SnapshotHeader carries the ID of the snapshot a response was built from.
const SnapshotHeader = "X-Options-Snapshot"

const maxBodyBytes = 1 << 20

// Source supplies the snapshot to serve. *reload.Holder implements it.
type Source interface {
	Get() *optfactory.Options
}

// Config wires the router.
type Config struct {
	Factory *optfactory.Factory
	Source  Source

	// Overrides and Reload enable PUT, PATCH and DELETE on /options. Reload
	// must rebuild Source from a stack that includes Overrides.Layer().
	Overrides *Overrides
	Reload    func() error

	// Trace explains one option. GET /trace/* is only mounted when set.
	Trace func(path string) (optfactory.Trace, error)

	// Metrics is exposed on /metrics when set.
	Metrics prometheus.Gatherer

	// SwaggerUI serves the interactive documentation under /swagger/ for
	// the document at /openapi.json.
	SwaggerUI bool

	Logger  zerolog.Logger
	Timeout time.Duration
}

type handler struct {
	cfg Config
}

// NewRouter builds the HTTP router.
func NewRouter(cfg Config) chi.Router {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	h := &handler{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	r.Get("/health", h.health)

	if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/options", func(r chi.Router) {
		r.Get("/", h.snapshot)
		r.Get("/*", h.option)
		if h.writable() {
			r.Put("/", h.replace)
			r.Patch("/", h.merge)
			r.Delete("/", h.clear)
		}
	})

	if cfg.Trace != nil {
		r.Get("/trace/*", h.trace)
	}
	if cfg.Factory != nil {
		r.Get("/schema", h.schema)
		r.Get("/openapi.json", h.openAPI)
		if cfg.SwaggerUI {
			r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))
		}
	}

	return r
}

func (h *handler) writable() bool {
	return h.cfg.Overrides != nil && h.cfg.Reload != nil
}

// NewLoggingMiddleware logs each request at debug level.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	opts := h.cfg.Source.Get()
	w.Header().Set(SnapshotHeader, opts.ID())
	explicitOnly := r.URL.Query().Get("explicit") == "true"
	writeJSON(w, http.StatusOK, opts.ToMap(!explicitOnly))
}

// OptionResponse is the body of GET /options/{path}.
type OptionResponse struct {
	Path    string `json:"path"`
	Value   any    `json:"value"`
	Default bool   `json:"default"`
}

func (h *handler) option(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	opts := h.cfg.Source.Get()
	w.Header().Set(SnapshotHeader, opts.ID())

	value, err := opts.Get(path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	isDefault, err := opts.IsDefault(path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OptionResponse{Path: path, Value: value, Default: isDefault})
}

func (h *handler) replace(w http.ResponseWriter, r *http.Request) {
	values, ok := h.readValues(w, r)
	if !ok {
		return
	}
	h.applied(w, r, h.cfg.Overrides.Replace(values, h.cfg.Reload))
}

func (h *handler) merge(w http.ResponseWriter, r *http.Request) {
	values, ok := h.readValues(w, r)
	if !ok {
		return
	}
	h.applied(w, r, h.cfg.Overrides.Merge(values, h.cfg.Reload))
}

func (h *handler) clear(w http.ResponseWriter, r *http.Request) {
	h.applied(w, r, h.cfg.Overrides.Replace(nil, h.cfg.Reload))
}

func (h *handler) applied(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set(SnapshotHeader, h.cfg.Source.Get().ID())
	w.WriteHeader(http.StatusNoContent)
}

// readValues decodes a request body as YAML, which also accepts JSON and
// keeps integers as int. Keys the schema does not declare are dropped.
func (h *handler) readValues(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	values, err := optfactory.LoadYAML(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, false
	}
	if h.cfg.Factory != nil {
		if values, err = h.cfg.Factory.Overrides(values); err != nil {
			h.fail(w, r, err)
			return nil, false
		}
	}
	return values, true
}

func (h *handler) trace(w http.ResponseWriter, r *http.Request) {
	trace, err := h.cfg.Trace(wildcardPath(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	payload, err := trace.ToJSON()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) {
	doc, err := h.cfg.Factory.Schema()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("X-Schema-Format", string(doc.Format))
	writeJSON(w, http.StatusOK, doc.Document)
}

func (h *handler) openAPI(w http.ResponseWriter, r *http.Request) {
	var opts []openapi.GeneratorOption
	if !h.writable() {
		opts = append(opts, openapi.WithReadOnly())
	}
	doc, err := openapi.NewGenerator(opts...).Generate(h.cfg.Factory)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, doc.Document)
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.cfg.Logger.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, optfactory.ErrUnknownOption):
		return http.StatusNotFound
	case errors.Is(err, optfactory.ErrTypeMismatch),
		errors.Is(err, optfactory.ErrNotAllowed),
		errors.Is(err, optfactory.ErrCheckFailed),
		errors.Is(err, optfactory.ErrIllegalSectionReplace),
		errors.Is(err, optfactory.ErrNotSection),
		errors.Is(err, optfactory.ErrCircularDefinition),
		errors.Is(err, optfactory.ErrUnknownDefaultName):
		return http.StatusUnprocessableEntity
	default:
		var evalErr *optfactory.EvaluationError
		if errors.As(err, &evalErr) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

func wildcardPath(r *http.Request) string {
	return strings.Trim(chi.URLParam(r, "*"), "/")
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
