// Package httpapi exposes the intake pipeline over HTTP for chat integrations
// that post webhooks instead of speaking MCP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/intake"
)

// DefaultMaxUpload bounds a single document upload.
const DefaultMaxUpload = 20 << 20

// Service is the pipeline behind the routes. *intake.Service satisfies it.
type Service interface {
	HandleUpload(ctx context.Context, sessionID, kind string, data []byte) (*intake.Result, error)
	Status(ctx context.Context, sessionID string) (*intake.SessionStatus, error)
	SetContact(ctx context.Context, sessionID string, contact document.Contact) (*intake.SessionStatus, error)
	RetryExport(ctx context.Context, personKey string) (*intake.ExportResult, error)
}

// Handler serves the intake routes.
type Handler struct {
	svc       Service
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	health    func(context.Context) error
	maxUpload int64
	timeout   time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithGatherer serves /metrics from g.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithHealthCheck makes /healthz report the result of check.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(h *Handler) { h.health = check }
}

// WithMaxUpload overrides DefaultMaxUpload.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) { h.maxUpload = n }
}

// WithRequestTimeout bounds each request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New creates a Handler.
func New(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		logger:    slog.Default(),
		gatherer:  prometheus.DefaultGatherer,
		maxUpload: DefaultMaxUpload,
		timeout:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if h.timeout > 0 {
			r.Use(middleware.Timeout(h.timeout))
		}
		r.Post("/sessions/{sessionID}/documents/{kind}", h.handleUpload)
		r.Get("/sessions/{sessionID}", h.handleStatus)
		r.Put("/sessions/{sessionID}/contact", h.handleContact)
		r.Post("/records/{key}/export", h.handleRetryExport)
	})
	return r
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	kind := chi.URLParam(r, "kind")

	data, err := h.readImage(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.HandleUpload(r.Context(), sessionID, kind, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// readImage accepts a raw image body or a multipart form with an "image"
// file part.
func (h *Handler) readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var src io.Reader = r.Body
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return nil, uploadError(err)
		}
		f, _, err := r.FormFile("image")
		if err != nil {
			return nil, fmt.Errorf("%w: multipart field \"image\": %v", intake.ErrInvalidInput, err)
		}
		defer f.Close()
		src = f
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err)
	}
	return data, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: upload exceeds %d bytes", errTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: read upload: %v", intake.ErrInvalidInput, err)
}

var errTooLarge = errors.New("upload too large")

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	var contact document.Contact
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&contact); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: contact body: %v", intake.ErrInvalidInput, err))
		return
	}

	st, err := h.svc.SetContact(r.Context(), chi.URLParam(r, "sessionID"), contact)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleRetryExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.RetryExport(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: intake.Code(err), Message: intake.UserMessage(err), Retryable: intake.Retryable(err)}
	if errors.Is(err, errTooLarge) {
		body = errorBody{Error: "too_large", Message: "The photo is too large. Please send a smaller image."}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"err", err)
	writeJSON(w, status, body)
}

// statusFor maps a classified pipeline error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, intake.ErrInvalidKind), errors.Is(err, intake.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrDecode), errors.Is(err, intake.ErrEnhancement), errors.Is(err, intake.ErrOCREmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, intake.ErrMissingIdentity), errors.Is(err, intake.ErrNotComplete), errors.Is(err, intake.ErrAlreadyExported):
		return http.StatusConflict
	case errors.Is(err, intake.ErrNoRecord):
		return http.StatusNotFound
	case errors.Is(err, intake.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, intake.ErrOCRUnavailable), errors.Is(err, intake.ErrPersistence), errors.Is(err, intake.ErrExportDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, intake.ErrExport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
