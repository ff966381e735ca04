package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bureau/internal/mandate/models"
	"bureau/internal/mandate/service"
	"bureau/internal/platform/cache"
	"bureau/internal/platform/metrics"
	"bureau/internal/platform/middleware"
	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/httputil"
)

// maxBodyBytes bounds mandate request bodies.
const maxBodyBytes = 1 << 16

// Service defines the mandate operations exposed over HTTP.
type Service interface {
	List(ctx context.Context, memberID int64, page, limit int) (*models.MandatePage, error)
	Add(ctx context.Context, memberID int64, input models.MandateInput) (*models.RoleMandate, error)
	Update(ctx context.Context, memberID, mandateID int64, input models.MandateInput) (*models.RoleMandate, error)
	Delete(ctx context.Context, memberID, mandateID int64) error
}

// Handler serves the member mandate endpoints.
type Handler struct {
	logger         *slog.Logger
	mandates       Service
	metrics        *metrics.Metrics
	jwtValidator   middleware.JWTValidator
	cache          cache.Cache
	cacheTTL       time.Duration
	requestTimeout time.Duration
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithResponseCache caches list responses in c for ttl.
func WithResponseCache(c cache.Cache, ttl time.Duration) Option {
	return func(h *Handler) {
		h.cache = c
		h.cacheTTL = ttl
	}
}

// WithMetrics records request latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// New creates a mandate Handler.
func New(mandates Service, logger *slog.Logger, jwtValidator middleware.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		mandates:       mandates,
		jwtValidator:   jwtValidator,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the mandate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	mandateRouter := chi.NewRouter()
	mandateRouter.Use(middleware.Recovery(h.logger))
	mandateRouter.Use(middleware.RequestID)
	mandateRouter.Use(middleware.Logger(h.logger))
	mandateRouter.Use(middleware.Timeout(h.requestTimeout))
	mandateRouter.Use(middleware.ContentTypeJSON)
	mandateRouter.Use(middleware.LatencyMiddleware(h.metrics))
	mandateRouter.Use(middleware.RequireAuth(h.jwtValidator, h.logger))

	list := mandateRouter.With()
	if h.cache != nil {
		list = mandateRouter.With(cache.Middleware(h.cache, h.cacheTTL, h.logger, cache.WithKeyFunc(listCacheKey)))
	}
	list.Get("/{id}/mandates", h.handleList)
	mandateRouter.Post("/{id}/mandates", h.handleAdd)
	mandateRouter.Put("/{id}/mandates/{mandateId}", h.handleUpdate)
	mandateRouter.Delete("/{id}/mandates/{mandateId}", h.handleDelete)

	r.Mount("/members", mandateRouter)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := pathID(r, "id", "member")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	page, limit, err := parsePaging(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	result, err := h.mandates.List(ctx, memberID, page, limit)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result.ToResponse())
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, err := pathID(r, "id", "member")
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	input, err := decodeInput(w, r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	created, err := h.mandates.Add(ctx, memberID, input)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.MandateResponse{Mandate: created})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, mandateID, err := mandatePath(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	input, err := decodeInput(w, r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	updated, err := h.mandates.Update(ctx, memberID, mandateID, input)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.MandateResponse{Mandate: updated})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memberID, mandateID, err := mandatePath(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.mandates.Delete(ctx, memberID, mandateID); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError logs at a level matching the failure and renders the error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	requestID := middleware.GetRequestID(ctx)
	if de, ok := dErrors.As(err); ok && httputil.StatusFor(de.Code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, "mandate request rejected",
			"request_id", requestID,
			"code", de.Code,
			"error", err.Error(),
		)
	} else {
		h.logger.ErrorContext(ctx, "mandate request failed",
			"request_id", requestID,
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

// listCacheKey keys a listing by its parsed member id and paging, so every
// spelling of the same listing ("07", "+7") shares the entry that writes to
// the member invalidate. Unparseable requests skip the cache.
func listCacheKey(r *http.Request) (string, bool) {
	memberID, err := pathID(r, "id", "member")
	if err != nil {
		return "", false
	}
	page, limit, err := parsePaging(r)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s?page=%d&limit=%d", service.MandateListPath(memberID), page, limit), true
}

func pathID(r *http.Request, param, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid "+name+" id")
	}
	return id, nil
}

func mandatePath(r *http.Request) (int64, int64, error) {
	memberID, err := pathID(r, "id", "member")
	if err != nil {
		return 0, 0, err
	}
	mandateID, err := pathID(r, "mandateId", "mandate")
	if err != nil {
		return 0, 0, err
	}
	return memberID, mandateID, nil
}

func parsePaging(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	var fields []dErrors.FieldError

	page, ok := queryInt(q.Get("page"), 1)
	if !ok {
		fields = append(fields, dErrors.FieldError{Field: "page", Message: "page must be an integer"})
	}
	limit, ok := queryInt(q.Get("limit"), service.DefaultPageSize)
	if !ok {
		fields = append(fields, dErrors.FieldError{Field: "limit", Message: "limit must be an integer"})
	}
	if len(fields) > 0 {
		return 0, 0, dErrors.NewValidation("invalid pagination", fields)
	}
	return page, limit, nil
}

func queryInt(raw string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// decodeInput reads a JSON object body. Field-level checks are left to the
// service so every invalid field can be reported at once.
func decodeInput(w http.ResponseWriter, r *http.Request) (models.MandateInput, error) {
	var input models.MandateInput
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input)
	if errors.Is(err, io.EOF) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err != nil || input == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return input, nil
}
