package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productapi/internal/model"
	"github.com/vyrodovalexey/productapi/internal/query"
	"github.com/vyrodovalexey/productapi/internal/store"
)

const tracerName = "github.com/vyrodovalexey/productapi/internal/handler"

// RESTHandler handles REST API requests for products.
type RESTHandler struct {
	store  store.Store
	events EventPublisher
	logger *zap.Logger
	tracer trace.Tracer
}

// NewRESTHandler creates a new RESTHandler instance. events may be nil.
func NewRESTHandler(s store.Store, events EventPublisher, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		store:  s,
		events: events,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// RegisterRoutes registers the REST API routes with the router.
// The literal search and stats paths are registered before {id}.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Welcome).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)

	router.HandleFunc("/api/products", h.ListProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/products", h.CreateProduct).Methods(http.MethodPost)
	router.HandleFunc("/api/products/search", h.SearchProducts).Methods(http.MethodGet)
	router.HandleFunc("/api/products/stats", h.ProductStats).Methods(http.MethodGet)
	router.HandleFunc("/api/products/{id}", h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc("/api/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	router.HandleFunc("/api/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)
}

// Welcome handles GET / requests.
func (h *RESTHandler) Welcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, WelcomeMessage)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// ReadyCheck handles GET /ready requests. The store is ready when it can list.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready"})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready"})
}

// ListProducts handles GET /api/products requests.
func (h *RESTHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	params := r.URL.Query()
	page, limit, err := query.ParsePagination(params.Get("page"), params.Get("limit"))
	if err != nil {
		h.logger.Warn("invalid pagination", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, model.KindBadRequest, err.Error())
		return
	}

	products, err := h.store.List(ctx)
	if err != nil {
		h.handleStoreError(w, span, err, "list products")
		return
	}

	category := params.Get("category")
	result := query.ListResult(products, category, page, limit)
	span.SetAttributes(
		attribute.String("catalog.category", category),
		attribute.Int("catalog.page", page),
		attribute.Int("catalog.limit", limit),
		attribute.Int("catalog.total", result.Total),
	)

	h.writeJSON(w, http.StatusOK, result)
}

// SearchProducts handles GET /api/products/search requests.
func (h *RESTHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "SearchProducts")
	defer span.End()

	name := r.URL.Query().Get("name")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, model.KindBadRequest, "Name query parameter is required")
		return
	}

	products, err := h.store.List(ctx)
	if err != nil {
		h.handleStoreError(w, span, err, "search products")
		return
	}

	matches := query.Search(products, name)
	span.SetAttributes(attribute.Int("catalog.matches", len(matches)))

	h.writeJSON(w, http.StatusOK, matches)
}

// ProductStats handles GET /api/products/stats requests.
func (h *RESTHandler) ProductStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProductStats")
	defer span.End()

	products, err := h.store.List(ctx)
	if err != nil {
		h.handleStoreError(w, span, err, "product stats")
		return
	}

	h.writeJSON(w, http.StatusOK, query.CategoryStats(products))
}

// GetProduct handles GET /api/products/{id} requests.
func (h *RESTHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx, span := h.tracer.Start(r.Context(), "GetProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	product, err := h.store.Get(ctx, id)
	if err != nil {
		h.handleStoreError(w, span, err, "get product")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/products requests.
func (h *RESTHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var input model.ProductInput
	if err := decodeBody(r, &input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, model.KindBadRequest, bodyErrorMessage(err))
		return
	}

	product, err := h.store.Create(ctx, &input)
	if err != nil {
		h.handleStoreError(w, span, err, "create product")
		return
	}

	span.SetAttributes(attribute.String("product.id", product.ID))
	h.publish(r, model.EventCreated, product)
	h.writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/products/{id} requests.
func (h *RESTHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	var patch model.ProductPatch
	if err := decodeBody(r, &patch); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, model.KindBadRequest, bodyErrorMessage(err))
		return
	}

	product, err := h.store.Update(ctx, id, &patch)
	if err != nil {
		h.handleStoreError(w, span, err, "update product")
		return
	}

	h.publish(r, model.EventUpdated, product)
	h.writeJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/{id} requests.
// The removed product is returned.
func (h *RESTHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	product, err := h.store.Delete(ctx, id)
	if err != nil {
		h.handleStoreError(w, span, err, "delete product")
		return
	}

	h.publish(r, model.EventDeleted, product)
	h.writeJSON(w, http.StatusOK, product)
}

func (h *RESTHandler) publish(r *http.Request, t model.EventType, p *model.Product) {
	if h.events == nil {
		return
	}
	h.events.Publish(r.Context(), model.NewProductEvent(t, *p))
}

// handleStoreError maps store errors to HTTP responses. Unexpected errors are
// logged in full and answered with the generic internal error message.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, span trace.Span, err error, operation string) {
	var vErr *model.ValidationError

	switch {
	case errors.As(err, &vErr):
		h.logger.Warn("validation failed", zap.String("operation", operation), zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, model.ErrorResponse{
			Error:   model.KindValidationError,
			Message: vErr.Message,
			Fields:  vErr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, model.KindNotFound, "Product not found")
	case errors.Is(err, store.ErrInvalidID):
		h.writeError(w, http.StatusBadRequest, model.KindBadRequest, "Invalid product ID")
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, operation)
		h.writeError(w, http.StatusInternalServerError, model.KindInternalError, model.InternalErrorMessage)
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *RESTHandler) writeError(w http.ResponseWriter, status int, kind model.ErrorKind, message string) {
	h.writeJSON(w, status, model.ErrorResponse{Error: kind, Message: message})
}

// decodeBody decodes a JSON request body into dst. An empty body decodes as
// an empty object so that missing fields surface as validation errors.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func bodyErrorMessage(err error) string {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return "Request body too large"
	}
	return "Invalid request body"
}
