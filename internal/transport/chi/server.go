package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
	cataloguc "github.com/bazaarline/discovery/internal/usecase/catalog"
	chatuc "github.com/bazaarline/discovery/internal/usecase/chat"
	discoveryuc "github.com/bazaarline/discovery/internal/usecase/discovery"
	healthuc "github.com/bazaarline/discovery/internal/usecase/health"
)

// Caller identity headers. Auth/session management lives upstream; the
// gateway forwards the resolved identity in these headers.
const (
	headerBuyerID  = "X-Buyer-ID"
	headerSellerID = "X-Seller-ID"
)

const (
	// chatTopN bounds how many items the narrator sees; the response
	// still carries the full ranked list.
	chatTopN = 5

	defaultRecentLimit = 24
)

// friendlyErrorReply is returned with HTTP 200 when the pipeline or the
// narrator fails, so a chat client can render it inline instead of an
// error state.
const friendlyErrorReply = "Can't reach the server right now. Please try again in a moment."

// Error codes returned in the JSON error body.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeNotFound         = "not_found"
	codeRateLimited      = "rate_limited"
	codeProviderError    = "provider_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the hand-written HTTP API: conversational discovery, catalog
// CRUD, buyer location, health and metrics.
type Server struct {
	discovery     *discoveryuc.Service
	narrator      *chatuc.Service
	catalog       *cataloguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	discovery *discoveryuc.Service,
	narrator *chatuc.Service,
	catalog *cataloguc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		discovery: discovery,
		narrator:  narrator,
		catalog:   catalog,
		health:    health,
		logger:    logger.Named("http"),
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrNotOwner, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrEmptyText, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrLLMRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrLLMProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeProviderError),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, codeProviderError),
	}
	return s
}

// RegisterRoutes mounts all API routes on the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", s.Chat)

	r.Post("/api/items", s.CreateItem)
	r.Get("/api/items/recent", s.RecentItems)
	r.Get("/api/items/{id}", s.GetItem)
	r.Delete("/api/items/{id}", s.DeleteItem)
	r.Post("/api/items/{id}/relist", s.RelistItem)
	r.Get("/api/sellers/{sellerID}/items", s.SellerItems)
	r.Put("/api/buyers/location", s.SetBuyerLocation)

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type turnDTO struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type chatRequest struct {
	Message string    `json:"message"`
	History []turnDTO `json:"history"`
	Limit   int       `json:"limit"`
}

type chatResponse struct {
	Reply      string               `json:"reply"`
	Items      []itemResponse       `json:"items"`
	IsFallback bool                 `json:"isFallback"`
	Thinking   domain.ThinkingTrace `json:"thinking"`
}

type itemResponse struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Link        string    `json:"link,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type createItemRequest struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Price          float64 `json:"price"`
	ImageURL       string  `json:"imageUrl"`
	Link           string  `json:"link"`
	SellerLocation string  `json:"sellerLocation"`
}

type locationRequest struct {
	Location string `json:"location"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Chat handles POST /api/chat. Pipeline and narration failures degrade to a
// friendly reply with HTTP 200 so chat clients render them inline.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Message is required")
		return
	}

	history := make([]domain.ConversationTurn, len(req.History))
	for i, t := range req.History {
		history[i] = domain.ConversationTurn{Role: t.Role, Text: t.Text}
	}

	result, err := s.discovery.Search(r.Context(), &discoveryuc.Request{
		Message: message,
		History: history,
		BuyerID: r.Header.Get(headerBuyerID),
		Limit:   req.Limit,
	})
	if err != nil {
		s.logger.Warn("discovery failed, degrading to friendly reply", zap.Error(err))
		writeJSON(w, http.StatusOK, chatResponse{
			Reply:    friendlyErrorReply,
			Items:    []itemResponse{},
			Thinking: domain.ThinkingTrace{},
		})
		return
	}

	narrated := result.Items
	if len(narrated) > chatTopN {
		narrated = narrated[:chatTopN]
	}

	reply, err := s.narrator.Narrate(r.Context(), message, narrated, history, result.IsFallback)
	if err != nil {
		s.logger.Warn("narration failed, degrading to friendly reply", zap.Error(err))
		reply = friendlyErrorReply
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:      reply,
		Items:      itemsToResponse(result.Items),
		IsFallback: result.IsFallback,
		Thinking:   result.Thinking,
	})
}

// CreateItem handles POST /api/items.
func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	sellerID := r.Header.Get(headerSellerID)
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "X-Seller-ID header is required")
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := s.catalog.Create(r.Context(), &cataloguc.CreateInput{
		SellerID:       sellerID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Price:          req.Price,
		ImageURL:       req.ImageURL,
		Link:           req.Link,
		SellerLocation: req.SellerLocation,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, itemToResponse(item))
}

// GetItem handles GET /api/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemToResponse(item))
}

// DeleteItem handles DELETE /api/items/{id}. Owner only.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	sellerID := r.Header.Get(headerSellerID)
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "X-Seller-ID header is required")
		return
	}

	if err := s.catalog.Delete(r.Context(), sellerID, chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RelistItem handles POST /api/items/{id}/relist. Owner only.
func (s *Server) RelistItem(w http.ResponseWriter, r *http.Request) {
	sellerID := r.Header.Get(headerSellerID)
	if sellerID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "X-Seller-ID header is required")
		return
	}

	item, err := s.catalog.Relist(r.Context(), sellerID, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, itemToResponse(item))
}

// RecentItems handles GET /api/items/recent.
func (s *Server) RecentItems(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := s.catalog.ListRecent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsToResponse(items))
}

// SellerItems handles GET /api/sellers/{sellerID}/items.
func (s *Server) SellerItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.catalog.ListBySeller(r.Context(), chi.URLParam(r, "sellerID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, itemsToResponse(items))
}

// SetBuyerLocation handles PUT /api/buyers/location.
func (s *Server) SetBuyerLocation(w http.ResponseWriter, r *http.Request) {
	buyerID := r.Header.Get(headerBuyerID)
	if buyerID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "X-Buyer-ID header is required")
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.catalog.SetBuyerLocation(r.Context(), buyerID, req.Location); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func itemToResponse(item domain.CatalogItem) itemResponse {
	return itemResponse{
		ID:          item.ID,
		SellerID:    item.SellerID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		Price:       item.Price,
		ImageURL:    item.ImageURL,
		Link:        item.Link,
		CreatedAt:   item.CreatedAt,
	}
}

func itemsToResponse(items []domain.CatalogItem) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, item := range items {
		out[i] = itemToResponse(item)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrItemNotFound,
		domain.ErrNotFound,
		domain.ErrNotOwner,
		domain.ErrInvalidInput,
		domain.ErrEmptyText,
		domain.ErrLLMRateLimited,
		domain.ErrLLMProviderError,
		domain.ErrEmbeddingProviderError,
		domain.ErrSearchUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
