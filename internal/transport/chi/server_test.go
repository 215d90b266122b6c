package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bazaarline/discovery/internal/domain"
	"github.com/bazaarline/discovery/internal/repository/vectorindex"
	cataloguc "github.com/bazaarline/discovery/internal/usecase/catalog"
	chatuc "github.com/bazaarline/discovery/internal/usecase/chat"
	discoveryuc "github.com/bazaarline/discovery/internal/usecase/discovery"
	healthuc "github.com/bazaarline/discovery/internal/usecase/health"
)

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type stubCompleter struct {
	expandReply string
	expandErr   error
	chatReply   string
	chatErr     error
}

func (s *stubCompleter) Complete(_ context.Context, _ string) (string, error) {
	return s.expandReply, s.expandErr
}

func (s *stubCompleter) CompleteChat(_ context.Context, _ []domain.ConversationTurn) (string, error) {
	return s.chatReply, s.chatErr
}

type stubIndex struct {
	hits []vectorindex.Hit
	err  error
}

func (s *stubIndex) Search(_ context.Context, _ []float32, _ int) ([]vectorindex.Hit, error) {
	return s.hits, s.err
}

type stubReadStore struct {
	items  map[string]domain.CatalogItem // keyed by IndexID
	recent []domain.CatalogItem
}

func (s *stubReadStore) FindByIndexIDs(_ context.Context, indexIDs []string) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, id := range indexIDs {
		if item, ok := s.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubReadStore) FindRecent(_ context.Context, limit int) ([]domain.CatalogItem, error) {
	if len(s.recent) > limit {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}

func (s *stubReadStore) BuyerLocation(_ context.Context, _ string) ([]float32, error) {
	return nil, nil
}

type stubPointIndex struct {
	deleted []string
}

func (s *stubPointIndex) Upsert(_ context.Context, _ string, _ []float32, _ string) error {
	return nil
}

func (s *stubPointIndex) Delete(_ context.Context, pointID string) error {
	s.deleted = append(s.deleted, pointID)
	return nil
}

type stubItemStore struct {
	items     map[string]domain.CatalogItem // keyed by item ID
	created   []domain.CatalogItem
	deleted   []string
	locations map[string][]float32
}

func newStubItemStore() *stubItemStore {
	return &stubItemStore{
		items:     make(map[string]domain.CatalogItem),
		locations: make(map[string][]float32),
	}
}

func (s *stubItemStore) Create(_ context.Context, item *domain.CatalogItem) error {
	s.items[item.ID] = *item
	s.created = append(s.created, *item)
	return nil
}

func (s *stubItemStore) Delete(_ context.Context, id string) error {
	delete(s.items, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubItemStore) FindByID(_ context.Context, id string) (domain.CatalogItem, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *stubItemStore) FindBySeller(_ context.Context, sellerID string) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, item := range s.items {
		if item.SellerID == sellerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubItemStore) FindRecent(_ context.Context, limit int) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	for _, item := range s.items {
		out = append(out, item)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubItemStore) SetBuyerLocation(_ context.Context, buyerID string, embedding []float32) error {
	s.locations[buyerID] = embedding
	return nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

type fixtures struct {
	completer *stubCompleter
	index     *stubIndex
	readStore *stubReadStore
	itemStore *stubItemStore
	pinger    *stubPinger
}

func newFixtures() *fixtures {
	return &fixtures{
		completer: &stubCompleter{expandReply: "[]", chatReply: "Here are some picks."},
		index:     &stubIndex{},
		readStore: &stubReadStore{items: make(map[string]domain.CatalogItem)},
		itemStore: newStubItemStore(),
		pinger:    &stubPinger{},
	}
}

func newTestRouter(f *fixtures) http.Handler {
	logger := zap.NewNop()

	discoverySvc := discoveryuc.New(
		&stubEmbedder{}, f.index, f.readStore,
		f.completer, nil,
		discoveryuc.Config{DefaultLimit: 5, MaxLimit: 20},
		logger,
	)
	narrator := chatuc.New(f.completer, nil, logger)
	catalogSvc := cataloguc.New(&stubEmbedder{}, &stubPointIndex{}, f.itemStore, logger)
	healthSvc := healthuc.New(f.pinger, nil, nil)

	server := NewServer(discoverySvc, narrator, catalogSvc, healthSvc, logger)

	r := chi.NewRouter()
	server.RegisterRoutes(r)
	return r
}

func postJSON(t *testing.T, handler http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func earbudsItem(indexID string) domain.CatalogItem {
	return domain.CatalogItem{
		ID:          "item-" + indexID,
		SellerID:    "seller-1",
		Name:        "Wireless Earbuds Max",
		Description: "Noise cancelling wireless earbuds",
		Category:    "electronics",
		Price:       2999,
		IndexID:     indexID,
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestChat_ReturnsReplyItemsAndTrace(t *testing.T) {
	f := newFixtures()
	f.index.hits = []vectorindex.Hit{{ID: "idx-1", Score: 0.9}}
	f.readStore.items["idx-1"] = earbudsItem("idx-1")
	handler := newTestRouter(f)

	rr := postJSON(t, handler, "/api/chat", chatRequest{Message: "wireless earbuds"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != "Here are some picks." {
		t.Errorf("reply: got %q", resp.Reply)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "item-idx-1" {
		t.Errorf("items: got %+v", resp.Items)
	}
	if resp.IsFallback {
		t.Error("isFallback should be false")
	}
	if len(resp.Thinking) == 0 || resp.Thinking[0].Type != domain.StepVariations {
		t.Errorf("thinking trace: got %+v", resp.Thinking)
	}
}

func TestChat_BlankMessage_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	rr := postJSON(t, handler, "/api/chat", chatRequest{Message: "   "}, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeValidationFailed {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeValidationFailed)
	}
}

func TestChat_InvalidBody_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	req := httptest.NewRequest("POST", "/api/chat", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestChat_NarrationFailure_DegradesToFriendlyReply(t *testing.T) {
	f := newFixtures()
	f.index.hits = []vectorindex.Hit{{ID: "idx-1", Score: 0.9}}
	f.readStore.items["idx-1"] = earbudsItem("idx-1")
	f.completer.chatErr = errors.New("boom")
	handler := newTestRouter(f)

	rr := postJSON(t, handler, "/api/chat", chatRequest{Message: "wireless earbuds"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp chatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != friendlyErrorReply {
		t.Errorf("reply: got %q, want friendly error", resp.Reply)
	}
	// Items survive a narration failure.
	if len(resp.Items) != 1 {
		t.Errorf("items: got %d, want 1", len(resp.Items))
	}
}

func TestChat_ExpansionFailure_DegradesToFriendlyReply(t *testing.T) {
	f := newFixtures()
	f.completer.expandErr = errors.New("llm down")
	handler := newTestRouter(f)

	rr := postJSON(t, handler, "/api/chat", chatRequest{Message: "wireless earbuds"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var resp chatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != friendlyErrorReply {
		t.Errorf("reply: got %q, want friendly error", resp.Reply)
	}
	if len(resp.Items) != 0 {
		t.Errorf("items: got %d, want 0", len(resp.Items))
	}
}

func TestCreateItem_Created(t *testing.T) {
	f := newFixtures()
	handler := newTestRouter(f)

	rr := postJSON(t, handler, "/api/items", createItemRequest{
		Name:        "Trail Running Shoes",
		Description: "Lightweight with excellent grip",
		Category:    "footwear",
		Price:       2499,
	}, map[string]string{headerSellerID: "seller-1"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp itemResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("response ID is empty")
	}
	if resp.SellerID != "seller-1" {
		t.Errorf("sellerId: got %s", resp.SellerID)
	}
	if len(f.itemStore.created) != 1 {
		t.Fatalf("created: got %d records, want 1", len(f.itemStore.created))
	}
}

func TestCreateItem_MissingSellerHeader_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	rr := postJSON(t, handler, "/api/items", createItemRequest{
		Name:        "Trail Running Shoes",
		Description: "Lightweight",
		Price:       2499,
	}, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCreateItem_ValidationFailure_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	rr := postJSON(t, handler, "/api/items", createItemRequest{
		Name:        "",
		Description: "Lightweight",
		Price:       2499,
	}, map[string]string{headerSellerID: "seller-1"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeValidationFailed {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeValidationFailed)
	}
}

func TestGetItem_NotFound_404(t *testing.T) {
	handler := newTestRouter(newFixtures())

	req := httptest.NewRequest("GET", "/api/items/missing", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeNotFound {
		t.Errorf("error code: got %s, want %s", errResp.Code, codeNotFound)
	}
}

func TestDeleteItem_OwnerOnly(t *testing.T) {
	f := newFixtures()
	f.itemStore.items["item-1"] = domain.CatalogItem{
		ID: "item-1", SellerID: "seller-1", Name: "Shoes", IndexID: "idx-1",
	}
	handler := newTestRouter(f)

	req := httptest.NewRequest("DELETE", "/api/items/item-1", http.NoBody)
	req.Header.Set(headerSellerID, "seller-2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
	if len(f.itemStore.deleted) != 0 {
		t.Error("item should not have been deleted")
	}
}

func TestDeleteItem_NoContent(t *testing.T) {
	f := newFixtures()
	f.itemStore.items["item-1"] = domain.CatalogItem{
		ID: "item-1", SellerID: "seller-1", Name: "Shoes", IndexID: "idx-1",
	}
	handler := newTestRouter(f)

	req := httptest.NewRequest("DELETE", "/api/items/item-1", http.NoBody)
	req.Header.Set(headerSellerID, "seller-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, http.StatusNoContent, rr.Body.String())
	}
	if len(f.itemStore.deleted) != 1 {
		t.Errorf("deleted: got %d records, want 1", len(f.itemStore.deleted))
	}
}

func TestRelistItem_Created(t *testing.T) {
	f := newFixtures()
	f.itemStore.items["item-1"] = domain.CatalogItem{
		ID: "item-1", SellerID: "seller-1", Name: "Shoes",
		Description: "Trail shoes", IndexID: "idx-1",
	}
	handler := newTestRouter(f)

	req := httptest.NewRequest("POST", "/api/items/item-1/relist", http.NoBody)
	req.Header.Set(headerSellerID, "seller-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp itemResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID == "item-1" || resp.ID == "" {
		t.Errorf("expected a fresh item id, got %q", resp.ID)
	}
	if _, ok := f.itemStore.items["item-1"]; ok {
		t.Error("original listing should be removed")
	}
}

func TestRecentItems_BadLimit_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	req := httptest.NewRequest("GET", "/api/items/recent?limit=zero", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRecentItems_OK(t *testing.T) {
	f := newFixtures()
	f.itemStore.items["item-1"] = domain.CatalogItem{ID: "item-1", SellerID: "seller-1", Name: "Shoes"}
	handler := newTestRouter(f)

	req := httptest.NewRequest("GET", "/api/items/recent?limit=5", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var items []itemResponse
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items: got %d, want 1", len(items))
	}
}

func TestSellerItems_OK(t *testing.T) {
	f := newFixtures()
	f.itemStore.items["item-1"] = domain.CatalogItem{ID: "item-1", SellerID: "seller-1", Name: "Shoes"}
	f.itemStore.items["item-2"] = domain.CatalogItem{ID: "item-2", SellerID: "seller-2", Name: "Bag"}
	handler := newTestRouter(f)

	req := httptest.NewRequest("GET", "/api/sellers/seller-1/items", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	var items []itemResponse
	if err := json.NewDecoder(rr.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].SellerID != "seller-1" {
		t.Errorf("items: got %+v", items)
	}
}

func TestSetBuyerLocation_NoContent(t *testing.T) {
	f := newFixtures()
	handler := newTestRouter(f)

	raw, _ := json.Marshal(locationRequest{Location: "Indiranagar, Bangalore"})
	req := httptest.NewRequest("PUT", "/api/buyers/location", bytes.NewReader(raw))
	req.Header.Set(headerBuyerID, "buyer-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, http.StatusNoContent, rr.Body.String())
	}
	if _, ok := f.itemStore.locations["buyer-1"]; !ok {
		t.Error("buyer location not stored")
	}
}

func TestSetBuyerLocation_MissingBuyerHeader_400(t *testing.T) {
	handler := newTestRouter(newFixtures())

	raw, _ := json.Marshal(locationRequest{Location: "Bangalore"})
	req := httptest.NewRequest("PUT", "/api/buyers/location", bytes.NewReader(raw))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealth_Healthy_200(t *testing.T) {
	handler := newTestRouter(newFixtures())

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestHealth_DatabaseDown_503(t *testing.T) {
	f := newFixtures()
	f.pinger.err = errors.New("connection refused")
	handler := newTestRouter(f)

	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}
