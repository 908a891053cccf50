package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/gomarketplace/internal/domain"
	"github.com/utafrali/gomarketplace/internal/store"
	apperrors "github.com/utafrali/gomarketplace/pkg/errors"
	"github.com/utafrali/gomarketplace/pkg/httputil"
	"github.com/utafrali/gomarketplace/pkg/validator"
)

// CartHandler exposes the cart found in the request context over HTTP.
type CartHandler struct {
	logger *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(logger *slog.Logger) *CartHandler {
	return &CartHandler{logger: logger}
}

// AddItemRequest is the JSON body of POST /api/v1/cart/items. Product fields
// are stored as given; only their size is bounded.
type AddItemRequest struct {
	ID       string  `json:"id" validate:"max=200"`
	Title    string  `json:"title" validate:"max=500"`
	ImageURL string  `json:"image_url" validate:"max=2048"`
	Price    float64 `json:"price"`
}

// CartResponse is the body returned by every cart endpoint.
type CartResponse struct {
	Products  domain.Collection `json:"products"`
	ItemCount int               `json:"item_count"`
}

func newCartResponse(items domain.Collection) CartResponse {
	return CartResponse{Products: items, ItemCount: items.ItemCount()}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(c.Products())})
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	items := c.AddToCart(r.Context(), domain.Product{
		ID:       req.ID,
		Title:    req.Title,
		ImageURL: req.ImageURL,
		Price:    req.Price,
	})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(items)})
}

// IncrementItem handles POST /api/v1/cart/items/{id}/increment
func (h *CartHandler) IncrementItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	items := c.Increment(r.Context(), chi.URLParam(r, "id"))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(items)})
}

// DecrementItem handles POST /api/v1/cart/items/{id}/decrement
func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	items := c.Decrement(r.Context(), chi.URLParam(r, "id"))
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: newCartResponse(items)})
}

// cart resolves the cart provided to this request, writing a 500 when the
// handler is mounted outside a provider.
func (h *CartHandler) cart(w http.ResponseWriter, r *http.Request) (store.Cart, bool) {
	c, err := store.FromContext(r.Context())
	if err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return nil, false
	}
	return c, true
}
