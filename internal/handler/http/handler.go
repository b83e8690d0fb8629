package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/tgshop/internal/domain"
	"github.com/utafrali/tgshop/internal/service"
	"github.com/utafrali/tgshop/pkg/httputil"
	"github.com/utafrali/tgshop/pkg/validator"
)

// ShopHandler serves the mini-app API.
type ShopHandler struct {
	service *service.ShopService
	logger  *slog.Logger
}

// NewShopHandler creates a handler.
func NewShopHandler(svc *service.ShopService, logger *slog.Logger) *ShopHandler {
	return &ShopHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest adds one unit of a product.
type AddItemRequest struct {
	ID        string       `json:"id" validate:"required,max=128"`
	Name      string       `json:"name" validate:"required,max=500"`
	UnitPrice domain.Money `json:"unit_price" validate:"gt=0"`
	Image     string       `json:"image" validate:"max=2048"`
	Category  string       `json:"category" validate:"max=128"`
}

// UpdateQuantityRequest sets a line's quantity, at most 9999. Zero or less
// removes it.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=9999"`
}

// SetShippingRequest selects a destination.
type SetShippingRequest struct {
	ShippingID string `json:"shipping_id" validate:"required"`
}

// SetPaymentMethodRequest selects a payment method. An empty id clears it.
type SetPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"max=64"`
}

// PreviewItem is an order line in a preview request.
type PreviewItem struct {
	Name     string       `json:"name" validate:"required"`
	Quantity int          `json:"quantity" validate:"gte=1,lte=9999"`
	Price    domain.Money `json:"price" validate:"gte=0"`
}

// PreviewDriver identifies the courier in a preview request.
type PreviewDriver struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

// PreviewNotificationRequest describes a lifecycle message to render.
type PreviewNotificationRequest struct {
	OrderID           string         `json:"order_id" validate:"required"`
	Event             string         `json:"event" validate:"required,oneof=confirmation preparing out_for_delivery delivered"`
	CustomerName      string         `json:"customer_name"`
	Items             []PreviewItem  `json:"items" validate:"dive"`
	Total             domain.Money   `json:"total" validate:"gte=0"`
	DeliveryAddress   string         `json:"delivery_address"`
	PaymentMethodID   string         `json:"payment_method_id"`
	EstimatedDelivery string         `json:"estimated_delivery"`
	Driver            *PreviewDriver `json:"driver"`
}

func (req PreviewNotificationRequest) notification() domain.OrderNotification {
	items := make([]domain.NotificationItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.NotificationItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	n := domain.OrderNotification{
		OrderID:           req.OrderID,
		Event:             domain.OrderEvent(req.Event),
		CustomerName:      req.CustomerName,
		Items:             items,
		Total:             req.Total,
		DeliveryAddress:   req.DeliveryAddress,
		PaymentMethodID:   req.PaymentMethodID,
		EstimatedDelivery: req.EstimatedDelivery,
	}
	if req.Driver != nil {
		n.Driver = &domain.DriverInfo{Name: req.Driver.Name, Phone: req.Driver.Phone}
	}
	return n
}

// PreviewResponse is the rendered message.
type PreviewResponse struct {
	Message string `json:"message"`
}

// decode reads and validates the request body into v, writing the error
// response itself when it fails.
func (h *ShopHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	if err := validator.Validate(v); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return false
	}
	return true
}

func (h *ShopHandler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *ShopHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCart(r.Context(), userID(r))
	h.respond(w, r, view, err)
}

// ClearCart handles DELETE /api/v1/cart
func (h *ShopHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ClearCart(r.Context(), userID(r))
	h.respond(w, r, view, err)
}

// AddItem handles POST /api/v1/cart/items
func (h *ShopHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.AddItem(r.Context(), userID(r), service.AddItemInput{
		ID:        req.ID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		ImageRef:  req.Image,
		Category:  req.Category,
	})
	h.respond(w, r, view, err)
}

// UpdateQuantity handles PUT /api/v1/cart/items/{id}
func (h *ShopHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.UpdateQuantity(r.Context(), userID(r), chi.URLParam(r, "id"), *req.Quantity)
	h.respond(w, r, view, err)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *ShopHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveItem(r.Context(), userID(r), chi.URLParam(r, "id"))
	h.respond(w, r, view, err)
}

// ShippingOptions handles GET /api/v1/shipping-options
func (h *ShopHandler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.ShippingOptions())
}

// SetShipping handles PUT /api/v1/cart/shipping
func (h *ShopHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var req SetShippingRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetShipping(r.Context(), userID(r), req.ShippingID)
	h.respond(w, r, view, err)
}

// PaymentMethods handles GET /api/v1/cart/payment-methods
func (h *ShopHandler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.PaymentMethods(r.Context(), userID(r))
	h.respond(w, r, methods, err)
}

// SetPaymentMethod handles PUT /api/v1/cart/payment-method
func (h *ShopHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req SetPaymentMethodRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.service.SetPaymentMethod(r.Context(), userID(r), req.PaymentMethodID)
	h.respond(w, r, view, err)
}

// Checkout handles POST /api/v1/checkout
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Checkout(r.Context(), userID(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, res)
}

// PreviewNotification handles POST /api/v1/notifications/preview
func (h *ShopHandler) PreviewNotification(w http.ResponseWriter, r *http.Request) {
	var req PreviewNotificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	msg, err := h.service.PreviewNotification(req.notification())
	h.respond(w, r, PreviewResponse{Message: msg}, err)
}
