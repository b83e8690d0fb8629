// Package service implements the shop's use cases on top of the cart engine,
// the session store and the host bridge.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/tgshop/internal/bridge"
	"github.com/utafrali/tgshop/internal/cart"
	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/checkout"
	"github.com/utafrali/tgshop/internal/domain"
	"github.com/utafrali/tgshop/internal/notification"
	"github.com/utafrali/tgshop/internal/payment"
	"github.com/utafrali/tgshop/internal/repository"
	apperrors "github.com/utafrali/tgshop/pkg/errors"
	"github.com/utafrali/tgshop/pkg/logger"
	"github.com/utafrali/tgshop/pkg/tracing"
)

const tracerName = "github.com/utafrali/tgshop/internal/service"

// Checkout button captions shown for each readiness state.
const (
	HintSelectShipping = "Select Shipping to Continue"
	HintSelectPayment  = "Select Payment Method"
	HintConfirmCash    = "Confirm Order (Cash on Delivery)"
	HintConfirmPay     = "Confirm Order & Pay"
)

// CodePaymentMethodNotEligible rejects a payment method that the current
// shipping destination does not allow.
const CodePaymentMethodNotEligible = "PAYMENT_METHOD_NOT_ELIGIBLE"

// CartView is a cart as returned to the mini-app.
type CartView struct {
	domain.CartState
	GrandTotal   domain.Money `json:"grand_total"`
	CheckoutHint string       `json:"checkout_hint,omitempty"`
	Version      int          `json:"version"`
}

// AddItemInput describes the product being added.
type AddItemInput struct {
	ID        string
	Name      string
	UnitPrice domain.Money
	ImageRef  string
	Category  string
}

// Delivery reports which transmissions reached the host after checkout.
type Delivery struct {
	OrderSent        bool `json:"order_sent"`
	NotificationSent bool `json:"notification_sent"`
	AlertSent        bool `json:"alert_sent"`
}

// CheckoutResult is the outcome of a successful checkout.
type CheckoutResult struct {
	Order        *domain.Order `json:"order"`
	Notification string        `json:"notification"`
	Alert        string        `json:"alert"`
	Delivery     Delivery      `json:"delivery"`
	Cart         *CartView     `json:"cart"`
}

// ShopService coordinates cart sessions, checkout and notifications.
type ShopService struct {
	sessions  repository.SessionRepository
	catalog   *catalog.Catalog
	resolver  *payment.Resolver
	checkout  *checkout.Orchestrator
	formatter *notification.Formatter
	host      bridge.HostBridge
	logger    *slog.Logger
}

// NewShopService wires the service.
func NewShopService(
	sessions repository.SessionRepository,
	cat *catalog.Catalog,
	resolver *payment.Resolver,
	orchestrator *checkout.Orchestrator,
	formatter *notification.Formatter,
	host bridge.HostBridge,
	logger *slog.Logger,
) *ShopService {
	return &ShopService{
		sessions:  sessions,
		catalog:   cat,
		resolver:  resolver,
		checkout:  orchestrator,
		formatter: formatter,
		host:      host,
		logger:    logger,
	}
}

// CheckoutHint returns the checkout button caption for state, or "" for an
// empty cart.
func CheckoutHint(state domain.CartState) string {
	switch {
	case state.IsEmpty():
		return ""
	case state.Shipping == nil:
		return HintSelectShipping
	case state.PaymentMethodID == "":
		return HintSelectPayment
	case state.PaymentMethodID == domain.PaymentMethodCash:
		return HintConfirmCash
	default:
		return HintConfirmPay
	}
}

func newCartView(s *domain.Session) *CartView {
	return &CartView{
		CartState:    s.Cart,
		GrandTotal:   s.Cart.GrandTotal(),
		CheckoutHint: CheckoutHint(s.Cart),
		Version:      s.Version,
	}
}

// GetCart returns the user's cart, empty when no session exists.
func (s *ShopService) GetCart(ctx context.Context, userID string) (*CartView, error) {
	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newCartView(sess), nil
}

// AddItem adds one unit of the product.
func (s *ShopService) AddItem(ctx context.Context, userID string, in AddItemInput) (*CartView, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	if in.UnitPrice <= 0 {
		return nil, apperrors.InvalidInput("unit price must be greater than 0")
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		st.Dispatch(cart.AddItem{Item: domain.CartLineItem{
			ID:        in.ID,
			Name:      in.Name,
			UnitPrice: in.UnitPrice,
			ImageRef:  in.ImageRef,
			Category:  in.Category,
		}})
		return nil
	})
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line;
// unknown ids leave the cart unchanged.
func (s *ShopService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*CartView, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		st.Dispatch(cart.UpdateQuantity{ID: itemID, Quantity: quantity})
		return nil
	})
}

// RemoveItem deletes a line. Unknown ids leave the cart unchanged.
func (s *ShopService) RemoveItem(ctx context.Context, userID, itemID string) (*CartView, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		st.Dispatch(cart.RemoveItem{ID: itemID})
		return nil
	})
}

// ClearCart empties the cart and forgets shipping and payment.
func (s *ShopService) ClearCart(ctx context.Context, userID string) (*CartView, error) {
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		st.Dispatch(cart.ClearCart{})
		return nil
	})
}

// ShippingOptions lists the destinations in catalog order.
func (s *ShopService) ShippingOptions() []domain.ShippingOption {
	return s.catalog.ShippingOptions()
}

// SetShipping selects a destination and reconciles the payment method with
// it: an ineligible selection is cleared and a sole eligible method may be
// selected automatically.
func (s *ShopService) SetShipping(ctx context.Context, userID, shippingID string) (*CartView, error) {
	opt, ok := s.catalog.Shipping(shippingID)
	if !ok {
		return nil, apperrors.NotFound("shipping option", shippingID)
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		state := st.Dispatch(cart.SetShipping{Option: opt})
		st.Dispatch(s.resolver.Reconcile(state)...)
		return nil
	})
}

// PaymentMethods lists the methods eligible for the user's current shipping
// destination. It is empty until a destination is chosen.
func (s *ShopService) PaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(sess.Cart.Shipping), nil
}

// SetPaymentMethod selects a payment method. An empty id clears the
// selection. A method not allowed for the current destination is rejected.
func (s *ShopService) SetPaymentMethod(ctx context.Context, userID, methodID string) (*CartView, error) {
	if methodID != "" {
		if _, ok := s.catalog.Payment(methodID); !ok {
			return nil, apperrors.NotFound("payment method", methodID)
		}
	}
	return s.mutate(ctx, userID, func(st *cart.Store) error {
		state := st.State()
		if methodID != "" && !s.resolver.IsEligible(state.Shipping, methodID) {
			if state.Shipping == nil {
				return apperrors.Unprocessable(checkout.CodeShippingRequired,
					"select a shipping location before choosing a payment method", checkout.ErrShippingRequired)
			}
			return apperrors.Unprocessable(CodePaymentMethodNotEligible,
				fmt.Sprintf("%s is not available for delivery to %s",
					s.catalog.PaymentName(methodID), state.Shipping.DisplayName), nil)
		}
		st.Dispatch(cart.SetPaymentMethod{ID: methodID})
		return nil
	})
}

// Checkout turns the user's cart into an order. The cleared cart is saved
// before anything is transmitted, so a concurrent checkout of the same cart
// loses with a conflict instead of sending a second order. Transmission is
// best effort: failures are logged, counted and reported in Delivery but do
// not fail the checkout.
func (s *ShopService) Checkout(ctx context.Context, userID string) (_ *CheckoutResult, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "ShopService.Checkout")
	defer func() { tracing.End(span, err) }()

	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	customer, ok := s.host.CurrentUser(ctx)
	if !ok {
		customer = domain.Customer{ExternalID: userID}
	}

	order, err := s.checkout.Submit(sess.Cart, customer)
	if err != nil {
		code := checkout.Code(err)
		if code == "" {
			return nil, err
		}
		checkoutsTotal.WithLabelValues(strings.ToLower(code)).Inc()
		return nil, apperrors.Unprocessable(code, err.Error(), err)
	}
	span.SetAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.String("order.payment_method", order.PaymentMethodID),
	)

	expected := sess.Version
	sess.Cart = cart.Apply(sess.Cart, cart.ClearCart{})
	if err := s.sessions.SaveIfVersion(ctx, sess, expected); err != nil {
		return nil, err
	}
	checkoutsTotal.WithLabelValues("success").Inc()

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "order submitted",
		slog.String("order_id", order.OrderID),
		slog.String("total", order.Total.String()),
		slog.String("payment_method", order.PaymentMethodID),
		slog.String("shipping", order.Shipping.ID),
	)

	message := s.formatter.Format(checkout.ConfirmationNotification(order))
	alert := s.alertText(order)
	result := &CheckoutResult{Order: order, Notification: message, Alert: alert, Cart: newCartView(sess)}

	result.Delivery.OrderSent = s.transmit(ctx, opSendOrder, order.OrderID, func() error {
		return s.host.SendOrderPayload(ctx, bridge.NewOrderPayload(order))
	})
	result.Delivery.NotificationSent = s.transmit(ctx, opSendNotification, order.OrderID, func() error {
		return s.host.SendNotificationPayload(ctx, bridge.NewNotificationPayload(order.OrderID, message, customer.ExternalID))
	})
	result.Delivery.AlertSent = s.transmit(ctx, opNotifyUser, order.OrderID, func() error {
		return s.host.NotifyUser(ctx, customer.ExternalID, alert)
	})
	return result, nil
}

func (s *ShopService) alertText(order *domain.Order) string {
	if order.IsCash() {
		return fmt.Sprintf("Order confirmed! You'll receive delivery details via Telegram. Please have $%s ready for cash payment.", order.Total)
	}
	return fmt.Sprintf("Order confirmed! Please complete payment via %s. Check Telegram for payment instructions.",
		s.catalog.PaymentName(order.PaymentMethodID))
}

// PreviewNotification renders a lifecycle message without sending it.
func (s *ShopService) PreviewNotification(n domain.OrderNotification) (string, error) {
	if !n.Event.IsValid() {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown order event %q", n.Event))
	}
	return s.formatter.Format(n), nil
}

// DeliverLifecycleNotification renders n and sends it to chatID through the
// host. Unlike checkout, a failed send is returned so the event consumer can
// retry it.
func (s *ShopService) DeliverLifecycleNotification(ctx context.Context, n domain.OrderNotification, chatID string) error {
	message, err := s.PreviewNotification(n)
	if err != nil {
		return err
	}
	if err := s.host.SendNotificationPayload(ctx, bridge.NewNotificationPayload(n.OrderID, message, chatID)); err != nil {
		bridgeFailures.WithLabelValues(opSendNotification).Inc()
		return fmt.Errorf("send %s notification for %s: %w", n.Event, n.OrderID, err)
	}
	return nil
}

// transmit runs send and reports whether it succeeded, logging and counting
// a failure.
func (s *ShopService) transmit(ctx context.Context, op, orderID string, send func() error) bool {
	if err := send(); err != nil {
		bridgeFailures.WithLabelValues(op).Inc()
		logger.WithContext(ctx, s.logger).ErrorContext(ctx, "host bridge transmission failed",
			slog.String("operation", op),
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (s *ShopService) loadSession(ctx context.Context, userID string) (*domain.Session, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("user id is required")
	}
	sess, err := s.sessions.Get(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &domain.Session{UserID: userID, Cart: domain.NewCartState()}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "load session")
	}
	return sess, nil
}

// mutate loads the session, lets fn dispatch actions on it and saves the
// result if nothing else saved the session in between.
func (s *ShopService) mutate(ctx context.Context, userID string, fn func(*cart.Store) error) (*CartView, error) {
	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	expected := sess.Version

	store := cart.NewStore(sess.Cart)
	if err := fn(store); err != nil {
		return nil, err
	}
	sess.Cart = store.State()

	if err := s.sessions.SaveIfVersion(ctx, sess, expected); err != nil {
		return nil, err
	}
	return newCartView(sess), nil
}
