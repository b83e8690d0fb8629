package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/tgshop/internal/bridge"
	bridgemock "github.com/utafrali/tgshop/internal/bridge/mock"
	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/checkout"
	"github.com/utafrali/tgshop/internal/domain"
	"github.com/utafrali/tgshop/internal/notification"
	"github.com/utafrali/tgshop/internal/payment"
	apperrors "github.com/utafrali/tgshop/pkg/errors"
)

// --- Session stores ---

// memSessions is an in-memory SessionRepository with the same version rules
// as the Redis store.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]domain.Session)}
}

func (m *memSessions) Get(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, apperrors.NotFound("session", userID)
	}
	s.Cart = s.Cart.Clone()
	return &s, nil
}

func (m *memSessions) SaveIfVersion(_ context.Context, s *domain.Session, expected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.UserID].Version != expected {
		return apperrors.Conflict("session was modified concurrently")
	}
	s.Version = expected + 1
	stored := *s
	stored.Cart = s.Cart.Clone()
	m.sessions[s.UserID] = stored
	return nil
}

type mockSessionRepository struct {
	mock.Mock
}

func (m *mockSessionRepository) Get(ctx context.Context, userID string) (*domain.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *mockSessionRepository) SaveIfVersion(ctx context.Context, s *domain.Session, expected int) error {
	args := m.Called(ctx, s, expected)
	return args.Error(0)
}

// --- Test Helpers ---

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	svc      *ShopService
	sessions *memSessions
	sink     *bridgemock.Sink
}

func newFixture(t *testing.T, autoSelect bool) *fixture {
	t.Helper()
	logger := newTestLogger()
	cat := catalog.Default()
	now := func() time.Time { return testNow }
	sessions := newMemSessions()
	sink := bridgemock.New(logger)

	svc := NewShopService(
		sessions,
		cat,
		payment.NewResolver(cat, payment.Options{AutoSelectSingle: autoSelect}),
		checkout.NewOrchestrator(now),
		notification.NewFormatter(cat, time.UTC, now),
		bridge.NewHost(sink, sink, sink),
		logger,
	)
	return &fixture{svc: svc, sessions: sessions, sink: sink}
}

func withUser(userID, name string) context.Context {
	return bridge.WithUser(context.Background(), domain.Customer{ExternalID: userID, DisplayName: name})
}

func oliveOil() AddItemInput {
	return AddItemInput{ID: "p1", Name: "Olive Oil", UnitPrice: 1250, Category: "pantry"}
}

// --- Tests ---

func TestGetCart_NoSession(t *testing.T) {
	f := newFixture(t, false)

	view, err := f.svc.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
	assert.NotNil(t, view.Items)
	assert.Equal(t, 0, view.Version)
	assert.Empty(t, view.CheckoutHint)
}

func TestGetCart_MissingUser(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.GetCart(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestGetCart_StoreError(t *testing.T) {
	repo := new(mockSessionRepository)
	cat := catalog.Default()
	svc := NewShopService(repo, cat, payment.NewResolver(cat, payment.Options{}),
		checkout.NewOrchestrator(nil), notification.NewFormatter(cat, nil, nil),
		bridge.NewHost(nil, nil, nil), newTestLogger())
	ctx := context.Background()

	repo.On("Get", ctx, "u1").Return(nil, errors.New("connection refused"))

	_, err := svc.GetCart(ctx, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	repo.AssertExpectations(t)
}

func TestAddItem(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)

	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Equal(t, domain.Money(2500), view.Total)
	assert.Equal(t, 2, view.ItemCount)
	assert.Equal(t, 2, view.Version)
	assert.Equal(t, HintSelectShipping, view.CheckoutHint)
}

func TestAddItem_Invalid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name string
		in   AddItemInput
	}{
		{"missing id", AddItemInput{Name: "x", UnitPrice: 100}},
		{"blank id", AddItemInput{ID: "  ", UnitPrice: 100}},
		{"zero price", AddItemInput{ID: "p1"}},
		{"negative price", AddItemInput{ID: "p1", UnitPrice: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddItem(ctx, "u1", tt.in)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)

	view, err := f.svc.UpdateQuantity(ctx, "u1", "p1", 4)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(5000), view.Total)

	view, err = f.svc.UpdateQuantity(ctx, "u1", "missing", 9)
	require.NoError(t, err)
	assert.Equal(t, 4, view.ItemCount)

	view, err = f.svc.UpdateQuantity(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())

	_, err = f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	view, err = f.svc.RemoveItem(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
	assert.Equal(t, domain.Money(0), view.Total)
}

func TestSetShipping_ClearsIneligiblePayment(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)
	view, err := f.svc.SetPaymentMethod(ctx, "u1", domain.PaymentMethodCash)
	require.NoError(t, err)
	assert.Equal(t, HintConfirmCash, view.CheckoutHint)

	view, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingDamascus)
	require.NoError(t, err)
	assert.Empty(t, view.PaymentMethodID)
	assert.Equal(t, domain.Money(599), view.ShippingCost)
	assert.Equal(t, domain.Money(1849), view.GrandTotal)
	assert.Equal(t, HintSelectPayment, view.CheckoutHint)
}

func TestSetShipping_AutoSelectsSoleMethod(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	view, err := f.svc.SetShipping(ctx, "u1", catalog.ShippingAleppo)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodSyriatel, view.PaymentMethodID)

	view, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodSyriatel, view.PaymentMethodID, "still eligible, kept")
}

func TestSetShipping_Unknown(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.svc.SetShipping(context.Background(), "u1", "atlantis")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPaymentMethods(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	methods, err := f.svc.PaymentMethods(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, methods)

	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)
	methods, err = f.svc.PaymentMethods(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, domain.PaymentMethodCash, methods[0].ID)

	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingHoms)
	require.NoError(t, err)
	methods, err = f.svc.PaymentMethods(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, domain.PaymentMethodSyriatel, methods[0].ID)
}

func TestSetPaymentMethod_Rejections(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.SetPaymentMethod(ctx, "u1", "bitcoin")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.SetPaymentMethod(ctx, "u1", domain.PaymentMethodCash)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, checkout.CodeShippingRequired, appErr.Code)

	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingLatakia)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentMethod(ctx, "u1", domain.PaymentMethodCash)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodePaymentMethodNotEligible, appErr.Code)
	assert.Contains(t, appErr.Message, "Latakia")

	view, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, view.PaymentMethodID)
}

func TestSetPaymentMethod_ClearWithEmptyID(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentMethod(ctx, "u1", domain.PaymentMethodSyriatel)
	require.NoError(t, err)

	view, err := f.svc.SetPaymentMethod(ctx, "u1", "")
	require.NoError(t, err)
	assert.Empty(t, view.PaymentMethodID)
}

func TestClearCart(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)

	view, err := f.svc.ClearCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
	assert.Nil(t, view.Shipping)
	assert.Equal(t, domain.Money(0), view.ShippingCost)
}

func TestCheckout_Rejections(t *testing.T) {
	f := newFixture(t, false)
	ctx := withUser("u1", "Rami")

	tests := []struct {
		name  string
		setup func(t *testing.T)
		code  string
	}{
		{"empty cart", func(t *testing.T) {}, checkout.CodeEmptyCart},
		{"no shipping", func(t *testing.T) {
			_, err := f.svc.AddItem(ctx, "u1", oliveOil())
			require.NoError(t, err)
		}, checkout.CodeShippingRequired},
		{"no payment", func(t *testing.T) {
			_, err := f.svc.SetShipping(ctx, "u1", catalog.ShippingDamascus)
			require.NoError(t, err)
		}, checkout.CodePaymentMethodRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			_, err := f.svc.Checkout(ctx, "u1")
			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, 422, appErr.Status)
		})
	}
	assert.Empty(t, f.sink.Orders())
	assert.Empty(t, f.sink.Notifications())

	view, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, view.IsEmpty(), "rejected checkout keeps the cart")
}

func TestCheckout_Cash(t *testing.T) {
	f := newFixture(t, false)
	ctx := withUser("u1", "Rami")

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingTartus)
	require.NoError(t, err)
	_, err = f.svc.SetPaymentMethod(ctx, "u1", domain.PaymentMethodCash)
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, "u1")
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9A-Z]+$`, res.Order.OrderID)
	assert.Equal(t, domain.Money(1250), res.Order.Total)
	assert.Equal(t, "Rami", res.Order.Customer.Name())
	assert.Equal(t, Delivery{OrderSent: true, NotificationSent: true, AlertSent: true}, res.Delivery)
	assert.Contains(t, res.Notification, "Total to pay on delivery: $12.50")
	assert.Equal(t, "Order confirmed! You'll receive delivery details via Telegram. Please have $12.50 ready for cash payment.", res.Alert)
	assert.True(t, res.Cart.IsEmpty())
	assert.Nil(t, res.Cart.Shipping)

	orders := f.sink.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, res.Order.OrderID, orders[0].OrderID)
	assert.Equal(t, "u1", orders[0].CustomerInfo.UserID)

	notes := f.sink.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "u1", notes[0].ChatID)
	assert.Equal(t, res.Notification, notes[0].Message)

	alerts := f.sink.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, res.Alert, alerts[0].Message)

	view, err := f.svc.GetCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, view.IsEmpty())
}

func TestCheckout_WalletAlert(t *testing.T) {
	f := newFixture(t, true)
	ctx := withUser("u1", "")

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingOther)
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.Money(2249), res.Order.Total)
	assert.Equal(t, domain.DefaultCustomerName, res.Order.Customer.Name())
	assert.Equal(t, "Order confirmed! Please complete payment via Syriatel Cash. Check Telegram for payment instructions.", res.Alert)
}

func TestCheckout_WithoutHostUser(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "u9", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u9", catalog.ShippingHoms)
	require.NoError(t, err)

	res, err := f.svc.Checkout(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", res.Order.Customer.ExternalID)
	assert.Equal(t, "u9", f.sink.Notifications()[0].ChatID)
}

func TestCheckout_TransmissionFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, true)
	ctx := withUser("u1", "Rami")

	_, err := f.svc.AddItem(ctx, "u1", oliveOil())
	require.NoError(t, err)
	_, err = f.svc.SetShipping(ctx, "u1", catalog.ShippingHoms)
	require.NoError(t, err)

	f.sink.FailWith(errors.New("host unreachable"))
	res, err := f.svc.Checkout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Delivery{}, res.Delivery)
	assert.True(t, res.Cart.IsEmpty())

	_, err = f.svc.Checkout(ctx, "u1")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, checkout.CodeEmptyCart, appErr.Code)
}

func TestCheckout_ConcurrentSaveLoses(t *testing.T) {
	repo := new(mockSessionRepository)
	cat := catalog.Default()
	sink := bridgemock.New(newTestLogger())
	svc := NewShopService(repo, cat, payment.NewResolver(cat, payment.Options{}),
		checkout.NewOrchestrator(nil), notification.NewFormatter(cat, nil, nil),
		bridge.NewHost(sink, sink, sink), newTestLogger())
	ctx := context.Background()

	state := domain.NewCartState()
	state.Items = []domain.CartLineItem{{ID: "p1", Name: "Olive Oil", UnitPrice: 1250, Quantity: 1}}
	state.Total = 1250
	state.ItemCount = 1
	tartus, _ := cat.Shipping(catalog.ShippingTartus)
	state.Shipping = &tartus
	state.PaymentMethodID = domain.PaymentMethodCash

	repo.On("Get", ctx, "u1").Return(&domain.Session{UserID: "u1", Cart: state, Version: 3}, nil)
	repo.On("SaveIfVersion", ctx, mock.MatchedBy(func(s *domain.Session) bool {
		return s.Cart.IsEmpty()
	}), 3).Return(apperrors.Conflict("session was modified concurrently"))

	_, err := svc.Checkout(ctx, "u1")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, sink.Orders(), "nothing is sent when the clear loses the race")
	repo.AssertExpectations(t)
}

func TestAddItem_ConflictIsReturned(t *testing.T) {
	repo := new(mockSessionRepository)
	cat := catalog.Default()
	svc := NewShopService(repo, cat, payment.NewResolver(cat, payment.Options{}),
		checkout.NewOrchestrator(nil), notification.NewFormatter(cat, nil, nil),
		bridge.NewHost(nil, nil, nil), newTestLogger())
	ctx := context.Background()

	repo.On("Get", ctx, "u1").Return(nil, apperrors.NotFound("session", "u1"))
	repo.On("SaveIfVersion", ctx, mock.AnythingOfType("*domain.Session"), 0).
		Return(apperrors.Conflict("session was modified concurrently"))

	_, err := svc.AddItem(ctx, "u1", oliveOil())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertExpectations(t)
}

func TestPreviewNotification(t *testing.T) {
	f := newFixture(t, false)

	msg, err := f.svc.PreviewNotification(domain.OrderNotification{
		OrderID: "ORD-1", Event: domain.EventOutForDelivery, PaymentMethodID: domain.PaymentMethodCash, Total: 4599,
	})
	require.NoError(t, err)
	assert.Contains(t, msg, "Out for Delivery - ORD-1")
	assert.Contains(t, msg, "Please have $45.99 ready in cash.")

	_, err = f.svc.PreviewNotification(domain.OrderNotification{OrderID: "ORD-1", Event: "lost"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeliverLifecycleNotification(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	n := domain.OrderNotification{OrderID: "ORD-2", Event: domain.EventPreparing, EstimatedDelivery: "tomorrow"}

	require.NoError(t, f.svc.DeliverLifecycleNotification(ctx, n, "555"))
	notes := f.sink.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "555", notes[0].ChatID)
	assert.Contains(t, notes[0].Message, "Estimated delivery: tomorrow")

	err := f.svc.DeliverLifecycleNotification(ctx, n, "")
	assert.ErrorIs(t, err, bridge.ErrNoRecipient)

	f.sink.FailWith(errors.New("down"))
	err = f.svc.DeliverLifecycleNotification(ctx, n, "555")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORD-2")
}

func TestCheckoutHint(t *testing.T) {
	tartus := domain.ShippingOption{ID: "tartus"}
	item := []domain.CartLineItem{{ID: "p1", UnitPrice: 100, Quantity: 1}}

	tests := []struct {
		name  string
		state domain.CartState
		want  string
	}{
		{"empty", domain.NewCartState(), ""},
		{"needs shipping", domain.CartState{Items: item}, HintSelectShipping},
		{"needs payment", domain.CartState{Items: item, Shipping: &tartus}, HintSelectPayment},
		{"cash", domain.CartState{Items: item, Shipping: &tartus, PaymentMethodID: "cash"}, HintConfirmCash},
		{"wallet", domain.CartState{Items: item, Shipping: &tartus, PaymentMethodID: "syriatel"}, HintConfirmPay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckoutHint(tt.state))
		})
	}
}
