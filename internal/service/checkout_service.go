package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/pricing"
	"textile-store/internal/realtime"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const referenceAttempts = 3

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrMissingCustomer  = errors.New("customer name, phone and shipping address are required")
	ErrCheckoutDisabled = errors.New("checkout is not configured")
)

// CheckoutConfig names the store and the WhatsApp number orders are sent to.
type CheckoutConfig struct {
	WhatsAppNumber string
	StoreName      string
}

// Quote is a priced cart with any discount applied
type Quote struct {
	Currency     pricing.Currency `json:"currency"`
	Rate         decimal.Decimal  `json:"exchange_rate"`
	Lines        []pricing.Line   `json:"items"`
	Subtotal     decimal.Decimal  `json:"subtotal"`
	Discount     decimal.Decimal  `json:"discount"`
	Total        decimal.Decimal  `json:"total"`
	DiscountCode string           `json:"discount_code,omitempty"`
	Percentage   int              `json:"discount_percentage,omitempty"`

	discountID uuid.UUID
}

type CheckoutRequest struct {
	UserID *uuid.UUID
	// Items is the guest cart. Signed-in users checking out with no items
	// get their stored cart, which is cleared once the order is placed.
	Items           []ItemRequest
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ShippingAddress string
	DiscountCode    string
	Currency        pricing.Currency
	Rate            decimal.Decimal
}

// Receipt is a placed order and the WhatsApp hand-off for it
type Receipt struct {
	Order       *domain.Order `json:"order"`
	Message     string        `json:"message"`
	WhatsAppURL string        `json:"whatsapp_url"`
}

// CheckoutService prices carts and turns them into orders
type CheckoutService interface {
	Quote(ctx context.Context, items []ItemRequest, currency pricing.Currency, rate decimal.Decimal, discountCode string) (*Quote, error)
	PlaceOrder(ctx context.Context, req CheckoutRequest) (*Receipt, error)
}

type checkoutMetrics struct {
	ordersPlaced *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func newCheckoutMetrics(reg prometheus.Registerer) *checkoutMetrics {
	m := &checkoutMetrics{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Orders placed through checkout, by currency.",
		}, []string{"currency"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_failures_total",
			Help: "Rejected checkouts, by reason.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.ordersPlaced, m.failures)
	}
	return m
}

type checkoutService struct {
	store     repository.Store
	discounts DiscountService
	notifier  *realtime.Notifier
	cfg       CheckoutConfig
	metrics   *checkoutMetrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewCheckoutService(
	store repository.Store,
	discounts DiscountService,
	notifier *realtime.Notifier,
	cfg CheckoutConfig,
	reg prometheus.Registerer,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		store:     store,
		discounts: discounts,
		notifier:  notifier,
		cfg:       cfg,
		metrics:   newCheckoutMetrics(reg),
		logger:    logger,
		now:       time.Now,
	}
}

// Quote loads the fabrics and the discount code concurrently and prices
// the cart.
func (s *checkoutService) Quote(ctx context.Context, items []ItemRequest, currency pricing.Currency, rate decimal.Decimal, discountCode string) (*Quote, error) {
	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, ErrEmptyCart
	}

	var (
		fabrics  map[uuid.UUID]*domain.Fabric
		discount *domain.DiscountCode
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fabrics, err = s.store.Fabrics().FindByIDs(gctx, itemIDs(merged))
		return err
	})
	if strings.TrimSpace(discountCode) != "" {
		g.Go(func() error {
			var err error
			discount, err = s.discounts.Validate(gctx, discountCode, s.now())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return buildQuote(merged, fabrics, discount, currency, rate)
}

func itemIDs(items []ItemRequest) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.FabricID
	}
	return ids
}

// buildQuote prices items against fabrics. Every line must be sellable in
// the requested quantity.
func buildQuote(items []ItemRequest, fabrics map[uuid.UUID]*domain.Fabric, discount *domain.DiscountCode, currency pricing.Currency, rate decimal.Decimal) (*Quote, error) {
	q := &Quote{Currency: currency, Rate: rate, Lines: make([]pricing.Line, 0, len(items)), Discount: decimal.Zero}

	for _, it := range items {
		f, ok := fabrics[it.FabricID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrFabricNotFound, it.FabricID)
		}
		if !f.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrFabricUnavailable, f.Name)
		}
		if !f.InStock(it.Quantity) {
			return nil, fmt.Errorf("%w: %s has %d piece(s) left", ErrQuantityExceedsStock, f.Name, f.Stock)
		}
		q.Lines = append(q.Lines, pricing.NewLine(f, it.Quantity, currency, rate))
	}

	q.Subtotal = pricing.Total(q.Lines)
	if discount != nil {
		q.Discount = discount.Amount(q.Subtotal)
		q.DiscountCode = discount.Code
		q.Percentage = discount.Percentage
		q.discountID = discount.ID
	}
	q.Total = q.Subtotal.Sub(q.Discount)
	return q, nil
}

func (s *checkoutService) PlaceOrder(ctx context.Context, req CheckoutRequest) (*Receipt, error) {
	if s.cfg.WhatsAppNumber == "" {
		return nil, ErrCheckoutDisabled
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" || strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, ErrMissingCustomer
	}

	items, fromCart, err := s.checkoutItems(ctx, req)
	if err != nil {
		s.metrics.failures.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	var order *domain.Order
	for attempt := 1; attempt <= referenceAttempts; attempt++ {
		order, err = s.placeOnce(ctx, req, items, fromCart)
		if !errors.Is(err, repository.ErrOrderReferenceUsed) {
			break
		}
		s.logger.Warn("Order reference collision, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		s.metrics.failures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	s.metrics.ordersPlaced.WithLabelValues(order.Currency).Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", order.Reference),
		zap.String("currency", order.Currency),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.notifier.Notify(ctx, realtime.TableOrders, domain.ChangeInsert, order)

	message := BuildOrderMessage(s.cfg.StoreName, order)
	return &Receipt{
		Order:       order,
		Message:     message,
		WhatsAppURL: WhatsAppLink(s.cfg.WhatsAppNumber, message),
	}, nil
}

func (s *checkoutService) checkoutItems(ctx context.Context, req CheckoutRequest) ([]ItemRequest, bool, error) {
	if len(req.Items) > 0 || req.UserID == nil {
		items, err := mergeItems(req.Items)
		if err == nil && len(items) == 0 {
			err = ErrEmptyCart
		}
		return items, false, err
	}

	stored, err := s.store.Cart().List(ctx, *req.UserID)
	if err != nil {
		return nil, false, err
	}
	if len(stored) == 0 {
		return nil, false, ErrEmptyCart
	}
	items := make([]ItemRequest, len(stored))
	for i, it := range stored {
		items[i] = ItemRequest{FabricID: it.FabricID, Quantity: it.Quantity}
	}
	return items, true, nil
}

// placeOnce prices and persists the order in one transaction. The stock
// decrement is conditional, so a concurrent checkout that drained a fabric
// rolls this one back instead of overselling.
func (s *checkoutService) placeOnce(ctx context.Context, req CheckoutRequest, items []ItemRequest, fromCart bool) (*domain.Order, error) {
	reference, err := newReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order reference: %w", err)
	}

	var order *domain.Order
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		fabrics, err := tx.Fabrics().FindByIDs(ctx, itemIDs(items))
		if err != nil {
			return err
		}

		var discount *domain.DiscountCode
		if code := strings.TrimSpace(req.DiscountCode); code != "" {
			discount, err = tx.Discounts().FindByCode(ctx, code)
			if err != nil {
				return err
			}
			if err := checkRedeemable(discount, s.now()); err != nil {
				return err
			}
		}

		quote, err := buildQuote(items, fabrics, discount, req.Currency, req.Rate)
		if err != nil {
			return err
		}

		order = newOrder(req, quote, reference, s.now())
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		for _, line := range quote.Lines {
			if err := tx.Fabrics().DecrementStock(ctx, line.FabricID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return fmt.Errorf("%w: %s", ErrQuantityExceedsStock, line.Name)
				}
				return err
			}
		}

		if discount != nil {
			if err := tx.Discounts().IncrementUses(ctx, quote.discountID); err != nil {
				return err
			}
		}

		if fromCart {
			return tx.Cart().Clear(ctx, *req.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func newOrder(req CheckoutRequest, q *Quote, reference string, now time.Time) *domain.Order {
	order := &domain.Order{
		ID:              uuid.New(),
		Reference:       reference,
		UserID:          req.UserID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Currency:        string(q.Currency),
		ExchangeRate:    q.Rate,
		Subtotal:        q.Subtotal,
		Discount:        q.Discount,
		Total:           q.Total,
		DiscountCode:    q.DiscountCode,
		Status:          domain.OrderStatusPending,
		Items:           make([]domain.OrderItem, 0, len(q.Lines)),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, line := range q.Lines {
		order.Items = append(order.Items, domain.OrderItem{
			FabricID:   line.FabricID,
			FabricName: line.Name,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineTotal:  line.LineTotal,
		})
	}
	return order
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrQuantityExceedsStock):
		return "out_of_stock"
	case errors.Is(err, ErrFabricUnavailable), errors.Is(err, repository.ErrFabricNotFound):
		return "unavailable"
	case errors.Is(err, repository.ErrDiscountNotFound), errors.Is(err, repository.ErrDiscountExhausted),
		errors.Is(err, ErrDiscountExpired), errors.Is(err, ErrDiscountInactive):
		return "discount"
	}
	return "error"
}

// newReference returns a short human-friendly order reference such as
// "TX-MFRGGZDF".
func newReference() (string, error) {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "TX-" + base32.StdEncoding.EncodeToString(b), nil
}

func pieces(n int) string {
	if n == 1 {
		return "1 piece"
	}
	return fmt.Sprintf("%d pieces", n)
}

// BuildOrderMessage renders the order summary sent to the store over WhatsApp.
func BuildOrderMessage(storeName string, o *domain.Order) string {
	currency := pricing.Currency(o.Currency)

	var b strings.Builder
	fmt.Fprintf(&b, "New order for %s\n", storeName)
	fmt.Fprintf(&b, "Reference: %s\n\n", o.Reference)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "- %s x %s (%d yards each) - %s\n",
			it.FabricName, pieces(it.Quantity), domain.YardsPerPiece, pricing.Format(it.LineTotal, currency))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", pricing.Format(o.Subtotal, currency))
	if o.Discount.IsPositive() {
		fmt.Fprintf(&b, "Discount (%s): -%s\n", o.DiscountCode, pricing.Format(o.Discount, currency))
	}
	fmt.Fprintf(&b, "Total: %s\n\n", pricing.Format(o.Total, currency))
	fmt.Fprintf(&b, "Name: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", o.CustomerPhone)
	if o.CustomerEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", o.CustomerEmail)
	}
	fmt.Fprintf(&b, "Address: %s", o.ShippingAddress)
	return b.String()
}

// WhatsAppLink builds the wa.me deep link that opens a chat with number
// prefilled with message. Non-digits are stripped from the number.
func WhatsAppLink(number, message string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}
