// Package currency resolves the shopper's country and the NGN/USD exchange
// rate, caching both and falling back to configured values when the
// upstream lookups fail.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"textile-store/internal/config"
	"textile-store/internal/pricing"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	rateKey     = "currency:rate:ngn"
	lastRateKey = "currency:rate:ngn:last"
	geoKeyFmt   = "currency:geo:%s"
)

// Resolution is what the storefront needs to price a page for one shopper.
type Resolution struct {
	Currency pricing.Currency `json:"currency"`
	Rate     decimal.Decimal  `json:"rate"`
	Country  string           `json:"country"`
}

// Service looks up exchange rates and IP locations
type Service struct {
	cfg          config.CurrencyConfig
	cache        Cache
	client       *http.Client
	logger       *zap.Logger
	fallbackRate decimal.Decimal
}

// NewService creates a currency service. A nil client gets a traced default.
func NewService(cfg config.CurrencyConfig, cache Cache, client *http.Client, logger *zap.Logger) *Service {
	if client == nil {
		client = &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.FallbackCountry == "" {
		cfg.FallbackCountry = "US"
	}
	if cfg.HomeCountry == "" {
		cfg.HomeCountry = "NG"
	}
	return &Service{
		cfg:          cfg,
		cache:        cache,
		client:       client,
		logger:       logger,
		fallbackRate: decimal.NewFromFloat(cfg.FallbackRate),
	}
}

// FallbackRate is the rate used when no lookup has ever succeeded.
func (s *Service) FallbackRate() decimal.Decimal {
	return s.fallbackRate
}

// Rate returns naira per US dollar. It never fails: when the upstream is
// unavailable the last good rate is used, then the configured fallback.
func (s *Service) Rate(ctx context.Context) decimal.Decimal {
	var cached decimal.Decimal
	if s.cache.Get(ctx, rateKey, &cached) && cached.IsPositive() {
		return cached
	}

	rate, err := s.fetchRate(ctx)
	if err == nil {
		if err := s.cache.Set(ctx, rateKey, rate, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("Failed to cache exchange rate", zap.Error(err))
		}
		if err := s.cache.Set(ctx, lastRateKey, rate, 0); err != nil {
			s.logger.Warn("Failed to cache last good exchange rate", zap.Error(err))
		}
		return rate
	}

	s.logger.Warn("Exchange rate lookup failed", zap.Error(err))

	var last decimal.Decimal
	if s.cache.Get(ctx, lastRateKey, &last) && last.IsPositive() {
		return last
	}
	return s.fallbackRate
}

type ratesResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (s *Service) fetchRate(ctx context.Context) (decimal.Decimal, error) {
	var body ratesResponse
	if err := s.getJSON(ctx, s.cfg.RatesURL, &body); err != nil {
		return decimal.Zero, err
	}
	if body.Result != "" && body.Result != "success" {
		return decimal.Zero, fmt.Errorf("rates endpoint returned %q", body.Result)
	}
	ngn, ok := body.Rates[string(pricing.NGN)]
	if !ok || ngn <= 0 {
		return decimal.Zero, fmt.Errorf("rates response has no NGN rate")
	}
	return decimal.NewFromFloat(ngn), nil
}

// Locate returns the ISO country code for ip, or the fallback country.
// Loopback, private and unparsable addresses are never looked up.
func (s *Service) Locate(ctx context.Context, ip string) string {
	ip = normalizeIP(ip)
	if ip == "" {
		return s.cfg.FallbackCountry
	}
	key := fmt.Sprintf(geoKeyFmt, ip)

	var country string
	if s.cache.Get(ctx, key, &country) && country != "" {
		return country
	}

	country, err := s.fetchCountry(ctx, ip)
	if err != nil {
		s.logger.Warn("Geolocation lookup failed", zap.String("ip", ip), zap.Error(err))
		return s.cfg.FallbackCountry
	}

	if err := s.cache.Set(ctx, key, country, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("Failed to cache location", zap.Error(err))
	}
	return country
}

type geoResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

func (s *Service) fetchCountry(ctx context.Context, ip string) (string, error) {
	url := strings.TrimRight(s.cfg.GeoURL, "/") + "/" + ip + "/json/"

	var body geoResponse
	if err := s.getJSON(ctx, url, &body); err != nil {
		return "", err
	}
	if body.Error {
		return "", fmt.Errorf("geolocation error: %s", body.Reason)
	}
	if len(body.CountryCode) != 2 {
		return "", fmt.Errorf("geolocation response has no country code")
	}
	return strings.ToUpper(body.CountryCode), nil
}

// Resolve picks the shopper's currency and the rate to price it with.
// Shoppers in the home country pay in naira, everyone else in dollars,
// unless override names a currency explicitly.
func (s *Service) Resolve(ctx context.Context, ip, override string) (Resolution, error) {
	var forced pricing.Currency
	if strings.TrimSpace(override) != "" {
		c, err := pricing.ParseCurrency(override)
		if err != nil {
			return Resolution{}, err
		}
		forced = c
	}

	var res Resolution
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Rate = s.Rate(gctx)
		return nil
	})
	if forced == "" {
		g.Go(func() error {
			res.Country = s.Locate(gctx, ip)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Resolution{}, err
	}

	switch {
	case forced != "":
		res.Currency = forced
	case strings.EqualFold(res.Country, s.cfg.HomeCountry):
		res.Currency = pricing.NGN
	default:
		res.Currency = pricing.USD
	}
	return res, nil
}

func (s *Service) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// normalizeIP strips ports and drops loopback/private addresses, which the
// geolocation endpoint cannot place.
func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return ""
	}
	return parsed.String()
}
