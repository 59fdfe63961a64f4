package marketService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stocklab/stock-api/internal/externalApi"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/model/dbModel"
	"github.com/stocklab/stock-api/internal/optionsAnalytics"
	"github.com/stocklab/stock-api/internal/service"
	"github.com/stocklab/stock-api/utils"
)

// Periods accepted by the history endpoint, as Yahoo ranges.
var validPeriods = map[string]struct{}{
	"1d": {}, "5d": {}, "1mo": {}, "3mo": {}, "6mo": {},
	"1y": {}, "2y": {}, "5y": {}, "10y": {}, "ytd": {}, "max": {},
}

type YahooApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetHistory(ctx context.Context, symbol, period string) (model.StockHistory, error)
	GetOptionExpiries(ctx context.Context, symbol string) (model.OptionExpiryList, error)
	GetOptionChain(ctx context.Context, symbol, expiry string) (model.OptionChain, error)
}

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	SetQuote(ctx context.Context, quote model.Quote) error
	SetQuotes(ctx context.Context, quotes []model.Quote) error
}

type PositionsRepository interface {
	GetPositions(ctx context.Context) ([]dbModel.Position, error)
}

// MarketService serves quotes, history and options analytics, fronting the
// quote gateway with a redis cache.
type MarketService struct {
	cache    Cache
	yahooApi YahooApi
	repo     PositionsRepository
}

func New(cache Cache, yahooApi YahooApi, repo PositionsRepository) *MarketService {
	return &MarketService{
		cache:    cache,
		yahooApi: yahooApi,
		repo:     repo,
	}
}

func (s *MarketService) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.GetQuote"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetQuote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	quote, err := s.cache.GetQuote(ctx, symbol)
	if err == nil {
		return quote, nil
	}

	quote, err = s.yahooApi.GetQuote(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			slog.Warn("symbol not found in yahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
			return model.Quote{}, service.ErrNotFound
		}
		slog.Error("can't get quote from yahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, err
	}

	go s.cache.SetQuote(context.WithoutCancel(ctx), quote)

	return quote, nil
}

func (s *MarketService) GetHistory(ctx context.Context, symbol, period string) (model.StockHistory, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.GetHistory"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if period == "" {
		period = "1mo"
	}

	if _, ok := validPeriods[period]; !ok {
		return model.StockHistory{}, fmt.Errorf("%w: invalid period %q", service.ErrValidation, period)
	}

	slog.Debug("GetHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("period", period))
	defer func() {
		slog.Debug("GetHistory finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	history, err := s.yahooApi.GetHistory(ctx, symbol, period)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.StockHistory{}, service.ErrNotFound
		}
		slog.Error("can't get history from yahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.StockHistory{}, err
	}

	return history, nil
}

func (s *MarketService) GetOptionExpiries(ctx context.Context, symbol string) (model.OptionExpiryList, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.GetOptionExpiries"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	slog.Debug("GetOptionExpiries start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetOptionExpiries finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	expiries, err := s.yahooApi.GetOptionExpiries(ctx, symbol)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.OptionExpiryList{}, service.ErrNotFound
		}
		slog.Error("can't get option expiries from yahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.OptionExpiryList{}, err
	}

	return expiries, nil
}

func (s *MarketService) GetOptionChain(ctx context.Context, symbol, expiry string) (model.OptionChain, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.GetOptionChain"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	slog.Debug("GetOptionChain start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("expiry", expiry))
	defer func() {
		slog.Debug("GetOptionChain finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	chain, err := s.yahooApi.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		if errors.Is(err, externalApi.ErrNotFound) {
			return model.OptionChain{}, service.ErrNotFound
		}
		slog.Error("can't get option chain from yahooApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.OptionChain{}, err
	}

	return chain, nil
}

func (s *MarketService) GetMaxPain(ctx context.Context, symbol, expiry string) (model.MaxPain, error) {
	chain, err := s.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return model.MaxPain{}, err
	}

	maxPain, err := optionsAnalytics.MaxPain(chain)
	if err != nil {
		if errors.Is(err, optionsAnalytics.ErrEmptyChain) {
			return model.MaxPain{}, service.ErrNotFound
		}
		return model.MaxPain{}, err
	}

	return maxPain, nil
}

func (s *MarketService) GetPutCallRatio(ctx context.Context, symbol, expiry string) (model.PutCallRatio, error) {
	chain, err := s.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return model.PutCallRatio{}, err
	}

	pcr, err := optionsAnalytics.PutCallRatio(chain)
	if err != nil {
		if errors.Is(err, optionsAnalytics.ErrEmptyChain) {
			return model.PutCallRatio{}, service.ErrNotFound
		}
		return model.PutCallRatio{}, err
	}

	return pcr, nil
}

func (s *MarketService) GetImpliedVolatility(ctx context.Context, symbol, expiry string) (model.ImpliedVolatility, error) {
	chain, err := s.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return model.ImpliedVolatility{}, err
	}

	iv, err := optionsAnalytics.ATMImpliedVolatility(chain)
	if err != nil {
		if errors.Is(err, optionsAnalytics.ErrEmptyChain) {
			return model.ImpliedVolatility{}, service.ErrNotFound
		}
		return model.ImpliedVolatility{}, err
	}

	return iv, nil
}

// WarmQuoteCache refreshes cached quotes for every held symbol. Runs as a
// scheduler job.
func (s *MarketService) WarmQuoteCache(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "MarketService.WarmQuoteCache"

	slog.Debug("WarmQuoteCache start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("WarmQuoteCache finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	positions, err := s.repo.GetPositions(ctx)
	if err != nil {
		slog.Error("got error from repo.GetPositions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	quotes := make([]model.Quote, 0, len(positions))
	for _, position := range positions {
		quote, err := s.yahooApi.GetQuote(ctx, position.Symbol)
		if err != nil {
			slog.Warn("can't refresh quote", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", position.Symbol), slog.String("err", err.Error()))
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil
	}

	return s.cache.SetQuotes(ctx, quotes)
}
