package yahooApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/config"
	"github.com/stocklab/stock-api/internal/externalApi"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/model/yahooModel"
	"github.com/stocklab/stock-api/utils"
)

const expiryLayout = "2006-01-02"

type YahooApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *YahooApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.YahooApi.Url).
		SetHeader("User-Agent", "stock-api/1.0")
	return &YahooApi{client: client}
}

func (a *YahooApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/v8/finance/chart/%s", symbol)
	params := map[string]string{
		"range":    "1d",
		"interval": "1d",
	}

	slog.Debug("YahooApi.GetQuote request start", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return model.Quote{}, externalApi.ErrNotFound
	}

	if resp.StatusCode() != http.StatusOK {
		return model.Quote{}, fmt.Errorf("yahoo chart response status %d", resp.StatusCode())
	}

	chartResp := yahooModel.ChartResponse{}
	err = json.Unmarshal(resp.Body(), &chartResp)
	if err != nil {
		slog.Error("can't unmarshall response into yahooModel.ChartResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	if len(chartResp.Chart.Result) == 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	quote := parseQuote(symbol, chartResp.Chart.Result[0])

	slog.Debug("YahooApi.GetQuote request complete", slog.String("rqID", rqID), slog.String("symbol", symbol))

	return quote, nil
}

func (a *YahooApi) GetHistory(ctx context.Context, symbol, period string) (model.StockHistory, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/v8/finance/chart/%s", symbol)
	params := map[string]string{
		"range":    period,
		"interval": "1d",
	}

	slog.Debug("YahooApi.GetHistory request start", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("period", period))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.StockHistory{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return model.StockHistory{}, externalApi.ErrNotFound
	}

	if resp.StatusCode() != http.StatusOK {
		return model.StockHistory{}, fmt.Errorf("yahoo chart response status %d", resp.StatusCode())
	}

	chartResp := yahooModel.ChartResponse{}
	err = json.Unmarshal(resp.Body(), &chartResp)
	if err != nil {
		slog.Error("can't unmarshall response into yahooModel.ChartResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.StockHistory{}, err
	}

	if len(chartResp.Chart.Result) == 0 {
		return model.StockHistory{}, externalApi.ErrNotFound
	}

	candles, err := parseCandles(symbol, chartResp.Chart.Result[0])
	if err != nil {
		slog.Error("can't parse candles", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.StockHistory{}, err
	}

	if len(candles) == 0 {
		return model.StockHistory{}, externalApi.ErrNotFound
	}

	slog.Debug("YahooApi.GetHistory request complete", slog.String("rqID", rqID), slog.String("symbol", symbol))

	return model.StockHistory{Symbol: symbol, Period: period, Candles: candles}, nil
}

func (a *YahooApi) GetOptionExpiries(ctx context.Context, symbol string) (model.OptionExpiryList, error) {
	result, err := a.getOptions(ctx, symbol, "")
	if err != nil {
		return model.OptionExpiryList{}, err
	}

	expiries := make([]string, 0, len(result.ExpirationDates))
	for _, ts := range result.ExpirationDates {
		expiries = append(expiries, time.Unix(ts, 0).UTC().Format(expiryLayout))
	}

	return model.OptionExpiryList{
		Symbol:       symbol,
		CurrentPrice: decimal.NewFromFloat(result.Quote.RegularMarketPrice),
		ExpiryDates:  expiries,
	}, nil
}

// GetOptionChain fetches the chain for the given expiry; an empty expiry
// selects the nearest one.
func (a *YahooApi) GetOptionChain(ctx context.Context, symbol, expiry string) (model.OptionChain, error) {
	result, err := a.getOptions(ctx, symbol, expiry)
	if err != nil {
		return model.OptionChain{}, err
	}

	if len(result.Options) == 0 {
		return model.OptionChain{}, externalApi.ErrNotFound
	}

	period := result.Options[0]

	return model.OptionChain{
		Symbol:       symbol,
		ExpiryDate:   time.Unix(period.ExpirationDate, 0).UTC().Format(expiryLayout),
		CurrentPrice: decimal.NewFromFloat(result.Quote.RegularMarketPrice),
		Calls:        parseContracts(period.Calls),
		Puts:         parseContracts(period.Puts),
	}, nil
}

func (a *YahooApi) getOptions(ctx context.Context, symbol, expiry string) (yahooModel.OptionsResult, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/v7/finance/options/%s", symbol)
	params := map[string]string{}

	if expiry != "" {
		expiryDate, err := time.ParseInLocation(expiryLayout, expiry, time.UTC)
		if err != nil {
			return yahooModel.OptionsResult{}, fmt.Errorf("invalid expiry %q: %w", expiry, err)
		}
		params["date"] = fmt.Sprintf("%d", expiryDate.Unix())
	}

	slog.Debug("YahooApi.getOptions request start", slog.String("rqID", rqID), slog.String("symbol", symbol), slog.String("expiry", expiry))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing YahooApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return yahooModel.OptionsResult{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		return yahooModel.OptionsResult{}, externalApi.ErrNotFound
	}

	if resp.StatusCode() != http.StatusOK {
		return yahooModel.OptionsResult{}, fmt.Errorf("yahoo options response status %d", resp.StatusCode())
	}

	optionsResp := yahooModel.OptionsResponse{}
	err = json.Unmarshal(resp.Body(), &optionsResp)
	if err != nil {
		slog.Error("can't unmarshall response into yahooModel.OptionsResponse", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return yahooModel.OptionsResult{}, err
	}

	if len(optionsResp.OptionChain.Result) == 0 {
		return yahooModel.OptionsResult{}, externalApi.ErrNotFound
	}

	result := optionsResp.OptionChain.Result[0]

	if len(result.ExpirationDates) == 0 {
		return yahooModel.OptionsResult{}, externalApi.ErrNotFound
	}

	// Yahoo silently falls back to the nearest expiry when the requested
	// date is unknown; treat that as a miss instead.
	if expiry != "" && len(result.Options) > 0 {
		got := time.Unix(result.Options[0].ExpirationDate, 0).UTC().Format(expiryLayout)
		if got != expiry {
			return yahooModel.OptionsResult{}, externalApi.ErrNotFound
		}
	}

	slog.Debug("YahooApi.getOptions request complete", slog.String("rqID", rqID), slog.String("symbol", symbol))

	return result, nil
}

func parseQuote(symbol string, result yahooModel.ChartResult) model.Quote {
	meta := result.Meta

	quote := model.Quote{Symbol: symbol, Name: meta.LongName}
	if quote.Name == "" {
		quote.Name = meta.ShortName
	}

	if meta.RegularMarketPrice > 0 {
		price := decimal.NewFromFloat(meta.RegularMarketPrice)
		quote.CurrentPrice = &price
	}

	if meta.ChartPreviousClose > 0 {
		prev := decimal.NewFromFloat(meta.ChartPreviousClose)
		quote.PreviousClose = &prev
	}

	if meta.RegularMarketDayHigh > 0 {
		high := decimal.NewFromFloat(meta.RegularMarketDayHigh)
		quote.DayHigh = &high
	}

	if meta.RegularMarketDayLow > 0 {
		low := decimal.NewFromFloat(meta.RegularMarketDayLow)
		quote.DayLow = &low
	}

	if meta.RegularMarketVolume > 0 {
		volume := meta.RegularMarketVolume
		quote.Volume = &volume
	}

	if meta.Currency != "" {
		currency := meta.Currency
		quote.Currency = &currency
	}

	if meta.FullExchangeName != "" {
		exchange := meta.FullExchangeName
		quote.Exchange = &exchange
	} else if meta.ExchangeName != "" {
		exchange := meta.ExchangeName
		quote.Exchange = &exchange
	}

	// open price comes from the first session bar of the day
	if len(result.Indicators.Quote) > 0 {
		for _, open := range result.Indicators.Quote[0].Open {
			if open != nil && *open > 0 {
				openPrice := decimal.NewFromFloat(*open)
				quote.OpenPrice = &openPrice
				break
			}
		}
	}

	return quote
}

func parseCandles(symbol string, result yahooModel.ChartResult) ([]model.Candle, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	bars := result.Indicators.Quote[0]

	if len(bars.Open) != len(result.Timestamp) ||
		len(bars.High) != len(result.Timestamp) ||
		len(bars.Low) != len(result.Timestamp) ||
		len(bars.Close) != len(result.Timestamp) ||
		len(bars.Volume) != len(result.Timestamp) {
		return nil, errors.New("lengths of indicator columns != timestamps")
	}

	candles := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if bars.Open[i] == nil || bars.High[i] == nil || bars.Low[i] == nil || bars.Close[i] == nil {
			continue // session without trades
		}

		var volume int64
		if bars.Volume[i] != nil {
			volume = *bars.Volume[i]
		}

		candles = append(candles, model.Candle{
			Symbol: symbol,
			Date:   time.Unix(ts, 0).UTC().Format(expiryLayout),
			Open:   decimal.NewFromFloat(*bars.Open[i]),
			High:   decimal.NewFromFloat(*bars.High[i]),
			Low:    decimal.NewFromFloat(*bars.Low[i]),
			Close:  decimal.NewFromFloat(*bars.Close[i]),
			Volume: volume,
		})
	}

	return candles, nil
}

func parseContracts(rawContracts []yahooModel.OptionContract) []model.OptionContract {
	contracts := make([]model.OptionContract, 0, len(rawContracts))
	for _, raw := range rawContracts {
		contract := model.OptionContract{
			Strike:            decimal.NewFromFloat(raw.Strike),
			Volume:            raw.Volume,
			OpenInterest:      raw.OpenInterest,
			ImpliedVolatility: raw.ImpliedVolatility,
		}

		if raw.LastPrice != nil {
			lastPrice := decimal.NewFromFloat(*raw.LastPrice)
			contract.LastPrice = &lastPrice
		}

		if raw.Bid != nil {
			bid := decimal.NewFromFloat(*raw.Bid)
			contract.Bid = &bid
		}

		if raw.Ask != nil {
			ask := decimal.NewFromFloat(*raw.Ask)
			contract.Ask = &ask
		}

		contracts = append(contracts, contract)
	}

	return contracts
}
