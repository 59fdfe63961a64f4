package model

import "github.com/shopspring/decimal"

// Quote is a point-in-time snapshot for a symbol. Fields Yahoo does not
// return for a given instrument stay nil.
type Quote struct {
	Symbol        string           `json:"symbol"`
	Name          string           `json:"name"`
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	PreviousClose *decimal.Decimal `json:"previous_close"`
	OpenPrice     *decimal.Decimal `json:"open_price"`
	DayHigh       *decimal.Decimal `json:"day_high"`
	DayLow        *decimal.Decimal `json:"day_low"`
	Volume        *int64           `json:"volume"`
	MarketCap     *int64           `json:"market_cap"`
	Currency      *string          `json:"currency"`
	Exchange      *string          `json:"exchange"`
}

type Candle struct {
	Symbol string          `json:"symbol"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

type StockHistory struct {
	Symbol  string   `json:"symbol"`
	Period  string   `json:"period"`
	Candles []Candle `json:"data"`
}
