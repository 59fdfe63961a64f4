package model

import "github.com/shopspring/decimal"

// OptionContract is one row of an options chain. Optional market fields
// stay nil when the provider omits them.
type OptionContract struct {
	Strike            decimal.Decimal  `json:"strike"`
	LastPrice         *decimal.Decimal `json:"last_price"`
	Bid               *decimal.Decimal `json:"bid"`
	Ask               *decimal.Decimal `json:"ask"`
	Volume            *int64           `json:"volume"`
	OpenInterest      *int64           `json:"open_interest"`
	ImpliedVolatility *float64         `json:"implied_volatility"`
}

// OptionChain is a snapshot of all contracts for one expiry.
type OptionChain struct {
	Symbol       string           `json:"symbol"`
	ExpiryDate   string           `json:"expiry_date"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Calls        []OptionContract `json:"calls"`
	Puts         []OptionContract `json:"puts"`
}

type OptionExpiryList struct {
	Symbol       string          `json:"symbol"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	ExpiryDates  []string        `json:"expiry_dates"`
}

type StrikeOpenInterest struct {
	Strike       decimal.Decimal `json:"strike"`
	OpenInterest int64           `json:"open_interest"`
}

type MaxPain struct {
	Symbol                 string               `json:"symbol"`
	ExpiryDate             string               `json:"expiry_date"`
	CurrentPrice           decimal.Decimal      `json:"current_price"`
	MaxPainPrice           decimal.Decimal      `json:"max_pain_price"`
	PriceDifferencePercent decimal.Decimal      `json:"price_difference_percent"`
	TopStrikes             []StrikeOpenInterest `json:"top_strikes"`
}

type PutCallRatio struct {
	Symbol                string  `json:"symbol"`
	ExpiryDate            string  `json:"expiry_date"`
	TotalCallOpenInterest int64   `json:"total_call_open_interest"`
	TotalPutOpenInterest  int64   `json:"total_put_open_interest"`
	Ratio                 float64 `json:"put_call_ratio"`
	Interpretation        string  `json:"interpretation"`
}

type ImpliedVolatility struct {
	Symbol         string          `json:"symbol"`
	ExpiryDate     string          `json:"expiry_date"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	ATMStrike      decimal.Decimal `json:"atm_strike"`
	ATMCallIV      float64         `json:"atm_call_iv"`
	ATMPutIV       float64         `json:"atm_put_iv"`
	AverageIV      float64         `json:"average_iv"`
	Interpretation string          `json:"interpretation"`
}
