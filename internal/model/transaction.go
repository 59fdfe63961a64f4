package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

func (t TransactionType) Valid() bool {
	return t == TransactionTypeBuy || t == TransactionTypeSell
}

// Transaction is an immutable ledger record of a single buy or sell.
type Transaction struct {
	ID              int64           `json:"id"`
	Symbol          string          `json:"symbol"`
	TransactionType TransactionType `json:"transaction_type"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	TransactionDate time.Time       `json:"transaction_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionSummary aggregates all transactions of one symbol.
type TransactionSummary struct {
	Symbol           string          `json:"symbol"`
	TotalBought      int             `json:"total_bought"`
	TotalSold        int             `json:"total_sold"`
	CurrentQuantity  int             `json:"current_quantity"`
	AverageBuyPrice  decimal.Decimal `json:"average_buy_price"`
	TransactionCount int             `json:"total_transactions"`
}

// TransactionFilter narrows transaction listings. Zero values mean "no filter".
type TransactionFilter struct {
	Symbol          string
	TransactionType TransactionType
	Limit           int
}
