package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the running average-cost holding per symbol. It is derived
// from the transaction stream and never edited directly.
type Position struct {
	Symbol       string          `json:"symbol"`
	Name         *string         `json:"name"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Quantity     int             `json:"quantity"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PositionWithProfit enriches a position with the current market price.
// Pricing fields stay nil when the quote gateway has no price for the symbol.
type PositionWithProfit struct {
	Position
	CurrentPrice      *decimal.Decimal `json:"current_price"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	CurrentValue      *decimal.Decimal `json:"current_value"`
	ProfitLoss        *decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent *decimal.Decimal `json:"profit_loss_percent"`
}
