package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	TransactionID   int64           `db:"transaction_id"`
	Symbol          string          `db:"symbol"`
	TransactionType string          `db:"transaction_type"`
	Price           decimal.Decimal `db:"price"`
	Quantity        int             `db:"quantity"`
	TransactionDate time.Time       `db:"transaction_date"`
	DtCreate        time.Time       `db:"dt_create"`
}
