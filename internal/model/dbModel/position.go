package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Position struct {
	Symbol   string          `db:"symbol"`
	Name     sql.NullString  `db:"name"`
	AvgPrice decimal.Decimal `db:"avg_price"`
	Quantity int             `db:"quantity"`
	DtCreate time.Time       `db:"dt_create"`
	DtUpdate time.Time       `db:"dt_update"`
}
