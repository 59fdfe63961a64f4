package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	"github.com/stocklab/stock-api/config"
	"github.com/stocklab/stock-api/internal/model/dbModel"
	"github.com/stocklab/stock-api/utils"
)

type Postgres struct {
	db  *sqlx.DB
	cfg *config.Config
}

func NewPostgres(cfg *config.Config, db *sqlx.DB) *Postgres {
	return &Postgres{db: db, cfg: cfg}
}

func (r *Postgres) GetPosition(ctx context.Context, symbol string) (position dbModel.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPosition"
	query := `
		SELECT symbol, name, avg_price, quantity, dt_create, dt_update
		FROM positions
		WHERE symbol = $1
		`

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("GetPosition failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPosition completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.db.QueryRowxContext(ctx, query, symbol).StructScan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbModel.Position{}, ErrNotFound
		}
		return dbModel.Position{}, err
	}

	return position, nil
}

func (r *Postgres) GetPositions(ctx context.Context) (positions []dbModel.Position, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPositions"
	query := `
		SELECT symbol, name, avg_price, quantity, dt_create, dt_update
		FROM positions
		ORDER BY symbol
		`

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		if err != nil {
			slog.Error("GetPositions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPositions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var position dbModel.Position
		err = rows.StructScan(&position)
		if err != nil {
			return nil, err
		}
		positions = append(positions, position)
	}

	return positions, nil
}

// SaveTransaction inserts the transaction and upserts the position as one
// unit. Partial state after a failure would break the ledger invariant, so
// both statements share a DB transaction.
func (r *Postgres) SaveTransaction(ctx context.Context, txn dbModel.Transaction, position dbModel.Position) (transactionID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SaveTransaction"

	slog.Debug(
		"SaveTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("symbol", txn.Symbol),
		slog.Any("transaction", txn),
	)
	defer func() {
		if err != nil {
			slog.Error("SaveTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SaveTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsertQuery := `
		INSERT INTO positions(symbol, name, avg_price, quantity, dt_create, dt_update)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol) DO UPDATE SET
			avg_price = EXCLUDED.avg_price,
			quantity = EXCLUDED.quantity,
			dt_update = EXCLUDED.dt_update
		`

	_, err = tx.ExecContext(
		ctx,
		upsertQuery,
		position.Symbol,
		position.Name,
		position.AvgPrice,
		position.Quantity,
		position.DtCreate,
		position.DtUpdate,
	)
	if err != nil {
		return 0, err
	}

	insertQuery := `
		INSERT INTO transactions(symbol, transaction_type, price, quantity, transaction_date, dt_create)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING transaction_id
		`

	err = tx.QueryRowContext(
		ctx,
		insertQuery,
		txn.Symbol,
		txn.TransactionType,
		txn.Price,
		txn.Quantity,
		txn.TransactionDate,
		txn.DtCreate,
	).Scan(&transactionID)
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return transactionID, nil
}

func (r *Postgres) GetTransactions(ctx context.Context, symbol, transactionType string, limit int) (txns []dbModel.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactions"
	params := map[string]any{
		"symbol":          symbol,
		"transactionType": transactionType,
		"limit":           limit,
	}

	sb := strings.Builder{}
	sb.WriteString(`
		SELECT transaction_id, symbol, transaction_type, price, quantity, transaction_date, dt_create
		FROM transactions
		`)

	args := make([]any, 0, 3)
	conditions := make([]string, 0, 2)

	if symbol != "" {
		args = append(args, symbol)
		conditions = append(conditions, "symbol = $"+strconv.Itoa(len(args)))
	}

	if transactionType != "" {
		args = append(args, transactionType)
		conditions = append(conditions, "transaction_type = $"+strconv.Itoa(len(args)))
	}

	if len(conditions) > 0 {
		sb.WriteString("WHERE " + strings.Join(conditions, " AND ") + "\n")
	}

	args = append(args, limit)
	sb.WriteString("ORDER BY transaction_date DESC\nLIMIT $" + strconv.Itoa(len(args)))

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", sb.String()), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetTransactions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.db.QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	txns = make([]dbModel.Transaction, 0, limit)
	for rows.Next() {
		var txn dbModel.Transaction
		err = rows.StructScan(&txn)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func (r *Postgres) GetTransactionsBySymbol(ctx context.Context, symbol string) (txns []dbModel.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsBySymbol"
	query := `
		SELECT transaction_id, symbol, transaction_type, price, quantity, transaction_date, dt_create
		FROM transactions
		WHERE symbol = $1
		ORDER BY transaction_date
		`

	slog.Debug("GetTransactionsBySymbol start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsBySymbol failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsBySymbol completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.db.QueryxContext(ctx, query, symbol)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var txn dbModel.Transaction
		err = rows.StructScan(&txn)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func (r *Postgres) GetTransaction(ctx context.Context, transactionID int64) (txn dbModel.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransaction"
	query := `
		SELECT transaction_id, symbol, transaction_type, price, quantity, transaction_date, dt_create
		FROM transactions
		WHERE transaction_id = $1
		`

	slog.Debug("GetTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("GetTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.db.QueryRowxContext(ctx, query, transactionID).StructScan(&txn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbModel.Transaction{}, ErrNotFound
		}
		return dbModel.Transaction{}, err
	}

	return txn, nil
}

// DeleteTransaction removes the transaction row only. The position aggregate
// is left untouched, matching the documented ledger escape hatch.
func (r *Postgres) DeleteTransaction(ctx context.Context, transactionID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteTransaction"
	query := `DELETE FROM transactions WHERE transaction_id = $1`

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("DeleteTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.db.ExecContext(ctx, query, transactionID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
