package ledgerService

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/data/repository"
	"github.com/stocklab/stock-api/internal/converter/dbConverter"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/model/dbModel"
	"github.com/stocklab/stock-api/internal/service"
	"github.com/stocklab/stock-api/utils"
)

const defaultTransactionsLimit = 100

type Repository interface {
	GetPosition(ctx context.Context, symbol string) (dbModel.Position, error)
	GetPositions(ctx context.Context) ([]dbModel.Position, error)
	SaveTransaction(ctx context.Context, txn dbModel.Transaction, position dbModel.Position) (transactionID int64, err error)
	GetTransactions(ctx context.Context, symbol, transactionType string, limit int) ([]dbModel.Transaction, error)
	GetTransactionsBySymbol(ctx context.Context, symbol string) ([]dbModel.Transaction, error)
	GetTransaction(ctx context.Context, transactionID int64) (dbModel.Transaction, error)
	DeleteTransaction(ctx context.Context, transactionID int64) error
}

type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, positions []model.PositionWithProfit, txns []model.Transaction) (fileBytes []byte, fileExtension string, err error)
}

// LedgerService keeps the transaction log and the derived average-cost
// position per symbol consistent with each other.
type LedgerService struct {
	repo      Repository
	quotes    QuoteProvider
	reportGen ReportGenerator
}

func New(repo Repository, quotes QuoteProvider, reportGen ReportGenerator) *LedgerService {
	return &LedgerService{
		repo:      repo,
		quotes:    quotes,
		reportGen: reportGen,
	}
}

// RecordTransaction validates and applies a buy or sell, returning the
// created transaction. The position update and the transaction insert are
// committed as one unit by the repository.
func (s *LedgerService) RecordTransaction(
	ctx context.Context,
	symbol string,
	txType model.TransactionType,
	price decimal.Decimal,
	quantity int,
	txDate *time.Time,
) (model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.RecordTransaction"

	slog.Debug(
		"RecordTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.String("type", string(txType)),
	)
	defer func() {
		slog.Debug("RecordTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if !txType.Valid() {
		return model.Transaction{}, fmt.Errorf("%w: transaction_type must be BUY or SELL", service.ErrValidation)
	}

	if !price.IsPositive() {
		return model.Transaction{}, fmt.Errorf("%w: price must be positive", service.ErrValidation)
	}

	if quantity <= 0 {
		return model.Transaction{}, fmt.Errorf("%w: quantity must be positive", service.ErrValidation)
	}

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return model.Transaction{}, fmt.Errorf("%w: symbol must not be empty", service.ErrValidation)
	}

	now := time.Now().UTC()

	transactionDate := now
	if txDate != nil {
		transactionDate = txDate.UTC()
	}

	position, err := s.repo.GetPosition(ctx, symbol)
	positionExists := true
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("got error from repo.GetPosition", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return model.Transaction{}, err
		}
		positionExists = false
	}

	switch txType {
	case model.TransactionTypeBuy:
		if positionExists {
			newQuantity := position.Quantity + quantity
			currentCost := position.AvgPrice.Mul(decimal.NewFromInt(int64(position.Quantity)))
			newCost := price.Mul(decimal.NewFromInt(int64(quantity)))
			position.AvgPrice = currentCost.Add(newCost).Div(decimal.NewFromInt(int64(newQuantity)))
			position.Quantity = newQuantity
			position.DtUpdate = now
		} else {
			position = dbModel.Position{
				Symbol:   symbol,
				Name:     s.fetchDisplayName(ctx, symbol),
				AvgPrice: price,
				Quantity: quantity,
				DtCreate: now,
				DtUpdate: now,
			}
		}
	case model.TransactionTypeSell:
		if !positionExists {
			return model.Transaction{}, fmt.Errorf("%w: cannot sell %s: no position found", service.ErrNoPosition, symbol)
		}

		if position.Quantity < quantity {
			return model.Transaction{}, fmt.Errorf(
				"%w: cannot sell %d shares of %s: only %d shares available",
				service.ErrInsufficientPosition, quantity, symbol, position.Quantity,
			)
		}

		// average cost is a buy-side metric, sells only shrink the quantity
		position.Quantity -= quantity
		position.DtUpdate = now
	}

	txn := dbModel.Transaction{
		Symbol:          symbol,
		TransactionType: string(txType),
		Price:           price,
		Quantity:        quantity,
		TransactionDate: transactionDate,
		DtCreate:        now,
	}

	transactionID, err := s.repo.SaveTransaction(ctx, txn, position)
	if err != nil {
		slog.Error("got error from repo.SaveTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Transaction{}, err
	}

	txn.TransactionID = transactionID

	return dbConverter.ConvertTransaction(txn), nil
}

// fetchDisplayName asks the quote gateway for a human-readable name on first
// position creation. A gateway failure never blocks the transaction.
func (s *LedgerService) fetchDisplayName(ctx context.Context, symbol string) sql.NullString {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.fetchDisplayName"

	quote, err := s.quotes.GetQuote(ctx, symbol)
	if err != nil {
		slog.Warn("can't fetch display name for new position", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return sql.NullString{}
	}

	if quote.Name == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: quote.Name, Valid: true}
}

func (s *LedgerService) GetTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetTransactions"

	slog.Debug("GetTransactions start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("filter", filter))
	defer func() {
		slog.Debug("GetTransactions finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTransactionsLimit
	}

	symbol := strings.ToUpper(strings.TrimSpace(filter.Symbol))

	txns, err := s.repo.GetTransactions(ctx, symbol, string(filter.TransactionType), limit)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return dbConverter.ConvertTransactions(txns), nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, transactionID int64) (model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetTransaction"

	slog.Debug("GetTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		slog.Debug("GetTransaction finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Transaction{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Transaction{}, err
	}

	return dbConverter.ConvertTransaction(txn), nil
}

// GetSummary aggregates the whole transaction log of one symbol. It is a
// pure read over the log and does not consult the position row.
func (s *LedgerService) GetSummary(ctx context.Context, symbol string) (model.TransactionSummary, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetSummary"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	slog.Debug("GetSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetSummary finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	txns, err := s.repo.GetTransactionsBySymbol(ctx, symbol)
	if err != nil {
		slog.Error("got error from repo.GetTransactionsBySymbol", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.TransactionSummary{}, err
	}

	if len(txns) == 0 {
		return model.TransactionSummary{}, service.ErrNotFound
	}

	summary := model.TransactionSummary{
		Symbol:           symbol,
		TransactionCount: len(txns),
	}

	totalBuyCost := decimal.Zero
	for _, txn := range txns {
		switch model.TransactionType(txn.TransactionType) {
		case model.TransactionTypeBuy:
			summary.TotalBought += txn.Quantity
			totalBuyCost = totalBuyCost.Add(txn.Price.Mul(decimal.NewFromInt(int64(txn.Quantity))))
		case model.TransactionTypeSell:
			summary.TotalSold += txn.Quantity
		}
	}

	summary.CurrentQuantity = summary.TotalBought - summary.TotalSold

	if summary.TotalBought > 0 {
		summary.AverageBuyPrice = totalBuyCost.Div(decimal.NewFromInt(int64(summary.TotalBought)))
	}

	return summary, nil
}

// DeleteTransaction removes a transaction record without re-deriving the
// position aggregate. The ledger can drift from the log after this call;
// that behavior is intentional and covered by tests.
func (s *LedgerService) DeleteTransaction(ctx context.Context, transactionID int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.DeleteTransaction"

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		slog.Debug("DeleteTransaction finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	err := s.repo.DeleteTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeleteTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *LedgerService) GetPositions(ctx context.Context) ([]model.Position, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPositions"

	slog.Debug("GetPositions start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GetPositions finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	dbPositions, err := s.repo.GetPositions(ctx)
	if err != nil {
		slog.Error("got error from repo.GetPositions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	positions := make([]model.Position, 0, len(dbPositions))
	for _, dbPos := range dbPositions {
		positions = append(positions, dbConverter.ConvertPosition(dbPos))
	}

	return positions, nil
}

func (s *LedgerService) GetPosition(ctx context.Context, symbol string) (model.Position, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GetPosition"

	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	slog.Debug("GetPosition start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetPosition finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	dbPos, err := s.repo.GetPosition(ctx, symbol)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Position{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetPosition", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Position{}, err
	}

	return dbConverter.ConvertPosition(dbPos), nil
}

// GetPositionWithProfit enriches a position with the current market price.
// A quote gateway miss leaves the pricing fields empty instead of failing
// the whole request.
func (s *LedgerService) GetPositionWithProfit(ctx context.Context, symbol string) (model.PositionWithProfit, error) {
	position, err := s.GetPosition(ctx, symbol)
	if err != nil {
		return model.PositionWithProfit{}, err
	}

	return s.enrichWithProfit(ctx, position), nil
}

func (s *LedgerService) GetPositionsWithProfit(ctx context.Context) ([]model.PositionWithProfit, error) {
	positions, err := s.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	enriched := make([]model.PositionWithProfit, 0, len(positions))
	for _, position := range positions {
		enriched = append(enriched, s.enrichWithProfit(ctx, position))
	}

	return enriched, nil
}

func (s *LedgerService) enrichWithProfit(ctx context.Context, position model.Position) model.PositionWithProfit {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.enrichWithProfit"

	quantity := decimal.NewFromInt(int64(position.Quantity))

	result := model.PositionWithProfit{
		Position:  position,
		TotalCost: position.AveragePrice.Mul(quantity),
	}

	quote, err := s.quotes.GetQuote(ctx, position.Symbol)
	if err != nil || quote.CurrentPrice == nil {
		if err != nil {
			slog.Warn("can't get current price for position", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", position.Symbol), slog.String("err", err.Error()))
		}
		return result
	}

	currentValue := quote.CurrentPrice.Mul(quantity)
	profitLoss := currentValue.Sub(result.TotalCost)

	result.CurrentPrice = quote.CurrentPrice
	result.CurrentValue = &currentValue
	result.ProfitLoss = &profitLoss

	if !result.TotalCost.IsZero() {
		percent := profitLoss.Div(result.TotalCost).Mul(decimal.NewFromInt(100)).Round(2)
		result.ProfitLossPercent = &percent
	}

	return result
}

// GenerateReport renders every position (with profit enrichment) plus the
// recent transaction history into a spreadsheet.
func (s *LedgerService) GenerateReport(ctx context.Context) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "LedgerService.GenerateReport"

	slog.Debug("GenerateReport start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("GenerateReport finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	positions, err := s.GetPositionsWithProfit(ctx)
	if err != nil {
		return nil, "", err
	}

	if len(positions) == 0 {
		return nil, "", service.ErrNotFound
	}

	txns, err := s.GetTransactions(ctx, model.TransactionFilter{Limit: defaultTransactionsLimit})
	if err != nil {
		return nil, "", err
	}

	return s.reportGen.Generate(ctx, positions, txns)
}
