package ledgerService

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/data/repository"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/model/dbModel"
	"github.com/stocklab/stock-api/internal/service"
)

type fakeRepo struct {
	positions map[string]dbModel.Position
	txns      []dbModel.Transaction
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{positions: make(map[string]dbModel.Position)}
}

func (r *fakeRepo) GetPosition(_ context.Context, symbol string) (dbModel.Position, error) {
	position, ok := r.positions[symbol]
	if !ok {
		return dbModel.Position{}, repository.ErrNotFound
	}
	return position, nil
}

func (r *fakeRepo) GetPositions(_ context.Context) ([]dbModel.Position, error) {
	positions := make([]dbModel.Position, 0, len(r.positions))
	for _, position := range r.positions {
		positions = append(positions, position)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return positions, nil
}

func (r *fakeRepo) SaveTransaction(_ context.Context, txn dbModel.Transaction, position dbModel.Position) (int64, error) {
	r.nextID++
	txn.TransactionID = r.nextID
	r.txns = append(r.txns, txn)
	r.positions[position.Symbol] = position
	return r.nextID, nil
}

func (r *fakeRepo) GetTransactions(_ context.Context, symbol, transactionType string, limit int) ([]dbModel.Transaction, error) {
	txns := make([]dbModel.Transaction, 0, limit)
	for i := len(r.txns) - 1; i >= 0 && len(txns) < limit; i-- {
		txn := r.txns[i]
		if symbol != "" && txn.Symbol != symbol {
			continue
		}
		if transactionType != "" && txn.TransactionType != transactionType {
			continue
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (r *fakeRepo) GetTransactionsBySymbol(_ context.Context, symbol string) ([]dbModel.Transaction, error) {
	var txns []dbModel.Transaction
	for _, txn := range r.txns {
		if txn.Symbol == symbol {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

func (r *fakeRepo) GetTransaction(_ context.Context, transactionID int64) (dbModel.Transaction, error) {
	for _, txn := range r.txns {
		if txn.TransactionID == transactionID {
			return txn, nil
		}
	}
	return dbModel.Transaction{}, repository.ErrNotFound
}

func (r *fakeRepo) DeleteTransaction(_ context.Context, transactionID int64) error {
	for i, txn := range r.txns {
		if txn.TransactionID == transactionID {
			r.txns = append(r.txns[:i], r.txns[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeQuotes struct {
	quotes map[string]model.Quote
	err    error
}

func (q *fakeQuotes) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	if q.err != nil {
		return model.Quote{}, q.err
	}
	quote, ok := q.quotes[symbol]
	if !ok {
		return model.Quote{}, service.ErrNotFound
	}
	return quote, nil
}

type fakeReportGen struct{}

func (fakeReportGen) Generate(_ context.Context, _ []model.PositionWithProfit, _ []model.Transaction) ([]byte, string, error) {
	return []byte("report"), ".xlsx", nil
}

func newTestService(quotes *fakeQuotes) (*LedgerService, *fakeRepo) {
	repo := newFakeRepo()
	if quotes == nil {
		quotes = &fakeQuotes{err: errors.New("gateway unavailable")}
	}
	return New(repo, quotes, fakeReportGen{}), repo
}

func mustBuy(t *testing.T, s *LedgerService, symbol string, price float64, quantity int) model.Transaction {
	t.Helper()
	txn, err := s.RecordTransaction(context.Background(), symbol, model.TransactionTypeBuy, decimal.NewFromFloat(price), quantity, nil)
	if err != nil {
		t.Fatalf("buy %d@%v %s failed: %v", quantity, price, symbol, err)
	}
	return txn
}

func TestRecordTransactionBuySequenceAveragesCost(t *testing.T) {
	s, repo := newTestService(nil)

	mustBuy(t, s, "X", 100, 10)
	mustBuy(t, s, "X", 150, 5)

	position := repo.positions["X"]
	if position.Quantity != 15 {
		t.Errorf("quantity = %d, want 15", position.Quantity)
	}

	// (100*10 + 150*5) / 15 = 116.67
	if !position.AvgPrice.Round(2).Equal(decimal.NewFromFloat(116.67)) {
		t.Errorf("average price = %s, want 116.67", position.AvgPrice)
	}

	if len(repo.txns) != 2 {
		t.Errorf("transaction count = %d, want 2", len(repo.txns))
	}
}

func TestRecordTransactionSellKeepsAverageCost(t *testing.T) {
	s, repo := newTestService(nil)

	mustBuy(t, s, "AAPL", 100, 10)

	_, err := s.RecordTransaction(context.Background(), "AAPL", model.TransactionTypeSell, decimal.NewFromFloat(110), 5, nil)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	position := repo.positions["AAPL"]
	if position.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", position.Quantity)
	}

	if !position.AvgPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("average price = %s, want 100 (unchanged by sell)", position.AvgPrice)
	}
}

func TestRecordTransactionNormalizesSymbol(t *testing.T) {
	s, repo := newTestService(nil)

	txn := mustBuy(t, s, " aapl ", 100, 1)

	if txn.Symbol != "AAPL" {
		t.Errorf("transaction symbol = %q, want AAPL", txn.Symbol)
	}

	if _, ok := repo.positions["AAPL"]; !ok {
		t.Error("position not stored under normalized symbol")
	}
}

func TestRecordTransactionSellWithoutPosition(t *testing.T) {
	s, repo := newTestService(nil)

	_, err := s.RecordTransaction(context.Background(), "TSLA", model.TransactionTypeSell, decimal.NewFromFloat(200), 5, nil)
	if !errors.Is(err, service.ErrNoPosition) {
		t.Fatalf("error = %v, want ErrNoPosition", err)
	}

	if !strings.Contains(err.Error(), "no position found") {
		t.Errorf("error message %q should mention the missing position", err)
	}

	if len(repo.txns) != 0 {
		t.Error("failed sell must not append a transaction")
	}
}

func TestRecordTransactionSellMoreThanHeld(t *testing.T) {
	s, repo := newTestService(nil)

	mustBuy(t, s, "AAPL", 100, 10)

	_, err := s.RecordTransaction(context.Background(), "AAPL", model.TransactionTypeSell, decimal.NewFromFloat(110), 15, nil)
	if !errors.Is(err, service.ErrInsufficientPosition) {
		t.Fatalf("error = %v, want ErrInsufficientPosition", err)
	}

	if !strings.Contains(err.Error(), "only 10 shares available") {
		t.Errorf("error message %q should name the available quantity", err)
	}

	if position := repo.positions["AAPL"]; position.Quantity != 10 {
		t.Errorf("quantity = %d, failed sell must not mutate the position", position.Quantity)
	}

	if len(repo.txns) != 1 {
		t.Error("failed sell must not append a transaction")
	}
}

func TestRecordTransactionValidation(t *testing.T) {
	s, _ := newTestService(nil)

	tests := []struct {
		name     string
		symbol   string
		txType   model.TransactionType
		price    decimal.Decimal
		quantity int
	}{
		{name: "unknown type", symbol: "AAPL", txType: "HOLD", price: decimal.NewFromInt(10), quantity: 1},
		{name: "zero price", symbol: "AAPL", txType: model.TransactionTypeBuy, price: decimal.Zero, quantity: 1},
		{name: "negative price", symbol: "AAPL", txType: model.TransactionTypeBuy, price: decimal.NewFromInt(-10), quantity: 1},
		{name: "zero quantity", symbol: "AAPL", txType: model.TransactionTypeBuy, price: decimal.NewFromInt(10), quantity: 0},
		{name: "empty symbol", symbol: "  ", txType: model.TransactionTypeBuy, price: decimal.NewFromInt(10), quantity: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.RecordTransaction(context.Background(), tt.symbol, tt.txType, tt.price, tt.quantity, nil)
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRecordTransactionFetchesDisplayNameOnce(t *testing.T) {
	name := "Apple Inc."
	quotes := &fakeQuotes{quotes: map[string]model.Quote{"AAPL": {Symbol: "AAPL", Name: name}}}
	s, repo := newTestService(quotes)

	mustBuy(t, s, "AAPL", 100, 10)

	position := repo.positions["AAPL"]
	if !position.Name.Valid || position.Name.String != name {
		t.Errorf("position name = %+v, want %q", position.Name, name)
	}
}

func TestRecordTransactionToleratesGatewayFailure(t *testing.T) {
	s, repo := newTestService(&fakeQuotes{err: errors.New("gateway down")})

	mustBuy(t, s, "AAPL", 100, 10)

	position, ok := repo.positions["AAPL"]
	if !ok {
		t.Fatal("position should be created despite gateway failure")
	}

	if position.Name.Valid {
		t.Errorf("position name = %+v, want null", position.Name)
	}
}

func TestGetSummary(t *testing.T) {
	s, _ := newTestService(nil)

	mustBuy(t, s, "AAPL", 100, 10)
	mustBuy(t, s, "AAPL", 150, 5)

	_, err := s.RecordTransaction(context.Background(), "AAPL", model.TransactionTypeSell, decimal.NewFromFloat(120), 3, nil)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	summary, err := s.GetSummary(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}

	if summary.TotalBought != 15 || summary.TotalSold != 3 || summary.CurrentQuantity != 12 {
		t.Errorf("summary quantities = %+v, want bought 15, sold 3, current 12", summary)
	}

	if !summary.AverageBuyPrice.Round(2).Equal(decimal.NewFromFloat(116.67)) {
		t.Errorf("average buy price = %s, want 116.67", summary.AverageBuyPrice)
	}

	if summary.TransactionCount != 3 {
		t.Errorf("transaction count = %d, want 3", summary.TransactionCount)
	}

	// pure read: repeating the call yields the same result
	again, err := s.GetSummary(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("repeated GetSummary failed: %v", err)
	}

	if again.CurrentQuantity != summary.CurrentQuantity || !again.AverageBuyPrice.Equal(summary.AverageBuyPrice) {
		t.Errorf("repeated summary = %+v, want %+v", again, summary)
	}
}

func TestGetSummaryUnknownSymbol(t *testing.T) {
	s, _ := newTestService(nil)

	_, err := s.GetSummary(context.Background(), "NOPE")
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransactionDoesNotRederivePosition(t *testing.T) {
	s, repo := newTestService(nil)

	txn := mustBuy(t, s, "AAPL", 100, 10)

	if err := s.DeleteTransaction(context.Background(), txn.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// the log is empty now but the aggregate keeps its state: deleting a
	// transaction intentionally never recomputes the position
	position, ok := repo.positions["AAPL"]
	if !ok || position.Quantity != 10 {
		t.Errorf("position after delete = %+v, want untouched quantity 10", position)
	}

	if _, err := s.GetSummary(context.Background(), "AAPL"); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("summary error = %v, want ErrNotFound once the log is empty", err)
	}
}

func TestDeleteTransactionUnknownID(t *testing.T) {
	s, _ := newTestService(nil)

	if err := s.DeleteTransaction(context.Background(), 42); !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetPositionWithProfit(t *testing.T) {
	price := decimal.NewFromInt(110)
	quotes := &fakeQuotes{quotes: map[string]model.Quote{"AAPL": {Symbol: "AAPL", CurrentPrice: &price}}}
	s, _ := newTestService(quotes)

	mustBuy(t, s, "AAPL", 100, 10)

	position, err := s.GetPositionWithProfit(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetPositionWithProfit failed: %v", err)
	}

	if !position.TotalCost.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total cost = %s, want 1000", position.TotalCost)
	}

	if position.CurrentValue == nil || !position.CurrentValue.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("current value = %v, want 1100", position.CurrentValue)
	}

	if position.ProfitLoss == nil || !position.ProfitLoss.Equal(decimal.NewFromInt(100)) {
		t.Errorf("profit/loss = %v, want 100", position.ProfitLoss)
	}

	if position.ProfitLossPercent == nil || !position.ProfitLossPercent.Equal(decimal.NewFromInt(10)) {
		t.Errorf("profit/loss percent = %v, want 10", position.ProfitLossPercent)
	}
}

func TestGetPositionWithProfitPartialOnGatewayFailure(t *testing.T) {
	s, _ := newTestService(&fakeQuotes{err: errors.New("gateway down")})

	mustBuy(t, s, "AAPL", 100, 10)

	position, err := s.GetPositionWithProfit(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("gateway failure should yield a partial result, got error: %v", err)
	}

	if !position.TotalCost.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("total cost = %s, want 1000", position.TotalCost)
	}

	if position.CurrentPrice != nil || position.CurrentValue != nil || position.ProfitLoss != nil {
		t.Error("pricing fields must stay empty when the gateway is unavailable")
	}
}

func TestGetPositionUnknownSymbol(t *testing.T) {
	s, _ := newTestService(nil)

	_, err := s.GetPosition(context.Background(), "NOPE")
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateReport(t *testing.T) {
	s, _ := newTestService(nil)

	mustBuy(t, s, "AAPL", 100, 10)

	fileBytes, ext, err := s.GenerateReport(context.Background())
	if err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	if len(fileBytes) == 0 || ext != ".xlsx" {
		t.Errorf("report = (%d bytes, %q), want content with .xlsx extension", len(fileBytes), ext)
	}
}

func TestGenerateReportWithoutPositions(t *testing.T) {
	s, _ := newTestService(nil)

	_, _, err := s.GenerateReport(context.Background())
	if !errors.Is(err, service.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
