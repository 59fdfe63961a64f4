package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/service"
)

type stubLedger struct {
	txn        model.Transaction
	summary    model.TransactionSummary
	recordErr  error
	summaryErr error
	deleteErr  error
}

func (s *stubLedger) RecordTransaction(_ context.Context, _ string, _ model.TransactionType, _ decimal.Decimal, _ int, _ *time.Time) (model.Transaction, error) {
	if s.recordErr != nil {
		return model.Transaction{}, s.recordErr
	}
	return s.txn, nil
}

func (s *stubLedger) GetTransactions(_ context.Context, _ model.TransactionFilter) ([]model.Transaction, error) {
	return []model.Transaction{s.txn}, nil
}

func (s *stubLedger) GetTransaction(_ context.Context, _ int64) (model.Transaction, error) {
	return s.txn, nil
}

func (s *stubLedger) GetSummary(_ context.Context, _ string) (model.TransactionSummary, error) {
	if s.summaryErr != nil {
		return model.TransactionSummary{}, s.summaryErr
	}
	return s.summary, nil
}

func (s *stubLedger) DeleteTransaction(_ context.Context, _ int64) error {
	return s.deleteErr
}

func (s *stubLedger) GetPositions(_ context.Context) ([]model.Position, error) {
	return nil, nil
}

func (s *stubLedger) GetPosition(_ context.Context, _ string) (model.Position, error) {
	return model.Position{}, nil
}

func (s *stubLedger) GetPositionsWithProfit(_ context.Context) ([]model.PositionWithProfit, error) {
	return nil, nil
}

func (s *stubLedger) GetPositionWithProfit(_ context.Context, _ string) (model.PositionWithProfit, error) {
	return model.PositionWithProfit{}, nil
}

func (s *stubLedger) GenerateReport(_ context.Context) ([]byte, string, error) {
	return []byte("sheet"), ".xlsx", nil
}

type stubMarket struct {
	quoteErr error
}

func (s *stubMarket) GetQuote(_ context.Context, symbol string) (model.Quote, error) {
	if s.quoteErr != nil {
		return model.Quote{}, s.quoteErr
	}
	return model.Quote{Symbol: symbol}, nil
}

func (s *stubMarket) GetHistory(_ context.Context, symbol, period string) (model.StockHistory, error) {
	return model.StockHistory{Symbol: symbol, Period: period}, nil
}

func (s *stubMarket) GetOptionExpiries(_ context.Context, symbol string) (model.OptionExpiryList, error) {
	return model.OptionExpiryList{Symbol: symbol}, nil
}

func (s *stubMarket) GetOptionChain(_ context.Context, symbol, expiry string) (model.OptionChain, error) {
	return model.OptionChain{Symbol: symbol, ExpiryDate: expiry}, nil
}

func (s *stubMarket) GetMaxPain(_ context.Context, symbol, expiry string) (model.MaxPain, error) {
	return model.MaxPain{Symbol: symbol}, nil
}

func (s *stubMarket) GetPutCallRatio(_ context.Context, symbol, expiry string) (model.PutCallRatio, error) {
	return model.PutCallRatio{Symbol: symbol}, nil
}

func (s *stubMarket) GetImpliedVolatility(_ context.Context, symbol, expiry string) (model.ImpliedVolatility, error) {
	return model.ImpliedVolatility{Symbol: symbol}, nil
}

func serve(ledger *stubLedger, market *stubMarket) http.Handler {
	if ledger == nil {
		ledger = &stubLedger{}
	}
	if market == nil {
		market = &stubMarket{}
	}
	return NewRouter(NewController(ledger, market))
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("can't decode error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestCreateTransactionCreated(t *testing.T) {
	ledger := &stubLedger{txn: model.Transaction{ID: 1, Symbol: "AAPL"}}
	handler := serve(ledger, nil)

	rec := doRequest(t, handler, http.MethodPost, "/transaction",
		`{"symbol":"AAPL","transaction_type":"BUY","price":150.5,"quantity":10}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body)
	}

	var txn model.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&txn); err != nil {
		t.Fatalf("can't decode response: %v", err)
	}

	if txn.ID != 1 || txn.Symbol != "AAPL" {
		t.Errorf("response = %+v, want created transaction", txn)
	}
}

func TestCreateTransactionSchemaValidation(t *testing.T) {
	handler := serve(nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"symbol":`},
		{name: "missing symbol", body: `{"transaction_type":"BUY","price":10,"quantity":1}`},
		{name: "bad type", body: `{"symbol":"AAPL","transaction_type":"HOLD","price":10,"quantity":1}`},
		{name: "zero price", body: `{"symbol":"AAPL","transaction_type":"BUY","price":0,"quantity":1}`},
		{name: "negative quantity", body: `{"symbol":"AAPL","transaction_type":"BUY","price":10,"quantity":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, http.MethodPost, "/transaction", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422, body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestCreateTransactionBusinessRuleViolation(t *testing.T) {
	ledger := &stubLedger{recordErr: service.ErrInsufficientPosition}
	handler := serve(ledger, nil)

	rec := doRequest(t, handler, http.MethodPost, "/transaction",
		`{"symbol":"AAPL","transaction_type":"SELL","price":150,"quantity":100}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body)
	}
}

func TestListTransactionsLimitBounds(t *testing.T) {
	handler := serve(nil, nil)

	for _, target := range []string{
		"/transaction?limit=0",
		"/transaction?limit=501",
		"/transaction?limit=abc",
	} {
		rec := doRequest(t, handler, http.MethodGet, target, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", target, rec.Code)
		}
	}

	rec := doRequest(t, handler, http.MethodGet, "/transaction?limit=500", "")
	if rec.Code != http.StatusOK {
		t.Errorf("limit=500: status = %d, want 200", rec.Code)
	}
}

func TestListTransactionsInvalidType(t *testing.T) {
	handler := serve(nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/transaction?transaction_type=HOLD", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestGetTransactionSummaryNotFound(t *testing.T) {
	ledger := &stubLedger{summaryErr: service.ErrNotFound}
	handler := serve(ledger, nil)

	rec := doRequest(t, handler, http.MethodGet, "/transaction/summary/NOPE", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetTransactionNonIntegerID(t *testing.T) {
	handler := serve(nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/transaction/abc", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	handler := serve(nil, nil)

	rec := doRequest(t, handler, http.MethodDelete, "/transaction/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "Transaction deleted successfully") {
		t.Errorf("body = %s, want deletion confirmation", rec.Body)
	}
}

func TestDeleteTransactionNotFound(t *testing.T) {
	ledger := &stubLedger{deleteErr: service.ErrNotFound}
	handler := serve(ledger, nil)

	rec := doRequest(t, handler, http.MethodDelete, "/transaction/7", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetStockNotFound(t *testing.T) {
	market := &stubMarket{quoteErr: service.ErrNotFound}
	handler := serve(nil, market)

	rec := doRequest(t, handler, http.MethodGet, "/stock/NOPE", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	if msg := decodeError(t, rec); msg != "not found" {
		t.Errorf("error = %q, want %q", msg, "not found")
	}
}

func TestOptionEndpointsRejectBadExpiry(t *testing.T) {
	handler := serve(nil, nil)

	for _, target := range []string{
		"/option/AAPL/max-pain?expiry=18-09-2026",
		"/option/AAPL/pcr?expiry=tomorrow",
		"/option/AAPL/iv?expiry=2026/09/18",
		"/option/AAPL/chain?expiry=20260918",
	} {
		rec := doRequest(t, handler, http.MethodGet, target, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: status = %d, want 422", target, rec.Code)
		}
	}
}

func TestOptionMaxPainAcceptsValidExpiry(t *testing.T) {
	handler := serve(nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/option/AAPL/max-pain?expiry=2026-09-18", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body)
	}
}

func TestDownloadPositionsReport(t *testing.T) {
	handler := serve(nil, nil)

	rec := doRequest(t, handler, http.MethodGet, "/position/report", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if got := rec.Header().Get("Content-Type"); got != xlsxContentType {
		t.Errorf("content type = %q, want %q", got, xlsxContentType)
	}

	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, ".xlsx") {
		t.Errorf("content disposition = %q, want an .xlsx filename", got)
	}
}

func TestUpstreamFailureIsGeneric(t *testing.T) {
	market := &stubMarket{quoteErr: context.DeadlineExceeded}
	handler := serve(nil, market)

	rec := doRequest(t, handler, http.MethodGet, "/stock/AAPL", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	if msg := decodeError(t, rec); msg != "internal server error" {
		t.Errorf("error = %q, upstream details must not leak", msg)
	}
}
