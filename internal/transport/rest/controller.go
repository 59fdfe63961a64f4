package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/service"
	"github.com/stocklab/stock-api/utils"
)

const (
	maxTransactionsLimit = 500
	expiryLayout         = "2006-01-02"
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type LedgerService interface {
	RecordTransaction(ctx context.Context, symbol string, txType model.TransactionType, price decimal.Decimal, quantity int, txDate *time.Time) (model.Transaction, error)
	GetTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, transactionID int64) (model.Transaction, error)
	GetSummary(ctx context.Context, symbol string) (model.TransactionSummary, error)
	DeleteTransaction(ctx context.Context, transactionID int64) error
	GetPositions(ctx context.Context) ([]model.Position, error)
	GetPosition(ctx context.Context, symbol string) (model.Position, error)
	GetPositionsWithProfit(ctx context.Context) ([]model.PositionWithProfit, error)
	GetPositionWithProfit(ctx context.Context, symbol string) (model.PositionWithProfit, error)
	GenerateReport(ctx context.Context) (fileBytes []byte, fileExtension string, err error)
}

type MarketService interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
	GetHistory(ctx context.Context, symbol, period string) (model.StockHistory, error)
	GetOptionExpiries(ctx context.Context, symbol string) (model.OptionExpiryList, error)
	GetOptionChain(ctx context.Context, symbol, expiry string) (model.OptionChain, error)
	GetMaxPain(ctx context.Context, symbol, expiry string) (model.MaxPain, error)
	GetPutCallRatio(ctx context.Context, symbol, expiry string) (model.PutCallRatio, error)
	GetImpliedVolatility(ctx context.Context, symbol, expiry string) (model.ImpliedVolatility, error)
}

type Controller struct {
	ledger LedgerService
	market MarketService
}

func NewController(ledger LedgerService, market MarketService) *Controller {
	return &Controller{
		ledger: ledger,
		market: market,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("can't encode response", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses:
// not found 404, schema validation 422, business rule violation 400,
// anything else (upstream included) a generic 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrNoPosition), errors.Is(err, service.ErrInsufficientPosition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		rqID := utils.GetRequestIDFromCtx(ctx)
		slog.Error("request failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (ctrl *Controller) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Stock API - market data, options analytics and portfolio ledger",
		"endpoints": map[string]string{
			"/stock/{symbol}":               "current stock information",
			"/stock/{symbol}/history":       "historical stock data",
			"/transaction":                  "record and list buy/sell transactions",
			"/transaction/summary/{symbol}": "per-symbol transaction summary",
			"/option/{symbol}/expiry":       "available option expiry dates",
			"/position":                     "current holdings",
			"/position/profit":              "holdings with profit/loss",
		},
	})
}

func (ctrl *Controller) GetStock(w http.ResponseWriter, r *http.Request) {
	quote, err := ctrl.market.GetQuote(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

func (ctrl *Controller) GetStockHistory(w http.ResponseWriter, r *http.Request) {
	history, err := ctrl.market.GetHistory(r.Context(), r.PathValue("symbol"), r.URL.Query().Get("period"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

type createTransactionRequest struct {
	Symbol          string          `json:"symbol"`
	TransactionType string          `json:"transaction_type"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	TransactionDate *time.Time      `json:"transaction_date"`
}

func (req createTransactionRequest) validate() error {
	if req.Symbol == "" {
		return errors.New("symbol is required")
	}
	if !model.TransactionType(req.TransactionType).Valid() {
		return fmt.Errorf("transaction_type must be %s or %s", model.TransactionTypeBuy, model.TransactionTypeSell)
	}
	if !req.Price.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	if req.Quantity <= 0 {
		return errors.New("quantity must be greater than 0")
	}
	return nil
}

func (ctrl *Controller) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid payload: "+err.Error())
		return
	}

	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	txn, err := ctrl.ledger.RecordTransaction(
		r.Context(),
		req.Symbol,
		model.TransactionType(req.TransactionType),
		req.Price,
		req.Quantity,
		req.TransactionDate,
	)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

func (ctrl *Controller) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := model.TransactionFilter{Symbol: query.Get("symbol")}

	if rawType := query.Get("transaction_type"); rawType != "" {
		txType := model.TransactionType(rawType)
		if !txType.Valid() {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("transaction_type must be %s or %s", model.TransactionTypeBuy, model.TransactionTypeSell))
			return
		}
		filter.TransactionType = txType
	}

	if rawLimit := query.Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 || limit > maxTransactionsLimit {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer between 1 and %d", maxTransactionsLimit))
			return
		}
		filter.Limit = limit
	}

	txns, err := ctrl.ledger.GetTransactions(r.Context(), filter)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, txns)
}

func (ctrl *Controller) GetTransactionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ctrl.ledger.GetSummary(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (ctrl *Controller) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "transaction id must be an integer")
		return
	}

	txn, err := ctrl.ledger.GetTransaction(r.Context(), transactionID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

func (ctrl *Controller) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "transaction id must be an integer")
		return
	}

	if err := ctrl.ledger.DeleteTransaction(r.Context(), transactionID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Transaction deleted successfully"})
}

// expiryParam validates the optional expiry query parameter. An empty value
// selects the nearest expiry downstream.
func expiryParam(r *http.Request) (string, error) {
	expiry := r.URL.Query().Get("expiry")
	if expiry == "" {
		return "", nil
	}

	if _, err := time.Parse(expiryLayout, expiry); err != nil {
		return "", fmt.Errorf("expiry must be formatted as YYYY-MM-DD")
	}

	return expiry, nil
}

func (ctrl *Controller) GetOptionExpiries(w http.ResponseWriter, r *http.Request) {
	expiries, err := ctrl.market.GetOptionExpiries(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, expiries)
}

func (ctrl *Controller) GetMaxPain(w http.ResponseWriter, r *http.Request) {
	expiry, err := expiryParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	maxPain, err := ctrl.market.GetMaxPain(r.Context(), r.PathValue("symbol"), expiry)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, maxPain)
}

func (ctrl *Controller) GetPutCallRatio(w http.ResponseWriter, r *http.Request) {
	expiry, err := expiryParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	pcr, err := ctrl.market.GetPutCallRatio(r.Context(), r.PathValue("symbol"), expiry)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, pcr)
}

func (ctrl *Controller) GetImpliedVolatility(w http.ResponseWriter, r *http.Request) {
	expiry, err := expiryParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	iv, err := ctrl.market.GetImpliedVolatility(r.Context(), r.PathValue("symbol"), expiry)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, iv)
}

func (ctrl *Controller) GetOptionChain(w http.ResponseWriter, r *http.Request) {
	expiry, err := expiryParam(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	chain, err := ctrl.market.GetOptionChain(r.Context(), r.PathValue("symbol"), expiry)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, chain)
}

func (ctrl *Controller) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := ctrl.ledger.GetPositions(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, positions)
}

func (ctrl *Controller) GetPosition(w http.ResponseWriter, r *http.Request) {
	position, err := ctrl.ledger.GetPosition(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}

func (ctrl *Controller) ListPositionsWithProfit(w http.ResponseWriter, r *http.Request) {
	positions, err := ctrl.ledger.GetPositionsWithProfit(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, positions)
}

func (ctrl *Controller) GetPositionWithProfit(w http.ResponseWriter, r *http.Request) {
	position, err := ctrl.ledger.GetPositionWithProfit(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}

func (ctrl *Controller) DownloadPositionsReport(w http.ResponseWriter, r *http.Request) {
	fileBytes, fileExtension, err := ctrl.ledger.GenerateReport(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio_report`+fileExtension+`"`)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(fileBytes); err != nil {
		slog.Error("can't write report response", slog.String("err", err.Error()))
	}
}
