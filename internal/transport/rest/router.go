package rest

import (
	"net/http"

	"github.com/stocklab/stock-api/internal/transport/rest/middleware"
)

func NewRouter(ctrl *Controller) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", ctrl.Root)

	mux.HandleFunc("GET /stock/{symbol}", ctrl.GetStock)
	mux.HandleFunc("GET /stock/{symbol}/history", ctrl.GetStockHistory)

	mux.HandleFunc("POST /transaction", ctrl.CreateTransaction)
	mux.HandleFunc("GET /transaction", ctrl.ListTransactions)
	mux.HandleFunc("GET /transaction/summary/{symbol}", ctrl.GetTransactionSummary)
	mux.HandleFunc("GET /transaction/{id}", ctrl.GetTransaction)
	mux.HandleFunc("DELETE /transaction/{id}", ctrl.DeleteTransaction)

	mux.HandleFunc("GET /option/{symbol}/expiry", ctrl.GetOptionExpiries)
	mux.HandleFunc("GET /option/{symbol}/max-pain", ctrl.GetMaxPain)
	mux.HandleFunc("GET /option/{symbol}/pcr", ctrl.GetPutCallRatio)
	mux.HandleFunc("GET /option/{symbol}/iv", ctrl.GetImpliedVolatility)
	mux.HandleFunc("GET /option/{symbol}/chain", ctrl.GetOptionChain)

	mux.HandleFunc("GET /position", ctrl.ListPositions)
	mux.HandleFunc("GET /position/profit", ctrl.ListPositionsWithProfit)
	mux.HandleFunc("GET /position/report", ctrl.DownloadPositionsReport)
	mux.HandleFunc("GET /position/{symbol}", ctrl.GetPosition)
	mux.HandleFunc("GET /position/{symbol}/profit", ctrl.GetPositionWithProfit)

	return middleware.Logger(mux)
}
