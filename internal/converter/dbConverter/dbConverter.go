package dbConverter

import (
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/internal/model/dbModel"
)

func ConvertTransaction(dbTxn dbModel.Transaction) model.Transaction {
	return model.Transaction{
		ID:              dbTxn.TransactionID,
		Symbol:          dbTxn.Symbol,
		TransactionType: model.TransactionType(dbTxn.TransactionType),
		Price:           dbTxn.Price,
		Quantity:        dbTxn.Quantity,
		TransactionDate: dbTxn.TransactionDate,
		CreatedAt:       dbTxn.DtCreate,
	}
}

func ConvertTransactions(dbTxns []dbModel.Transaction) []model.Transaction {
	txns := make([]model.Transaction, 0, len(dbTxns))
	for _, dbTxn := range dbTxns {
		txns = append(txns, ConvertTransaction(dbTxn))
	}
	return txns
}

func ConvertPosition(dbPos dbModel.Position) model.Position {
	pos := model.Position{
		Symbol:       dbPos.Symbol,
		AveragePrice: dbPos.AvgPrice,
		Quantity:     dbPos.Quantity,
		CreatedAt:    dbPos.DtCreate,
		UpdatedAt:    dbPos.DtUpdate,
	}
	if dbPos.Name.Valid {
		pos.Name = &dbPos.Name.String
	}
	return pos
}
