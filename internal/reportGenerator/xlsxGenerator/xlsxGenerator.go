package xlsxGenerator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/internal/model"
	"github.com/stocklab/stock-api/utils"
	"github.com/xuri/excelize/v2"
)

const (
	positionsSheet    = "Positions"
	transactionsSheet = "Transactions"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, positions []model.PositionWithProfit, txns []model.Transaction) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	if len(positions) == 0 {
		return nil, "", errors.New("empty positions")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillPositionsSheet(f, positions); err != nil {
		return nil, "", err
	}

	if err := g.fillTransactionsSheet(f, txns); err != nil {
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XLSXGenerator) fillPositionsSheet(f *excelize.File, positions []model.PositionWithProfit) error {
	if _, err := f.NewSheet(positionsSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	headers := []string{"Symbol", "Name", "Avg price", "Quantity", "Total cost", "Current price", "Current value", "P/L", "P/L %"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(positionsSheet, cell, header)
		f.SetCellStyle(positionsSheet, cell, cell, headerStyle)
	}

	for i, position := range positions {
		row := i + 2

		name := ""
		if position.Name != nil {
			name = *position.Name
		}

		values := []any{
			position.Symbol,
			name,
			decimalToFloat(position.AveragePrice),
			position.Quantity,
			decimalToFloat(position.TotalCost),
			decimalPtrToAny(position.CurrentPrice),
			decimalPtrToAny(position.CurrentValue),
			decimalPtrToAny(position.ProfitLoss),
			decimalPtrToAny(position.ProfitLossPercent),
		}

		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(positionsSheet, cell, value)
		}
	}

	return nil
}

func (g *XLSXGenerator) fillTransactionsSheet(f *excelize.File, txns []model.Transaction) error {
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	headers := []string{"ID", "Symbol", "Type", "Price", "Quantity", "Total", "Date"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(transactionsSheet, cell, header)
		f.SetCellStyle(transactionsSheet, cell, cell, headerStyle)
	}

	for i, txn := range txns {
		row := i + 2
		total := txn.Price.Mul(decimal.NewFromInt(int64(txn.Quantity)))

		values := []any{
			txn.ID,
			txn.Symbol,
			string(txn.TransactionType),
			decimalToFloat(txn.Price),
			txn.Quantity,
			decimalToFloat(total),
			txn.TransactionDate.Format("2006-01-02 15:04:05"),
		}

		for j, value := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(transactionsSheet, cell, value)
		}
	}

	return nil
}

func decimalToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decimalPtrToAny(d *decimal.Decimal) any {
	if d == nil {
		return ""
	}
	return decimalToFloat(*d)
}
