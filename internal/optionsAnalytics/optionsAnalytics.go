// Package optionsAnalytics derives sentiment metrics from an options chain
// snapshot: max pain, put/call ratio and at-the-money implied volatility.
package optionsAnalytics

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stocklab/stock-api/internal/model"
)

var ErrEmptyChain = errors.New("option chain has no contracts")

const topStrikesCount = 5

// MaxPain finds the strike with the highest aggregate open interest across
// calls and puts. Ties resolve to the lowest strike.
func MaxPain(chain model.OptionChain) (model.MaxPain, error) {
	if len(chain.Calls) == 0 && len(chain.Puts) == 0 {
		return model.MaxPain{}, ErrEmptyChain
	}

	totals := make(map[string]*model.StrikeOpenInterest)
	for _, contract := range append(append([]model.OptionContract{}, chain.Calls...), chain.Puts...) {
		key := contract.Strike.String()
		entry, ok := totals[key]
		if !ok {
			entry = &model.StrikeOpenInterest{Strike: contract.Strike}
			totals[key] = entry
		}
		if contract.OpenInterest != nil {
			entry.OpenInterest += *contract.OpenInterest
		}
	}

	strikes := make([]model.StrikeOpenInterest, 0, len(totals))
	for _, entry := range totals {
		strikes = append(strikes, *entry)
	}

	sort.Slice(strikes, func(i, j int) bool {
		if strikes[i].OpenInterest != strikes[j].OpenInterest {
			return strikes[i].OpenInterest > strikes[j].OpenInterest
		}
		return strikes[i].Strike.LessThan(strikes[j].Strike)
	})

	topStrikes := strikes
	if len(topStrikes) > topStrikesCount {
		topStrikes = topStrikes[:topStrikesCount]
	}

	maxPainPrice := strikes[0].Strike

	priceDiffPercent := decimal.Zero
	if !chain.CurrentPrice.IsZero() {
		priceDiffPercent = maxPainPrice.Div(chain.CurrentPrice).
			Sub(decimal.NewFromInt(1)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return model.MaxPain{
		Symbol:                 chain.Symbol,
		ExpiryDate:             chain.ExpiryDate,
		CurrentPrice:           chain.CurrentPrice,
		MaxPainPrice:           maxPainPrice,
		PriceDifferencePercent: priceDiffPercent,
		TopStrikes:             topStrikes,
	}, nil
}

// PutCallRatio sums open interest per side. A chain with zero call open
// interest yields a ratio of 0.
func PutCallRatio(chain model.OptionChain) (model.PutCallRatio, error) {
	if len(chain.Calls) == 0 && len(chain.Puts) == 0 {
		return model.PutCallRatio{}, ErrEmptyChain
	}

	var callOI, putOI int64
	for _, contract := range chain.Calls {
		if contract.OpenInterest != nil {
			callOI += *contract.OpenInterest
		}
	}
	for _, contract := range chain.Puts {
		if contract.OpenInterest != nil {
			putOI += *contract.OpenInterest
		}
	}

	var ratio float64
	if callOI > 0 {
		ratio = float64(putOI) / float64(callOI)
	}

	var interpretation string
	switch {
	case ratio > 1.0:
		interpretation = "Bearish"
	case ratio < 0.7:
		interpretation = "Bullish"
	default:
		interpretation = "Neutral"
	}

	return model.PutCallRatio{
		Symbol:                chain.Symbol,
		ExpiryDate:            chain.ExpiryDate,
		TotalCallOpenInterest: callOI,
		TotalPutOpenInterest:  putOI,
		Ratio:                 math.Round(ratio*100) / 100,
		Interpretation:        interpretation,
	}, nil
}

// ATMImpliedVolatility averages the implied volatility of the call and put
// whose strikes sit closest to the current price. On equal distance the
// contract earlier in natural strike order wins.
func ATMImpliedVolatility(chain model.OptionChain) (model.ImpliedVolatility, error) {
	if len(chain.Calls) == 0 || len(chain.Puts) == 0 {
		return model.ImpliedVolatility{}, ErrEmptyChain
	}

	atmCall := closestToPrice(chain.Calls, chain.CurrentPrice)
	atmPut := closestToPrice(chain.Puts, chain.CurrentPrice)

	callIV := ivOrZero(atmCall)
	putIV := ivOrZero(atmPut)
	avgIV := (callIV + putIV) / 2

	var interpretation string
	switch {
	case avgIV > 0.30:
		interpretation = "High volatility expected"
	case avgIV < 0.15:
		interpretation = "Low volatility expected"
	default:
		interpretation = "Moderate volatility expected"
	}

	return model.ImpliedVolatility{
		Symbol:         chain.Symbol,
		ExpiryDate:     chain.ExpiryDate,
		CurrentPrice:   chain.CurrentPrice,
		ATMStrike:      atmCall.Strike,
		ATMCallIV:      round4(callIV),
		ATMPutIV:       round4(putIV),
		AverageIV:      round4(avgIV),
		Interpretation: interpretation,
	}, nil
}

func closestToPrice(contracts []model.OptionContract, price decimal.Decimal) model.OptionContract {
	best := contracts[0]
	bestDiff := best.Strike.Sub(price).Abs()

	for _, contract := range contracts[1:] {
		diff := contract.Strike.Sub(price).Abs()
		if diff.LessThan(bestDiff) {
			best = contract
			bestDiff = diff
		}
	}

	return best
}

func ivOrZero(contract model.OptionContract) float64 {
	if contract.ImpliedVolatility == nil {
		return 0
	}
	return *contract.ImpliedVolatility
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
