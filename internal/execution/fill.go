package execution

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

var hundred = decimal.NewFromInt(100)

// NewTradeID returns T<yyyymmddhhmmss><6 hex>.
func NewTradeID(at time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("T%s%s", at.UTC().Format("20060102150405"), hex[:6])
}

// Quantity is floor(available_cash × pct / price); zero when price is not positive.
func Quantity(availableCash, pct, price decimal.Decimal) int64 {
	if !price.IsPositive() || !pct.IsPositive() || !availableCash.IsPositive() {
		return 0
	}
	return availableCash.Mul(pct).Div(price).Floor().IntPart()
}

// SellQuantity sizes a sale as floor(total_asset × pct / price), capped at the held
// quantity. A non-positive pct sells the whole holding.
func SellQuantity(held int64, totalAsset, pct, price decimal.Decimal) int64 {
	if held <= 0 || !price.IsPositive() {
		return 0
	}
	if !pct.IsPositive() {
		return held
	}
	qty := totalAsset.Mul(pct).Div(price).Floor().IntPart()
	if qty > held {
		return held
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// Commission is notional × rate.
func Commission(price decimal.Decimal, qty int64, rate decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty)).Mul(rate)
}

// applyBuy opens pos (when nil) or adds to it, re-averaging cost over the new quantity.
func applyBuy(pos *models.Position, trade *models.Trade, at time.Time) *models.Position {
	price := *trade.FilledPrice
	qty := trade.FilledQuantity
	if pos == nil {
		id := trade.ID
		mv := price.Mul(decimal.NewFromInt(qty))
		return &models.Position{
			Symbol:            trade.Symbol,
			AccountType:       trade.AccountType,
			AccountName:       trade.AccountName,
			Quantity:          qty,
			AvailableQuantity: qty,
			AvgCost:           trade.TotalAmount.Div(decimal.NewFromInt(qty)),
			TotalCost:         trade.TotalAmount,
			CurrentPrice:      &price,
			MarketValue:       &mv,
			StopLoss:          trade.StopLoss,
			TakeProfit:        trade.TakeProfit,
			StrategyID:        trade.StrategyID,
			OpenTradeID:       &id,
			OpenedAt:          at,
		}
	}
	total := pos.Quantity + qty
	cost := pos.TotalCost.Add(trade.TotalAmount)
	pos.Quantity = total
	pos.AvailableQuantity = total
	pos.TotalCost = cost
	pos.AvgCost = cost.Div(decimal.NewFromInt(total))
	return pos
}

// applySell reduces pos by the trade and returns the realized PnL net of commission.
// The position closes when nothing is left.
func applySell(pos *models.Position, trade *models.Trade, at time.Time) decimal.Decimal {
	price := *trade.FilledPrice
	qty := decimal.NewFromInt(trade.FilledQuantity)
	realized := price.Sub(pos.AvgCost).Mul(qty).Sub(trade.Commission)

	pos.Quantity -= trade.FilledQuantity
	pos.AvailableQuantity = pos.Quantity
	pos.TotalCost = pos.AvgCost.Mul(decimal.NewFromInt(pos.Quantity))
	pos.RealizedPnL = pos.RealizedPnL.Add(realized)
	pos.CurrentPrice = &price
	if pos.Quantity <= 0 {
		zero := decimal.Zero
		pos.Quantity = 0
		pos.AvailableQuantity = 0
		pos.TotalCost = decimal.Zero
		pos.IsClosed = true
		pos.ClosedAt = &at
		pos.MarketValue = &zero
		pos.UnrealizedPnL = &zero
		pos.UnrealizedPnLPct = &zero
	} else {
		revalue(pos, price)
	}
	return realized
}

// revalue marks pos to price. Quantity and cost are left alone.
func revalue(pos *models.Position, price decimal.Decimal) {
	mv := price.Mul(decimal.NewFromInt(pos.Quantity))
	pnl := mv.Sub(pos.TotalCost)
	pct := decimal.Zero
	if pos.TotalCost.IsPositive() {
		pct = pnl.Div(pos.TotalCost).Mul(hundred)
	}
	pos.CurrentPrice = &price
	pos.MarketValue = &mv
	pos.UnrealizedPnL = &pnl
	pos.UnrealizedPnLPct = &pct
}
