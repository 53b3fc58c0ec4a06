package risk

import "spotbot/internal/models"

// OrderSize clips the target quote amount to the free balance. reduced is
// set when the clip actually shrank the order.
func OrderSize(target, free float64) (size float64, reduced bool) {
	if free < target {
		return free, true
	}
	return target, false
}

func StopLossPrice(entry, pct float64) float64 {
	return entry * (1 - pct/100)
}

func TakeProfitPrice(entry, pct float64) float64 {
	return entry * (1 + pct/100)
}

// ShouldClose checks the exit levels of a long spot position against price
func ShouldClose(p models.Position, price float64) (models.TradeStatus, bool) {
	switch {
	case price <= p.StopLossPrice:
		return models.StatusStopLoss, true
	case price >= p.TakeProfitPrice:
		return models.StatusTakeProfit, true
	}
	return "", false
}
