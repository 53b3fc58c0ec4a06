package risk

import (
	"fmt"

	"spotbot/config"
	"spotbot/internal/models"
)

// Opportunity is a scored symbol the engine may act on
type Opportunity struct {
	Symbol     string
	Price      float64
	USDTVolume float64
	Score      float64
}

// Validator gates opportunities before execution. It has no side effects.
type Validator struct {
	minVolume float64
	excluded  map[string]struct{}
}

func NewValidator(cfg config.EngineConfig) *Validator {
	return &Validator{
		minVolume: cfg.MinVolumeUSDT,
		excluded:  cfg.ExcludedSet(),
	}
}

// IsEligible reports whether op may be traded given the open positions
func (v *Validator) IsEligible(op Opportunity, active map[string]models.Position) bool {
	ok, _ := v.Check(op, active)
	return ok
}

// Check is IsEligible with the rejection reason
func (v *Validator) Check(op Opportunity, active map[string]models.Position) (bool, string) {
	if _, open := active[op.Symbol]; open {
		return false, "position already open"
	}
	if op.USDTVolume < v.minVolume {
		return false, fmt.Sprintf("low volume (%.0f < %.0f USDT)", op.USDTVolume, v.minVolume)
	}
	if _, excluded := v.excluded[config.NormalizeSymbol(op.Symbol)]; excluded {
		return false, "excluded symbol"
	}
	return true, ""
}

// HasCapacity reports whether another position fits under the limit
func HasCapacity(open, maxPositions int) bool {
	return open < maxPositions
}
