package capacity

import (
	"context"
	"errors"
	"fmt"

	"rackcore/store"
)

// Validate checks a rack's current power draw and occupied space against its
// declared capacity. An unknown rack is reported as an invalid result, not an
// error; only store failures return an error.
func (p *Planner) Validate(ctx context.Context, rackID int64) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rack, err := p.getRack(rackID)
	if errors.Is(err, ErrRackNotFound) {
		return &ValidationResult{
			RackID: rackID,
			Valid:  false,
			Issues: []Violation{{Kind: RackMissing, Message: "Rack not found"}},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	layout, err := p.layoutFor(rack)
	if err != nil {
		return nil, err
	}
	return validateLayout(rack, layout), nil
}

func validateLayout(rack *store.Rack, layout *RackLayout) *ValidationResult {
	res := &ValidationResult{RackID: rack.ID, Issues: []Violation{}}

	// nil capacity means none declared: no power limit.
	if limit := rack.TotalPowerCapacityW; limit != nil && layout.TotalPowerW > *limit {
		over := layout.TotalPowerW - *limit
		res.Issues = append(res.Issues, Violation{
			Kind:    PowerExceeded,
			Amount:  over,
			Message: fmt.Sprintf("Power consumption (%gW) exceeds capacity (%gW) by %gW", layout.TotalPowerW, *limit, over),
		})
	}
	if layout.AvailableU < 0 {
		over := -layout.AvailableU
		res.Issues = append(res.Issues, Violation{
			Kind:    SpaceExceeded,
			Amount:  float64(over),
			Message: fmt.Sprintf("Space used (%dU) exceeds rack height (%dU) by %dU", layout.UsedU, rack.SizeU, over),
		})
	}
	res.Valid = len(res.Issues) == 0
	return res
}
