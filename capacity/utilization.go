package capacity

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"rackcore/store"
)

// Utilization reports power, space and cooling usage of one rack in percent.
func (p *Planner) Utilization(ctx context.Context, rackID int64) (*Utilization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rack, err := p.getRack(rackID)
	if err != nil {
		return nil, err
	}
	layout, err := p.layoutFor(rack)
	if err != nil {
		return nil, err
	}
	return utilizationOf(rack, layout), nil
}

// FleetUtilization computes Utilization for every rack with bounded fan-out.
// Results keep the store's rack order.
func (p *Planner) FleetUtilization(ctx context.Context) ([]Utilization, error) {
	racks, err := p.racks.ListRacks()
	if err != nil {
		return nil, fmt.Errorf("list racks: %w", err)
	}
	out := make([]Utilization, len(racks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.fleetConcurrency)
	for i, rack := range racks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			layout, err := p.layoutFor(rack)
			if err != nil {
				return err
			}
			out[i] = *utilizationOf(rack, layout)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func utilizationOf(rack *store.Rack, layout *RackLayout) *Utilization {
	return &Utilization{
		RackID:             rack.ID,
		RackName:           rack.Name,
		PowerUtilization:   percentOf(layout.TotalPowerW, rack.TotalPowerCapacityW),
		SpaceUtilization:   layout.UtilizationPercentage,
		CoolingUtilization: percentOf(layout.TotalPowerW, rack.TotalCoolingCapacityW),
		TotalPowerW:        layout.TotalPowerW,
		UsedU:              layout.UsedU,
		SizeU:              rack.SizeU,
	}
}

func percentOf(v float64, capacity *float64) float64 {
	if capacity == nil || *capacity == 0 {
		return 0
	}
	return v / *capacity * 100
}
