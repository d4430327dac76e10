package capacity

import (
	"context"
	"fmt"

	"rackcore/store"
)

// BuildLayout packs the rack's occupants from U1 upward in the store's order
// (highest spatial placement first). Positions are derived, not stored.
func (p *Planner) BuildLayout(ctx context.Context, rackID int64) (*RackLayout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rack, err := p.getRack(rackID)
	if err != nil {
		return nil, err
	}
	return p.layoutFor(rack)
}

func (p *Planner) layoutFor(rack *store.Rack) (*RackLayout, error) {
	items, err := p.equipment.ListEquipmentByRack(rack.ID)
	if err != nil {
		return nil, fmt.Errorf("list equipment in rack %d: %w", rack.ID, err)
	}
	return packLayout(rack, items), nil
}

func packLayout(rack *store.Rack, items []*store.Equipment) *RackLayout {
	l := &RackLayout{
		RackID:   rack.ID,
		RackName: rack.Name,
		SizeU:    rack.SizeU,
		Entries:  make([]LayoutEntry, 0, len(items)),
	}
	next := 1
	for _, e := range items {
		size := e.SizeU
		if size < 1 {
			size = 1
		}
		l.Entries = append(l.Entries, LayoutEntry{
			EquipmentID:       e.ID,
			Name:              e.Name,
			Type:              e.Type,
			PositionU:         next,
			SizeU:             size,
			PowerConsumptionW: e.PowerConsumptionW,
			Status:            e.Status,
		})
		next += size
		l.UsedU += size
		l.TotalPowerW += e.PowerConsumptionW
	}
	l.AvailableU = rack.SizeU - l.UsedU
	if rack.SizeU > 0 {
		l.UtilizationPercentage = float64(l.UsedU) / float64(rack.SizeU) * 100
	}
	return l
}

// withIncoming returns the layout the rack would have after e is packed on top.
func withIncoming(rack *store.Rack, current *RackLayout, e *store.Equipment) *RackLayout {
	items := make([]*store.Equipment, 0, len(current.Entries)+1)
	for _, entry := range current.Entries {
		items = append(items, &store.Equipment{
			ID:                entry.EquipmentID,
			Name:              entry.Name,
			Type:              entry.Type,
			SizeU:             entry.SizeU,
			PowerConsumptionW: entry.PowerConsumptionW,
			Status:            entry.Status,
		})
	}
	items = append(items, e)
	return packLayout(rack, items)
}
