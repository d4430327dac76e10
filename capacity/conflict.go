package capacity

import (
	"context"
	"fmt"
)

// overlaps reports whether half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// CheckConflict tests whether moving equipmentID to proposedPositionU inside
// its current rack would overlap any other occupant. The check is advisory;
// nothing is written.
func (p *Planner) CheckConflict(ctx context.Context, rackID, equipmentID int64, proposedPositionU int) (*ConflictResult, error) {
	layout, err := p.BuildLayout(ctx, rackID)
	if err != nil {
		return nil, err
	}
	entry, ok := layout.Entry(equipmentID)
	if !ok {
		return nil, fmt.Errorf("equipment %d not in rack %d: %w", equipmentID, rackID, ErrEquipmentNotFound)
	}
	return checkPlacement(layout, equipmentID, proposedPositionU, entry.SizeU), nil
}

func checkPlacement(layout *RackLayout, equipmentID int64, positionU, sizeU int) *ConflictResult {
	res := &ConflictResult{
		RackID:    layout.RackID,
		PositionU: positionU,
		SizeU:     sizeU,
		Conflicts: []Conflict{},
	}
	start, end := positionU, positionU+sizeU
	for _, e := range layout.Entries {
		if e.EquipmentID == equipmentID {
			continue
		}
		if overlaps(start, end, e.PositionU, e.EndU()) {
			res.Conflicts = append(res.Conflicts, Conflict{
				EquipmentID: e.EquipmentID,
				Name:        e.Name,
				PositionU:   e.PositionU,
				SizeU:       e.SizeU,
			})
		}
	}
	res.OK = len(res.Conflicts) == 0
	res.OutOfRange = start < 1 || end-1 > layout.SizeU
	return res
}
