package capacity

import (
	"context"
	"errors"
	"fmt"

	"rackcore/store"
)

// MoveEquipment reassigns an item to another rack if the target passes
// capacity validation. The target rack is locked from validation through the
// write so concurrent migrations into it cannot jointly overcommit it.
// A rejection returns Moved=false with reasons and performs no write.
func (p *Planner) MoveEquipment(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	unlock, err := p.locker.Lock(ctx, rackLockKey(req.TargetRackID))
	if err != nil {
		return nil, fmt.Errorf("lock rack %d: %w", req.TargetRackID, err)
	}
	defer unlock()

	eq, err := p.getEquipment(req.EquipmentID)
	if err != nil {
		return nil, err
	}
	rack, err := p.getRack(req.TargetRackID)
	if err != nil {
		return nil, err
	}

	res := &MoveResult{FromRackID: eq.RackID, ToRackID: rack.ID}
	if eq.RackID != nil && *eq.RackID == rack.ID {
		res.Moved = true
		res.Unchanged = true
		return res, nil
	}

	layout, err := p.layoutFor(rack)
	if err != nil {
		return nil, err
	}
	if req.PositionU != nil {
		size := eq.SizeU
		if size < 1 {
			size = 1
		}
		res.Placement = checkPlacement(layout, eq.ID, *req.PositionU, size)
	}

	checked := layout
	if p.checkIncoming {
		checked = withIncoming(rack, layout, eq)
	}
	validation := validateLayout(rack, checked)

	ev := MoveEvent{
		EquipmentID:        eq.ID,
		EquipmentName:      eq.Name,
		FromRackID:         eq.RackID,
		ToRackID:           rack.ID,
		RequestedPositionU: req.PositionU,
		Actor:              req.Actor,
	}

	if !validation.Valid {
		res.Issues = validation.Issues
		res.Reasons = validation.Messages()
		ev.Reasons = res.Reasons
		p.record(ev, store.MigrationRejected)
		p.logFn("capacity: move of equipment %d to rack %d rejected: %v", eq.ID, rack.ID, res.Reasons)
		p.notifier.MoveRejected(ev)
		return res, nil
	}

	if err := p.equipment.SetEquipmentRack(eq.ID, rack.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("equipment %d: %w", eq.ID, ErrEquipmentNotFound)
		}
		return nil, fmt.Errorf("assign equipment %d to rack %d: %w", eq.ID, rack.ID, err)
	}
	res.Moved = true
	p.record(ev, store.MigrationCommitted)
	p.notifier.EquipmentMoved(ev)
	return res, nil
}

func (p *Planner) record(ev MoveEvent, outcome string) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.CreateMigration(&store.Migration{
		EquipmentID:        ev.EquipmentID,
		FromRackID:         ev.FromRackID,
		ToRackID:           ev.ToRackID,
		RequestedPositionU: ev.RequestedPositionU,
		Outcome:            outcome,
		Reasons:            ev.Reasons,
		Actor:              ev.Actor,
	})
	if err != nil {
		p.logFn("capacity: record %s migration of equipment %d: %v", outcome, ev.EquipmentID, err)
	}
}
