package engine

import "rackcore/capacity"

// plannerNotifier bridges the capacity planner's Notifier interface to the EventBus.
type plannerNotifier struct {
	bus *EventBus
}

func (n *plannerNotifier) EquipmentMoved(ev capacity.MoveEvent) {
	n.bus.Emit(Event{Type: EventEquipmentMoved, Payload: EquipmentMovedEvent{
		EquipmentID:   ev.EquipmentID,
		EquipmentName: ev.EquipmentName,
		FromRackID:    ev.FromRackID,
		ToRackID:      ev.ToRackID,
		Actor:         ev.Actor,
	}})
}

func (n *plannerNotifier) MoveRejected(ev capacity.MoveEvent) {
	n.bus.Emit(Event{Type: EventMoveRejected, Payload: MoveRejectedEvent{
		EquipmentID:   ev.EquipmentID,
		EquipmentName: ev.EquipmentName,
		ToRackID:      ev.ToRackID,
		Reasons:       ev.Reasons,
		Actor:         ev.Actor,
	}})
}
