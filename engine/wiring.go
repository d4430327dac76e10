package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rackcore/messaging"
)

func (e *Engine) wireEventHandlers() {
	// Committed migration: audit, publish, refresh both racks
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(EquipmentMovedEvent)
		from := ""
		if ev.FromRackID != nil {
			from = strconv.FormatInt(*ev.FromRackID, 10)
		}
		e.logFn("engine: equipment %d moved %s -> %d", ev.EquipmentID, orNone(from), ev.ToRackID)
		e.audit("equipment", ev.EquipmentID, "moved", from, strconv.FormatInt(ev.ToRackID, 10), ev.Actor)
		e.publish(messaging.TypeEquipmentMoved, ev.ToRackID, messaging.EquipmentMoved{
			EquipmentID:   ev.EquipmentID,
			EquipmentName: ev.EquipmentName,
			FromRackID:    ev.FromRackID,
			ToRackID:      ev.ToRackID,
			Actor:         ev.Actor,
		})
		ctx, cancel := e.refreshContext()
		defer cancel()
		if ev.FromRackID != nil {
			e.rackState.RefreshRack(ctx, *ev.FromRackID)
		}
		e.rackState.RefreshRack(ctx, ev.ToRackID)
	}, EventEquipmentMoved)

	// Rejected migration: audit and publish
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MoveRejectedEvent)
		reasons := strings.Join(ev.Reasons, "; ")
		e.audit("equipment", ev.EquipmentID, "move_rejected", "", fmt.Sprintf("rack %d: %s", ev.ToRackID, reasons), ev.Actor)
		e.publish(messaging.TypeMoveRejected, ev.ToRackID, messaging.MoveRejected{
			EquipmentID: ev.EquipmentID,
			ToRackID:    ev.ToRackID,
			Reasons:     ev.Reasons,
			Actor:       ev.Actor,
		})
	}, EventMoveRejected)

	// New equipment: audit, refresh its rack
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(EquipmentCreatedEvent)
		e.audit("equipment", ev.EquipmentID, "created", "", ev.Name, ev.Actor)
		if ev.RackID != nil {
			ctx, cancel := e.refreshContext()
			defer cancel()
			e.rackState.RefreshRack(ctx, *ev.RackID)
		}
	}, EventEquipmentCreated)

	// Power readings change rack usage
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(MetricRecordedEvent)
		if ev.RackID != nil {
			ctx, cancel := e.refreshContext()
			defer cancel()
			e.rackState.RefreshRack(ctx, *ev.RackID)
		}
	}, EventMetricRecorded)

	// Rack updates: audit, publish, refresh or drop the cached summary
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RackUpdatedEvent)
		e.audit("rack", ev.RackID, ev.Action, "", ev.RackName, ev.Actor)
		e.publish(messaging.TypeRackUpdated, ev.RackID, messaging.RackUpdated{
			RackID:   ev.RackID,
			RackName: ev.RackName,
			Action:   ev.Action,
		})
		ctx, cancel := e.refreshContext()
		defer cancel()
		if ev.Action == "deleted" {
			e.rackState.RemoveRack(ctx, ev.RackID)
			return
		}
		e.rackState.RefreshRack(ctx, ev.RackID)
	}, EventRackUpdated)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s (%s)", evt.Type, ev.Detail)
	}, EventMessagingConnected, EventMessagingDisconnected)
}

func (e *Engine) audit(entityType string, entityID int64, action, oldValue, newValue, actor string) {
	if actor == "" {
		actor = "system"
	}
	if err := e.db.AppendAudit(entityType, entityID, action, oldValue, newValue, actor); err != nil {
		e.logFn("engine: audit %s %d %s: %v", entityType, entityID, action, err)
	}
}

// publish queues an event envelope in the outbox, keyed by rack so per-rack
// ordering survives Kafka partitioning.
func (e *Engine) publish(msgType string, rackID int64, payload any) {
	if e.msgClient == nil || e.msgClient.Backend() == "none" {
		return
	}
	env, err := messaging.NewEnvelope(msgType, e.cfg.SiteID, payload)
	if err != nil {
		e.logFn("engine: build %s envelope: %v", msgType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s envelope: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, data, msgType, strconv.FormatInt(rackID, 10)); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}

func (e *Engine) refreshContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
