package messaging

import (
	"log"
	"sync"
	"time"

	"rackcore/store"
)

const outboxBatchSize = 50

type OutboxStore interface {
	ListPendingOutbox(limit int) ([]*store.OutboxMessage, error)
	MarkOutboxSent(id int64) error
	MarkOutboxFailed(id int64, reason string) error
}

type Publisher interface {
	Publish(topic, key string, data []byte) error
	IsConnected() bool
}

// OutboxDrainer periodically publishes pending outbox rows. Rows stay pending
// while the publisher is disconnected.
type OutboxDrainer struct {
	store    OutboxStore
	pub      Publisher
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	logFn    func(format string, args ...any)
}

func NewOutboxDrainer(s OutboxStore, pub Publisher, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxDrainer{
		store:    s,
		pub:      pub,
		interval: interval,
		stopCh:   make(chan struct{}),
		logFn:    log.Printf,
	}
}

func (d *OutboxDrainer) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stopCh:
				return
			case <-ticker.C:
				d.Drain()
			}
		}
	}()
}

func (d *OutboxDrainer) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// Drain publishes one batch and returns how many messages were sent.
func (d *OutboxDrainer) Drain() int {
	if !d.pub.IsConnected() {
		return 0
	}
	msgs, err := d.store.ListPendingOutbox(outboxBatchSize)
	if err != nil {
		d.logFn("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, m := range msgs {
		if err := d.pub.Publish(m.Topic, m.MsgKey, m.Payload); err != nil {
			d.logFn("outbox: publish %s #%d: %v", m.MsgType, m.ID, err)
			if err := d.store.MarkOutboxFailed(m.ID, err.Error()); err != nil {
				d.logFn("outbox: mark #%d failed: %v", m.ID, err)
			}
			continue
		}
		if err := d.store.MarkOutboxSent(m.ID); err != nil {
			d.logFn("outbox: mark #%d sent: %v", m.ID, err)
			continue
		}
		sent++
	}
	return sent
}
