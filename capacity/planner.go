// Package capacity assigns rack units to equipment and guards rack power and
// space budgets. Every call recomputes from the record stores; nothing is
// cached between calls.
package capacity

import (
	"errors"
	"fmt"
	"log"

	"rackcore/racklock"
	"rackcore/store"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrRackNotFound      = fmt.Errorf("rack %w", ErrNotFound)
	ErrEquipmentNotFound = fmt.Errorf("equipment %w", ErrNotFound)
)

type LogFunc func(format string, args ...any)

type Planner struct {
	racks            RackStore
	equipment        EquipmentStore
	recorder         MigrationRecorder
	locker           racklock.Locker
	notifier         Notifier
	checkIncoming    bool
	fleetConcurrency int
	logFn            LogFunc
}

type Option func(*Planner)

// WithLocker replaces the default in-process per-rack lock.
func WithLocker(l racklock.Locker) Option { return func(p *Planner) { p.locker = l } }

func WithNotifier(n Notifier) Option { return func(p *Planner) { p.notifier = n } }

func WithRecorder(r MigrationRecorder) Option { return func(p *Planner) { p.recorder = r } }

// WithIncomingCheck validates a migration against the target rack as it would
// be after the move, instead of its current occupants.
func WithIncomingCheck(on bool) Option { return func(p *Planner) { p.checkIncoming = on } }

func WithFleetConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.fleetConcurrency = n
		}
	}
}

func WithLogFunc(fn LogFunc) Option { return func(p *Planner) { p.logFn = fn } }

func New(racks RackStore, equipment EquipmentStore, opts ...Option) *Planner {
	p := &Planner{
		racks:            racks,
		equipment:        equipment,
		locker:           racklock.NewLocal(),
		notifier:         nopNotifier{},
		fleetConcurrency: 8,
		logFn:            log.Printf,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Planner) getRack(id int64) (*store.Rack, error) {
	rack, err := p.racks.GetRack(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("rack %d: %w", id, ErrRackNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rack %d: %w", id, err)
	}
	return rack, nil
}

func (p *Planner) getEquipment(id int64) (*store.Equipment, error) {
	e, err := p.equipment.GetEquipment(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("equipment %d: %w", id, ErrEquipmentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment %d: %w", id, err)
	}
	return e, nil
}

func rackLockKey(rackID int64) string { return fmt.Sprintf("rack:%d", rackID) }
