package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rackcore/store"
)

type memStore struct {
	mu         sync.Mutex
	racks      map[int64]*store.Rack
	equipment  map[int64]*store.Equipment
	migrations []*store.Migration
	failList   error
}

func newMemStore() *memStore {
	return &memStore{
		racks:     make(map[int64]*store.Rack),
		equipment: make(map[int64]*store.Equipment),
	}
}

func (m *memStore) addRack(id int64, sizeU int, powerW, coolingW *float64) *store.Rack {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &store.Rack{ID: id, Name: fmt.Sprintf("R%02d", id), SizeU: sizeU, TotalPowerCapacityW: powerW, TotalCoolingCapacityW: coolingW}
	m.racks[id] = r
	return r
}

func (m *memStore) addEquipment(id int64, rackID *int64, sizeU int, powerW, posY float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equipment[id] = &store.Equipment{
		ID: id, RackID: rackID, Name: fmt.Sprintf("eq-%d", id),
		SizeU: sizeU, PowerConsumptionW: powerW, PosY: posY, Status: "active",
	}
}

func (m *memStore) GetRack(id int64) (*store.Rack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.racks[id]
	if !ok {
		return nil, fmt.Errorf("rack %d: %w", id, store.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRacks() ([]*store.Rack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*store.Rack, 0, len(m.racks))
	for _, r := range m.racks {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetEquipment(id int64) (*store.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[id]
	if !ok {
		return nil, fmt.Errorf("equipment %d: %w", id, store.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) ListEquipmentByRack(rackID int64) ([]*store.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []*store.Equipment
	for _, e := range m.equipment {
		if e.RackID != nil && *e.RackID == rackID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PosY != out[j].PosY {
			return out[i].PosY > out[j].PosY
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) SetEquipmentRack(equipmentID, rackID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.equipment[equipmentID]
	if !ok {
		return fmt.Errorf("equipment %d: %w", equipmentID, store.ErrNotFound)
	}
	id := rackID
	e.RackID = &id
	return nil
}

func (m *memStore) CreateMigration(mig *store.Migration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.migrations = append(m.migrations, mig)
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	moved    []MoveEvent
	rejected []MoveEvent
}

func (n *recordingNotifier) EquipmentMoved(ev MoveEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.moved = append(n.moved, ev)
}

func (n *recordingNotifier) MoveRejected(ev MoveEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, ev)
}

func ptr[T any](v T) *T { return &v }

func quietLog(string, ...any) {}

func newTestPlanner(m *memStore, opts ...Option) *Planner {
	opts = append([]Option{WithLogFunc(quietLog), WithRecorder(m)}, opts...)
	return New(m, m, opts...)
}

func TestBuildLayout_PacksFromBottom(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 42, ptr(5000.0), nil)
	m.addEquipment(10, &r.ID, 2, 300, 0.2)
	m.addEquipment(11, &r.ID, 1, 100, 1.5)
	m.addEquipment(12, &r.ID, 4, 800, 0.9)
	p := newTestPlanner(m)

	layout, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	require.Len(t, layout.Entries, 3)

	// Highest pos_y packs first.
	assert.Equal(t, int64(11), layout.Entries[0].EquipmentID)
	assert.Equal(t, 1, layout.Entries[0].PositionU)
	assert.Equal(t, int64(12), layout.Entries[1].EquipmentID)
	assert.Equal(t, 2, layout.Entries[1].PositionU)
	assert.Equal(t, int64(10), layout.Entries[2].EquipmentID)
	assert.Equal(t, 6, layout.Entries[2].PositionU)

	sum := 0
	for _, e := range layout.Entries {
		sum += e.SizeU
	}
	assert.Equal(t, sum, layout.UsedU)
	assert.Equal(t, r.SizeU-layout.UsedU, layout.AvailableU)
	assert.Equal(t, 1200.0, layout.TotalPowerW)
	assert.InDelta(t, 7.0/42.0*100, layout.UtilizationPercentage, 1e-9)
}

func TestBuildLayout_EmptyRack(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 42, nil, nil)
	p := newTestPlanner(m)

	layout, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Empty(t, layout.Entries)
	assert.Equal(t, 0.0, layout.TotalPowerW)
	assert.Equal(t, 0.0, layout.UtilizationPercentage)
	assert.Equal(t, 42, layout.AvailableU)
}

func TestBuildLayout_Idempotent(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 10, nil, nil)
	m.addEquipment(1, &r.ID, 2, 50, 1)
	m.addEquipment(2, &r.ID, 3, 70, 1)
	p := newTestPlanner(m)

	a, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	b, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildLayout_Errors(t *testing.T) {
	m := newMemStore()
	p := newTestPlanner(m)

	_, err := p.BuildLayout(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRackNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	r := m.addRack(1, 42, nil, nil)
	m.failList = errors.New("disk on fire")
	_, err = p.BuildLayout(context.Background(), r.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestValidate_PowerExceeded(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 2, ptr(1000.0), nil)
	m.addEquipment(1, &r.ID, 1, 150, 1)
	m.addEquipment(2, &r.ID, 1, 900, 0)
	p := newTestPlanner(m)

	layout, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, layout.UsedU)
	assert.Equal(t, 0, layout.AvailableU)
	assert.Equal(t, 1050.0, layout.TotalPowerW)

	res, err := p.Validate(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, PowerExceeded, res.Issues[0].Kind)
	assert.Equal(t, 50.0, res.Issues[0].Amount)
	assert.Contains(t, res.Issues[0].Message, "by 50W")
}

func TestValidate_SpaceExceeded(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 1, nil, nil)
	m.addEquipment(1, &r.ID, 1, 0, 0)
	m.addEquipment(2, &r.ID, 1, 0, 0)
	p := newTestPlanner(m)

	layout, err := p.BuildLayout(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, layout.AvailableU)

	res, err := p.Validate(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, SpaceExceeded, res.Issues[0].Kind)
	assert.Equal(t, 1.0, res.Issues[0].Amount)
}

func TestValidate_UnknownRackIsData(t *testing.T) {
	p := newTestPlanner(newMemStore())
	res, err := p.Validate(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, RackMissing, res.Issues[0].Kind)
	assert.Equal(t, "Rack not found", res.Issues[0].Message)
}

func TestValidate_ZeroCapacityIsALimit(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 42, ptr(0.0), nil)
	m.addEquipment(1, &r.ID, 1, 10, 0)
	p := newTestPlanner(m)

	res, err := p.Validate(context.Background(), r.ID)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, PowerExceeded, res.Issues[0].Kind)
}

func TestValidate_Monotonic(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 4, ptr(500.0), nil)
	p := newTestPlanner(m)

	prevCount := 0
	prevValid := true
	for i := int64(1); i <= 6; i++ {
		m.addEquipment(i, &r.ID, 1, 120, 0)
		res, err := p.Validate(context.Background(), r.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(res.Issues), prevCount, "after item %d", i)
		if !prevValid {
			assert.False(t, res.Valid, "after item %d", i)
		}
		prevCount, prevValid = len(res.Issues), res.Valid
	}
	assert.Equal(t, 2, prevCount)
}

func TestCheckConflict(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 10, nil, nil)
	m.addEquipment(1, &r.ID, 2, 0, 3) // U1-2
	m.addEquipment(2, &r.ID, 3, 0, 2) // U3-5
	m.addEquipment(3, &r.ID, 1, 0, 1) // U6
	p := newTestPlanner(m)
	ctx := context.Background()

	res, err := p.CheckConflict(ctx, r.ID, 1, 4)
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, int64(2), res.Conflicts[0].EquipmentID)

	// Re-checking B at its own packed position finds no overlap.
	res, err = p.CheckConflict(ctx, r.ID, 2, 3)
	require.NoError(t, err)
	assert.True(t, res.OK, "B at U3-5 touches neither U1-2 nor U6")

	res, err = p.CheckConflict(ctx, r.ID, 1, 7)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.False(t, res.OutOfRange)
	assert.Empty(t, res.Conflicts)

	res, err = p.CheckConflict(ctx, r.ID, 1, 10)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.True(t, res.OutOfRange)

	res, err = p.CheckConflict(ctx, r.ID, 3, 0)
	require.NoError(t, err)
	assert.True(t, res.OutOfRange)

	_, err = p.CheckConflict(ctx, r.ID, 99, 1)
	assert.ErrorIs(t, err, ErrEquipmentNotFound)
	_, err = p.CheckConflict(ctx, 99, 1, 1)
	assert.ErrorIs(t, err, ErrRackNotFound)
}

func TestCheckPlacement_Symmetric(t *testing.T) {
	layout := &RackLayout{
		RackID: 1, SizeU: 10,
		Entries: []LayoutEntry{
			{EquipmentID: 1, PositionU: 1, SizeU: 2},
			{EquipmentID: 2, PositionU: 3, SizeU: 3},
		},
	}
	// A moved to U4 overlaps B.
	a := checkPlacement(layout, 1, 4, 2)
	require.Len(t, a.Conflicts, 1)

	moved := &RackLayout{
		RackID: 1, SizeU: 10,
		Entries: []LayoutEntry{
			{EquipmentID: 1, PositionU: 4, SizeU: 2},
			{EquipmentID: 2, PositionU: 3, SizeU: 3},
		},
	}
	b := checkPlacement(moved, 2, 3, 3)
	require.Len(t, b.Conflicts, 1)
	assert.Equal(t, int64(1), b.Conflicts[0].EquipmentID)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, overlaps(1, 3, 2, 4))
	assert.True(t, overlaps(2, 4, 1, 3))
	assert.False(t, overlaps(1, 3, 3, 5), "touching ranges do not overlap")
	assert.True(t, overlaps(1, 10, 4, 5))
}

func TestUtilization(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 40, ptr(2000.0), ptr(4000.0))
	m.addEquipment(1, &r.ID, 4, 500, 0)
	m.addEquipment(2, &r.ID, 6, 500, 0)
	p := newTestPlanner(m)

	u, err := p.Utilization(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, u.PowerUtilization)
	assert.Equal(t, 25.0, u.SpaceUtilization)
	assert.Equal(t, 25.0, u.CoolingUtilization)
	assert.Equal(t, 10, u.UsedU)

	_, err = p.Utilization(context.Background(), 99)
	assert.ErrorIs(t, err, ErrRackNotFound)
}

func TestUtilization_MissingOrZeroCapacity(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 42, ptr(0.0), nil)
	m.addEquipment(1, &r.ID, 1, 300, 0)
	p := newTestPlanner(m)

	u, err := p.Utilization(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u.PowerUtilization)
	assert.Equal(t, 0.0, u.CoolingUtilization)
	assert.Equal(t, 300.0, u.TotalPowerW)
}

func TestFleetUtilization(t *testing.T) {
	m := newMemStore()
	for id := int64(1); id <= 5; id++ {
		r := m.addRack(id, 10, ptr(1000.0), nil)
		m.addEquipment(id*100, &r.ID, int(id), float64(id)*100, 0)
	}
	p := newTestPlanner(m, WithFleetConcurrency(2))

	all, err := p.FleetUtilization(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, u := range all {
		id := int64(i + 1)
		assert.Equal(t, id, u.RackID)
		assert.Equal(t, float64(id)*10, u.PowerUtilization)
		assert.Equal(t, float64(id)*10, u.SpaceUtilization)
	}

	m.failList = errors.New("boom")
	_, err = p.FleetUtilization(context.Background())
	assert.Error(t, err)
}

func TestMoveEquipment_Commits(t *testing.T) {
	m := newMemStore()
	src := m.addRack(1, 42, nil, nil)
	dst := m.addRack(2, 42, ptr(5000.0), nil)
	m.addEquipment(7, &src.ID, 2, 400, 0)
	n := &recordingNotifier{}
	p := newTestPlanner(m, WithNotifier(n))

	res, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 7, TargetRackID: dst.ID, PositionU: ptr(5), Actor: "ops"})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.False(t, res.Unchanged)
	require.NotNil(t, res.FromRackID)
	assert.Equal(t, src.ID, *res.FromRackID)
	require.NotNil(t, res.Placement)
	assert.True(t, res.Placement.OK)

	items, err := m.ListEquipmentByRack(dst.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(7), items[0].ID)

	require.Len(t, n.moved, 1)
	assert.Equal(t, "ops", n.moved[0].Actor)
	assert.Empty(t, n.rejected)
	require.Len(t, m.migrations, 1)
	assert.Equal(t, store.MigrationCommitted, m.migrations[0].Outcome)
}

func TestMoveEquipment_RejectedLeavesTargetUnchanged(t *testing.T) {
	m := newMemStore()
	src := m.addRack(1, 42, nil, nil)
	dst := m.addRack(2, 2, ptr(1000.0), nil)
	m.addEquipment(1, &dst.ID, 1, 150, 1)
	m.addEquipment(2, &dst.ID, 1, 900, 0)
	m.addEquipment(3, &src.ID, 1, 10, 0)
	n := &recordingNotifier{}
	p := newTestPlanner(m, WithNotifier(n))

	before, err := m.ListEquipmentByRack(dst.ID)
	require.NoError(t, err)

	res, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 3, TargetRackID: dst.ID})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	require.NotEmpty(t, res.Reasons)
	assert.Equal(t, PowerExceeded, res.Issues[0].Kind)

	after, err := m.ListEquipmentByRack(dst.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	e, err := m.GetEquipment(3)
	require.NoError(t, err)
	assert.Equal(t, src.ID, *e.RackID)

	require.Len(t, n.rejected, 1)
	assert.Equal(t, res.Reasons, n.rejected[0].Reasons)
	require.Len(t, m.migrations, 1)
	assert.Equal(t, store.MigrationRejected, m.migrations[0].Outcome)
}

func TestMoveEquipment_NotFound(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 42, nil, nil)
	m.addEquipment(1, nil, 1, 0, 0)
	p := newTestPlanner(m)

	_, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 999, TargetRackID: r.ID})
	assert.ErrorIs(t, err, ErrEquipmentNotFound)

	_, err = p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 1, TargetRackID: 999})
	assert.ErrorIs(t, err, ErrRackNotFound)
	assert.Empty(t, m.migrations)
}

func TestMoveEquipment_SameRackIsNoop(t *testing.T) {
	m := newMemStore()
	r := m.addRack(1, 1, ptr(10.0), nil)
	m.addEquipment(1, &r.ID, 1, 50, 0)
	n := &recordingNotifier{}
	p := newTestPlanner(m, WithNotifier(n))

	res, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 1, TargetRackID: r.ID})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	assert.True(t, res.Unchanged)
	assert.Empty(t, n.moved)
	assert.Empty(t, m.migrations)
}

func TestMoveEquipment_AdvisoryPositionNeverRejects(t *testing.T) {
	m := newMemStore()
	dst := m.addRack(1, 10, nil, nil)
	m.addEquipment(1, &dst.ID, 4, 0, 0)
	m.addEquipment(2, nil, 2, 0, 0)
	p := newTestPlanner(m)

	res, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 2, TargetRackID: dst.ID, PositionU: ptr(2)})
	require.NoError(t, err)
	assert.True(t, res.Moved)
	require.NotNil(t, res.Placement)
	assert.False(t, res.Placement.OK)
	require.Len(t, res.Placement.Conflicts, 1)
	assert.Equal(t, int64(1), res.Placement.Conflicts[0].EquipmentID)
}

func TestMoveEquipment_IncomingCheck(t *testing.T) {
	m := newMemStore()
	dst := m.addRack(1, 42, ptr(1000.0), nil)
	m.addEquipment(1, &dst.ID, 1, 800, 0)
	m.addEquipment(2, nil, 1, 300, 0)

	// The current occupants fit, so the default check lets the move through.
	res, err := newTestPlanner(m).MoveEquipment(context.Background(), MoveRequest{EquipmentID: 2, TargetRackID: dst.ID})
	require.NoError(t, err)
	assert.True(t, res.Moved)

	m.addEquipment(3, nil, 1, 300, 0)
	res, err = newTestPlanner(m, WithIncomingCheck(true)).MoveEquipment(context.Background(), MoveRequest{EquipmentID: 3, TargetRackID: dst.ID})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Equal(t, PowerExceeded, res.Issues[0].Kind)
}

func TestMoveEquipment_ConcurrentMovesDoNotOvercommit(t *testing.T) {
	m := newMemStore()
	dst := m.addRack(1, 42, ptr(1000.0), nil)
	m.addEquipment(1, &dst.ID, 1, 600, 0)
	const movers = 8
	for i := int64(0); i < movers; i++ {
		m.addEquipment(100+i, nil, 1, 300, 0)
	}
	p := newTestPlanner(m, WithIncomingCheck(true))

	var wg sync.WaitGroup
	results := make([]*MoveResult, movers)
	for i := 0; i < movers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.MoveEquipment(context.Background(), MoveRequest{EquipmentID: 100 + int64(i), TargetRackID: dst.ID})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, r := range results {
		if r != nil && r.Moved {
			committed++
		}
	}
	assert.Equal(t, 1, committed)

	v, err := p.Validate(context.Background(), dst.ID)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

func TestMoveEquipment_CancelledWhileWaitingForLock(t *testing.T) {
	m := newMemStore()
	dst := m.addRack(1, 42, nil, nil)
	m.addEquipment(1, nil, 1, 0, 0)
	p := newTestPlanner(m)

	unlock, err := p.locker.Lock(context.Background(), rackLockKey(dst.ID))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.MoveEquipment(ctx, MoveRequest{EquipmentID: 1, TargetRackID: dst.ID})
	assert.ErrorIs(t, err, context.Canceled)

	e, err := m.GetEquipment(1)
	require.NoError(t, err)
	assert.Nil(t, e.RackID)
}
