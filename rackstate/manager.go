package rackstate

import (
	"context"
	"log"

	"rackcore/capacity"
	"rackcore/store"
)

// Manager keeps the Redis rack summaries in step with SQL. SQL stays the
// source of truth; reads fall back to it when Redis is absent or cold.
// A nil RedisStore disables the cache entirely.
type Manager struct {
	db      *store.DB
	redis   *RedisStore
	planner *capacity.Planner
}

func NewManager(db *store.DB, redis *RedisStore, planner *capacity.Planner) *Manager {
	return &Manager{db: db, redis: redis, planner: planner}
}

// GetRackSummary reads a rack summary from Redis, falls back to SQL.
func (m *Manager) GetRackSummary(ctx context.Context, rackID int64) (*RackSummary, error) {
	if m.redis != nil {
		meta, err := m.redis.GetRackMeta(ctx, rackID)
		if err == nil && meta != nil {
			usage, count, err := m.redis.GetUsage(ctx, rackID)
			if err == nil && usage != nil {
				return summaryOf(meta, usage, count), nil
			}
		}
	}
	return m.summaryFromSQL(ctx, rackID)
}

// GetAllRackSummaries reads every rack summary, preferring Redis.
func (m *Manager) GetAllRackSummaries(ctx context.Context) (map[int64]*RackSummary, error) {
	out := make(map[int64]*RackSummary)

	if m.redis != nil {
		ids, err := m.redis.GetAllRackIDs(ctx)
		if err == nil && len(ids) > 0 {
			for _, id := range ids {
				s, err := m.GetRackSummary(ctx, id)
				if err == nil {
					out[id] = s
				}
			}
			return out, nil
		}
	}

	racks, err := m.db.ListRacks()
	if err != nil {
		return nil, err
	}
	for _, r := range racks {
		s, err := m.summaryFromSQL(ctx, r.ID)
		if err != nil {
			continue
		}
		out[r.ID] = s
	}
	return out, nil
}

// SyncRedisFromSQL rebuilds all Redis state from SQL. Called on startup.
func (m *Manager) SyncRedisFromSQL(ctx context.Context) error {
	if m.redis == nil {
		return nil
	}
	if err := m.redis.FlushAll(ctx); err != nil {
		log.Printf("rackstate: flush redis: %v", err)
	}

	racks, err := m.db.ListRacks()
	if err != nil {
		return err
	}
	for _, r := range racks {
		if err := m.redis.UpdateRackMeta(ctx, metaOf(r)); err != nil {
			log.Printf("rackstate: sync meta for rack %d: %v", r.ID, err)
			continue
		}
		m.refreshUsage(ctx, r.ID)
	}

	log.Printf("rackstate: synced %d racks to redis", len(racks))
	return nil
}

// RefreshRack rewrites a rack's meta and usage after its record or occupants changed.
func (m *Manager) RefreshRack(ctx context.Context, rackID int64) {
	if m.redis == nil {
		return
	}
	m.RefreshRackMeta(ctx, rackID)
	m.refreshUsage(ctx, rackID)
}

// RefreshRackMeta updates the Redis meta for a rack from its DB record.
func (m *Manager) RefreshRackMeta(ctx context.Context, rackID int64) {
	if m.redis == nil {
		return
	}
	r, err := m.db.GetRack(rackID)
	if err != nil {
		return
	}
	if err := m.redis.UpdateRackMeta(ctx, metaOf(r)); err != nil {
		log.Printf("rackstate: refresh meta for rack %d: %v", rackID, err)
	}
}

// RemoveRack drops a deleted rack from Redis.
func (m *Manager) RemoveRack(ctx context.Context, rackID int64) {
	if m.redis == nil {
		return
	}
	if err := m.redis.RemoveRack(ctx, rackID); err != nil {
		log.Printf("rackstate: remove rack %d: %v", rackID, err)
	}
}

func (m *Manager) refreshUsage(ctx context.Context, rackID int64) {
	usage, count, err := m.usageOf(ctx, rackID)
	if err != nil {
		log.Printf("rackstate: refresh usage for rack %d: %v", rackID, err)
		return
	}
	if err := m.redis.SetUsage(ctx, rackID, usage, count); err != nil {
		log.Printf("rackstate: store usage for rack %d: %v", rackID, err)
	}
}

func (m *Manager) usageOf(ctx context.Context, rackID int64) (*Usage, int, error) {
	layout, err := m.planner.BuildLayout(ctx, rackID)
	if err != nil {
		return nil, 0, err
	}
	u, err := m.planner.Utilization(ctx, rackID)
	if err != nil {
		return nil, 0, err
	}
	return &Usage{
		PowerUtilization:   u.PowerUtilization,
		SpaceUtilization:   u.SpaceUtilization,
		CoolingUtilization: u.CoolingUtilization,
		TotalPowerW:        u.TotalPowerW,
		UsedU:              u.UsedU,
	}, len(layout.Entries), nil
}

func (m *Manager) summaryFromSQL(ctx context.Context, rackID int64) (*RackSummary, error) {
	r, err := m.db.GetRack(rackID)
	if err != nil {
		return nil, err
	}
	usage, count, err := m.usageOf(ctx, rackID)
	if err != nil {
		return nil, err
	}
	return summaryOf(metaOf(r), usage, count), nil
}

func metaOf(r *store.Rack) *RackMeta {
	return &RackMeta{
		RackID:                r.ID,
		RackName:              r.Name,
		Zone:                  r.Zone,
		Status:                r.Status,
		SizeU:                 r.SizeU,
		TotalPowerCapacityW:   r.TotalPowerCapacityW,
		TotalCoolingCapacityW: r.TotalCoolingCapacityW,
	}
}

func summaryOf(meta *RackMeta, usage *Usage, count int) *RackSummary {
	return &RackSummary{
		RackID:                meta.RackID,
		RackName:              meta.RackName,
		Zone:                  meta.Zone,
		Status:                meta.Status,
		SizeU:                 meta.SizeU,
		TotalPowerCapacityW:   meta.TotalPowerCapacityW,
		TotalCoolingCapacityW: meta.TotalCoolingCapacityW,
		Usage:                 usage,
		ItemCount:             count,
	}
}
