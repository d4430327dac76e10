package rackstate

// RackSummary is the dashboard view of one rack: its record plus the derived
// utilization at the last refresh.
type RackSummary struct {
	RackID                int64    `json:"rack_id"`
	RackName              string   `json:"rack_name"`
	Zone                  string   `json:"zone"`
	Status                string   `json:"status"`
	SizeU                 int      `json:"size_u"`
	TotalPowerCapacityW   *float64 `json:"total_power_capacity_w"`
	TotalCoolingCapacityW *float64 `json:"total_cooling_capacity_w"`
	Usage                 *Usage   `json:"usage"`
	ItemCount             int      `json:"item_count"`
}

type Usage struct {
	PowerUtilization   float64 `json:"power_utilization"`
	SpaceUtilization   float64 `json:"space_utilization"`
	CoolingUtilization float64 `json:"cooling_utilization"`
	TotalPowerW        float64 `json:"total_power_w"`
	UsedU              int     `json:"used_u"`
}

type RackMeta struct {
	RackID                int64    `json:"rack_id"`
	RackName              string   `json:"rack_name"`
	Zone                  string   `json:"zone"`
	Status                string   `json:"status"`
	SizeU                 int      `json:"size_u"`
	TotalPowerCapacityW   *float64 `json:"total_power_capacity_w"`
	TotalCoolingCapacityW *float64 `json:"total_cooling_capacity_w"`
}
