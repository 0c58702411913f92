package task

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/randengine"
)

// Hosts 受管主机表
// 功能：将每步取走的部分更新记录逐字段合并为各对象的最新状态，对象消失时移除
// 说明：新出现的车辆以装备率成为受管主机，未装备的车辆ID被记住直到消失，期间不再重新抽签
type Hosts struct {
	rng             *randengine.Engine
	penetrationRate float64

	Vehicles      map[string]*subscription.Vehicle
	Persons       map[string]*subscription.Person
	TrafficLights map[string]*subscription.TrafficLight

	unequipped map[string]struct{}
}

func NewHosts(rng *randengine.Engine, penetrationRate float64) *Hosts {
	return &Hosts{
		rng:             rng,
		penetrationRate: penetrationRate,
		Vehicles:        make(map[string]*subscription.Vehicle),
		Persons:         make(map[string]*subscription.Person),
		TrafficLights:   make(map[string]*subscription.TrafficLight),
		unequipped:      make(map[string]struct{}),
	}
}

// IsUnequipped 车辆是否因装备率被排除
func (h *Hosts) IsUnequipped(id string) bool {
	_, ok := h.unequipped[id]
	return ok
}

// UpdateVehicles 合并车辆更新，返回本次新建的受管车辆ID
func (h *Hosts) UpdateVehicles(updates []subscription.Vehicle) []string {
	created := make([]string, 0)
	for _, u := range updates {
		if h.IsUnequipped(u.ID) {
			continue
		}
		v, ok := h.Vehicles[u.ID]
		if !ok {
			if !h.rng.PTrue(h.penetrationRate) {
				h.unequipped[u.ID] = struct{}{}
				continue
			}
			v = &subscription.Vehicle{ID: u.ID}
			h.Vehicles[u.ID] = v
			created = append(created, u.ID)
		}
		mergeVehicle(v, u)
	}
	return created
}

// UpdatePersons 合并行人更新，返回本次新建的行人ID
func (h *Hosts) UpdatePersons(updates []subscription.Person) []string {
	created := make([]string, 0)
	for _, u := range updates {
		p, ok := h.Persons[u.ID]
		if !ok {
			p = &subscription.Person{ID: u.ID}
			h.Persons[u.ID] = p
			created = append(created, u.ID)
		}
		mergePerson(p, u)
	}
	return created
}

// UpdateTrafficLights 合并信号灯更新
func (h *Hosts) UpdateTrafficLights(updates []subscription.TrafficLight) {
	for _, u := range updates {
		l, ok := h.TrafficLights[u.ID]
		if !ok {
			l = &subscription.TrafficLight{ID: u.ID}
			h.TrafficLights[u.ID] = l
		}
		mergeTrafficLight(l, u)
	}
}

// RemoveVehicles 移除消失的车辆，返回其中受管车辆的ID
func (h *Hosts) RemoveVehicles(ids []string) []string {
	return lo.Filter(ids, func(id string, _ int) bool {
		if h.IsUnequipped(id) {
			delete(h.unequipped, id)
			return false
		}
		_, ok := h.Vehicles[id]
		delete(h.Vehicles, id)
		return ok
	})
}

func (h *Hosts) RemovePersons(ids []string) {
	for _, id := range ids {
		delete(h.Persons, id)
	}
}

func (h *Hosts) RemoveTrafficLights(ids []string) {
	for _, id := range ids {
		delete(h.TrafficLights, id)
	}
}

// mergeVehicle 只覆盖更新中实际携带的字段
func mergeVehicle(dst *subscription.Vehicle, src subscription.Vehicle) {
	p := src.Presence
	if p.Has(traci.VAR_POSITION) {
		dst.Position = src.Position
	}
	if p.Has(traci.VAR_ROAD_ID) {
		dst.RoadID = src.RoadID
	}
	if p.Has(traci.VAR_SPEED) {
		dst.Speed = src.Speed
	}
	if p.Has(traci.VAR_ANGLE) {
		dst.Angle = src.Angle
	}
	if p.Has(traci.VAR_SIGNALS) {
		dst.Signals = src.Signals
	}
	if p.Has(traci.VAR_LENGTH) {
		dst.Length = src.Length
	}
	if p.Has(traci.VAR_HEIGHT) {
		dst.Height = src.Height
	}
	if p.Has(traci.VAR_WIDTH) {
		dst.Width = src.Width
	}
	if p.Has(traci.VAR_TYPE) {
		dst.TypeID = src.TypeID
	}
	dst.Presence = union(dst.Presence, p)
}

func mergePerson(dst *subscription.Person, src subscription.Person) {
	p := src.Presence
	if p.Has(traci.VAR_POSITION) {
		dst.Position = src.Position
	}
	if p.Has(traci.VAR_ROAD_ID) {
		dst.RoadID = src.RoadID
	}
	if p.Has(traci.VAR_SPEED) {
		dst.Speed = src.Speed
	}
	if p.Has(traci.VAR_ANGLE) {
		dst.Angle = src.Angle
	}
	if p.Has(traci.VAR_TYPE) {
		dst.TypeID = src.TypeID
	}
	dst.Presence = union(dst.Presence, p)
}

func mergeTrafficLight(dst *subscription.TrafficLight, src subscription.TrafficLight) {
	p := src.Presence
	if p.Has(traci.TL_RED_YELLOW_GREEN_STATE) {
		dst.State = src.State
	}
	if p.Has(traci.TL_CURRENT_PHASE) {
		dst.Phase = src.Phase
	}
	if p.Has(traci.TL_CURRENT_PROGRAM) {
		dst.Program = src.Program
	}
	if p.Has(traci.TL_NEXT_SWITCH) {
		dst.NextSwitch = src.NextSwitch
	}
	dst.Presence = union(dst.Presence, p)
}

func union(a, b subscription.Presence) subscription.Presence {
	for i := range a {
		a[i] |= b[i]
	}
	return a
}
