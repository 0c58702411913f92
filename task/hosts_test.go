package task

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-traci/subscription"
	"github.com/tsinghua-fib-lab/agentsociety-traci/traci"
	"github.com/tsinghua-fib-lab/agentsociety-traci/utils/randengine"
)

func vehicleFrame(id string, speed float64) []byte {
	w := traci.NewWriter().String(id).Uint8(9)
	w.Uint8(traci.VAR_POSITION).Uint8(traci.RTYPE_OK).Uint8(traci.POSITION_2D).Double(1).Double(2)
	w.Uint8(traci.VAR_ROAD_ID).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_STRING).String("e1")
	w.Uint8(traci.VAR_SPEED).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_DOUBLE).Double(speed)
	w.Uint8(traci.VAR_ANGLE).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_DOUBLE).Double(90)
	w.Uint8(traci.VAR_SIGNALS).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_INTEGER).Int32(0)
	w.Uint8(traci.VAR_LENGTH).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_DOUBLE).Double(5)
	w.Uint8(traci.VAR_HEIGHT).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_DOUBLE).Double(1.5)
	w.Uint8(traci.VAR_WIDTH).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_DOUBLE).Double(1.8)
	w.Uint8(traci.VAR_TYPE).Uint8(traci.RTYPE_ERR).Uint8(traci.TYPE_STRING).String("no type")
	return w.Bytes()
}

func idListFrame(ids ...string) []byte {
	return traci.NewWriter().String("").Uint8(1).
		Uint8(traci.ID_LIST).Uint8(traci.RTYPE_OK).Uint8(traci.TYPE_STRINGLIST).StringList(ids).
		Bytes()
}

// vehicleServer 只提供车辆订阅的内存TraCI服务器
type vehicleServer struct {
	population []string
}

func (s *vehicleServer) Query(cmdID uint8, content []byte) ([]byte, error) {
	r := traci.NewReader(content)
	_ = r.Skip(16)
	id, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	frame := vehicleFrame(id, 10)
	if id == "" {
		frame = idListFrame(s.population...)
	}
	return traci.NewWriter().Command(traci.RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE, frame).Bytes(), nil
}

func TestHostsMergePartialUpdates(t *testing.T) {
	h := NewHosts(randengine.New(1), 1)
	created := h.UpdateVehicles([]subscription.Vehicle{
		{ID: "v1", Speed: 3, RoadID: "e1", Presence: presence(traci.VAR_SPEED, traci.VAR_ROAD_ID)},
	})
	assert.Equal(t, []string{"v1"}, created)

	created = h.UpdateVehicles([]subscription.Vehicle{
		{ID: "v1", Speed: 4, Presence: presence(traci.VAR_SPEED)},
		{ID: "v1", Position: geometry.Point{X: 7}, Presence: presence(traci.VAR_POSITION)},
	})
	assert.Empty(t, created)

	v := h.Vehicles["v1"]
	require.NotNil(t, v)
	assert.Equal(t, 4.0, v.Speed)
	assert.Equal(t, "e1", v.RoadID)
	assert.Equal(t, 7.0, v.Position.X)
	assert.True(t, v.Presence.Has(traci.VAR_ROAD_ID))
	assert.False(t, v.Presence.Has(traci.VAR_TYPE))

	assert.Equal(t, []string{"v1"}, h.RemoveVehicles([]string{"v1", "unknown"}))
	assert.Empty(t, h.Vehicles)
}

func TestHostsPenetrationRate(t *testing.T) {
	h := NewHosts(randengine.New(1), 0)
	created := h.UpdateVehicles([]subscription.Vehicle{{ID: "v1"}, {ID: "v2"}})
	assert.Empty(t, created)
	assert.Empty(t, h.Vehicles)
	assert.True(t, h.IsUnequipped("v1"))

	// 未装备的车辆在消失前不会重新抽签
	h.penetrationRate = 1
	assert.Empty(t, h.UpdateVehicles([]subscription.Vehicle{{ID: "v1"}}))
	assert.Empty(t, h.RemoveVehicles([]string{"v1"}))
	assert.False(t, h.IsUnequipped("v1"))

	assert.Equal(t, []string{"v1"}, h.UpdateVehicles([]subscription.Vehicle{{ID: "v1"}}))
}

func TestHostsPersonsAndTrafficLights(t *testing.T) {
	h := NewHosts(randengine.New(1), 1)
	assert.Equal(t, []string{"p1"}, h.UpdatePersons([]subscription.Person{{ID: "p1", Speed: 1, Presence: presence(traci.VAR_SPEED)}}))
	h.UpdateTrafficLights([]subscription.TrafficLight{{ID: "j1", State: "GG", Presence: presence(traci.TL_RED_YELLOW_GREEN_STATE)}})
	h.UpdateTrafficLights([]subscription.TrafficLight{{ID: "j1", Phase: 2, Presence: presence(traci.TL_CURRENT_PHASE)}})
	assert.Equal(t, "GG", h.TrafficLights["j1"].State)
	assert.Equal(t, int32(2), h.TrafficLights["j1"].Phase)

	h.RemovePersons([]string{"p1"})
	h.RemoveTrafficLights([]string{"j1"})
	assert.Empty(t, h.Persons)
	assert.Empty(t, h.TrafficLights)
}

func TestCollect(t *testing.T) {
	srv := &vehicleServer{population: []string{"v1"}}
	a := subscription.NewAggregator(subscription.Options{Vehicles: true})
	require.NoError(t, a.Initialize(srv))
	h := NewHosts(randengine.New(1), 1)

	s := collect(a, h)
	require.Len(t, s.Vehicles, 1)
	assert.Equal(t, "v1", s.Vehicles[0].ID)
	assert.Equal(t, 10.0, h.Vehicles["v1"].Speed)
	assert.Empty(t, h.Vehicles["v1"].TypeID)

	buf := traci.NewWriter().Int32(2).
		Command(traci.RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE, idListFrame("v2")).
		Command(traci.RESPONSE_SUBSCRIBE_VEHICLE_VARIABLE, vehicleFrame("v2", 12)).
		Bytes()
	require.NoError(t, a.ProcessSubscriptionResult(buf))

	s = collect(a, h)
	assert.Len(t, s.Vehicles, 2)
	assert.Equal(t, []string{"v1"}, s.DisappearedVehicles)
	require.Contains(t, h.Vehicles, "v2")
	assert.NotContains(t, h.Vehicles, "v1")
	assert.Equal(t, 12.0, h.Vehicles["v2"].Speed)
}

func presence(tags ...uint8) subscription.Presence {
	var p subscription.Presence
	for _, tag := range tags {
		p[tag/64] |= 1 << (tag % 64)
	}
	return p
}
